package wizard

import (
	"fmt"
	"sort"
)

// Section describes one step of a wizard
type Section struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Order    int    `json:"order"`
}

// Registry is the ordered, immutable section catalog of a flow
type Registry struct {
	sections []Section
	index    map[string]int
}

// NewRegistry orders sections by Order. It panics on an empty or duplicate
// id, which is a configuration error.
func NewRegistry(sections ...Section) *Registry {
	if len(sections) == 0 {
		panic("registry needs at least one section")
	}

	sorted := make([]Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	index := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if s.ID == "" {
			panic(fmt.Sprintf("section at position %d has no id", i))
		}
		if _, dup := index[s.ID]; dup {
			panic(fmt.Sprintf("duplicate section id: %s", s.ID))
		}
		index[s.ID] = i
	}

	return &Registry{sections: sorted, index: index}
}

// Count returns the number of sections
func (r *Registry) Count() int {
	return len(r.sections)
}

// LastIndex returns the index of the final section
func (r *Registry) LastIndex() int {
	return len(r.sections) - 1
}

// ByIndex returns the section at i
func (r *Registry) ByIndex(i int) (Section, bool) {
	if i < 0 || i >= len(r.sections) {
		return Section{}, false
	}
	return r.sections[i], true
}

// IDOf returns the id of the section at i, or "" when out of range
func (r *Registry) IDOf(i int) string {
	s, ok := r.ByIndex(i)
	if !ok {
		return ""
	}
	return s.ID
}

// IndexOf returns the position of the section id, or -1
func (r *Registry) IndexOf(id string) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Sections returns all sections in navigation order
func (r *Registry) Sections() []Section {
	out := make([]Section, len(r.sections))
	copy(out, r.sections)
	return out
}

// Required returns the required sections in navigation order
func (r *Registry) Required() []Section {
	out := make([]Section, 0, len(r.sections))
	for _, s := range r.sections {
		if s.Required {
			out = append(out, s)
		}
	}
	return out
}

// Section ids of the request-submission flow
const (
	SectionType          = "type"
	SectionRequester     = "requester"
	SectionDetails       = "details"
	SectionJustification = "justification"
	SectionPriority      = "priority"
	SectionDocuments     = "documents"
)

// Section ids of the client-onboarding flow
const (
	SectionPersonal      = "personal"
	SectionFinancial     = "financial"
	SectionPreferences   = "preferences"
	SectionDocumentation = "documentation"
	SectionReview        = "review"
)

// RequestSections returns the request-submission catalog
func RequestSections() *Registry {
	return NewRegistry(
		Section{ID: SectionType, Label: "Request Type", Required: true, Order: 1},
		Section{ID: SectionRequester, Label: "Requester Information", Required: true, Order: 2},
		Section{ID: SectionDetails, Label: "Request Details", Required: true, Order: 3},
		Section{ID: SectionJustification, Label: "Business Justification", Required: true, Order: 4},
		Section{ID: SectionPriority, Label: "Priority & Timeline", Required: true, Order: 5},
		Section{ID: SectionDocuments, Label: "Supporting Documents", Required: false, Order: 6},
	)
}

// OnboardingSections returns the client-onboarding catalog
func OnboardingSections() *Registry {
	return NewRegistry(
		Section{ID: SectionPersonal, Label: "Personal Information", Required: true, Order: 1},
		Section{ID: SectionFinancial, Label: "Financial Profile", Required: true, Order: 2},
		Section{ID: SectionPreferences, Label: "Investment Preferences", Required: true, Order: 3},
		Section{ID: SectionDocumentation, Label: "Documentation & KYC", Required: true, Order: 4},
		Section{ID: SectionReview, Label: "Review & Submit", Required: false, Order: 5},
	)
}
