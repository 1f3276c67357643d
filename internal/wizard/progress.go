package wizard

import "math"

// SectionStatus summarizes one section for display
type SectionStatus struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Index      int    `json:"index"`
	Required   bool   `json:"required"`
	Complete   bool   `json:"complete"`
	Touched    bool   `json:"touched"`
	ErrorCount int    `json:"errorCount"`
}

// SectionComplete reports whether sectionID currently has no errors
func SectionComplete(v Validator, sectionID string, r Record) bool {
	return len(v.Validate(sectionID, r)) == 0
}

// Percentage returns round(100 * completed required sections / required
// sections). It is recomputed from the record on every call and is 100 for a
// registry without required sections.
func Percentage(reg *Registry, v Validator, r Record) int {
	required := reg.Required()
	if len(required) == 0 {
		return 100
	}

	completed := 0
	for _, s := range required {
		if SectionComplete(v, s.ID, r) {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(required))))
}

// Statuses evaluates every section of reg against r
func Statuses(reg *Registry, v Validator, r Record, touched map[string]bool) []SectionStatus {
	out := make([]SectionStatus, 0, reg.Count())
	for i, s := range reg.Sections() {
		errs := v.Validate(s.ID, r)
		out = append(out, SectionStatus{
			ID:         s.ID,
			Label:      s.Label,
			Index:      i,
			Required:   s.Required,
			Complete:   len(errs) == 0,
			Touched:    touched[s.ID],
			ErrorCount: len(errs),
		})
	}
	return out
}
