package wizard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// Flow names
const (
	FlowRequest    = "request"
	FlowOnboarding = "onboarding"
)

// Hook runs after a write to Path, or to any parent of Path. It returns the
// paths it cleared so their errors can be dropped too.
type Hook struct {
	Path  string
	Apply func(store *FieldStore) ([]string, error)
}

func (h Hook) matches(path string) bool {
	return h.Path == path || strings.HasPrefix(h.Path, path+".")
}

// Flow bundles everything that distinguishes one wizard from another
type Flow struct {
	Name           string
	Title          string
	DraftKey       string
	TrackingPrefix string
	DocumentsPath  string
	Registry       *Registry
	Validator      Validator
	Template       []byte
	Hooks          []Hook
	Uploads        UploadPolicy

	conditions map[string]func(Record) bool
	nav        *Navigator
}

func mustTemplate(v interface{}) []byte {
	doc, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to build flow template: %v", err))
	}
	return doc
}

// NewRequestFlow builds the request-submission wizard
func NewRequestFlow(roster *entity.Roster, uploads UploadPolicy) *Flow {
	reg := RequestSections()
	rules := RequestRules(roster)

	whenCostBearing := costBearing
	whenDepartmentChosen := func(r Record) bool {
		return !isBlank(r.Get(FieldManagerDepartment))
	}

	return &Flow{
		Name:           FlowRequest,
		Title:          "New Request",
		DraftKey:       "request-submission-draft",
		TrackingPrefix: "REQ",
		DocumentsPath:  FieldDocuments,
		Registry:       reg,
		Validator:      rules,
		Template:       mustTemplate(entity.NewRequest()),
		Uploads:        uploads,
		Hooks: []Hook{
			costFieldsHook(),
			managerDepartmentHook(roster),
			managerNameHook(roster),
		},
		conditions: map[string]func(Record) bool{
			FieldAmount:       whenCostBearing,
			FieldCurrency:     whenCostBearing,
			FieldDueDate:      whenCostBearing,
			FieldManagerEmail: whenDepartmentChosen,
			FieldManagerName:  whenDepartmentChosen,
		},
		nav: NewNavigator(reg, rules),
	}
}

// NewOnboardingFlow builds the client-onboarding wizard
func NewOnboardingFlow(uploads UploadPolicy) *Flow {
	reg := OnboardingSections()
	rules := OnboardingRules()

	return &Flow{
		Name:           FlowOnboarding,
		Title:          "Client Onboarding",
		DraftKey:       "client-onboarding-draft",
		TrackingPrefix: "ONB",
		DocumentsPath:  FieldUploadedDocuments,
		Registry:       reg,
		Validator:      rules,
		Template:       mustTemplate(entity.NewOnboardingApplication()),
		Uploads:        uploads,
		Hooks: []Hook{
			upperCaseHook(FieldPAN),
			upperCaseHook(FieldIFSC),
		},
		conditions: map[string]func(Record) bool{},
		nav:        NewNavigator(reg, rules),
	}
}

// NewState returns a fresh state holding the empty template record
func (f *Flow) NewState() FormState {
	return NewFormState(NewFieldStore(f.Template), 0)
}

// Navigator returns the flow's navigator
func (f *Flow) Navigator() *Navigator {
	return f.nav
}

// Visible reports whether a conditional field currently applies. Fields
// without a condition are always visible.
func (f *Flow) Visible(path string, r Record) bool {
	cond, ok := f.conditions[path]
	if !ok {
		return true
	}
	return cond(r)
}

// Visibility evaluates every conditional field
func (f *Flow) Visibility(r Record) map[string]bool {
	out := make(map[string]bool, len(f.conditions))
	for path, cond := range f.conditions {
		out[path] = cond(r)
	}
	return out
}

// Percentage is the completion percentage of r
func (f *Flow) Percentage(r Record) int {
	return Percentage(f.Registry, f.Validator, r)
}

// Statuses evaluates every section of r
func (f *Flow) Statuses(r Record, touched map[string]bool) []SectionStatus {
	return Statuses(f.Registry, f.Validator, r, touched)
}

// costFieldsHook drops amount, currency and due date once the request type
// no longer carries cost
func costFieldsHook() Hook {
	return Hook{
		Path: FieldRequestType,
		Apply: func(store *FieldStore) ([]string, error) {
			if costBearing(store) {
				return nil, nil
			}
			var cleared []string
			for _, path := range []string{FieldAmount, FieldCurrency, FieldDueDate} {
				if !store.Get(path).Exists() {
					continue
				}
				if err := store.Delete(path); err != nil {
					return cleared, err
				}
				cleared = append(cleared, path)
			}
			return cleared, nil
		},
	}
}

// managerDepartmentHook clears a chosen manager that is not in the roster of
// the new department
func managerDepartmentHook(roster *entity.Roster) Hook {
	return Hook{
		Path: FieldManagerDepartment,
		Apply: func(store *FieldStore) ([]string, error) {
			email := text(store.Get(FieldManagerEmail))
			if email == "" {
				return nil, nil
			}
			if _, ok := roster.Find(text(store.Get(FieldManagerDepartment)), email); ok {
				return nil, nil
			}
			for _, path := range []string{FieldManagerEmail, FieldManagerName} {
				if err := store.Set(path, ""); err != nil {
					return nil, err
				}
			}
			return []string{FieldManagerEmail, FieldManagerName}, nil
		},
	}
}

// managerNameHook fills the manager name from the roster
func managerNameHook(roster *entity.Roster) Hook {
	return Hook{
		Path: FieldManagerEmail,
		Apply: func(store *FieldStore) ([]string, error) {
			m, ok := roster.Find(text(store.Get(FieldManagerDepartment)), text(store.Get(FieldManagerEmail)))
			if !ok {
				return nil, nil
			}
			return nil, store.Set(FieldManagerName, m.Name)
		},
	}
}

func upperCaseHook(path string) Hook {
	return Hook{
		Path: path,
		Apply: func(store *FieldStore) ([]string, error) {
			v := store.Get(path)
			if v.Type != gjson.String {
				return nil, nil
			}
			upper := strings.ToUpper(strings.TrimSpace(v.Str))
			if upper == v.Str {
				return nil, nil
			}
			return nil, store.Set(path, upper)
		},
	}
}
