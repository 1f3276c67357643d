package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/domain/workflow"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
)

// Session is one user's live wizard instance. All access goes through mu so
// HTTP handlers and the autosave worker observe mutations in call order.
type Session struct {
	ID    string
	Owner string

	flow    *wizard.Flow
	drafts  *wizard.Drafts
	machine workflow.StateMachine

	mu         sync.Mutex
	state      wizard.FormState
	version    uint64
	savedAt    uint64
	lastSaved  time.Time
	lastActive time.Time
	restored   bool
	result     *entity.SubmissionResult
}

// Snapshot is the read model of a session
type Snapshot struct {
	ID         string                   `json:"id"`
	Flow       string                   `json:"flow"`
	Title      string                   `json:"title"`
	Phase      workflow.State           `json:"phase"`
	Values     json.RawMessage          `json:"values"`
	Current    int                      `json:"current"`
	Section    string                   `json:"section"`
	Sections   []wizard.SectionStatus   `json:"sections"`
	Percentage int                      `json:"percentage"`
	Errors     wizard.ErrorMap          `json:"errors"`
	Visibility map[string]bool          `json:"visibility"`
	Dirty      bool                     `json:"dirty"`
	Restored   bool                     `json:"restored"`
	LastSaved  *time.Time               `json:"lastSaved,omitempty"`
	Result     *entity.SubmissionResult `json:"result,omitempty"`
}

// ActionResult is the answer to a mutating call
type ActionResult struct {
	OK       bool            `json:"ok"`
	Errors   wizard.ErrorMap `json:"errors,omitempty"`
	Cleared  []string        `json:"cleared,omitempty"`
	Snapshot Snapshot        `json:"session"`
}

// FieldUpdate is one field write
type FieldUpdate struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

func (s *Session) dirty() bool {
	return s.version != s.savedAt
}

func (s *Session) touch(now time.Time) {
	s.lastActive = now
}

// commit installs next and bumps the version when the record may have changed
func (s *Session) commit(next wizard.FormState, changed bool) {
	s.state = next
	if changed {
		s.version++
	}
}

// snapshot must be called with mu held
func (s *Session) snapshot() Snapshot {
	st := s.state
	snap := Snapshot{
		ID:         s.ID,
		Flow:       s.flow.Name,
		Title:      s.flow.Title,
		Phase:      s.machine.State(),
		Values:     json.RawMessage(st.Store.Bytes()),
		Current:    st.Current,
		Section:    s.flow.Registry.IDOf(st.Current),
		Sections:   s.flow.Statuses(st.Store, st.Touched),
		Percentage: s.flow.Percentage(st.Store),
		Errors:     st.Errors.Clone(),
		Visibility: s.flow.Visibility(st.Store),
		Dirty:      s.dirty(),
		Restored:   s.restored,
		Result:     s.result,
	}
	if !s.lastSaved.IsZero() {
		saved := s.lastSaved
		snap.LastSaved = &saved
	}
	return snap
}
