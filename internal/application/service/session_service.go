package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/dispatcher"
	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/domain/event"
	"github.com/garyjia/backoffice-wizard/internal/domain/workflow"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
)

var (
	// ErrSessionNotFound is returned for an unknown, discarded or foreign session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownFlow is returned when starting a flow that is not registered
	ErrUnknownFlow = errors.New("unknown flow")
)

// SessionService runs wizard sessions on top of the reducer, draft
// persistence and the submission coordinator
type SessionService interface {
	Flows() []*wizard.Flow
	Flow(name string) (*wizard.Flow, error)

	Start(ctx context.Context, flow, owner string) (Snapshot, error)
	Get(ctx context.Context, id, owner string) (Snapshot, error)

	SetFields(ctx context.Context, id, owner string, updates []FieldUpdate) (ActionResult, error)
	Next(ctx context.Context, id, owner string) (ActionResult, error)
	Previous(ctx context.Context, id, owner string) (ActionResult, error)
	JumpTo(ctx context.Context, id, owner string, index int) (ActionResult, error)

	AddDocuments(ctx context.Context, id, owner string, files []entity.FileDescriptor) (ActionResult, error)
	UploadProgress(ctx context.Context, id, owner string, index, progress int, failed bool) (ActionResult, error)
	RemoveDocument(ctx context.Context, id, owner string, index int) (ActionResult, error)

	SaveDraft(ctx context.Context, id, owner string) (entity.SubmissionResult, error)
	Submit(ctx context.Context, id, owner string) (ActionResult, error)
	Discard(ctx context.Context, id, owner string) (Snapshot, error)

	AutosaveAll(ctx context.Context) int
	PruneIdle(maxIdle time.Duration) int
}

type sessionServiceImpl struct {
	flows       map[string]*wizard.Flow
	order       []string
	drafts      port.DraftStoreProvider
	coordinator *wizard.Coordinator
	events      dispatcher.Dispatcher
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a session service. events may be nil.
func NewSessionService(
	flows []*wizard.Flow,
	drafts port.DraftStoreProvider,
	coordinator *wizard.Coordinator,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &sessionServiceImpl{
		flows:       make(map[string]*wizard.Flow, len(flows)),
		drafts:      drafts,
		coordinator: coordinator,
		events:      events,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, f := range flows {
		s.flows[f.Name] = f
		s.order = append(s.order, f.Name)
	}
	return s
}

// Flows returns the registered flows in registration order
func (s *sessionServiceImpl) Flows() []*wizard.Flow {
	out := make([]*wizard.Flow, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.flows[name])
	}
	return out
}

// Flow returns the named flow
func (s *sessionServiceImpl) Flow(name string) (*wizard.Flow, error) {
	f, ok := s.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return f, nil
}

// Start opens a session for owner. A live editing session of the same flow is
// reused so two sessions never race on one draft; otherwise the session is
// hydrated from the stored draft when there is one.
func (s *sessionServiceImpl) Start(ctx context.Context, flowName, owner string) (Snapshot, error) {
	flow, err := s.Flow(flowName)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.Owner != owner || existing.flow != flow {
			continue
		}
		existing.mu.Lock()
		if existing.machine.State() == workflow.StateEditing {
			existing.touch(s.now())
			snap := existing.snapshot()
			existing.mu.Unlock()
			return snap, nil
		}
		existing.mu.Unlock()
	}

	sess := &Session{
		ID:     uuid.NewString(),
		Owner:  owner,
		flow:   flow,
		drafts: wizard.NewDrafts(s.drafts.Scope(owner), flow, s.logger),
	}
	sess.machine = workflow.BuildSubmissionMachine(workflow.StateEditing, s.phaseObserver(sess))

	var pending []*event.Event
	sess.state = flow.NewState()
	if d, ok := sess.drafts.Load(ctx); ok {
		sess.state = wizard.NewFormState(wizard.NewFieldStore(d.FormData), d.Index())
		sess.restored = true
		sess.lastSaved = d.LastSaved
		pending = append(pending, s.newEvent(event.TypeDraftLoaded, sess, map[string]interface{}{
			"currentStep": d.CurrentStep,
		}))
	}
	sess.touch(s.now())
	s.sessions[sess.ID] = sess

	s.logger.Info("Session started",
		zap.String("session_id", sess.ID),
		zap.String("flow", flow.Name),
		zap.String("owner", owner),
		zap.Bool("restored", sess.restored))

	sess.mu.Lock()
	snap := sess.snapshot()
	sess.mu.Unlock()

	s.emit(ctx, pending...)
	return snap, nil
}

func (s *sessionServiceImpl) phaseObserver(sess *Session) workflow.TransitionFunc {
	return func(from, to workflow.State, trigger workflow.Trigger) {
		s.logger.Debug("Session phase changed",
			zap.String("session_id", sess.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.String("trigger", trigger.String()))
	}
}

func (s *sessionServiceImpl) lookup(id, owner string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Owner != owner {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Get returns the session snapshot
func (s *sessionServiceImpl) Get(ctx context.Context, id, owner string) (Snapshot, error) {
	sess, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())
	return sess.snapshot(), nil
}

// editable must be called with sess.mu held
func editable(sess *Session) error {
	switch sess.machine.State() {
	case workflow.StateEditing:
		return nil
	case workflow.StateSubmitting:
		return wizard.ErrSubmissionInProgress
	case workflow.StateSubmitted:
		return wizard.ErrFlowClosed
	default:
		return ErrSessionNotFound
	}
}

// apply reduces intents in order against the session state. Either every
// intent succeeds and the final state is committed, or nothing changes.
func (s *sessionServiceImpl) apply(ctx context.Context, id, owner string, intents ...wizard.Intent) (ActionResult, error) {
	sess, err := s.lookup(id, owner)
	if err != nil {
		return ActionResult{}, err
	}

	sess.mu.Lock()
	sess.touch(s.now())
	if err := editable(sess); err != nil {
		sess.mu.Unlock()
		return ActionResult{}, err
	}

	before := sess.state
	next := before
	result := ActionResult{OK: true}
	var effects []wizard.Effect
	for _, in := range intents {
		var out wizard.Outcome
		next, out = sess.flow.Reduce(next, in)
		if out.Err != nil {
			sess.mu.Unlock()
			return ActionResult{}, out.Err
		}
		result.OK = out.OK
		result.Errors = out.Errors
		result.Cleared = append(result.Cleared, out.Cleared...)
		effects = append(effects, out.Effects...)
	}

	changed := before.Current != next.Current || !bytes.Equal(before.Store.Bytes(), next.Store.Bytes())
	sess.commit(next, changed)

	var pending []*event.Event
	if before.Current != next.Current {
		pending = append(pending, s.newEvent(event.TypeSectionAdvanced, sess, map[string]interface{}{
			"from":    before.Current,
			"to":      next.Current,
			"section": sess.flow.Registry.IDOf(next.Current),
		}))
	}
	for _, e := range effects {
		if e != wizard.EffectAutosave {
			continue
		}
		if d, ok := s.saveLocked(ctx, sess); ok {
			pending = append(pending, s.draftSavedEvent(sess, d, "autosave"))
		}
	}

	result.Snapshot = sess.snapshot()
	sess.mu.Unlock()

	s.emit(ctx, pending...)
	return result, nil
}

// saveLocked writes the current state as the draft. Failures are logged by
// the draft layer and reported as false.
func (s *sessionServiceImpl) saveLocked(ctx context.Context, sess *Session) (wizard.Draft, bool) {
	version := sess.version
	d, err := sess.drafts.Save(ctx, sess.state.Store.Bytes(), sess.state.Current)
	if err != nil {
		s.logger.Warn("Draft save failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return wizard.Draft{}, false
	}
	sess.savedAt = version
	sess.lastSaved = d.LastSaved
	return d, true
}

// SetFields writes every update in order
func (s *sessionServiceImpl) SetFields(ctx context.Context, id, owner string, updates []FieldUpdate) (ActionResult, error) {
	intents := make([]wizard.Intent, 0, len(updates))
	for _, u := range updates {
		intents = append(intents, wizard.SetField{Path: u.Path, Value: u.Value})
	}
	return s.apply(ctx, id, owner, intents...)
}

// Next validates the current section and advances, autosaving on success
func (s *sessionServiceImpl) Next(ctx context.Context, id, owner string) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.Next{})
}

// Previous steps back one section
func (s *sessionServiceImpl) Previous(ctx context.Context, id, owner string) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.Previous{})
}

// JumpTo moves to index when it is reachable
func (s *sessionServiceImpl) JumpTo(ctx context.Context, id, owner string, index int) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.JumpTo{Index: index})
}

// AddDocuments accepts a batch of files under the flow's upload policy
func (s *sessionServiceImpl) AddDocuments(ctx context.Context, id, owner string, files []entity.FileDescriptor) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.AddDocuments{Files: files})
}

// UploadProgress records progress reported by the upload collaborator
func (s *sessionServiceImpl) UploadProgress(ctx context.Context, id, owner string, index, progress int, failed bool) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.UploadProgress{Index: index, Progress: progress, Failed: failed})
}

// RemoveDocument drops the document at index
func (s *sessionServiceImpl) RemoveDocument(ctx context.Context, id, owner string, index int) (ActionResult, error) {
	return s.apply(ctx, id, owner, wizard.RemoveDocument{Index: index})
}

// SaveDraft persists the session on request and returns the draft result.
// A store failure is absorbed: the result is still returned.
func (s *sessionServiceImpl) SaveDraft(ctx context.Context, id, owner string) (entity.SubmissionResult, error) {
	sess, err := s.lookup(id, owner)
	if err != nil {
		return entity.SubmissionResult{}, err
	}

	sess.mu.Lock()
	sess.touch(s.now())
	if err := editable(sess); err != nil {
		sess.mu.Unlock()
		return entity.SubmissionResult{}, err
	}
	if _, out := sess.flow.Reduce(sess.state, wizard.SaveDraft{}); out.Err != nil {
		sess.mu.Unlock()
		return entity.SubmissionResult{}, out.Err
	}

	record := sess.state.Store.Bytes()
	savedAt := s.now().UTC().Truncate(time.Second)
	var pending []*event.Event
	if d, ok := s.saveLocked(ctx, sess); ok {
		savedAt = d.LastSaved
		pending = append(pending, s.draftSavedEvent(sess, d, "manual"))
	}
	sess.mu.Unlock()

	s.emit(ctx, pending...)
	return wizard.DraftResult(savedAt, record), nil
}

// Submit validates every required section and, when clean, hands the record
// to the coordinator. The session lock is released during delivery; the
// SUBMITTING phase keeps other mutations out meanwhile.
func (s *sessionServiceImpl) Submit(ctx context.Context, id, owner string) (ActionResult, error) {
	sess, err := s.lookup(id, owner)
	if err != nil {
		return ActionResult{}, err
	}

	sess.mu.Lock()
	sess.touch(s.now())
	if err := editable(sess); err != nil {
		sess.mu.Unlock()
		return ActionResult{}, err
	}

	next, out := sess.flow.Reduce(sess.state, wizard.Submit{})
	sess.commit(next, false)
	if out.Err != nil {
		result := ActionResult{OK: false, Errors: out.Errors, Snapshot: sess.snapshot()}
		sess.mu.Unlock()
		return result, out.Err
	}

	if err := sess.machine.Fire(ctx, workflow.TriggerSubmit); err != nil {
		sess.mu.Unlock()
		return ActionResult{}, wizard.ErrSubmissionInProgress
	}
	record := sess.state.Store.Bytes()
	sess.mu.Unlock()

	res, err := s.coordinator.Submit(ctx, wizard.SubmitRequest{
		Key:    sess.ID,
		Flow:   sess.flow,
		Owner:  sess.Owner,
		Record: record,
		Drafts: sess.drafts,
	})

	sess.mu.Lock()
	if err != nil {
		if ferr := sess.machine.Fire(context.Background(), workflow.TriggerSubmitFailed); ferr != nil {
			s.logger.Error("Failed to reopen session after delivery failure",
				zap.String("session_id", sess.ID),
				zap.Error(ferr))
		}
		failed := s.newEvent(event.TypeSubmissionFailed, sess, map[string]interface{}{
			"error":     err.Error(),
			"retryable": true,
		})
		result := ActionResult{OK: false, Snapshot: sess.snapshot()}
		sess.mu.Unlock()

		s.emit(ctx, failed)
		return result, err
	}

	if ferr := sess.machine.Fire(context.Background(), workflow.TriggerSubmitSucceeded); ferr != nil {
		s.logger.Error("Failed to close session after delivery",
			zap.String("session_id", sess.ID),
			zap.Error(ferr))
	}
	closed, _ := sess.flow.Reduce(sess.state, wizard.MarkSubmitted{})
	sess.commit(closed, false)
	sess.savedAt = sess.version
	sess.result = &res

	pending := []*event.Event{
		s.newEvent(event.TypeRequestSubmitted, sess, map[string]interface{}{
			"trackingId":  res.ID,
			"status":      res.Status,
			"submittedAt": res.SubmittedAt.UTC().Format(time.RFC3339),
			"record":      string(res.Record),
		}),
		s.newEvent(event.TypeDraftCleared, sess, map[string]interface{}{"reason": "submitted"}),
	}
	result := ActionResult{OK: true, Snapshot: sess.snapshot()}
	sess.mu.Unlock()

	s.emit(ctx, pending...)
	return result, nil
}

// Discard abandons the session and clears its draft
func (s *sessionServiceImpl) Discard(ctx context.Context, id, owner string) (Snapshot, error) {
	sess, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	if err := editable(sess); err != nil {
		sess.mu.Unlock()
		return Snapshot{}, err
	}

	next, out := sess.flow.Reduce(sess.state, wizard.Discard{})
	if out.Err != nil {
		sess.mu.Unlock()
		return Snapshot{}, out.Err
	}
	if err := sess.machine.Fire(ctx, workflow.TriggerDiscard); err != nil {
		sess.mu.Unlock()
		return Snapshot{}, err
	}
	sess.commit(next, false)
	sess.savedAt = sess.version

	if out.Has(wizard.EffectClearDraft) {
		// absorbed
		if err := sess.drafts.Clear(ctx); err != nil {
			s.logger.Warn("Draft not cleared on discard",
				zap.String("session_id", sess.ID),
				zap.Error(err))
		}
	}
	snap := sess.snapshot()
	cleared := s.newEvent(event.TypeDraftCleared, sess, map[string]interface{}{"reason": "discarded"})
	sess.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.coordinator.Forget(id)

	s.emit(ctx, cleared)
	return snap, nil
}

func (s *sessionServiceImpl) snapshotSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AutosaveAll saves every editing session changed since its last save and
// returns how many drafts were written
func (s *sessionServiceImpl) AutosaveAll(ctx context.Context) int {
	saved := 0
	for _, sess := range s.snapshotSessions() {
		sess.mu.Lock()
		if sess.machine.State() != workflow.StateEditing || !sess.dirty() {
			sess.mu.Unlock()
			continue
		}
		d, ok := s.saveLocked(ctx, sess)
		var evt *event.Event
		if ok {
			saved++
			evt = s.draftSavedEvent(sess, d, "interval")
		}
		sess.mu.Unlock()

		if evt != nil {
			s.emit(ctx, evt)
		}
	}
	return saved
}

// PruneIdle forgets sessions not used for longer than maxIdle. Sessions with
// a delivery in flight are kept.
func (s *sessionServiceImpl) PruneIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff) && sess.machine.State() != workflow.StateSubmitting
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			s.coordinator.Forget(id)
			pruned++
		}
	}
	if pruned > 0 {
		s.logger.Info("Pruned idle sessions", zap.Int("count", pruned))
	}
	return pruned
}

func (s *sessionServiceImpl) newEvent(t event.Type, sess *Session, payload map[string]interface{}) *event.Event {
	return event.NewEvent(t, sess.ID, sess.flow.Name, sess.Owner, payload)
}

func (s *sessionServiceImpl) draftSavedEvent(sess *Session, d wizard.Draft, trigger string) *event.Event {
	return s.newEvent(event.TypeDraftSaved, sess, map[string]interface{}{
		"currentStep": d.CurrentStep,
		"lastSaved":   d.LastSaved.Format(time.RFC3339),
		"trigger":     trigger,
	})
}

func (s *sessionServiceImpl) emit(ctx context.Context, events ...*event.Event) {
	if s.events == nil {
		return
	}
	for _, evt := range events {
		s.events.DispatchAsync(ctx, evt)
	}
}
