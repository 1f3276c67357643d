package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/application/dispatcher"
	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/domain/event"
	"github.com/garyjia/backoffice-wizard/internal/domain/workflow"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type memProvider struct {
	mu     sync.Mutex
	scopes map[string]*memStore
}

func newMemProvider() *memProvider {
	return &memProvider{scopes: map[string]*memStore{}}
}

func (p *memProvider) Scope(owner string) port.DraftStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scopes[owner]
	if !ok {
		s = &memStore{data: map[string][]byte{}}
		p.scopes[owner] = s
	}
	return s
}

func (p *memProvider) has(owner, key string) bool {
	_, err := p.Scope(owner).Get(context.Background(), key)
	return err == nil
}

type stubTransport struct {
	mu      sync.Mutex
	err     error
	release chan struct{}
	calls   int
}

func (s *stubTransport) Name() string { return "stub" }

func (s *stubTransport) Deliver(ctx context.Context, flow string, record []byte) (string, error) {
	s.mu.Lock()
	s.calls++
	err, release := s.err, s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	return "ext", err
}

func (s *stubTransport) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type memRepo struct {
	mu   sync.Mutex
	subs []*entity.Submission
}

func (r *memRepo) Create(ctx context.Context, sub *entity.Submission, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.Sequence = len(r.subs) + 1
	sub.TrackingID = entity.FormatTrackingID(prefix, sub.Year, sub.Sequence)
	r.subs = append(r.subs, sub)
	return nil
}

func (r *memRepo) GetByTrackingID(ctx context.Context, trackingID string) (*entity.Submission, error) {
	return nil, port.ErrNotFound
}

func (r *memRepo) ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Submission, error) {
	return nil, nil
}

type recorder struct {
	mu     sync.Mutex
	events []event.Type
}

func (r *recorder) handle(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt.Type)
	return nil
}

func (r *recorder) seen(t event.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == t {
			return true
		}
	}
	return false
}

type fixture struct {
	svc       SessionService
	drafts    *memProvider
	transport *stubTransport
	repo      *memRepo
	events    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, newMemProvider())
}

func newFixtureWith(t *testing.T, drafts *memProvider) *fixture {
	t.Helper()
	f := &fixture{
		drafts:    drafts,
		transport: &stubTransport{},
		repo:      &memRepo{},
		events:    &recorder{},
	}

	d := dispatcher.NewDispatcher()
	d.Subscribe(dispatcher.AnyType, f.events.handle)
	t.Cleanup(func() { _ = d.Close() })

	flows := []*wizard.Flow{
		wizard.NewRequestFlow(entity.DefaultRoster(), wizard.DefaultUploadPolicy()),
		wizard.NewOnboardingFlow(wizard.DefaultUploadPolicy()),
	}
	coordinator := wizard.NewCoordinator(f.transport, f.repo, time.Second, nil)
	f.svc = NewSessionService(flows, drafts, coordinator, d, nil)
	return f
}

const requestDraftKey = "request-submission-draft"

var validRequest = []FieldUpdate{
	{"requestType", "leave"},
	{"requesterInfo.name", "Asha Pillai"},
	{"requesterInfo.employeeId", "EMP-1042"},
	{"requesterInfo.email", "asha.pillai@estateops.in"},
	{"requesterInfo.position", "Leasing Associate"},
	{"requesterInfo.department", "sales"},
	{"title", "Annual leave in December"},
	{"description", "Two weeks of annual leave for a family trip."},
	{"targetDepartment", "human_resources"},
	{"businessJustification", strings.Repeat("j", wizard.MinJustificationLength)},
	{"priority", "normal"},
}

func TestStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "payroll", "alice")
	assert.ErrorIs(t, err, ErrUnknownFlow)

	snap, err := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Current)
	assert.Equal(t, wizard.SectionType, snap.Section)
	assert.Equal(t, 0, snap.Percentage)
	assert.Equal(t, workflow.StateEditing, snap.Phase)
	assert.False(t, snap.Restored)
	assert.Len(t, snap.Sections, 6)

	again, err := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID, "live session is reused")

	other, err := f.svc.Start(ctx, wizard.FlowRequest, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, snap.ID, other.ID)

	_, err = f.svc.Get(ctx, snap.ID, "bob")
	assert.ErrorIs(t, err, ErrSessionNotFound, "sessions are private to their owner")
}

func TestNext_GatesAndAutosaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	require.NoError(t, err)

	res, err := f.svc.Next(ctx, snap.ID, "alice")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Request type is required", res.Errors["requestType"])
	assert.Equal(t, 0, res.Snapshot.Current)
	assert.False(t, f.drafts.has("alice", requestDraftKey))

	res, err = f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"requestType", "leave"}})
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Errors, "editing a field clears its error")
	assert.True(t, res.Snapshot.Dirty)

	res, err = f.svc.Next(ctx, snap.ID, "alice")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Snapshot.Current)
	assert.False(t, res.Snapshot.Dirty)
	assert.NotNil(t, res.Snapshot.LastSaved)
	assert.True(t, f.drafts.has("alice", requestDraftKey))

	assert.Eventually(t, func() bool {
		return f.events.seen(event.TypeSectionAdvanced) && f.events.seen(event.TypeDraftSaved)
	}, time.Second, 5*time.Millisecond)
}

func TestStart_ResumesFromDraft(t *testing.T) {
	drafts := newMemProvider()
	f := newFixtureWith(t, drafts)
	ctx := context.Background()

	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, err := f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"requestType", "leave"}})
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID, "alice")
	require.NoError(t, err)

	// a new process over the same store
	restarted := newFixtureWith(t, drafts)
	resumed, err := restarted.svc.Start(ctx, wizard.FlowRequest, "alice")
	require.NoError(t, err)

	assert.True(t, resumed.Restored)
	assert.Equal(t, 1, resumed.Current)
	assert.Equal(t, "leave", gjson.GetBytes(resumed.Values, "requestType").String())
	assert.Eventually(t, func() bool { return restarted.events.seen(event.TypeDraftLoaded) }, time.Second, 5*time.Millisecond)
}

func TestSetFields_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")

	_, err := f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{
		{"title", "Kept?"},
		{"bad path!", "x"},
	})
	assert.ErrorIs(t, err, wizard.ErrInvalidPath)

	got, err := f.svc.Get(ctx, snap.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "", gjson.GetBytes(got.Values, "title").String())
	assert.False(t, got.Dirty)
}

func fillAndSubmit(t *testing.T, f *fixture, owner string) (ActionResult, error) {
	t.Helper()
	ctx := context.Background()
	snap, err := f.svc.Start(ctx, wizard.FlowRequest, owner)
	require.NoError(t, err)
	_, err = f.svc.SetFields(ctx, snap.ID, owner, validRequest)
	require.NoError(t, err)
	return f.svc.Submit(ctx, snap.ID, owner)
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := fillAndSubmit(t, f, "alice")
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Snapshot.Result)
	assert.Equal(t, fmt.Sprintf("REQ-%d-0001", time.Now().UTC().Year()), res.Snapshot.Result.ID)
	assert.Equal(t, entity.SubmissionStatusPending, res.Snapshot.Result.Status)
	assert.Equal(t, workflow.StateSubmitted, res.Snapshot.Phase)
	assert.False(t, f.drafts.has("alice", requestDraftKey))

	_, err = f.svc.SetFields(ctx, res.Snapshot.ID, "alice", []FieldUpdate{{"title", "late edit"}})
	assert.ErrorIs(t, err, wizard.ErrFlowClosed)
	_, err = f.svc.Submit(ctx, res.Snapshot.ID, "alice")
	assert.ErrorIs(t, err, wizard.ErrFlowClosed)

	assert.Eventually(t, func() bool {
		return f.events.seen(event.TypeRequestSubmitted) && f.events.seen(event.TypeDraftCleared)
	}, time.Second, 5*time.Millisecond)

	next, err := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, res.Snapshot.ID, next.ID, "a submitted session is not reused")
	assert.False(t, next.Restored)
}

func TestSubmit_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")

	res, err := f.svc.Submit(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, wizard.ErrValidationFailed)
	assert.False(t, res.OK)
	assert.Equal(t, "Title is required", res.Errors["title"])
	assert.Equal(t, workflow.StateEditing, res.Snapshot.Phase)
	assert.Zero(t, f.transport.calls)
}

func TestSubmit_TransportFailureKeepsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("backend unavailable")
	f.transport.fail(boom)

	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, err := f.svc.SetFields(ctx, snap.ID, "alice", validRequest)
	require.NoError(t, err)
	_, err = f.svc.SaveDraft(ctx, snap.ID, "alice")
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, wizard.ErrSubmissionFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, workflow.StateEditing, res.Snapshot.Phase)
	assert.Nil(t, res.Snapshot.Result)
	assert.True(t, f.drafts.has("alice", requestDraftKey))
	assert.Empty(t, f.repo.subs)
	assert.Eventually(t, func() bool { return f.events.seen(event.TypeSubmissionFailed) }, time.Second, 5*time.Millisecond)

	f.transport.fail(nil)
	res, err = f.svc.Submit(ctx, snap.ID, "alice")
	require.NoError(t, err, "retry after failure")
	assert.Equal(t, workflow.StateSubmitted, res.Snapshot.Phase)
}

func TestSubmit_RejectsReentryAndEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.transport.release = release

	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, err := f.svc.SetFields(ctx, snap.ID, "alice", validRequest)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(ctx, snap.ID, "alice")
		done <- err
	}()

	require.Eventually(t, func() bool {
		got, err := f.svc.Get(ctx, snap.ID, "alice")
		return err == nil && got.Phase == workflow.StateSubmitting
	}, time.Second, 5*time.Millisecond)

	_, err = f.svc.Submit(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, wizard.ErrSubmissionInProgress)
	_, err = f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"title", "changed"}})
	assert.ErrorIs(t, err, wizard.ErrSubmissionInProgress)
	_, err = f.svc.Discard(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, wizard.ErrSubmissionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, f.repo.subs, 1)
	assert.Equal(t, 1, f.transport.calls)
}

func TestSaveDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, err := f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"title", "Half done"}})
	require.NoError(t, err)

	res, err := f.svc.SaveDraft(ctx, snap.ID, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ID, "DRAFT-"))
	assert.Equal(t, entity.SubmissionStatusDraft, res.Status)
	assert.Equal(t, "Half done", gjson.GetBytes(res.Record, "title").String())
	assert.True(t, f.drafts.has("alice", requestDraftKey))
}

func TestDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, err := f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"title", "Never mind"}})
	require.NoError(t, err)
	_, err = f.svc.SaveDraft(ctx, snap.ID, "alice")
	require.NoError(t, err)

	discarded, err := f.svc.Discard(ctx, snap.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateDiscarded, discarded.Phase)
	assert.Equal(t, "", gjson.GetBytes(discarded.Values, "title").String())
	assert.False(t, f.drafts.has("alice", requestDraftKey))

	_, err = f.svc.Get(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")

	res, err := f.svc.AddDocuments(ctx, snap.ID, "alice", []entity.FileDescriptor{
		{Name: "quote.pdf", Size: 1024, MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", gjson.GetBytes(res.Snapshot.Values, "documents.0.uploadState").String())

	res, err = f.svc.UploadProgress(ctx, snap.ID, "alice", 0, 100, false)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", gjson.GetBytes(res.Snapshot.Values, "documents.0.uploadState").String())

	_, err = f.svc.AddDocuments(ctx, snap.ID, "alice", []entity.FileDescriptor{
		{Name: "virus.exe", Size: 10, MimeType: "application/x-msdownload"},
	})
	assert.ErrorIs(t, err, wizard.ErrUnsupportedType)

	_, err = f.svc.RemoveDocument(ctx, snap.ID, "alice", 3)
	assert.ErrorIs(t, err, wizard.ErrDocumentIndex)

	res, err = f.svc.RemoveDocument(ctx, snap.ID, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gjson.GetBytes(res.Snapshot.Values, "documents.#").Int())
}

func TestAutosaveAllAndPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	impl := f.svc.(*sessionServiceImpl)

	snap, _ := f.svc.Start(ctx, wizard.FlowRequest, "alice")
	_, _ = f.svc.Start(ctx, wizard.FlowOnboarding, "alice")

	assert.Equal(t, 0, f.svc.AutosaveAll(ctx), "nothing changed yet")

	_, err := f.svc.SetFields(ctx, snap.ID, "alice", []FieldUpdate{{"title", "Autosaved"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.AutosaveAll(ctx))
	assert.Equal(t, 0, f.svc.AutosaveAll(ctx))
	assert.True(t, f.drafts.has("alice", requestDraftKey))

	assert.Equal(t, 0, f.svc.PruneIdle(time.Hour))

	impl.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assert.Equal(t, 2, f.svc.PruneIdle(time.Hour))

	_, err = f.svc.Get(ctx, snap.ID, "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
