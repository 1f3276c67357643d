package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

type fakeTransport struct {
	mu      sync.Mutex
	delay   time.Duration
	err     error
	calls   int
	release chan struct{}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Deliver(ctx context.Context, flow string, record []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "ext-1", nil
}

type fakeRepo struct {
	mu      sync.Mutex
	created []*entity.Submission
	err     error
}

func (r *fakeRepo) Create(ctx context.Context, sub *entity.Submission, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	sub.Sequence = len(r.created) + 1
	sub.TrackingID = fmt.Sprintf("%s-%d-%04d", prefix, sub.Year, sub.Sequence)
	r.created = append(r.created, sub)
	return nil
}

func (r *fakeRepo) GetByTrackingID(ctx context.Context, trackingID string) (*entity.Submission, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRepo) ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Submission, error) {
	return nil, errors.New("not implemented")
}

func submitFixture(t *testing.T) (*Flow, *memStore, *Drafts, FormState) {
	t.Helper()
	f := requestFlow()
	store := newMemStore()
	drafts := newDrafts(store, f)
	s := validRequestState(t, f)
	_, err := drafts.Save(context.Background(), s.Store.Bytes(), 4)
	require.NoError(t, err)
	return f, store, drafts, s
}

func TestCoordinator_SuccessAssignsTrackingIDAndClearsDraft(t *testing.T) {
	f, store, drafts, s := submitFixture(t)
	repo := &fakeRepo{}
	c := NewCoordinator(&fakeTransport{}, repo, time.Second, nil)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	result, err := c.Submit(context.Background(), SubmitRequest{
		Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts,
	})
	require.NoError(t, err)

	assert.Equal(t, "REQ-2026-0001", result.ID)
	assert.Equal(t, entity.SubmissionStatusPending, result.Status)
	assert.False(t, store.has(f.DraftKey))

	require.Len(t, repo.created, 1)
	assert.Equal(t, "ext-1", repo.created[0].ExternalRef)
	assert.Equal(t, "alice", repo.created[0].Owner)

	body, err := result.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "REQ-2026-0001", gjson.GetBytes(body, "id").String())
	assert.Equal(t, "pending", gjson.GetBytes(body, "status").String())
	assert.Equal(t, "2026-03-01T12:00:00Z", gjson.GetBytes(body, "submittedAt").String())
	assert.Equal(t, "leave", gjson.GetBytes(body, "requestType").String())
}

func TestCoordinator_TransportFailurePreservesDraft(t *testing.T) {
	f, store, drafts, s := submitFixture(t)
	repo := &fakeRepo{}
	c := NewCoordinator(&fakeTransport{err: errors.New("503 upstream")}, repo, time.Second, nil)

	result, err := c.Submit(context.Background(), SubmitRequest{
		Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts,
	})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Empty(t, result.ID)
	assert.Empty(t, repo.created)
	assert.True(t, store.has(f.DraftKey))
}

func TestCoordinator_TimeoutMapsToFailure(t *testing.T) {
	f, store, drafts, s := submitFixture(t)
	release := make(chan struct{})
	defer close(release)

	c := NewCoordinator(&fakeTransport{release: release}, &fakeRepo{}, 20*time.Millisecond, nil)

	_, err := c.Submit(context.Background(), SubmitRequest{
		Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts,
	})
	assert.ErrorIs(t, err, ErrSubmissionTimeout)
	assert.True(t, store.has(f.DraftKey))
}

func TestCoordinator_RejectsReentry(t *testing.T) {
	f, _, drafts, s := submitFixture(t)
	release := make(chan struct{})
	transport := &fakeTransport{release: release}
	c := NewCoordinator(transport, &fakeRepo{}, time.Second, nil)

	req := SubmitRequest{Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts}

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), req)
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := c.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	// another instance is not blocked
	other := req
	other.Key = "s2"
	other.Drafts = nil
	secondDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), other)
		secondDone <- err
	}()

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	transport.mu.Lock()
	assert.Equal(t, 2, transport.calls)
	transport.mu.Unlock()
}

func TestCoordinator_RecordFailure(t *testing.T) {
	f, store, drafts, s := submitFixture(t)
	c := NewCoordinator(&fakeTransport{}, &fakeRepo{err: errors.New("disk full")}, time.Second, nil)

	_, err := c.Submit(context.Background(), SubmitRequest{
		Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts,
	})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.True(t, store.has(f.DraftKey))
}

func TestCoordinator_RetryAfterRecordFailureDoesNotRedeliver(t *testing.T) {
	f, store, drafts, s := submitFixture(t)
	transport := &fakeTransport{}
	repo := &fakeRepo{err: errors.New("disk full")}
	c := NewCoordinator(transport, repo, time.Second, nil)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	req := SubmitRequest{Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes(), Drafts: drafts}
	_, err := c.Submit(context.Background(), req)
	require.ErrorIs(t, err, ErrSubmissionFailed)

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC) }

	result, err := c.Submit(context.Background(), req)
	require.NoError(t, err)

	transport.mu.Lock()
	assert.Equal(t, 1, transport.calls)
	transport.mu.Unlock()

	require.Len(t, repo.created, 1)
	assert.Equal(t, "ext-1", repo.created[0].ExternalRef)
	assert.Equal(t, "2026-03-01T12:00:00Z", result.SubmittedAt.Format(time.RFC3339), "the delivered attempt is what gets recorded")
	assert.False(t, store.has(f.DraftKey))

	// the next submit on the key delivers afresh
	_, err = c.Submit(context.Background(), SubmitRequest{Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes()})
	require.NoError(t, err)
	transport.mu.Lock()
	assert.Equal(t, 2, transport.calls)
	transport.mu.Unlock()
}

func TestCoordinator_ForgetDropsUnrecordedDelivery(t *testing.T) {
	f, _, _, s := submitFixture(t)
	transport := &fakeTransport{}
	repo := &fakeRepo{err: errors.New("disk full")}
	c := NewCoordinator(transport, repo, time.Second, nil)

	req := SubmitRequest{Key: "s1", Flow: f, Owner: "alice", Record: s.Store.Bytes()}
	_, err := c.Submit(context.Background(), req)
	require.Error(t, err)

	c.Forget("s1")
	repo.err = nil
	_, err = c.Submit(context.Background(), req)
	require.NoError(t, err)

	transport.mu.Lock()
	assert.Equal(t, 2, transport.calls)
	transport.mu.Unlock()
}

func TestDraftResult(t *testing.T) {
	at := time.UnixMilli(1760000000123).UTC()
	result := DraftResult(at, []byte(`{"title":"x"}`))

	assert.Equal(t, "DRAFT-1760000000123", result.ID)
	assert.Equal(t, entity.SubmissionStatusDraft, result.Status)

	body, err := result.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "x", gjson.GetBytes(body, "title").String())
	assert.Equal(t, "draft", gjson.GetBytes(body, "status").String())
}
