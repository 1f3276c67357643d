package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/pkg/database"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zap.NewNop()

	conn, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "wizard.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, database.NewMigrator(conn, logger).RunEmbedded())
	return NewDB(conn.DB, logger)
}

func TestDraftStore_ScopedCRUD(t *testing.T) {
	db := openTestDB(t)
	store := NewDraftStore(db, nil)
	ctx := context.Background()

	alice := store.Scope("alice")
	bob := store.Scope("bob")

	_, err := alice.Get(ctx, "request-submission-draft")
	assert.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, alice.Set(ctx, "request-submission-draft", []byte(`{"v":1}`)))
	require.NoError(t, alice.Set(ctx, "request-submission-draft", []byte(`{"v":2}`)))

	got, err := alice.Get(ctx, "request-submission-draft")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	_, err = bob.Get(ctx, "request-submission-draft")
	assert.ErrorIs(t, err, port.ErrNotFound, "drafts do not leak across owners")

	require.NoError(t, alice.Delete(ctx, "request-submission-draft"))
	require.NoError(t, alice.Delete(ctx, "request-submission-draft"))
	_, err = alice.Get(ctx, "request-submission-draft")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func newSubmission(flow, owner string, at time.Time) *entity.Submission {
	return &entity.Submission{
		Flow:        flow,
		Owner:       owner,
		Year:        at.Year(),
		Status:      entity.SubmissionStatusPending,
		Payload:     `{"title":"x"}`,
		SubmittedAt: at,
	}
}

func TestSubmissionRepository_SequencePerFlowAndYear(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubmissionRepository(db, nil)
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first := newSubmission("request", "alice", at)
	require.NoError(t, repo.Create(ctx, first, "REQ"))
	second := newSubmission("request", "bob", at.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, second, "REQ"))
	onboarding := newSubmission("onboarding", "alice", at)
	require.NoError(t, repo.Create(ctx, onboarding, "ONB"))
	nextYear := newSubmission("request", "alice", at.AddDate(1, 0, 0))
	require.NoError(t, repo.Create(ctx, nextYear, "REQ"))

	assert.Equal(t, "REQ-2026-0001", first.TrackingID)
	assert.Equal(t, "REQ-2026-0002", second.TrackingID)
	assert.Equal(t, "ONB-2026-0001", onboarding.TrackingID)
	assert.Equal(t, "REQ-2027-0001", nextYear.TrackingID)
	assert.NotZero(t, first.ID)

	got, err := repo.GetByTrackingID(ctx, "REQ-2026-0002")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Owner)
	assert.Equal(t, 2, got.Sequence)
	assert.True(t, got.SubmittedAt.Equal(second.SubmittedAt))

	_, err = repo.GetByTrackingID(ctx, "REQ-1999-0001")
	assert.ErrorIs(t, err, port.ErrNotFound)

	list, err := repo.ListByOwner(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "REQ-2027-0001", list[0].TrackingID)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	store := NewDraftStore(db, nil).Scope("alice")
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Set(ctx, "k", []byte("v")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
