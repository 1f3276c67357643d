package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
)

// DraftStore keeps drafts in the drafts table, one row per (scope, key)
type DraftStore struct {
	db     *DB
	logger *zap.Logger
}

// NewDraftStore creates a draft store on db
func NewDraftStore(db *DB, logger *zap.Logger) *DraftStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftStore{db: db, logger: logger}
}

// Scope returns a store limited to owner's rows
func (s *DraftStore) Scope(owner string) port.DraftStore {
	return &scopedDraftStore{parent: s, scope: owner}
}

type scopedDraftStore struct {
	parent *DraftStore
	scope  string
}

func (s *scopedDraftStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.parent.db.executor(ctx).QueryRowContext(ctx,
		`SELECT value FROM drafts WHERE scope = ? AND key = ?`, s.scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	return value, nil
}

func (s *scopedDraftStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.parent.db.executor(ctx).ExecContext(ctx, `
		INSERT INTO drafts (scope, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value,
	)
	if err != nil {
		s.parent.logger.Error("Failed to write draft",
			zap.String("scope", s.scope),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to write draft: %w", err)
	}
	return nil
}

func (s *scopedDraftStore) Delete(ctx context.Context, key string) error {
	_, err := s.parent.db.executor(ctx).ExecContext(ctx,
		`DELETE FROM drafts WHERE scope = ? AND key = ?`, s.scope, key)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

var _ port.DraftStoreProvider = (*DraftStore)(nil)
