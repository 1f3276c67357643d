package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// SubmissionRepository implements port.SubmissionRepository for SQLite
type SubmissionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *DB, logger *zap.Logger) *SubmissionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionRepository{db: db, logger: logger}
}

// Create allocates the next sequence for (flow, year) and inserts the row in
// one transaction
func (r *SubmissionRepository) Create(ctx context.Context, sub *entity.Submission, prefix string) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.executor(ctx)

		var last sql.NullInt64
		err := exec.QueryRowContext(ctx,
			`SELECT MAX(sequence) FROM submissions WHERE flow = ? AND year = ?`,
			sub.Flow, sub.Year,
		).Scan(&last)
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		sub.Sequence = int(last.Int64) + 1
		sub.TrackingID = entity.FormatTrackingID(prefix, sub.Year, sub.Sequence)
		sub.CreatedAt = time.Now().UTC()

		result, err := exec.ExecContext(ctx, `
			INSERT INTO submissions (
				tracking_id, flow, owner, year, sequence, status,
				external_ref, payload, submitted_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.TrackingID, sub.Flow, sub.Owner, sub.Year, sub.Sequence, sub.Status,
			sub.ExternalRef, sub.Payload, sub.SubmittedAt, sub.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert submission",
				zap.String("tracking_id", sub.TrackingID),
				zap.Error(err))
			return fmt.Errorf("failed to insert submission: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get submission id: %w", err)
		}
		sub.ID = id

		r.logger.Info("Submission recorded",
			zap.Int64("id", sub.ID),
			zap.String("tracking_id", sub.TrackingID))
		return nil
	})
}

const submissionColumns = `id, tracking_id, flow, owner, year, sequence, status,
	COALESCE(external_ref, ''), payload, submitted_at, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*entity.Submission, error) {
	sub := &entity.Submission{}
	err := row.Scan(
		&sub.ID, &sub.TrackingID, &sub.Flow, &sub.Owner, &sub.Year, &sub.Sequence,
		&sub.Status, &sub.ExternalRef, &sub.Payload, &sub.SubmittedAt, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetByTrackingID retrieves a submission by its tracking id
func (r *SubmissionRepository) GetByTrackingID(ctx context.Context, trackingID string) (*entity.Submission, error) {
	row := r.db.executor(ctx).QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE tracking_id = ?`, trackingID)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListByOwner returns the owner's submissions, newest first
func (r *SubmissionRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.executor(ctx).QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE owner = ? ORDER BY submitted_at DESC, id DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*entity.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
