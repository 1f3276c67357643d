package port

import (
	"context"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// SubmissionRepository defines persistence operations for delivered submissions
type SubmissionRepository interface {
	// Create allocates the next per-flow, per-year sequence, formats the
	// tracking id with prefix and inserts the row. sub.Sequence and
	// sub.TrackingID are set on success.
	Create(ctx context.Context, sub *entity.Submission, prefix string) error

	// GetByTrackingID returns the submission with the given tracking id
	GetByTrackingID(ctx context.Context, trackingID string) (*entity.Submission, error)

	// ListByOwner returns the owner's submissions, newest first
	ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Submission, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
