package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// DefaultSubmissionTimeout bounds a single delivery attempt
const DefaultSubmissionTimeout = 30 * time.Second

// SubmitRequest is one delivery attempt
type SubmitRequest struct {
	// Key identifies the wizard instance; only one attempt per key may be outstanding
	Key    string
	Flow   *Flow
	Owner  string
	Record []byte
	Drafts *Drafts
}

// Coordinator hands validated records to the transport and, only after the
// transport reports success, assigns the tracking id, records the submission
// and clears the draft
type Coordinator struct {
	transport port.SubmissionTransport
	repo      port.SubmissionRepository
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	// delivered but not yet recorded, by key
	unrecorded map[string]delivered
}

// delivered is an attempt the transport accepted
type delivered struct {
	ref         string
	payload     []byte
	submittedAt time.Time
}

// NewCoordinator creates a coordinator. A non-positive timeout uses DefaultSubmissionTimeout.
func NewCoordinator(transport port.SubmissionTransport, repo port.SubmissionRepository, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultSubmissionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		transport: transport,
		repo:      repo,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
		inFlight:  make(map[string]bool),

		unrecorded: make(map[string]delivered),
	}
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[key] {
		return false
	}
	c.inFlight[key] = true
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}

func (c *Coordinator) pending(key string) (delivered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.unrecorded[key]
	return d, ok
}

func (c *Coordinator) setPending(key string, d *delivered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == nil {
		delete(c.unrecorded, key)
		return
	}
	c.unrecorded[key] = *d
}

// Forget drops a delivered-but-unrecorded attempt for key, for instances
// that are abandoned instead of retried
func (c *Coordinator) Forget(key string) {
	c.setPending(key, nil)
}

// Submit delivers req.Record. On any failure the draft is left untouched and
// no tracking id exists.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (entity.SubmissionResult, error) {
	if !c.acquire(req.Key) {
		return entity.SubmissionResult{}, ErrSubmissionInProgress
	}
	defer c.release(req.Key)

	log := c.logger.With(
		zap.String("flow", req.Flow.Name),
		zap.String("owner", req.Owner),
		zap.String("transport", c.transport.Name()),
	)

	// A retry after a recording failure records the attempt the transport
	// already accepted rather than delivering again.
	d, ok := c.pending(req.Key)
	if ok {
		log.Info("Recording previously delivered submission", zap.String("external_ref", d.ref))
	} else {
		d.submittedAt = c.now().UTC().Truncate(time.Second)
		payload, err := sjson.SetBytes(req.Record, "submittedAt", d.submittedAt.Format(time.RFC3339))
		if err != nil {
			return entity.SubmissionResult{}, fmt.Errorf("failed to stamp record: %w", err)
		}
		d.payload = payload

		ref, err := c.deliver(ctx, req.Flow.Name, payload)
		if err != nil {
			log.Warn("Submission delivery failed", zap.Error(err))
			return entity.SubmissionResult{}, err
		}
		d.ref = ref
	}
	ref, payload, submittedAt := d.ref, d.payload, d.submittedAt

	sub := &entity.Submission{
		Flow:        req.Flow.Name,
		Owner:       req.Owner,
		Year:        submittedAt.Year(),
		Status:      entity.SubmissionStatusPending,
		ExternalRef: ref,
		Payload:     string(payload),
		SubmittedAt: submittedAt,
	}
	if err := c.repo.Create(ctx, sub, req.Flow.TrackingPrefix); err != nil {
		log.Error("Delivered submission could not be recorded", zap.String("external_ref", ref), zap.Error(err))
		c.setPending(req.Key, &d)
		return entity.SubmissionResult{}, fmt.Errorf("%w: failed to record delivered submission: %w", ErrSubmissionFailed, err)
	}

	c.setPending(req.Key, nil)

	if req.Drafts != nil {
		if err := req.Drafts.Clear(ctx); err != nil {
			log.Warn("Draft not cleared after submission", zap.Error(err))
		}
	}

	log.Info("Submission recorded",
		zap.String("tracking_id", sub.TrackingID),
		zap.String("external_ref", ref),
	)

	return entity.SubmissionResult{
		ID:          sub.TrackingID,
		Status:      entity.SubmissionStatusPending,
		SubmittedAt: submittedAt,
		Record:      payload,
	}, nil
}

type delivery struct {
	ref string
	err error
}

// deliver calls the transport under the coordinator timeout. The ceiling
// holds even for a transport that ignores its context.
func (c *Coordinator) deliver(ctx context.Context, flow string, payload []byte) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan delivery, 1)
	go func() {
		ref, err := c.transport.Deliver(tctx, flow, payload)
		done <- delivery{ref: ref, err: err}
	}()

	select {
	case d := <-done:
		if d.err == nil {
			return d.ref, nil
		}
		if errors.Is(d.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrSubmissionTimeout, c.timeout)
		}
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, d.err)
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrSubmissionTimeout, c.timeout)
		}
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, tctx.Err())
	}
}

// DraftResult builds the result handed back for an explicit draft save
func DraftResult(savedAt time.Time, record []byte) entity.SubmissionResult {
	return entity.SubmissionResult{
		ID:          fmt.Sprintf("DRAFT-%d", savedAt.UnixMilli()),
		Status:      entity.SubmissionStatusDraft,
		SubmittedAt: savedAt,
		Record:      record,
	}
}
