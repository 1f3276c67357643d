// Package simulated provides a stand-in submission transport with a
// configurable latency and failure rate.
package simulated

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
)

// Config controls the simulated backend
type Config struct {
	Delay time.Duration
	// FailureRate in [0,1] is the share of deliveries that are rejected
	FailureRate float64
	Seed        int64
}

// Transport accepts every record after Delay, rejecting a FailureRate share
type Transport struct {
	cfg    Config
	logger *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewTransport creates a simulated transport. A zero Seed uses the clock.
func NewTransport(cfg Config, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0
	}
	if cfg.FailureRate > 1 {
		cfg.FailureRate = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Transport{
		cfg:    cfg,
		logger: logger,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Name identifies the transport in logs
func (t *Transport) Name() string {
	return "simulated"
}

func (t *Transport) fail() bool {
	if t.cfg.FailureRate == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rnd.Float64() < t.cfg.FailureRate
}

// Deliver waits Delay and either rejects or returns a fresh reference
func (t *Transport) Deliver(ctx context.Context, flow string, record []byte) (string, error) {
	if t.cfg.Delay > 0 {
		timer := time.NewTimer(t.cfg.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if t.fail() {
		t.logger.Warn("Simulated delivery rejected", zap.String("flow", flow))
		return "", fmt.Errorf("%w: simulated failure", port.ErrTransportRejected)
	}

	ref := "SIM-" + uuid.New().String()
	t.logger.Debug("Simulated delivery accepted",
		zap.String("flow", flow),
		zap.String("ref", ref),
		zap.Int("size", len(record)))
	return ref, nil
}

var _ port.SubmissionTransport = (*Transport)(nil)
