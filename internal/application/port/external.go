package port

import (
	"context"
	"errors"
)

// ErrTransportRejected marks a delivery the remote side refused. It is
// retryable from the user's point of view.
var ErrTransportRejected = errors.New("submission rejected by transport")

// SubmissionTransport delivers a finished wizard record to the system of record
type SubmissionTransport interface {
	// Deliver sends record for flow and returns the remote reference, if any
	Deliver(ctx context.Context, flow string, record []byte) (string, error)

	// Name identifies the transport in logs
	Name() string
}
