package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/sjson"
)

// Submission is a successfully delivered wizard record
type Submission struct {
	ID          int64     `json:"-"`
	TrackingID  string    `json:"trackingId"`
	Flow        string    `json:"flow"`
	Owner       string    `json:"owner"`
	Year        int       `json:"year"`
	Sequence    int       `json:"sequence"`
	Status      string    `json:"status"`
	ExternalRef string    `json:"externalRef,omitempty"`
	Payload     string    `json:"payload"`
	SubmittedAt time.Time `json:"submittedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SubmissionResult is handed to the redirect collaborator after a submit or an
// explicit draft save. It serializes as the record with id, status and
// submittedAt merged into the top-level object.
type SubmissionResult struct {
	ID          string
	Status      string
	SubmittedAt time.Time
	Record      json.RawMessage
}

// MarshalJSON flattens the record fields next to id/status/submittedAt
func (r SubmissionResult) MarshalJSON() ([]byte, error) {
	doc := []byte(r.Record)
	if len(doc) == 0 {
		doc = []byte("{}")
	}

	var err error
	if doc, err = sjson.SetBytes(doc, "id", r.ID); err != nil {
		return nil, fmt.Errorf("failed to set id: %w", err)
	}
	if doc, err = sjson.SetBytes(doc, "status", r.Status); err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}
	if doc, err = sjson.SetBytes(doc, "submittedAt", r.SubmittedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to set submittedAt: %w", err)
	}
	return doc, nil
}

// FormatTrackingID renders "<PREFIX>-<year>-<sequence>" with a zero-padded sequence
func FormatTrackingID(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, sequence)
}
