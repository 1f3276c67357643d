package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle notification raised by a wizard session
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	SessionID     string                 `json:"sessionId"`
	Flow          string                 `json:"flow"`
	Owner         string                 `json:"owner"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlationId"`
}

// NewEvent creates a new event with generated ID and timestamp
func NewEvent(eventType Type, sessionID, flow, owner string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		SessionID:     sessionID,
		Flow:          flow,
		Owner:         owner,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: sessionID,
	}
}

// WithPayload returns a copy of the event with key set in the payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBytes retrieves a raw JSON document stored in the payload
func (e *Event) GetPayloadBytes(key string) []byte {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case []byte:
			return v
		case string:
			return []byte(v)
		}
	}
	return nil
}
