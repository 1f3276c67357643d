package dispatcher

import (
	"context"

	"github.com/garyjia/backoffice-wizard/internal/domain/event"
)

// Handler reacts to a wizard event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// AnyType subscribes a handler to every event type
const AnyType event.Type = "*"
