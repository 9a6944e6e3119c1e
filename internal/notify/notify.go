// Package notify delivers lifecycle event notifications to interested
// parties (banks, document-push gateways). Delivery is fire-and-forget:
// a failed notification never fails or blocks the transition that
// produced it.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event describes one completed lifecycle transition.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"` // e.g. "encumbrance.added", "encumbrance.released"
	PropertyID    string    `json:"property_id"`
	EncumbranceID string    `json:"encumbrance_id,omitempty"`
	Actor         string    `json:"actor"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent creates an Event stamped with a fresh id and the current time.
func NewEvent(eventType, propertyID, encumbranceID, actor string) Event {
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		PropertyID:    propertyID,
		EncumbranceID: encumbranceID,
		Actor:         actor,
		OccurredAt:    time.Now().UTC(),
	}
}

// Notifier delivers events. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
