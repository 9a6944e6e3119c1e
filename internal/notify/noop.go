package notify

import (
	"context"

	"go.uber.org/zap"
)

// Noop logs events to zap instead of delivering them. Use in development
// or when no webhook endpoint is configured.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a Noop backed by the given logger.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

// Notify logs the event and returns nil.
func (n *Noop) Notify(_ context.Context, event Event) error {
	n.logger.Info("notification (noop — not sent)",
		zap.String("type", event.Type),
		zap.String("property_id", event.PropertyID),
		zap.String("encumbrance_id", event.EncumbranceID),
	)
	return nil
}
