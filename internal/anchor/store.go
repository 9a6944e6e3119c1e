package anchor

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no anchor record matches a lookup.
var ErrNotFound = errors.New("anchor record not found")

// Store persists anchor records. The table is append-only: StateRoot,
// BlockRange, and ChainTxID are never updated after creation, and
// MarkVerified is the only permitted mutation.
//
// Both MemoryStore and PostgresStore implement this interface.
type Store interface {
	// Persist writes one record.
	Persist(ctx context.Context, rec *Record) error

	// GetByID returns the record with the given anchor id.
	GetByID(ctx context.Context, anchorID string) (*Record, error)

	// LatestByState returns the most recently anchored record for a
	// state, ordered by AnchoredAt descending.
	LatestByState(ctx context.Context, stateCode string) (*Record, error)

	// FindByRange returns the record covering exactly (stateCode, br),
	// if any. This is the idempotency guard consulted before submission.
	FindByRange(ctx context.Context, stateCode string, br BlockRange) (*Record, error)

	// ListByState returns up to limit records for a state, newest first.
	ListByState(ctx context.Context, stateCode string, limit int) ([]*Record, error)

	// MarkVerified flips the record's Verified flag to true.
	MarkVerified(ctx context.Context, anchorID string) error
}
