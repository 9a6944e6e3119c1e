// Package auditchain implements the append-only hash chain that records
// every auditable registry action (encumbrance add/release, ownership
// transfer, anchor submission).
//
// Chains are kept per property stream: each property has its own chain,
// and the first entry of a stream links back to hashchain.GenesisHash.
// Every subsequent entry records the hash of its predecessor, so a single
// tampered entry invalidates the hash of every entry after it in that
// stream. Entries are immutable once written.
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and development.
//   - PostgresLedger: durable, for production use.
package auditchain

import "context"

// Ledger is the interface for the append-only audit chain.
type Ledger interface {
	// Append adds a new entry to the property's stream, chained to the
	// stream's current tip. payload is JSON-marshalled and its SHA-256 is
	// stored as DataHash.
	Append(ctx context.Context, propertyID, action, actor string, payload any) (*Entry, error)

	// List returns the property's stream in append order.
	List(ctx context.Context, propertyID string) ([]*Entry, error)

	// Tip returns the hash of the most recent entry in the property's
	// stream, or hashchain.GenesisHash for an empty stream.
	Tip(ctx context.Context, propertyID string) (string, error)

	// Verify walks the property's stream and checks hash consistency.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context, propertyID string) error
}
