package auditchain

import (
	"fmt"
	"time"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// Entry is a single audit record in a property's chain.
type Entry struct {
	Seq        int       `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	PropertyID string    `json:"property_id"`
	Action     string    `json:"action"` // PROPERTY_REGISTERED, ENCUMBRANCE_ADDED, ENCUMBRANCE_RELEASED, ...
	Actor      string    `json:"actor"`  // institution id or "bridge-system"
	DataHash   string    `json:"data_hash"` // SHA-256 of the associated payload
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// canonicalPayload serializes the hashed fields of an entry in fixed order.
// The layout is frozen: any change invalidates every stored chain.
func canonicalPayload(e *Entry) []byte {
	return fmt.Appendf(nil, "%d|%s|%s|%s|%s|%s",
		e.Seq, e.Timestamp.Format(time.RFC3339Nano),
		e.PropertyID, e.Action, e.Actor, e.DataHash,
	)
}

// hashEntry computes an entry's chain hash from its predecessor's hash and
// its canonical payload.
func hashEntry(e *Entry) string {
	return hashchain.ChainLink(e.PrevHash, canonicalPayload(e))
}
