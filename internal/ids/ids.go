// Package ids generates the bridge's domain identifiers. All generated ids
// follow "{prefix}_{8 lowercase hex chars}", e.g. "enc_a1b2c3d4".
package ids

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// FromTxID derives a stable id from a ledger transaction id, so the same
// transaction always maps to the same record id.
func FromTxID(prefix, txID string) string {
	return prefix + "_" + hashchain.Digest([]byte(txID))[:8]
}

// Random returns a fresh id for records created without a ledger
// transaction (degraded mode, local-only rows).
func Random(prefix string) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}
