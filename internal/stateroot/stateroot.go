// Package stateroot derives the deterministic digest that gets anchored to
// the public chain for a bounded range of Fabric blocks.
package stateroot

import (
	"fmt"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// canonicalVersion tags the canonical byte layout. Bumping it would change
// every computed root and break verifiability of all existing anchors, so
// it never changes within a deployment.
const canonicalVersion = "v1"

// Compute returns the 64-hex-char state root summarizing the half-open
// Fabric block range [start, end) for one state and one data set.
//
// identifyingKey is the stable digest of the ledger data covered by the
// range, as reported by the Fabric gateway. The canonical field order and
// separators below are fixed: the same arguments always produce the same
// root, on any node, at any time.
func Compute(stateCode, identifyingKey string, start, end uint64) string {
	canonical := fmt.Sprintf("anchor|%s|%s|%s|%d|%d",
		canonicalVersion, stateCode, identifyingKey, start, end)
	return hashchain.Digest([]byte(canonical))
}
