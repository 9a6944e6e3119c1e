// Package fabric provides the permissioned-ledger capability consumed by
// the lifecycle coordinator and the anchor service.
//
// The Hyperledger Fabric network is the authoritative record; the bridge
// only invokes chaincode through the gateway service and treats consensus
// mechanics as out of scope. Transport failures surface as ErrUnavailable
// so callers can distinguish "the ledger rejected this" from "the ledger
// cannot be reached" — the latter drives the configured degraded mode.
package fabric

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable indicates the Fabric gateway could not be reached at all.
// Chaincode-level rejections are returned as ordinary errors instead.
var ErrUnavailable = errors.New("fabric: gateway unavailable")

// RangeSummary describes the ledger data covered by a block range, as
// reported by the land-registry chaincode. IdentifyingKey is the chaincode's
// deterministic digest over the covered records; the same range always
// yields the same key.
type RangeSummary struct {
	IdentifyingKey string `json:"identifying_key"`
	TxCount        uint64 `json:"tx_count"`
}

// Gateway is the chaincode surface the bridge consumes.
type Gateway interface {
	// AddEncumbrance invokes the AddEncumbrance chaincode method with the
	// JSON-encoded encumbrance and returns the Fabric transaction id.
	AddEncumbrance(ctx context.Context, encumbrance json.RawMessage) (string, error)

	// ReleaseEncumbrance invokes the ReleaseEncumbrance chaincode method
	// and returns the Fabric transaction id.
	ReleaseEncumbrance(ctx context.Context, encumbranceID string) (string, error)

	// RangeSummary queries the chaincode for the deterministic summary of
	// the half-open block range [start, end) on a channel.
	RangeSummary(ctx context.Context, channelID string, start, end uint64) (*RangeSummary, error)

	// ChannelHeight returns the channel's current block height. The
	// anchor scheduler uses it to pick the next range to anchor.
	ChannelHeight(ctx context.Context, channelID string) (uint64, error)

	// RecordAnchor writes an anchor cross-reference back to the ledger.
	// Best-effort: callers treat failures as non-fatal.
	RecordAnchor(ctx context.Context, anchor json.RawMessage) error
}
