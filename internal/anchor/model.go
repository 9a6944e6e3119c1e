package anchor

import (
	"fmt"
	"time"
)

// EnvelopeStandard identifies the note payload format carried by every
// anchor transaction. Versioned so future layouts can coexist with v1
// verifiers.
const EnvelopeStandard = "bhulekhchain-anchor-v1"

// BlockRange is a half-open range [Start, End) of Fabric block numbers.
type BlockRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Validate checks the range invariant: End must be strictly greater than
// Start.
func (r BlockRange) Validate() error {
	if r.End <= r.Start {
		return fmt.Errorf("invalid block range [%d, %d): end must be greater than start", r.Start, r.End)
	}
	return nil
}

// Record is one durable row per successful public-chain anchor.
//
// A record is created only after the Algorand transaction is confirmed.
// It is never updated except to flip Verified to true, and never deleted:
// the anchor table is an append-only audit trail. StateRoot is a pure
// function of (StateCode, covered ledger data, BlockRange) — recomputing
// it from the same range must always reproduce the stored value, which is
// what makes the anchor independently verifiable later.
type Record struct {
	AnchorID       string     `json:"anchor_id"`
	StateCode      string     `json:"state_code"`
	ChannelID      string     `json:"channel_id"`
	BlockRange     BlockRange `json:"block_range"`
	StateRoot      string     `json:"state_root"` // 64 lowercase hex chars
	TxCount        uint64     `json:"tx_count"`
	ChainTxID      string     `json:"chain_tx_id"`
	ConfirmedRound uint64     `json:"confirmed_round"`
	AnchorSeq      uint64     `json:"anchor_seq"` // chain-assigned, monotonic per application
	Verified       bool       `json:"verified"`
	AnchoredAt     time.Time  `json:"anchored_at"`
}

// NoteEnvelope is the human-readable JSON payload carried in the anchor
// transaction's note field. Off-chain verifiers recover it from the
// indexer and recompute the state root against the Fabric ledger.
type NoteEnvelope struct {
	Standard   string     `json:"standard"`
	StateCode  string     `json:"stateCode"`
	ChannelID  string     `json:"channelId"`
	BlockRange BlockRange `json:"blockRange"`
	StateRoot  string     `json:"stateRoot"`
	TxCount    uint64     `json:"txCount"`
	Timestamp  time.Time  `json:"timestamp"`
}
