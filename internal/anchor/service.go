package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/algorand"
	"github.com/bhulekhchain/bridge/internal/fabric"
	"github.com/bhulekhchain/bridge/internal/ids"
	"github.com/bhulekhchain/bridge/internal/stateroot"
)

// ErrAlreadyAnchored is returned when a record covering the same
// (stateCode, blockRange) already exists. The existing record is returned
// alongside it; callers decide whether that is a benign skip or a bug.
var ErrAlreadyAnchored = errors.New("anchor: range already anchored")

// crossRefTimeout bounds the fire-and-forget RecordAnchor write back to
// Fabric.
const crossRefTimeout = 30 * time.Second

// Service orchestrates one full anchoring pass: range summary from Fabric,
// deterministic state root, idempotency guard, public-chain submission,
// durable record. It also provides independent verification of stored
// records against the chain — the mirror is untrusted until re-checked.
type Service struct {
	store     Store
	submitter *Submitter
	chain     algorand.Client
	gateway   fabric.Gateway
	logger    *zap.Logger
}

// NewService creates an anchor Service.
func NewService(store Store, submitter *Submitter, chain algorand.Client, gateway fabric.Gateway, logger *zap.Logger) *Service {
	return &Service{store: store, submitter: submitter, chain: chain, gateway: gateway, logger: logger}
}

// Anchor summarizes [br.Start, br.End) on channelID, anchors the state
// root to Algorand, and persists the resulting record.
//
// Resubmitting a range that is already anchored returns the existing
// record with ErrAlreadyAnchored instead of producing a second on-chain
// anchor. On ErrConfirmationTimeout no record is persisted; the returned
// error message carries the transaction id and the caller must go through
// ResolveTimeout before retrying.
func (s *Service) Anchor(ctx context.Context, stateCode, channelID string, br BlockRange) (*Record, error) {
	if err := br.Validate(); err != nil {
		return nil, err
	}

	// Idempotency guard: one on-chain anchor per (state, range).
	if existing, err := s.store.FindByRange(ctx, stateCode, br); err == nil {
		return existing, ErrAlreadyAnchored
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	summary, err := s.gateway.RangeSummary(ctx, channelID, br.Start, br.End)
	if err != nil {
		return nil, fmt.Errorf("summarize range: %w", err)
	}

	root := stateroot.Compute(stateCode, summary.IdentifyingKey, br.Start, br.End)

	res, err := s.submitter.Submit(ctx, stateCode, channelID, br, root, summary.TxCount)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		AnchorID:       ids.FromTxID("anc", res.ChainTxID),
		StateCode:      stateCode,
		ChannelID:      channelID,
		BlockRange:     br,
		StateRoot:      root,
		TxCount:        summary.TxCount,
		ChainTxID:      res.ChainTxID,
		ConfirmedRound: res.ConfirmedRound,
		AnchorSeq:      res.AnchorSeq,
		AnchoredAt:     time.Now().UTC(),
	}
	if err := s.store.Persist(ctx, rec); err != nil {
		// The chain write already happened and cannot be rolled back;
		// surface the discrepancy loudly for the repair pass.
		s.logger.Error("anchor confirmed on chain but not persisted locally",
			zap.String("chain_tx_id", rec.ChainTxID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persist anchor record: %w", err)
	}

	s.logger.Info("anchor recorded",
		zap.String("anchor_id", rec.AnchorID),
		zap.String("state_code", rec.StateCode),
		zap.Uint64("anchor_seq", rec.AnchorSeq),
		zap.Uint64("confirmed_round", rec.ConfirmedRound),
	)

	s.crossReference(rec)
	return rec, nil
}

// ResolveTimeout settles an indeterminate submission. If the chain shows
// the transaction as confirmed, the anchor record is persisted as if
// Submit had returned normally; if the transaction is unknown or still
// pending, (nil, nil) is returned and the caller may safely resubmit.
func (s *Service) ResolveTimeout(ctx context.Context, stateCode, channelID string, br BlockRange, txID string) (*Record, error) {
	res, err := s.submitter.Resolve(ctx, txID)
	if errors.Is(err, algorand.ErrTxNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	summary, err := s.gateway.RangeSummary(ctx, channelID, br.Start, br.End)
	if err != nil {
		return nil, fmt.Errorf("summarize range: %w", err)
	}

	rec := &Record{
		AnchorID:       ids.FromTxID("anc", res.ChainTxID),
		StateCode:      stateCode,
		ChannelID:      channelID,
		BlockRange:     br,
		StateRoot:      stateroot.Compute(stateCode, summary.IdentifyingKey, br.Start, br.End),
		TxCount:        summary.TxCount,
		ChainTxID:      res.ChainTxID,
		ConfirmedRound: res.ConfirmedRound,
		AnchorSeq:      res.AnchorSeq,
		AnchoredAt:     time.Now().UTC(),
	}
	if err := s.store.Persist(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist resolved anchor: %w", err)
	}

	s.logger.Info("timed-out anchor resolved as confirmed",
		zap.String("anchor_id", rec.AnchorID),
		zap.String("chain_tx_id", rec.ChainTxID),
	)
	s.crossReference(rec)
	return rec, nil
}

// Verify independently re-fetches the anchor transaction from the chain
// and compares the note envelope's state root against the stored record.
// Verified flips to true only on an exact match. This is what detects
// local tampering with the mirror.
func (s *Service) Verify(ctx context.Context, anchorID string) (bool, error) {
	rec, err := s.store.GetByID(ctx, anchorID)
	if err != nil {
		return false, err
	}

	pending, err := s.chain.PendingTransaction(ctx, rec.ChainTxID)
	if err != nil {
		return false, fmt.Errorf("fetch chain transaction %s: %w", rec.ChainTxID, err)
	}
	if pending.ConfirmedRound == 0 {
		return false, fmt.Errorf("transaction %s not confirmed on chain", rec.ChainTxID)
	}

	var envelope NoteEnvelope
	if err := json.Unmarshal(pending.Note, &envelope); err != nil {
		return false, fmt.Errorf("decode on-chain note: %w", err)
	}

	if envelope.Standard != EnvelopeStandard ||
		envelope.StateRoot != rec.StateRoot ||
		envelope.StateCode != rec.StateCode ||
		envelope.BlockRange != rec.BlockRange {
		s.logger.Warn("anchor verification mismatch",
			zap.String("anchor_id", rec.AnchorID),
			zap.String("stored_root", rec.StateRoot),
			zap.String("on_chain_root", envelope.StateRoot),
		)
		return false, nil
	}

	if err := s.store.MarkVerified(ctx, anchorID); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns one anchor record by id.
func (s *Service) Get(ctx context.Context, anchorID string) (*Record, error) {
	return s.store.GetByID(ctx, anchorID)
}

// Latest returns the most recent anchor for a state.
func (s *Service) Latest(ctx context.Context, stateCode string) (*Record, error) {
	return s.store.LatestByState(ctx, stateCode)
}

// List returns up to limit anchors for a state, newest first.
func (s *Service) List(ctx context.Context, stateCode string, limit int) ([]*Record, error) {
	return s.store.ListByState(ctx, stateCode, limit)
}

// crossReference writes the anchor back to Fabric via RecordAnchor.
// Fire-and-forget: the public chain and the local store already agree,
// and the chaincode cross-reference is a convenience index.
func (s *Service) crossReference(rec *Record) {
	payload, err := json.Marshal(map[string]any{
		"stateCode":        rec.StateCode,
		"channelId":        rec.ChannelID,
		"fabricBlockRange": rec.BlockRange,
		"stateRoot":        rec.StateRoot,
		"transactionCount": rec.TxCount,
		"algorandTxId":     rec.ChainTxID,
		"algorandRound":    rec.ConfirmedRound,
	})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), crossRefTimeout)
		defer cancel()
		if err := s.gateway.RecordAnchor(ctx, payload); err != nil {
			s.logger.Warn("anchor cross-reference to fabric failed",
				zap.String("anchor_id", rec.AnchorID),
				zap.Error(err),
			)
		}
	}()
}
