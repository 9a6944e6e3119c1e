package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/algorand"
)

var (
	// ErrInsufficientBalance means the signing account cannot cover fees.
	// This is a hard stop, never retried: it requires an operator to fund
	// the account.
	ErrInsufficientBalance = errors.New("anchor: signing account balance below operating minimum")

	// ErrConfirmationTimeout means the transaction was submitted but not
	// observed as confirmed within the wait window. The outcome is
	// INDETERMINATE — the transaction may still confirm later. Callers
	// must re-query the chain by transaction id (Submitter.Resolve)
	// before retrying submission, or they risk anchoring the same range
	// twice.
	ErrConfirmationTimeout = errors.New("anchor: confirmation not observed within wait window")
)

// defaultWaitRounds bounds how many rounds past submission the submitter
// polls before declaring a confirmation timeout.
const defaultWaitRounds = 4

// SubmitterConfig holds the chain-side parameters of the submitter.
type SubmitterConfig struct {
	AppID        uint64        // anchor application id
	MinBalance   uint64        // microalgos; submission refused below this
	WaitRounds   uint64        // confirmation wait window; default 4
	PollInterval time.Duration // confirmation poll cadence; default 1s
}

// Result is the chain's answer to a successful anchor submission.
type Result struct {
	ChainTxID      string
	ConfirmedRound uint64
	AnchorSeq      uint64 // read from the method's return value, never assigned client-side
}

// Submitter packages a state root into an anchor_state method call,
// submits it, and waits for confirmation. Each successful call is one
// irreversible write to the public chain; the Submitter does not
// deduplicate — idempotency is the caller's job (see Service).
type Submitter struct {
	chain   algorand.Client
	account *algorand.Account
	cfg     SubmitterConfig
	logger  *zap.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(chain algorand.Client, account *algorand.Account, cfg SubmitterConfig, logger *zap.Logger) *Submitter {
	if cfg.WaitRounds == 0 {
		cfg.WaitRounds = defaultWaitRounds
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Submitter{chain: chain, account: account, cfg: cfg, logger: logger}
}

// Submit anchors one state root. On ErrConfirmationTimeout the returned
// Result still carries the ChainTxID so the caller can resolve the
// indeterminate transaction later.
func (s *Submitter) Submit(ctx context.Context, stateCode, channelID string, br BlockRange, stateRoot string, txCount uint64) (*Result, error) {
	if err := br.Validate(); err != nil {
		return nil, err
	}

	// Balance precondition, checked before anything touches the network.
	balance, err := s.chain.AccountBalance(ctx, s.account.Address)
	if err != nil {
		return nil, fmt.Errorf("query account balance: %w", err)
	}
	if balance < s.cfg.MinBalance {
		return nil, fmt.Errorf("%w: have %d, need %d microalgos", ErrInsufficientBalance, balance, s.cfg.MinBalance)
	}

	note, err := json.Marshal(NoteEnvelope{
		Standard:   EnvelopeStandard,
		StateCode:  stateCode,
		ChannelID:  channelID,
		BlockRange: br,
		StateRoot:  stateRoot,
		TxCount:    txCount,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal note envelope: %w", err)
	}

	submitRound, err := s.chain.LastRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("query last round: %w", err)
	}

	txID, err := s.chain.SubmitMethodCall(ctx, algorand.MethodCall{
		AppID:  s.cfg.AppID,
		Method: "anchor_state",
		Args:   []any{stateCode, channelID, br.Start, br.End, stateRoot, txCount},
		Note:   note,
	})
	if err != nil {
		return nil, fmt.Errorf("submit anchor_state: %w", err)
	}

	s.logger.Info("anchor transaction submitted",
		zap.String("tx_id", txID),
		zap.String("state_code", stateCode),
		zap.Uint64("block_start", br.Start),
		zap.Uint64("block_end", br.End),
	)

	res, err := s.waitForConfirmation(ctx, txID, submitRound)
	if err != nil {
		return &Result{ChainTxID: txID}, err
	}
	return res, nil
}

// Resolve re-queries the chain for a previously submitted transaction.
// Call it after ErrConfirmationTimeout to learn the transaction's fate
// before deciding whether a resubmission is safe. Returns nil and no error
// when the transaction is known but still unconfirmed.
func (s *Submitter) Resolve(ctx context.Context, txID string) (*Result, error) {
	pending, err := s.chain.PendingTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if pending.PoolError != "" {
		return nil, fmt.Errorf("transaction %s rejected by pool: %s", txID, pending.PoolError)
	}
	if pending.ConfirmedRound == 0 {
		return nil, nil
	}
	return &Result{
		ChainTxID:      txID,
		ConfirmedRound: pending.ConfirmedRound,
		AnchorSeq:      pending.ReturnValue,
	}, nil
}

// waitForConfirmation polls until the transaction confirms or the chain
// advances past submitRound + WaitRounds.
func (s *Submitter) waitForConfirmation(ctx context.Context, txID string, submitRound uint64) (*Result, error) {
	deadline := submitRound + s.cfg.WaitRounds
	for {
		pending, err := s.chain.PendingTransaction(ctx, txID)
		switch {
		case errors.Is(err, algorand.ErrTxNotFound):
			// Not yet visible to the node we polled; keep waiting.
		case err != nil:
			return nil, fmt.Errorf("poll transaction %s: %w", txID, err)
		case pending.PoolError != "":
			return nil, fmt.Errorf("transaction %s rejected by pool: %s", txID, pending.PoolError)
		case pending.ConfirmedRound > 0:
			return &Result{
				ChainTxID:      txID,
				ConfirmedRound: pending.ConfirmedRound,
				AnchorSeq:      pending.ReturnValue,
			}, nil
		}

		last, err := s.chain.LastRound(ctx)
		if err != nil {
			return nil, fmt.Errorf("query last round: %w", err)
		}
		if last >= deadline {
			return nil, fmt.Errorf("%w: tx %s after %d rounds", ErrConfirmationTimeout, txID, s.cfg.WaitRounds)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}
