package algorand

import (
	"context"
	"fmt"
	"sync"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// SimChain is an in-process Client implementation that mimics the anchor
// application's observable behaviour: rounds advance over time, each
// confirmed anchor_state call is assigned the next sequence number, and
// confirmation happens a configurable number of rounds after submission.
//
// Use it in development when no Algorand node is reachable, and in tests.
type SimChain struct {
	mu           sync.Mutex
	round        uint64
	seq          uint64
	confirmDelay uint64
	balances     map[string]uint64
	txs          map[string]*simTx
}

type simTx struct {
	call        MethodCall
	submittedAt uint64
	seq         uint64
}

// NewSim creates a SimChain starting at round 1000 with transactions
// confirming one round after submission.
func NewSim() *SimChain {
	return &SimChain{
		round:        1000,
		confirmDelay: 1,
		balances:     make(map[string]uint64),
		txs:          make(map[string]*simTx),
	}
}

// SetBalance funds addr. Test and dev-mode setup hook.
func (s *SimChain) SetBalance(addr string, microalgos uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = microalgos
}

// SetConfirmDelay changes how many rounds after submission a transaction
// confirms. A delay larger than the submitter's wait window forces a
// confirmation timeout.
func (s *SimChain) SetConfirmDelay(rounds uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmDelay = rounds
}

// TxIDs returns the ids of every transaction the sim has accepted, in no
// particular order.
func (s *SimChain) TxIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.txs))
	for id := range s.txs {
		ids = append(ids, id)
	}
	return ids
}

// AccountBalance implements Client.
func (s *SimChain) AccountBalance(_ context.Context, addr string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[addr], nil
}

// LastRound implements Client.
func (s *SimChain) LastRound(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round, nil
}

// SubmitMethodCall implements Client. The transaction id is derived from
// the call contents and the submission round, like a real txid is derived
// from the signed transaction bytes.
func (s *SimChain) SubmitMethodCall(_ context.Context, call MethodCall) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.Method != "anchor_state" {
		return "", fmt.Errorf("unknown application method %q", call.Method)
	}

	s.seq++
	txID := "SIM" + hashchain.Digest(fmt.Appendf(nil, "%d|%d|%d|%s", call.AppID, s.round, s.seq, call.Note))[:49]
	s.txs[txID] = &simTx{call: call, submittedAt: s.round, seq: s.seq}
	return txID, nil
}

// PendingTransaction implements Client. Each poll advances the simulated
// chain by one round, standing in for real block time.
func (s *SimChain) PendingTransaction(_ context.Context, txID string) (*PendingTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round++

	tx, ok := s.txs[txID]
	if !ok {
		return nil, ErrTxNotFound
	}

	pending := &PendingTx{TxID: txID, Note: tx.call.Note}
	if s.round >= tx.submittedAt+s.confirmDelay {
		pending.ConfirmedRound = tx.submittedAt + s.confirmDelay
		pending.ReturnValue = tx.seq
	}
	return pending, nil
}
