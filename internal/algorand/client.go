// Package algorand provides the public-chain capability consumed by the
// anchor submitter: submit a method call, query confirmation state, query
// the signing account's balance.
//
// The bridge treats Algorand as an external collaborator. Two
// implementations of the Client interface are provided:
//   - HTTPClient: JSON client for the algod gateway service, for production.
//   - SimChain: in-process simulator, for development and tests.
package algorand

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrTxNotFound is returned by PendingTransaction when the chain has no
// record of the transaction id.
var ErrTxNotFound = errors.New("transaction not found")

// MethodCall describes one ABI method invocation on the anchor application.
type MethodCall struct {
	AppID  uint64 `json:"app_id"`
	Method string `json:"method"`
	Args   []any  `json:"args"` // typed arguments in ABI order
	Note   []byte `json:"note"` // human-readable JSON envelope
}

// PendingTx is the chain's view of a submitted transaction.
type PendingTx struct {
	TxID           string `json:"tx_id"`
	ConfirmedRound uint64 `json:"confirmed_round"` // 0 while still in the pool
	ReturnValue    uint64 `json:"return_value"`    // ABI return decoded as uint64
	Note           []byte `json:"note"`
	PoolError      string `json:"pool_error"`
}

// Client is the minimal chain capability the submitter depends on.
type Client interface {
	// AccountBalance returns the spendable balance of addr in microalgos.
	AccountBalance(ctx context.Context, addr string) (uint64, error)

	// LastRound returns the latest committed round number.
	LastRound(ctx context.Context) (uint64, error)

	// SubmitMethodCall signs and submits a method-call transaction and
	// returns its transaction id without waiting for confirmation.
	SubmitMethodCall(ctx context.Context, call MethodCall) (string, error)

	// PendingTransaction returns the current state of a submitted
	// transaction, whether confirmed or still pending.
	PendingTransaction(ctx context.Context, txID string) (*PendingTx, error)
}

// Account holds the process-wide signing identity. It is constructed once
// at startup from configuration and never mutated afterwards.
type Account struct {
	Address string
	key     ed25519.PrivateKey
}

// NewAccount builds an Account from its address and a base64-encoded
// ed25519 seed.
func NewAccount(address, seedB64 string) (*Account, error) {
	if address == "" {
		return nil, errors.New("account address is required")
	}
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("decode signing seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Account{
		Address: address,
		key:     ed25519.NewKeyFromSeed(seed),
	}, nil
}

// Sign returns the ed25519 signature of msg.
func (a *Account) Sign(msg []byte) []byte {
	return ed25519.Sign(a.key, msg)
}
