package auditchain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryLedger struct {
	mu      sync.RWMutex
	streams map[string][]*Entry
}

// NewMemory creates an empty MemoryLedger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{streams: make(map[string][]*Entry)}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, propertyID, action, actor string, payload any) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	stream := l.streams[propertyID]
	prevHash := hashchain.GenesisHash
	if len(stream) > 0 {
		prevHash = stream[len(stream)-1].Hash
	}

	entry := &Entry{
		Seq:        len(stream),
		Timestamp:  time.Now().UTC(),
		PropertyID: propertyID,
		Action:     action,
		Actor:      actor,
		DataHash:   hashchain.Digest(payloadJSON),
		PrevHash:   prevHash,
	}
	entry.Hash = hashEntry(entry)
	l.streams[propertyID] = append(stream, entry)
	return entry, nil
}

// List implements Ledger.
func (l *MemoryLedger) List(_ context.Context, propertyID string) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stream := l.streams[propertyID]
	out := make([]*Entry, len(stream))
	copy(out, stream)
	return out, nil
}

// Tip implements Ledger.
func (l *MemoryLedger) Tip(_ context.Context, propertyID string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stream := l.streams[propertyID]
	if len(stream) == 0 {
		return hashchain.GenesisHash, nil
	}
	return stream[len(stream)-1].Hash, nil
}

// Verify implements Ledger. It walks the property's stream and checks that
// all hashes are consistent.
func (l *MemoryLedger) Verify(_ context.Context, propertyID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyStream(l.streams[propertyID])
}

// verifyStream checks a stream's internal hash consistency. Shared by both
// ledger implementations.
func verifyStream(stream []*Entry) error {
	prevHash := hashchain.GenesisHash
	for i, curr := range stream {
		if curr.Seq != i {
			return fmt.Errorf("stream gap: entry %d has seq %d", i, curr.Seq)
		}
		if curr.PrevHash != prevHash {
			return fmt.Errorf("hash chain broken at seq %d", curr.Seq)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Seq)
		}
		prevHash = curr.Hash
	}
	return nil
}
