package anchor

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store implementation for
// testing and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Persist implements Store.
func (s *MemoryStore) Persist(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.AnchorID == rec.AnchorID {
			return fmt.Errorf("anchor %s already persisted", rec.AnchorID)
		}
	}
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(_ context.Context, anchorID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.AnchorID == anchorID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// LatestByState implements Store.
func (s *MemoryStore) LatestByState(_ context.Context, stateCode string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Record
	for _, rec := range s.records {
		if rec.StateCode != stateCode {
			continue
		}
		if latest == nil || rec.AnchoredAt.After(latest.AnchoredAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// FindByRange implements Store.
func (s *MemoryStore) FindByRange(_ context.Context, stateCode string, br BlockRange) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.StateCode == stateCode && rec.BlockRange == br {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListByState implements Store.
func (s *MemoryStore) ListByState(_ context.Context, stateCode string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, rec := range s.records {
		if rec.StateCode == stateCode {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnchoredAt.After(out[j].AnchoredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkVerified implements Store.
func (s *MemoryStore) MarkVerified(_ context.Context, anchorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.AnchorID == anchorID {
			rec.Verified = true
			return nil
		}
	}
	return ErrNotFound
}
