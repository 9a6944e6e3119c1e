package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// MemoryPropertyRepository is an in-memory, thread-safe property store for
// testing and development.
type MemoryPropertyRepository struct {
	mu    sync.RWMutex
	props map[string]*model.Property
}

// NewMemoryPropertyRepository creates an empty MemoryPropertyRepository.
func NewMemoryPropertyRepository() *MemoryPropertyRepository {
	return &MemoryPropertyRepository{props: make(map[string]*model.Property)}
}

// Upsert inserts or refreshes a property row.
func (r *MemoryPropertyRepository) Upsert(_ context.Context, p *model.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.props[p.PropertyID]; ok {
		p.CreatedAt = existing.CreatedAt
		p.EncumbranceStatus = existing.EncumbranceStatus
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	r.props[p.PropertyID] = &cp
	return nil
}

// GetByID retrieves a property by id.
func (r *MemoryPropertyRepository) GetByID(_ context.Context, propertyID string) (*model.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[propertyID]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

// ListByState returns properties for a state, newest first.
func (r *MemoryPropertyRepository) ListByState(_ context.Context, stateCode string, limit, offset int) ([]*model.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Property
	for _, p := range r.props {
		if p.StateCode == stateCode {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetEncumbranceStatus updates the derived property-level flag.
func (r *MemoryPropertyRepository) SetEncumbranceStatus(_ context.Context, propertyID string, status model.EncumbranceSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[propertyID]
	if !ok {
		return ErrPropertyNotFound
	}
	p.EncumbranceStatus = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetStatus updates the property lifecycle status.
func (r *MemoryPropertyRepository) SetStatus(_ context.Context, propertyID string, status model.PropertyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[propertyID]
	if !ok {
		return ErrPropertyNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryEncumbranceRepository is an in-memory, thread-safe encumbrance
// store for testing and development.
type MemoryEncumbranceRepository struct {
	mu      sync.RWMutex
	records map[string]*model.EncumbranceRecord
}

// NewMemoryEncumbranceRepository creates an empty MemoryEncumbranceRepository.
func NewMemoryEncumbranceRepository() *MemoryEncumbranceRepository {
	return &MemoryEncumbranceRepository{records: make(map[string]*model.EncumbranceRecord)}
}

// Create inserts a new encumbrance row.
func (r *MemoryEncumbranceRepository) Create(_ context.Context, e *model.EncumbranceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	r.records[e.EncumbranceID] = &cp
	return nil
}

// GetByID retrieves an encumbrance by id.
func (r *MemoryEncumbranceRepository) GetByID(_ context.Context, encumbranceID string) (*model.EncumbranceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.records[encumbranceID]
	if !ok {
		return nil, ErrEncumbranceNotFound
	}
	cp := *e
	return &cp, nil
}

// ListByProperty returns all encumbrances for a property, newest first.
func (r *MemoryEncumbranceRepository) ListByProperty(_ context.Context, propertyID string) ([]*model.EncumbranceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.EncumbranceRecord
	for _, e := range r.records {
		if e.PropertyID == propertyID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListUnsynced returns degraded-mode rows awaiting the ledger repair pass.
func (r *MemoryEncumbranceRepository) ListUnsynced(_ context.Context, limit int) ([]*model.EncumbranceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.EncumbranceRecord
	for _, e := range r.records {
		if !e.Synced {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatusIf flips the status only when the current value matches
// expected, mirroring the conditional UPDATE of the Postgres repository.
func (r *MemoryEncumbranceRepository) UpdateStatusIf(_ context.Context, encumbranceID string, expected, next model.EncumbranceStatus, releaseTxID string, releasedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[encumbranceID]
	if !ok {
		return ErrStatusConflict
	}
	if e.Status != expected {
		return ErrStatusConflict
	}
	e.Status = next
	e.ReleaseTxID = releaseTxID
	e.ReleasedAt = &releasedAt
	return nil
}

// MarkSynced records that the ledger repair pass caught the row up.
func (r *MemoryEncumbranceRepository) MarkSynced(_ context.Context, encumbranceID, ledgerTxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[encumbranceID]
	if !ok {
		return ErrEncumbranceNotFound
	}
	e.Synced = true
	e.LedgerTxID = ledgerTxID
	return nil
}

// CountActiveByProperty counts ACTIVE encumbrances for a property.
func (r *MemoryEncumbranceRepository) CountActiveByProperty(_ context.Context, propertyID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, e := range r.records {
		if e.PropertyID == propertyID && e.Status == model.EncumbranceActive {
			count++
		}
	}
	return count, nil
}

// MemoryInstitutionRepository is an in-memory, thread-safe institution
// store for testing and development.
type MemoryInstitutionRepository struct {
	mu    sync.RWMutex
	insts map[string]*model.Institution
}

// NewMemoryInstitutionRepository creates an empty MemoryInstitutionRepository.
func NewMemoryInstitutionRepository() *MemoryInstitutionRepository {
	return &MemoryInstitutionRepository{insts: make(map[string]*model.Institution)}
}

// Create inserts a new institution.
func (r *MemoryInstitutionRepository) Create(_ context.Context, inst *model.Institution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.insts[inst.Code]; ok {
		return ErrInstitutionExists
	}
	inst.ID = uuid.New()
	inst.CreatedAt = time.Now().UTC()
	cp := *inst
	r.insts[inst.Code] = &cp
	return nil
}

// GetByCode retrieves an institution by its login code.
func (r *MemoryInstitutionRepository) GetByCode(_ context.Context, code string) (*model.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.insts[code]
	if !ok {
		return nil, ErrInstitutionNotFound
	}
	cp := *inst
	return &cp, nil
}

// List returns all institutions.
func (r *MemoryInstitutionRepository) List(_ context.Context) ([]*model.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Institution
	for _, inst := range r.insts {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
