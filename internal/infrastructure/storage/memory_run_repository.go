package storage

import (
	"context"
	"sort"
	"sync"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

// MemoryRunRepository keeps run history in memory
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*entity.RunRecord
}

// NewMemoryRunRepository creates an empty history
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs: make(map[string]*entity.RunRecord),
	}
}

// Save inserts or replaces a record
func (r *MemoryRunRepository) Save(ctx context.Context, record *entity.RunRecord) error {
	cp := *record
	r.mu.Lock()
	r.runs[record.ID] = &cp
	r.mu.Unlock()

	return nil
}

// Get returns a copy of the record, or port.ErrRunNotFound
func (r *MemoryRunRepository) Get(ctx context.Context, id string) (*entity.RunRecord, error) {
	r.mu.RLock()
	rec, ok := r.runs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, port.ErrRunNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns up to limit records, newest first. A non-positive limit
// returns everything.
func (r *MemoryRunRepository) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	r.mu.RLock()
	out := make([]*entity.RunRecord, 0, len(r.runs))
	for _, rec := range r.runs {
		cp := *rec
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

var _ port.RunRepository = (*MemoryRunRepository)(nil)
