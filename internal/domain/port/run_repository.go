package port

import (
	"context"

	"ortho-mapper/internal/domain/entity"
)

// RunRepository stores run history
type RunRepository interface {
	// Save inserts or replaces a run record
	Save(ctx context.Context, record *entity.RunRecord) error

	// Get returns a run by ID, or ErrRunNotFound
	Get(ctx context.Context, id string) (*entity.RunRecord, error)

	// List returns up to limit runs, newest first
	List(ctx context.Context, limit int) ([]*entity.RunRecord, error)
}
