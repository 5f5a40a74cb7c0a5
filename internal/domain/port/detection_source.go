package port

import (
	"context"

	"ortho-mapper/internal/domain/entity"
)

// DetectionSource supplies per-tile inference output and georeferencing
type DetectionSource interface {
	// Load returns the tiles of a run in their canonical order
	Load(ctx context.Context, location string) ([]entity.RawTile, error)
}
