package port

import (
	"context"

	"ortho-mapper/internal/domain/entity"
)

// TileRenderer draws extracted geometry over a tile image
type TileRenderer interface {
	// Annotate returns a JPEG of the tile with the overlay drawn on it
	Annotate(ctx context.Context, imagePath string, overlay entity.TileOverlay) ([]byte, error)
}
