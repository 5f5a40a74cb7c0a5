package app

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"ortho-mapper/internal/domain/entity"
	perrors "ortho-mapper/internal/errors"
)

// TileAdapter validates raw inference output into a Tile.
type TileAdapter struct{}

// AdaptResult is a normalised tile plus the detections dropped on the way.
type AdaptResult struct {
	Tile      entity.Tile
	AffineErr error
	Issues    []error
}

func NewTileAdapter() *TileAdapter {
	return &TileAdapter{}
}

// Adapt converts one raw tile. Malformed detections are dropped and reported.
func (a *TileAdapter) Adapt(index int, raw entity.RawTile) AdaptResult {
	tile := entity.Tile{
		ID:        raw.TileID,
		Index:     index,
		Width:     raw.Width,
		Height:    raw.Height,
		ImagePath: raw.ImagePath,
		Instances: make([]entity.DetectionInstance, 0, len(raw.Detections)),
	}
	if tile.ID == "" {
		tile.ID = fmt.Sprintf("tile_%d", index)
	}

	res := AdaptResult{}
	affine, err := entity.AffineFromParams(raw.Affine)
	if err != nil {
		res.AffineErr = err
	}
	tile.Affine = affine

	for i, d := range raw.Detections {
		inst, reason := toInstance(i, d)
		if reason != "" {
			res.Issues = append(res.Issues, perrors.NewInvalidDetectionError(tile.ID, i, reason))
			continue
		}
		tile.Instances = append(tile.Instances, inst)
	}

	res.Tile = tile
	return res
}

func toInstance(index int, d entity.RawDetection) (entity.DetectionInstance, string) {
	if len(d.Polygon) < 3 {
		return entity.DetectionInstance{}, fmt.Sprintf("polygon has %d points", len(d.Polygon))
	}
	ring := make(orb.Ring, 0, len(d.Polygon))
	for _, pt := range d.Polygon {
		if len(pt) != 2 {
			return entity.DetectionInstance{}, "polygon vertex is not an (x, y) pair"
		}
		ring = append(ring, orb.Point{pt[0], pt[1]})
	}

	if len(d.BBox) != 4 {
		return entity.DetectionInstance{}, "bbox is not [xmin, ymin, xmax, ymax]"
	}
	for _, v := range d.BBox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return entity.DetectionInstance{}, "bbox has non-finite values"
		}
	}
	box := entity.BBox{XMin: d.BBox[0], YMin: d.BBox[1], XMax: d.BBox[2], YMax: d.BBox[3]}
	if box.XMin > box.XMax || box.YMin > box.YMax {
		return entity.DetectionInstance{}, "bbox min exceeds max"
	}

	return entity.DetectionInstance{
		Index:      index,
		ClassLabel: d.ClassLabel,
		Polygon:    ring,
		BBox:       box,
	}, ""
}
