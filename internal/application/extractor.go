package app

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"ortho-mapper/internal/domain/entity"
	perrors "ortho-mapper/internal/errors"
)

// GeometryExtractor derives area, center and centerline per instance.
type GeometryExtractor struct {
	scale           float64
	scaleFromAffine bool
	centerline      *CenterlineExtractor
}

// TileGeometry is the extractor output for one tile.
type TileGeometry struct {
	Records []entity.GeometryRecord
	Issues  []error
}

// NewGeometryExtractor creates an extractor. scale is metres per pixel;
// with scaleFromAffine the tile's |pixel_width| is used instead.
func NewGeometryExtractor(scale float64, scaleFromAffine bool, centerline *CenterlineExtractor) *GeometryExtractor {
	return &GeometryExtractor{
		scale:           scale,
		scaleFromAffine: scaleFromAffine,
		centerline:      centerline,
	}
}

// Extract processes every instance of the tile. A failing instance is
// reported and skipped; the rest of the tile continues.
func (e *GeometryExtractor) Extract(tile entity.Tile) TileGeometry {
	out := TileGeometry{Records: make([]entity.GeometryRecord, 0, len(tile.Instances))}
	scale := e.scaleFor(tile)
	for _, inst := range tile.Instances {
		rec, err := e.extractOne(tile.ID, inst, scale)
		if err != nil {
			out.Issues = append(out.Issues, perrors.NewInstanceGeometryError(tile.ID, inst.Index, err))
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

func (e *GeometryExtractor) scaleFor(tile entity.Tile) float64 {
	if e.scaleFromAffine && tile.Affine.PixelWidth != 0 {
		return math.Abs(tile.Affine.PixelWidth)
	}
	return e.scale
}

func (e *GeometryExtractor) extractOne(tileID string, inst entity.DetectionInstance, scale float64) (rec entity.GeometryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if len(inst.Polygon) < 3 {
		return rec, errors.New("polygon has fewer than 3 points")
	}
	areaPx := PolygonArea(inst.Polygon)
	if math.IsNaN(areaPx) || math.IsInf(areaPx, 0) {
		return rec, errors.New("polygon area is not finite")
	}

	cx, cy := inst.BBox.Center()
	rec = entity.GeometryRecord{
		TileID:        tileID,
		InstanceIndex: inst.Index,
		ClassLabel:    inst.ClassLabel,
		Center:        orb.Point{float64(cx), float64(cy)},
		AreaPx:        areaPx,
		AreaPhysical:  areaPx * scale * scale,
	}

	if inst.IsPath() && e.centerline != nil {
		branches, err := e.centerline.Centerline(inst.Polygon)
		if err != nil {
			return entity.GeometryRecord{}, err
		}
		rec.Segments = SegmentsOf(branches)
	}
	return rec, nil
}

// PolygonArea is the absolute shoelace area of an open or closed ring.
func PolygonArea(ring orb.Ring) float64 {
	return math.Abs(planar.Area(ring))
}

// ClassCounts tallies records per class label.
func ClassCounts(records []entity.GeometryRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.ClassLabel]++
	}
	return counts
}
