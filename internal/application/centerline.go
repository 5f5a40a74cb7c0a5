package app

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"ortho-mapper/internal/domain/entity"
)

// CenterlineExtractor approximates the medial axis of a mask polygon. The
// polygon is rasterised, thinned to a one-cell skeleton and the skeleton is
// traced into branches that are then simplified.
type CenterlineExtractor struct {
	CellSize          float64 // raster resolution in polygon units
	MaxCells          int     // the cell size grows until the raster fits
	SimplifyTolerance float64
	MinBranchLength   float64
}

// NewCenterlineExtractor creates an extractor working at one-pixel resolution.
func NewCenterlineExtractor(simplifyTolerance, minBranchLength float64, maxCells int) *CenterlineExtractor {
	return &CenterlineExtractor{
		CellSize:          1,
		MaxCells:          maxCells,
		SimplifyTolerance: simplifyTolerance,
		MinBranchLength:   minBranchLength,
	}
}

// Centerline returns the branches of the polygon's centerline. Degenerate
// polygons yield no branches and no error.
func (c *CenterlineExtractor) Centerline(ring orb.Ring) (orb.MultiLineString, error) {
	if len(ring) < 3 {
		return nil, nil
	}
	for _, p := range ring {
		if !finitePoint(p) {
			return nil, errors.New("polygon has non-finite coordinates")
		}
	}

	b := ring.Bound()
	if b.Max[0]-b.Min[0] <= 0 || b.Max[1]-b.Min[1] <= 0 {
		return nil, nil
	}

	cell := c.CellSize
	if cell <= 0 {
		cell = 1
	}
	r := newRaster(b, fitCell(b, cell, c.MaxCells))
	for y := 1; y < r.h-1; y++ {
		for x := 1; x < r.w-1; x++ {
			if planar.RingContains(ring, r.center(x, y)) {
				r.set(x, y)
			}
		}
	}
	if r.count() == 0 {
		return nil, nil
	}

	r.thin()
	branches := pruneSpurs(r.lines(), c.MinBranchLength)

	if c.SimplifyTolerance > 0 {
		dp := simplify.DouglasPeucker(c.SimplifyTolerance)
		for i := range branches {
			branches[i] = dp.LineString(branches[i])
		}
	}
	return branches, nil
}

// SegmentsOf splits every branch into consecutive point pairs.
func SegmentsOf(branches orb.MultiLineString) []entity.Segment {
	var out []entity.Segment
	for _, ls := range branches {
		for i := 0; i+1 < len(ls); i++ {
			out = append(out, entity.Segment{A: ls[i], B: ls[i+1]})
		}
	}
	return out
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
