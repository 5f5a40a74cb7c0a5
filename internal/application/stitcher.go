package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/interp"

	"ortho-mapper/internal/domain/entity"
	perrors "ortho-mapper/internal/errors"
)

// PathStitcher merges centerline segments from all tiles of a run into
// one smooth polyline per spatial group.
type PathStitcher struct {
	ZigZagTolerance  float64 // px a point may fall back along the dominant direction
	SmoothingDensity int     // spline samples per span between kept points
}

// StitchResult holds the stitched paths and the groups that were dropped.
type StitchResult struct {
	Paths  []entity.StitchedPath
	Issues []error
}

func NewPathStitcher(zigZagTolerance float64, smoothingDensity int) *PathStitcher {
	if smoothingDensity < 1 {
		smoothingDensity = 1
	}
	return &PathStitcher{
		ZigZagTolerance:  zigZagTolerance,
		SmoothingDensity: smoothingDensity,
	}
}

// Stitch groups segments whose endpoints lie within threshold of each other
// and turns every group into one polyline. It only fails on cancellation.
func (s *PathStitcher) Stitch(ctx context.Context, segments []entity.PathSegment, threshold float64) (StitchResult, error) {
	var res StitchResult
	for gi, members := range GroupSegments(segments, threshold) {
		if err := ctx.Err(); err != nil {
			return StitchResult{}, err
		}
		path, ok, err := s.stitchGroup(segments, members)
		if err != nil {
			res.Issues = append(res.Issues, perrors.NewStitchingError(gi, err))
			continue
		}
		if ok {
			res.Paths = append(res.Paths, path)
		}
	}
	return res, nil
}

func (s *PathStitcher) stitchGroup(segments []entity.PathSegment, members []int) (path entity.StitchedPath, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()

	points := make([]orb.Point, 0, 2*len(members))
	for _, m := range members {
		points = append(points, segments[m].A, segments[m].B)
	}
	for _, p := range points {
		if !finitePoint(p) {
			return path, false, errors.New("segment has non-finite coordinates")
		}
	}

	ordered := OrderPoints(points)
	filtered := FilterZigZag(ordered, s.ZigZagTolerance)
	line, err := SmoothLine(filtered, s.SmoothingDensity)
	if err != nil {
		return path, false, err
	}
	if len(line) < 2 {
		return path, false, nil
	}

	area, tileIDs := groupAttributes(segments, members)
	return entity.StitchedPath{
		Line:         line,
		ClassLabel:   "path",
		AreaPhysical: area,
		TileIDs:      tileIDs,
	}, true, nil
}

// GroupSegments returns connected components of the endpoint-proximity graph.
// Each group lists segment indices in ascending order; groups are ordered by
// their lowest index.
func GroupSegments(segments []entity.PathSegment, threshold float64) [][]int {
	visited := make([]bool, len(segments))
	var groups [][]int
	for i := range segments {
		if visited[i] {
			continue
		}
		visited[i] = true
		queue := []int{i}
		var group []int
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			group = append(group, cur)
			for j := range segments {
				if !visited[j] && endpointsNear(segments[cur].Segment, segments[j].Segment, threshold) {
					visited[j] = true
					queue = append(queue, j)
				}
			}
		}
		sort.Ints(group)
		groups = append(groups, group)
	}
	return groups
}

func endpointsNear(a, b entity.Segment, threshold float64) bool {
	for _, p := range [2]orb.Point{a.A, a.B} {
		for _, q := range [2]orb.Point{b.A, b.B} {
			if planar.Distance(p, q) <= threshold {
				return true
			}
		}
	}
	return false
}

// OrderPoints walks greedily from the lexicographically smallest point to the
// nearest unused point. Ties go to the lowest index.
func OrderPoints(points []orb.Point) []orb.Point {
	if len(points) == 0 {
		return nil
	}
	start := 0
	for i := 1; i < len(points); i++ {
		if lessPoint(points[i], points[start]) {
			start = i
		}
	}

	used := make([]bool, len(points))
	used[start] = true
	order := make([]orb.Point, 0, len(points))
	order = append(order, points[start])
	cur := start
	for k := 1; k < len(points); k++ {
		best, bestDist := -1, 0.0
		for j := range points {
			if used[j] {
				continue
			}
			d := planar.DistanceSquared(points[cur], points[j])
			if best < 0 || d < bestDist {
				best, bestDist = j, d
			}
		}
		used[best] = true
		order = append(order, points[best])
		cur = best
	}
	return order
}

func lessPoint(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// FilterZigZag drops points that fall back more than tolerance behind the
// furthest progress made along the dominant direction of the sequence.
func FilterZigZag(points []orb.Point, tolerance float64) []orb.Point {
	if len(points) < 3 {
		return points
	}
	dir := dominantDirection(points)
	origin := points[0]
	out := []orb.Point{origin}
	front := 0.0
	for _, p := range points[1:] {
		proj := (p[0]-origin[0])*dir[0] + (p[1]-origin[1])*dir[1]
		if proj < front-tolerance {
			continue
		}
		out = append(out, p)
		if proj > front {
			front = proj
		}
	}
	return out
}

// dominantDirection is the unit vector from the first to the last point,
// or the axis of larger extent when those coincide.
func dominantDirection(points []orb.Point) orb.Point {
	first, last := points[0], points[len(points)-1]
	dx, dy := last[0]-first[0], last[1]-first[1]
	if n := math.Hypot(dx, dy); n > 1e-9 {
		return orb.Point{dx / n, dy / n}
	}
	b := orb.MultiPoint(points).Bound()
	if b.Max[0]-b.Min[0] >= b.Max[1]-b.Min[1] {
		return orb.Point{1, 0}
	}
	return orb.Point{0, 1}
}

// SmoothLine fits an interpolating parametric natural cubic spline through
// the points, parameterised by chord length, and samples it density times
// per span. Every input point is kept exactly.
func SmoothLine(points []orb.Point, density int) (orb.LineString, error) {
	pts := dedupe(points)
	if len(pts) < 2 {
		return nil, nil
	}
	if len(pts) == 2 {
		return orb.LineString{pts[0], pts[1]}, nil
	}
	if density < 1 {
		density = 1
	}

	ts := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p[0], p[1]
		if i > 0 {
			ts[i] = ts[i-1] + planar.Distance(pts[i-1], p)
		}
	}

	var fx, fy interp.NaturalCubic
	if err := fx.Fit(ts, xs); err != nil {
		return nil, fmt.Errorf("fit x spline: %w", err)
	}
	if err := fy.Fit(ts, ys); err != nil {
		return nil, fmt.Errorf("fit y spline: %w", err)
	}

	out := make(orb.LineString, 0, (len(pts)-1)*density+1)
	for i := 0; i+1 < len(pts); i++ {
		out = append(out, pts[i])
		for k := 1; k < density; k++ {
			t := ts[i] + (ts[i+1]-ts[i])*float64(k)/float64(density)
			out = append(out, orb.Point{fx.Predict(t), fy.Predict(t)})
		}
	}
	out = append(out, pts[len(pts)-1])
	return out, nil
}

// dedupe removes consecutive repeats.
func dedupe(points []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// groupAttributes sums the areas of the distinct contributing instances and
// lists the contributing tiles in tile order.
func groupAttributes(segments []entity.PathSegment, members []int) (float64, []string) {
	type instanceKey struct{ tile, instance int }
	seen := make(map[instanceKey]bool)
	tiles := make(map[int]string)
	var keys []instanceKey
	areas := make(map[instanceKey]float64)
	for _, m := range members {
		s := segments[m]
		k := instanceKey{s.TileIndex, s.InstanceIndex}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
			areas[k] = s.AreaPhysical
		}
		tiles[s.TileIndex] = s.TileID
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tile != keys[j].tile {
			return keys[i].tile < keys[j].tile
		}
		return keys[i].instance < keys[j].instance
	})
	total := 0.0
	for _, k := range keys {
		total += areas[k]
	}

	indices := make([]int, 0, len(tiles))
	for idx := range tiles {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = tiles[idx]
	}
	return total, ids
}
