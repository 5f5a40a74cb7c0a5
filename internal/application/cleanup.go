package app

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"ortho-mapper/internal/domain/entity"
)

// PathCleaner merges stitched paths that overlap once buffered by Tolerance
// and replaces every merged cluster with the centerline of its union.
type PathCleaner struct {
	Tolerance         float64 // buffer radius in map units
	CellsPerTolerance int
	MaxCells          int // raster budget per cluster; the cell is coarsened to fit
	MinBranchLength   float64
}

func NewPathCleaner(tolerance float64, maxCells int) *PathCleaner {
	return &PathCleaner{
		Tolerance:         tolerance,
		CellsPerTolerance: 4,
		MaxCells:          maxCells,
		MinBranchLength:   tolerance,
	}
}

// Clean returns the cleaned line features. Point features are not touched
// and must not be passed in.
func (c *PathCleaner) Clean(lines []entity.GeoFeature) ([]entity.GeoFeature, error) {
	if len(lines) == 0 {
		return lines, nil
	}
	if c.Tolerance <= 0 {
		return nil, errors.New("cleanup tolerance must be positive")
	}
	for i, f := range lines {
		if f.Kind != entity.KindLineString {
			return nil, fmt.Errorf("feature %d is not a line", i)
		}
		if len(f.Line) == 0 {
			return nil, fmt.Errorf("feature %d has no coordinates", i)
		}
		for _, p := range f.Line {
			if !finitePoint(p) {
				return nil, fmt.Errorf("feature %d has non-finite coordinates", i)
			}
		}
	}

	var out []entity.GeoFeature
	for _, members := range c.clusters(lines) {
		sub := make([]entity.GeoFeature, len(members))
		for i, m := range members {
			sub[i] = lines[m]
		}
		out = append(out, c.cleanCluster(sub)...)
	}
	return out, nil
}

// clusters groups lines whose buffers touch, that is lines closer than
// twice the tolerance. Clusters are ordered by their first member.
func (c *PathCleaner) clusters(lines []entity.GeoFeature) [][]int {
	reach := 2 * c.Tolerance
	bounds := make([]orb.Bound, len(lines))
	for i, f := range lines {
		bounds[i] = f.Line.Bound().Pad(reach)
	}

	visited := make([]bool, len(lines))
	var groups [][]int
	for i := range lines {
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
			for j := range lines {
				if visited[j] || !bounds[cur].Intersects(lines[j].Line.Bound()) {
					continue
				}
				if lineDistance(lines[cur].Line, lines[j].Line) <= reach {
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

// cleanCluster rasterises the buffered lines of one cluster and traces the
// centerline of every connected blob. A blob without branches keeps its
// original lines.
func (c *PathCleaner) cleanCluster(lines []entity.GeoFeature) []entity.GeoFeature {
	per := c.CellsPerTolerance
	if per < 1 {
		per = 1
	}
	var bound orb.Bound
	for i, f := range lines {
		if i == 0 {
			bound = f.Line.Bound()
		} else {
			bound = bound.Union(f.Line.Bound())
		}
	}
	cell := fitCell(bound.Pad(c.Tolerance), c.Tolerance/float64(per), c.MaxCells)
	// a coarse cell must still cover every cell the line passes through
	radius := math.Max(c.Tolerance, cell*math.Sqrt2/2)

	r := newRaster(bound.Pad(radius+cell), cell)
	for _, f := range lines {
		bufferLine(r, f.Line, radius)
	}

	labels, n := r.components()
	owners := make([][]int, n+1)
	for i, f := range lines {
		x, y := r.cellOf(f.Line[0])
		label := labels[y*r.w+x]
		owners[label] = append(owners[label], i)
	}

	r.thin()
	branches := make([]orb.MultiLineString, n+1)
	for _, cells := range r.trace() {
		if len(cells) < 2 {
			continue
		}
		label := labels[cells[0][1]*r.w+cells[0][0]]
		ls := make(orb.LineString, len(cells))
		for i, cl := range cells {
			ls[i] = r.center(cl[0], cl[1])
		}
		branches[label] = append(branches[label], ls)
	}

	// blobs in order of their first member line
	order := make([]int, 0, n+1)
	for label := 0; label <= n; label++ {
		if len(owners[label]) > 0 {
			order = append(order, label)
		}
	}
	sort.Slice(order, func(i, j int) bool { return owners[order[i]][0] < owners[order[j]][0] })

	dp := simplify.DouglasPeucker(cell)
	var out []entity.GeoFeature
	for _, label := range order {
		members := owners[label]
		var kept orb.MultiLineString
		if label > 0 {
			kept = pruneSpurs(branches[label], c.MinBranchLength)
		}
		if len(kept) == 0 {
			for _, m := range members {
				out = append(out, lines[m])
			}
			continue
		}
		name, desc, area := mergeAttributes(lines, members)
		for _, ls := range kept {
			ls = dp.LineString(ls)
			if len(ls) < 2 {
				continue
			}
			out = append(out, entity.NewLineFeature(ls, name, desc, area/float64(len(kept))))
		}
	}
	return out
}

// bufferLine marks every cell whose center lies within radius of the line.
func bufferLine(r *raster, ls orb.LineString, radius float64) {
	if len(ls) == 1 {
		ls = orb.LineString{ls[0], ls[0]}
	}
	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		sb := orb.LineString{a, b}.Bound().Pad(radius)
		x0, y0 := r.cellOf(sb.Min)
		x1, y1 := r.cellOf(sb.Max)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if planar.DistanceFromSegment(a, b, r.center(x, y)) <= radius {
					r.set(x, y)
				}
			}
		}
	}
}

// lineDistance is the smallest distance between two polylines.
func lineDistance(a, b orb.LineString) float64 {
	segs := func(ls orb.LineString) [][2]orb.Point {
		if len(ls) == 1 {
			return [][2]orb.Point{{ls[0], ls[0]}}
		}
		out := make([][2]orb.Point, 0, len(ls)-1)
		for i := 0; i+1 < len(ls); i++ {
			out = append(out, [2]orb.Point{ls[i], ls[i+1]})
		}
		return out
	}
	best := math.Inf(1)
	for _, s := range segs(a) {
		for _, t := range segs(b) {
			if d := segmentDistance(s, t); d < best {
				best = d
			}
		}
	}
	return best
}

func segmentDistance(s, t [2]orb.Point) float64 {
	if segmentsCross(s, t) {
		return 0
	}
	return math.Min(
		math.Min(planar.DistanceFromSegment(t[0], t[1], s[0]), planar.DistanceFromSegment(t[0], t[1], s[1])),
		math.Min(planar.DistanceFromSegment(s[0], s[1], t[0]), planar.DistanceFromSegment(s[0], s[1], t[1])),
	)
}

// segmentsCross reports a proper crossing; touching cases have distance 0
// through the endpoint checks.
func segmentsCross(s, t [2]orb.Point) bool {
	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}
	d1 := cross(t[0], t[1], s[0])
	d2 := cross(t[0], t[1], s[1])
	d3 := cross(s[0], s[1], t[0])
	d4 := cross(s[0], s[1], t[1])
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// mergeAttributes joins the descriptions of merged lines without repeating
// tile ids and sums their areas.
func mergeAttributes(lines []entity.GeoFeature, members []int) (string, string, float64) {
	name := lines[members[0]].Name
	seen := make(map[string]bool)
	var parts []string
	area := 0.0
	for _, m := range members {
		area += lines[m].AreaPhysical
		for _, p := range strings.Split(lines[m].Description, ",") {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			parts = append(parts, p)
		}
	}
	return name, strings.Join(parts, ", "), area
}
