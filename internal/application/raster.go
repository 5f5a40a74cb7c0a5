package app

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// raster is a binary grid laid over a bound, with an empty one-cell border
// so that neighbourhood lookups never leave the grid.
type raster struct {
	w, h   int
	cells  []bool
	origin orb.Point
	cell   float64
}

func newRaster(b orb.Bound, cell float64) *raster {
	w := int(math.Ceil((b.Max[0]-b.Min[0])/cell)) + 2
	h := int(math.Ceil((b.Max[1]-b.Min[1])/cell)) + 2
	return &raster{
		w:      w,
		h:      h,
		cells:  make([]bool, w*h),
		origin: b.Min,
		cell:   cell,
	}
}

// rasterSize returns the number of cells newRaster would allocate.
func rasterSize(b orb.Bound, cell float64) float64 {
	w := math.Ceil((b.Max[0]-b.Min[0])/cell) + 2
	h := math.Ceil((b.Max[1]-b.Min[1])/cell) + 2
	return w * h
}

// fitCell grows cell until a raster over b stays within maxCells.
// A non-positive maxCells disables the limit.
func fitCell(b orb.Bound, cell float64, maxCells int) float64 {
	if maxCells <= 0 {
		return cell
	}
	for i := 0; i < 64 && rasterSize(b, cell) > float64(maxCells); i++ {
		cell *= math.Sqrt(rasterSize(b, cell) / float64(maxCells))
	}
	return cell
}

func (r *raster) get(x, y int) bool {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return false
	}
	return r.cells[y*r.w+x]
}

func (r *raster) set(x, y int) {
	if x <= 0 || y <= 0 || x >= r.w-1 || y >= r.h-1 {
		return
	}
	r.cells[y*r.w+x] = true
}

func (r *raster) count() int {
	n := 0
	for _, v := range r.cells {
		if v {
			n++
		}
	}
	return n
}

// center returns the coordinate of a cell's center.
func (r *raster) center(x, y int) orb.Point {
	return orb.Point{
		r.origin[0] + (float64(x)-0.5)*r.cell,
		r.origin[1] + (float64(y)-0.5)*r.cell,
	}
}

// cellOf returns the cell containing p.
func (r *raster) cellOf(p orb.Point) (int, int) {
	return int(math.Floor((p[0]-r.origin[0])/r.cell)) + 1, int(math.Floor((p[1]-r.origin[1])/r.cell)) + 1
}

// thin reduces every blob to a one-cell-wide skeleton (Zhang-Suen).
func (r *raster) thin() {
	for {
		changed := false
		for step := 0; step < 2; step++ {
			var del []int
			for y := 1; y < r.h-1; y++ {
				for x := 1; x < r.w-1; x++ {
					if !r.cells[y*r.w+x] {
						continue
					}
					// P2..P9 clockwise from north
					p := [8]bool{
						r.get(x, y-1), r.get(x+1, y-1), r.get(x+1, y), r.get(x+1, y+1),
						r.get(x, y+1), r.get(x-1, y+1), r.get(x-1, y), r.get(x-1, y-1),
					}
					b := 0
					for _, v := range p {
						if v {
							b++
						}
					}
					if b < 2 || b > 6 {
						continue
					}
					a := 0
					for i := 0; i < 8; i++ {
						if !p[i] && p[(i+1)%8] {
							a++
						}
					}
					if a != 1 {
						continue
					}
					if step == 0 {
						if (p[0] && p[2] && p[4]) || (p[2] && p[4] && p[6]) {
							continue
						}
					} else {
						if (p[0] && p[2] && p[6]) || (p[0] && p[4] && p[6]) {
							continue
						}
					}
					del = append(del, y*r.w+x)
				}
			}
			for _, i := range del {
				r.cells[i] = false
			}
			if len(del) > 0 {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

var (
	orthogonal = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	diagonal   = [4][2]int{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}}
)

// neighbours uses m-adjacency: a diagonal cell only counts when no shared
// orthogonal cell connects the pair already.
func (r *raster) neighbours(x, y int) [][2]int {
	out := make([][2]int, 0, 4)
	for _, d := range orthogonal {
		if r.get(x+d[0], y+d[1]) {
			out = append(out, [2]int{x + d[0], y + d[1]})
		}
	}
	for _, d := range diagonal {
		if !r.get(x+d[0], y+d[1]) {
			continue
		}
		if r.get(x+d[0], y) || r.get(x, y+d[1]) {
			continue
		}
		out = append(out, [2]int{x + d[0], y + d[1]})
	}
	return out
}

// trace splits a skeleton into cell polylines running between end and
// junction cells. Closed loops without such cells are traced once.
func (r *raster) trace() [][][2]int {
	visited := make(map[[2]int]bool)
	key := func(a, b [2]int) [2]int {
		ia, ib := a[1]*r.w+a[0], b[1]*r.w+b[0]
		if ia > ib {
			ia, ib = ib, ia
		}
		return [2]int{ia, ib}
	}
	isNode := func(p [2]int) bool {
		return len(r.neighbours(p[0], p[1])) != 2
	}

	walk := func(start, next [2]int) [][2]int {
		line := [][2]int{start, next}
		visited[key(start, next)] = true
		prev, cur := start, next
		for cur != start && !isNode(cur) {
			found := false
			for _, n := range r.neighbours(cur[0], cur[1]) {
				if n == prev || visited[key(cur, n)] {
					continue
				}
				visited[key(cur, n)] = true
				line = append(line, n)
				prev, cur = cur, n
				found = true
				break
			}
			if !found {
				break
			}
		}
		return line
	}

	var lines [][][2]int
	for y := 1; y < r.h-1; y++ {
		for x := 1; x < r.w-1; x++ {
			p := [2]int{x, y}
			if !r.cells[y*r.w+x] || !isNode(p) {
				continue
			}
			for _, n := range r.neighbours(x, y) {
				if visited[key(p, n)] {
					continue
				}
				lines = append(lines, walk(p, n))
			}
		}
	}

	// loops
	for y := 1; y < r.h-1; y++ {
		for x := 1; x < r.w-1; x++ {
			p := [2]int{x, y}
			if !r.cells[y*r.w+x] {
				continue
			}
			for _, n := range r.neighbours(x, y) {
				if visited[key(p, n)] {
					continue
				}
				lines = append(lines, walk(p, n))
			}
		}
	}

	return lines
}

// lines traces the skeleton and converts it to coordinates.
func (r *raster) lines() orb.MultiLineString {
	var out orb.MultiLineString
	for _, cells := range r.trace() {
		if len(cells) < 2 {
			continue
		}
		ls := make(orb.LineString, len(cells))
		for i, c := range cells {
			ls[i] = r.center(c[0], c[1])
		}
		out = append(out, ls)
	}
	return out
}

// components labels 8-connected blobs; 0 means empty, labels start at 1
// in raster scan order.
func (r *raster) components() ([]int, int) {
	labels := make([]int, len(r.cells))
	next := 0
	for i, v := range r.cells {
		if !v || labels[i] != 0 {
			continue
		}
		next++
		labels[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cx, cy := cur%r.w, cur/r.w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if !r.get(nx, ny) {
						continue
					}
					ni := ny*r.w + nx
					if labels[ni] == 0 {
						labels[ni] = next
						queue = append(queue, ni)
					}
				}
			}
		}
	}
	return labels, next
}

// pruneSpurs drops branches shorter than minLength, always keeping the
// longest branch so a short but real line survives.
func pruneSpurs(branches orb.MultiLineString, minLength float64) orb.MultiLineString {
	if len(branches) <= 1 || minLength <= 0 {
		return branches
	}
	longest, longestLen := 0, -1.0
	for i, b := range branches {
		if l := planar.Length(b); l > longestLen {
			longest, longestLen = i, l
		}
	}
	out := make(orb.MultiLineString, 0, len(branches))
	for i, b := range branches {
		if i == longest || planar.Length(b) >= minLength {
			out = append(out, b)
		}
	}
	return out
}
