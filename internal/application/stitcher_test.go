package app

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"ortho-mapper/internal/domain/entity"
	perrors "ortho-mapper/internal/errors"
)

func seg(tile, inst int, ax, ay, bx, by float64) entity.PathSegment {
	return entity.PathSegment{
		Segment:       entity.Segment{A: orb.Point{ax, ay}, B: orb.Point{bx, by}},
		TileID:        []string{"a", "b", "c"}[tile],
		TileIndex:     tile,
		InstanceIndex: inst,
		AreaPhysical:  float64(10 * (tile + 1)),
	}
}

func TestGroupSegments_TransitiveClosure(t *testing.T) {
	segs := []entity.PathSegment{
		seg(0, 0, 0, 0, 10, 0),
		seg(0, 1, 15, 0, 25, 0),
		seg(1, 0, 100, 100, 110, 100),
		seg(1, 1, 30, 0, 40, 0),
	}
	groups := GroupSegments(segs, 6)
	require.Equal(t, [][]int{{0, 1, 3}, {2}}, groups)
}

func TestGroupSegments_ThresholdIsInclusive(t *testing.T) {
	segs := []entity.PathSegment{seg(0, 0, 0, 0, 10, 0), seg(0, 1, 13, 4, 20, 4)}
	require.Len(t, GroupSegments(segs, 5), 1)
	require.Len(t, GroupSegments(segs, 4.99), 2)
}

func TestOrderPoints_GreedyFromSmallest(t *testing.T) {
	got := OrderPoints([]orb.Point{{5, 0}, {0, 0}, {10, 0}, {2, 0}})
	require.Equal(t, []orb.Point{{0, 0}, {2, 0}, {5, 0}, {10, 0}}, got)
}

func TestOrderPoints_TiesGoToLowestIndex(t *testing.T) {
	got := OrderPoints([]orb.Point{{0, 0}, {1, 1}, {1, -1}})
	require.Equal(t, []orb.Point{{0, 0}, {1, 1}, {1, -1}}, got)

	// equal x: smaller y starts
	got = OrderPoints([]orb.Point{{0, 5}, {0, 1}})
	require.Equal(t, []orb.Point{{0, 1}, {0, 5}}, got)
}

func TestFilterZigZag(t *testing.T) {
	pts := []orb.Point{{0, 0}, {100, 0}, {20, 0}, {60, 0}, {200, 0}}
	require.Equal(t, []orb.Point{{0, 0}, {100, 0}, {60, 0}, {200, 0}}, FilterZigZag(pts, 50))
}

func TestFilterZigZag_DegenerateDirectionUsesLongerAxis(t *testing.T) {
	// first and last coincide; y extent dominates
	pts := []orb.Point{{0, 0}, {0, 100}, {0, 10}, {0, 0}}
	require.Equal(t, []orb.Point{{0, 0}, {0, 100}}, FilterZigZag(pts, 50))
}

func TestSmoothLine_InterpolatesInputPoints(t *testing.T) {
	pts := []orb.Point{{0, 0}, {10, 5}, {20, 0}}
	ls, err := SmoothLine(pts, 4)
	require.NoError(t, err)
	require.Len(t, ls, 9)
	require.Equal(t, pts[0], ls[0])
	require.Equal(t, pts[1], ls[4])
	require.Equal(t, pts[2], ls[8])
	for _, p := range ls {
		require.False(t, math.IsNaN(p[0]) || math.IsNaN(p[1]))
	}
}

func TestSmoothLine_SmallInputs(t *testing.T) {
	ls, err := SmoothLine([]orb.Point{{1, 1}, {1, 1}}, 4)
	require.NoError(t, err)
	require.Nil(t, ls)

	ls, err = SmoothLine([]orb.Point{{0, 0}, {0, 0}, {3, 4}}, 4)
	require.NoError(t, err)
	require.Equal(t, orb.LineString{{0, 0}, {3, 4}}, ls)
}

func TestPathStitcher_MergesAcrossTiles(t *testing.T) {
	segs := []entity.PathSegment{
		seg(0, 0, 10, 45, 50, 45),
		seg(0, 0, 50, 45, 90, 45),
		seg(1, 0, 108, 45, 155, 46),
	}
	res, err := NewPathStitcher(50, 4).Stitch(context.Background(), segs, 30)
	require.NoError(t, err)
	require.Empty(t, res.Issues)
	require.Len(t, res.Paths, 1)

	p := res.Paths[0]
	require.Equal(t, "path", p.ClassLabel)
	require.Equal(t, []string{"a", "b"}, p.TileIDs)
	require.InDelta(t, 30.0, p.AreaPhysical, 1e-9)
	require.Equal(t, orb.Point{10, 45}, p.Line[0])
	require.Equal(t, orb.Point{155, 46}, p.Line[len(p.Line)-1])
}

func TestPathStitcher_GroupWithOnePointYieldsNothing(t *testing.T) {
	segs := []entity.PathSegment{seg(0, 0, 5, 5, 5, 5)}
	res, err := NewPathStitcher(50, 4).Stitch(context.Background(), segs, 10)
	require.NoError(t, err)
	require.Empty(t, res.Paths)
	require.Empty(t, res.Issues)
}

func TestPathStitcher_BadGroupIsDroppedOthersContinue(t *testing.T) {
	segs := []entity.PathSegment{
		seg(0, 0, math.NaN(), 0, 1000, 1000),
		seg(1, 0, 0, 0, 10, 0),
	}
	res, err := NewPathStitcher(50, 4).Stitch(context.Background(), segs, 5)
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	require.Len(t, res.Issues, 1)
	require.True(t, perrors.HasCode(res.Issues[0], perrors.ErrorStitching))
}

func TestPathStitcher_Deterministic(t *testing.T) {
	segs := []entity.PathSegment{
		seg(0, 0, 0, 0, 7, 3),
		seg(0, 1, 7, 3, 15, -2),
		seg(1, 0, 15, -2, 30, 4),
		seg(1, 1, 200, 200, 240, 210),
		seg(2, 0, 241, 211, 290, 260),
	}
	s := NewPathStitcher(50, 4)
	first, err := s.Stitch(context.Background(), segs, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Stitch(context.Background(), segs, 10)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	require.Len(t, first.Paths, 2)
}

func TestPathStitcher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPathStitcher(50, 4).Stitch(ctx, []entity.PathSegment{seg(0, 0, 0, 0, 1, 1)}, 5)
	require.ErrorIs(t, err, context.Canceled)
}
