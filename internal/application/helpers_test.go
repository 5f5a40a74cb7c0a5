package app

import (
	"github.com/paulmach/orb"

	"ortho-mapper/internal/domain/entity"
)

const (
	testCollection = "single-tree"
	testCRS        = "urn:ogc:def:crs:EPSG::3857"
)

func newTestPipeline(cleaner *PathCleaner) *Pipeline {
	return NewPipeline(
		PipelineConfig{Workers: 4, ProximityDivisor: 30, DefaultTileHeight: 640},
		NewTileAdapter(),
		NewGeometryExtractor(0.15, false, NewCenterlineExtractor(2, 5, 250000)),
		NewPathStitcher(50, 4),
		NewAssembler(testCollection, testCRS, cleaner, nil),
		nil,
	)
}

func rect(x0, y0, x1, y1 float64) [][]float64 {
	return [][]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func detection(class string, poly [][]float64, bbox ...float64) entity.RawDetection {
	return entity.RawDetection{ClassLabel: class, Polygon: poly, BBox: bbox}
}

func ringOf(poly [][]float64) orb.Ring {
	r := make(orb.Ring, len(poly))
	for i, p := range poly {
		r[i] = orb.Point{p[0], p[1]}
	}
	return r
}
