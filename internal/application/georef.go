package app

import (
	"github.com/paulmach/orb"

	"ortho-mapper/internal/domain/entity"
)

// Georeference maps a tile pixel to map coordinates.
//
// The y axis is scaled by -pixel_width, not by pixel_height: tiles are
// treated as north-up with square pixels, and the rotation terms are ignored.
func Georeference(a entity.Affine, p orb.Point) orb.Point {
	return orb.Point{
		p[0]*a.PixelWidth + a.OriginX,
		p[1]*(-a.PixelWidth) + a.OriginY,
	}
}

// GeoreferenceLine applies Georeference to every vertex.
func GeoreferenceLine(a entity.Affine, ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = Georeference(a, p)
	}
	return out
}

// PixelOf inverts Georeference.
func PixelOf(a entity.Affine, g orb.Point) orb.Point {
	return orb.Point{
		(g[0] - a.OriginX) / a.PixelWidth,
		(a.OriginY - g[1]) / a.PixelWidth,
	}
}

// Reproject moves a pixel of one tile into the pixel frame of another.
func Reproject(from, to entity.Affine, p orb.Point) orb.Point {
	return PixelOf(to, Georeference(from, p))
}
