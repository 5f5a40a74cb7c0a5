package entity

import (
	"errors"
	"fmt"
	"math"
)

// Affine is the six-parameter world-file transform of a tile.
type Affine struct {
	PixelWidth  float64 // A: map units per pixel along x
	PixelHeight float64 // E: negative for north-up rasters
	RotationX   float64 // B
	RotationY   float64 // D
	OriginX     float64 // C: x of the upper-left pixel
	OriginY     float64 // F: y of the upper-left pixel
}

// AffineFromParams builds an Affine from
// [pixel_width, pixel_height, rotation_x, rotation_y, origin_x, origin_y].
func AffineFromParams(params []float64) (Affine, error) {
	if len(params) != 6 {
		return Affine{}, fmt.Errorf("affine needs 6 parameters, got %d", len(params))
	}
	return Affine{
		PixelWidth:  params[0],
		PixelHeight: params[1],
		RotationX:   params[2],
		RotationY:   params[3],
		OriginX:     params[4],
		OriginY:     params[5],
	}, nil
}

// Params returns the parameters in the order accepted by AffineFromParams.
func (a Affine) Params() []float64 {
	return []float64{a.PixelWidth, a.PixelHeight, a.RotationX, a.RotationY, a.OriginX, a.OriginY}
}

// Validate reports whether the transform can georeference points.
func (a Affine) Validate() error {
	for _, v := range a.Params() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("affine contains non-finite values")
		}
	}
	if a.PixelWidth == 0 {
		return errors.New("pixel width is zero")
	}
	return nil
}
