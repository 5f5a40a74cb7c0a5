package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAffineFromParams(t *testing.T) {
	a, err := AffineFromParams([]float64{0.5, -0.5, 0, 0, 1000, 2000})
	require.NoError(t, err)
	require.Equal(t, 0.5, a.PixelWidth)
	require.Equal(t, -0.5, a.PixelHeight)
	require.Equal(t, 2000.0, a.OriginY)
	require.Equal(t, []float64{0.5, -0.5, 0, 0, 1000, 2000}, a.Params())
	require.NoError(t, a.Validate())
}

func TestAffineFromParamsWrongLength(t *testing.T) {
	_, err := AffineFromParams([]float64{1, 2, 3})
	require.Error(t, err)
}

func TestAffineValidate(t *testing.T) {
	require.Error(t, Affine{}.Validate())
	require.Error(t, Affine{PixelWidth: 1, OriginX: math.NaN()}.Validate())
	require.Error(t, Affine{PixelWidth: math.Inf(1)}.Validate())
	require.NoError(t, Affine{PixelWidth: 0.15, PixelHeight: -0.15}.Validate())
}
