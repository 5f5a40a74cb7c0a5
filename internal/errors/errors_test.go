package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineErrorMessageAndUnwrap(t *testing.T) {
	cause := stderrors.New("nan coordinate")
	err := NewInstanceGeometryError("tile_1.png", 3, cause)

	require.Equal(t, ErrorInstanceGeometry, err.Code)
	require.Contains(t, err.Error(), "instance 3")
	require.Contains(t, err.Error(), "nan coordinate")
	require.ErrorIs(t, err, cause)
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("tile stage: %w", NewGeoreferencingError("t", stderrors.New("zero pixel width")))

	require.True(t, HasCode(err, ErrorGeoreferencing))
	require.False(t, HasCode(err, ErrorStitching))
	require.Equal(t, ErrorGeoreferencing, CodeOf(err))
	require.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
}

func TestToMap(t *testing.T) {
	err := NewStitchingError(2, stderrors.New("spline")).WithRun("run-1")
	m := err.ToMap()

	require.Equal(t, "STITCHING", m["error_code"])
	require.Equal(t, "run-1", m["run_id"])
	require.Equal(t, 2, m["group"])
	require.Equal(t, "spline", m["cause"])
	require.NotContains(t, m, "tile_id")
}
