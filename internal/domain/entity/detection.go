package entity

import (
	"strings"

	"github.com/paulmach/orb"
)

// RawDetection is one instance as produced by the segmentation model.
type RawDetection struct {
	ClassLabel string      `json:"class_label"`
	Polygon    [][]float64 `json:"polygon"`
	BBox       []float64   `json:"bbox"`
}

// RawTile is one tile's inference output together with its georeferencing.
type RawTile struct {
	TileID     string         `json:"tile_id"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Affine     []float64      `json:"affine"`
	Detections []RawDetection `json:"detections"`
	ImagePath  string         `json:"-"`
}

// BBox is an axis-aligned pixel box.
type BBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Center returns the integer midpoint of the box.
func (b BBox) Center() (x, y int) {
	return floorDiv(int(b.XMin)+int(b.XMax), 2), floorDiv(int(b.YMin)+int(b.YMax), 2)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// DetectionInstance is a validated detection within one tile.
type DetectionInstance struct {
	Index      int // position in the tile's raw detection list
	ClassLabel string
	Polygon    orb.Ring
	BBox       BBox
}

// IsPath reports whether the instance is a path-like class.
func (d DetectionInstance) IsPath() bool {
	return IsPathLabel(d.ClassLabel)
}

// IsPathLabel reports whether a class label denotes a path.
func IsPathLabel(label string) bool {
	return strings.Contains(label, "path")
}
