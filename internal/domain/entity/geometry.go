package entity

import "github.com/paulmach/orb"

// Segment is a straight piece of a centerline.
type Segment struct {
	A orb.Point
	B orb.Point
}

// GeometryRecord holds the geometry derived from one detection instance.
type GeometryRecord struct {
	TileID        string
	InstanceIndex int
	ClassLabel    string
	Center        orb.Point // bbox midpoint, pixels
	AreaPx        float64
	AreaPhysical  float64
	Segments      []Segment // path instances only
}

// IsPath reports whether the record came from a path instance.
func (r GeometryRecord) IsPath() bool {
	return IsPathLabel(r.ClassLabel)
}
