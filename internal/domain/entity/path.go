package entity

import "github.com/paulmach/orb"

// PathSegment is a centerline segment in the run's shared pixel frame.
type PathSegment struct {
	Segment
	TileID        string
	TileIndex     int
	InstanceIndex int
	AreaPhysical  float64
}

// StitchedPath is one merged polyline produced for a group of segments.
type StitchedPath struct {
	Line         orb.LineString // shared pixel frame
	ClassLabel   string
	AreaPhysical float64
	TileIDs      []string
}
