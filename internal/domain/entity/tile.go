package entity

// Tile is one raster unit of a run with its detections.
type Tile struct {
	ID        string
	Index     int // position in the run's tile order
	Width     int
	Height    int
	Affine    Affine
	ImagePath string
	Instances []DetectionInstance
}
