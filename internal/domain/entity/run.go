package entity

import (
	"time"

	"github.com/paulmach/orb"
)

// Outcome is the status of a component or of a whole run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Worse returns the more severe of two outcomes.
func (o Outcome) Worse(other Outcome) Outcome {
	rank := map[Outcome]int{OutcomeSuccess: 0, OutcomeDegraded: 1, OutcomeFailed: 2}
	if rank[other] > rank[o] {
		return other
	}
	return o
}

// RunResult is the in-memory output of one pipeline invocation.
type RunResult struct {
	Tiles         []Tile
	Records       [][]GeometryRecord // per tile, aligned with Tiles
	SkippedTiles  []string
	StitchedPaths []StitchedPath
	Features      []GeoFeature // in id order
	GeoJSON       []byte
	ClassCounts   map[string]int
	Outcome       Outcome
	Issues        []error
}

// FeatureCount returns the number of emitted features.
func (r *RunResult) FeatureCount() int {
	return len(r.Features)
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	ID           string         `json:"id" db:"id"`
	Label        string         `json:"label" db:"label"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	Status       Outcome        `json:"status" db:"status"`
	TileCount    int            `json:"tile_count" db:"tile_count"`
	FeatureCount int            `json:"feature_count" db:"feature_count"`
	PathCount    int            `json:"path_count" db:"path_count"`
	IssueCount   int            `json:"issue_count" db:"issue_count"`
	ClassCounts  map[string]int `json:"class_counts" db:"-"`
	GeoJSONPath  string         `json:"geojson_path" db:"geojson_path"`
	ArchivePath  string         `json:"archive_path" db:"archive_path"`
	ArchiveSize  int64          `json:"archive_size_bytes" db:"archive_size"`
}

// TileOverlay is what gets drawn on an annotated tile image.
type TileOverlay struct {
	TileID      string
	Centers     []orb.Point
	Segments    []Segment
	ClassCounts map[string]int
}
