package port

import "context"

// ArtifactStore keeps per-run output files and the published latest collection
type ArtifactStore interface {
	// RunDir returns the directory that holds a run's artifacts
	RunDir(runID string) string

	// WriteArtifact atomically writes name under the run directory and returns its path
	WriteArtifact(ctx context.Context, runID, name string, data []byte) (string, error)

	// PublishLatest atomically replaces the latest collection
	PublishLatest(ctx context.Context, data []byte) (string, error)

	// ReadLatest returns the latest published collection
	ReadLatest(ctx context.Context) ([]byte, error)
}

// Archiver packs a run directory into a single downloadable file
type Archiver interface {
	// Archive returns the archive path and its size in bytes
	Archive(ctx context.Context, runID, runDir string) (string, int64, error)
}
