package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ortho-mapper/internal/domain/port"
)

// FileStore keeps run artifacts under a root directory and publishes the
// latest collection to a fixed path. Every write goes through a temp file
// and a rename, so readers never see a partial file.
type FileStore struct {
	root   string
	latest string
}

func NewFileStore(root, latest string) *FileStore {
	return &FileStore{root: root, latest: latest}
}

func (s *FileStore) RunDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *FileStore) WriteArtifact(ctx context.Context, runID, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact name %q escapes the run directory", name)
	}
	path := filepath.Join(s.RunDir(runID), clean)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileStore) PublishLatest(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := WriteFileAtomic(s.latest, data); err != nil {
		return "", err
	}
	return s.latest, nil
}

func (s *FileStore) ReadLatest(ctx context.Context) ([]byte, error) {
	return os.ReadFile(s.latest)
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

var _ port.ArtifactStore = (*FileStore)(nil)
