package publish

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_WriteArtifact(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, filepath.Join(root, "latest.geojson"))

	path, err := store.WriteArtifact(context.Background(), "run-1", "annotated/t.jpg", []byte("img"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "run-1", "annotated", "t.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "img", string(data))
}

func TestFileStore_RejectsEscapingNames(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, filepath.Join(root, "latest.geojson"))

	_, err := store.WriteArtifact(context.Background(), "run-1", "../../etc/passwd", []byte("x"))
	require.Error(t, err)
}

func TestFileStore_PublishLatestReplaces(t *testing.T) {
	root := t.TempDir()
	latest := filepath.Join(root, "out", "latest.geojson")
	store := NewFileStore(root, latest)
	ctx := context.Background()

	_, err := store.ReadLatest(ctx)
	require.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = store.PublishLatest(ctx, []byte("first"))
	require.NoError(t, err)
	_, err = store.PublishLatest(ctx, []byte("second"))
	require.NoError(t, err)

	data, err := store.ReadLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(latest))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_CancelledContext(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, filepath.Join(root, "latest.geojson"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.PublishLatest(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(filepath.Join(root, "latest.geojson"))
	require.True(t, os.IsNotExist(err))
}
