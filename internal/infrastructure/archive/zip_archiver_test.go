package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZipArchiver_Archive(t *testing.T) {
	runDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "output.geojson"), []byte(`{}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "annotated"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "annotated", "t.jpg"), []byte("jpg"), 0o644))

	zipDir := filepath.Join(t.TempDir(), "zips")
	path, size, err := NewZipArchiver(zipDir).Archive(context.Background(), "run-1", runDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(zipDir, "run-1.zip"), path)
	require.Greater(t, size, int64(0))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{"annotated/t.jpg", "output.geojson"}, names)
}

func TestZipArchiver_MissingRunDir(t *testing.T) {
	_, _, err := NewZipArchiver(t.TempDir()).Archive(context.Background(), "x", filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
}
