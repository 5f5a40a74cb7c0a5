package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ortho-mapper/internal/domain/port"
)

// ZipArchiver packs run directories into <dir>/<run_id>.zip.
type ZipArchiver struct {
	dir string
}

func NewZipArchiver(dir string) *ZipArchiver {
	return &ZipArchiver{dir: dir}
}

// Archive zips every file of runDir with paths relative to it, so the
// collection sits at the archive root.
func (a *ZipArchiver) Archive(ctx context.Context, runID, runDir string) (string, int64, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(a.dir, runID+".zip")
	tmp, err := os.CreateTemp(a.dir, "."+runID+".*.zip")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	zw := zip.NewWriter(tmp)
	walkErr := filepath.WalkDir(runDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(runDir, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		tmp.Close()
		return "", 0, fmt.Errorf("archive run %s: %w", runID, walkErr)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}
	return path, info.Size(), nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

var _ port.Archiver = (*ZipArchiver)(nil)
