package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	"ortho-mapper/internal/logging"
)

var (
	worldFileExts = []string{".jgw", ".pgw", ".tfw"}
	imageExts     = []string{".png", ".jpg", ".jpeg"}
)

// FSSource reads tile detections from a directory: one JSON document per
// tile, optionally accompanied by the tile image and its world file.
type FSSource struct {
	log *logging.Logger
}

func NewFSSource(log *logging.Logger) *FSSource {
	if log == nil {
		log = logging.Discard()
	}
	return &FSSource{log: log}
}

// Load returns the tiles in lexicographic order of their file names.
func (s *FSSource) Load(ctx context.Context, dir string) ([]entity.RawTile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	sort.Strings(paths)

	tiles := make([]entity.RawTile, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tile, err := s.loadTile(path)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile)
	}
	s.log.Info("tiles loaded", "dir", dir, "count", len(tiles))
	return tiles, nil
}

func (s *FSSource) loadTile(path string) (entity.RawTile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.RawTile{}, err
	}
	var tile entity.RawTile
	if err := json.Unmarshal(data, &tile); err != nil {
		return entity.RawTile{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if img := firstExisting(stem, imageExts); img != "" {
		tile.ImagePath = img
		if tile.TileID == "" {
			tile.TileID = filepath.Base(img)
		}
	}
	if tile.TileID == "" {
		tile.TileID = filepath.Base(stem)
	}

	if len(tile.Affine) == 0 {
		if wf := firstExisting(stem, worldFileExts); wf != "" {
			params, err := readWorldFile(wf)
			if err != nil {
				// left empty; the pipeline reports the tile as not georeferenced
				s.log.Warn("bad world file", "path", wf, "error", err)
			} else {
				tile.Affine = params
			}
		}
	}
	return tile, nil
}

func readWorldFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseWorldFile(f)
}

func firstExisting(stem string, exts []string) string {
	for _, ext := range exts {
		p := stem + ext
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

var _ port.DetectionSource = (*FSSource)(nil)
