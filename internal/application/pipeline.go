package app

import (
	"context"
	"strings"
	"sync"

	"ortho-mapper/internal/domain/entity"
	perrors "ortho-mapper/internal/errors"
	"ortho-mapper/internal/logging"
)

// PipelineConfig holds the run-wide knobs of the pipeline.
type PipelineConfig struct {
	Workers           int
	ProximityDivisor  float64
	DefaultTileHeight int
}

// Pipeline turns the detections of a set of tiles into one feature collection.
type Pipeline struct {
	cfg       PipelineConfig
	adapter   *TileAdapter
	extractor *GeometryExtractor
	stitcher  *PathStitcher
	assembler *Assembler
	log       *logging.Logger
}

type tileOutput struct {
	tile    entity.Tile
	records []entity.GeometryRecord
	points  []entity.GeoFeature
	skipped bool
	issues  []error
}

func NewPipeline(cfg PipelineConfig, adapter *TileAdapter, extractor *GeometryExtractor, stitcher *PathStitcher, assembler *Assembler, log *logging.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ProximityDivisor <= 0 {
		cfg.ProximityDivisor = 30
	}
	if cfg.DefaultTileHeight <= 0 {
		cfg.DefaultTileHeight = 640
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{
		cfg:       cfg,
		adapter:   adapter,
		extractor: extractor,
		stitcher:  stitcher,
		assembler: assembler,
		log:       log,
	}
}

// Run processes all tiles and assembles the result. The returned error is
// non-nil only when ctx is done; every other failure is reported through the
// result's Outcome and Issues.
func (p *Pipeline) Run(ctx context.Context, runID string, raws []entity.RawTile) (*entity.RunResult, error) {
	outputs, err := p.processTiles(ctx, raws)
	if err != nil {
		return nil, err
	}

	res := &entity.RunResult{
		Tiles:       make([]entity.Tile, 0, len(outputs)),
		Records:     make([][]entity.GeometryRecord, 0, len(outputs)),
		ClassCounts: make(map[string]int),
		Outcome:     entity.OutcomeSuccess,
	}
	var points []entity.GeoFeature
	for _, out := range outputs {
		res.Issues = append(res.Issues, out.issues...)
		if out.skipped {
			res.SkippedTiles = append(res.SkippedTiles, out.tile.ID)
			continue
		}
		res.Tiles = append(res.Tiles, out.tile)
		res.Records = append(res.Records, out.records)
		points = append(points, out.points...)
		for class, n := range ClassCounts(out.records) {
			res.ClassCounts[class] += n
		}
	}

	paths, err := p.stitch(ctx, res)
	if err != nil {
		return nil, err
	}

	assembly := p.assembler.Assemble(points, paths)
	res.Issues = append(res.Issues, assembly.Issues...)
	data, encErr := p.assembler.Encode(assembly.Collection)
	if encErr != nil {
		failure := perrors.NewAssemblyFailure(encErr).WithRun(runID)
		p.log.Error("assembly failed, emitting empty collection", "run_id", runID, "error", encErr)
		res.Issues = append(res.Issues, failure)
		res.Features = nil
		res.GeoJSON = p.assembler.EmptyJSON()
		res.Outcome = entity.OutcomeFailed
		return res, nil
	}
	res.Features = assembly.Features
	res.GeoJSON = data

	if len(res.Issues) > 0 {
		res.Outcome = entity.OutcomeDegraded
	}
	for _, issue := range res.Issues {
		p.log.Warn("run issue", "run_id", runID, "code", perrors.CodeOf(issue), "error", issue)
	}
	p.log.Info("run assembled",
		"run_id", runID,
		"tiles", len(res.Tiles),
		"skipped", len(res.SkippedTiles),
		"features", len(res.Features),
		"paths", len(res.StitchedPaths),
		"outcome", res.Outcome,
	)
	return res, nil
}

// processTiles runs the per-tile stage on a worker pool and returns once
// every tile is done.
func (p *Pipeline) processTiles(ctx context.Context, raws []entity.RawTile) ([]tileOutput, error) {
	outputs := make([]tileOutput, len(raws))
	jobs := make(chan int)

	workers := p.cfg.Workers
	if workers > len(raws) {
		workers = len(raws)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outputs[i] = p.processTile(i, raws[i])
			}
		}()
	}

feed:
	for i := range raws {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (p *Pipeline) processTile(index int, raw entity.RawTile) tileOutput {
	adapted := p.adapter.Adapt(index, raw)
	out := tileOutput{tile: adapted.Tile, issues: adapted.Issues}

	affineErr := adapted.AffineErr
	if affineErr == nil {
		affineErr = adapted.Tile.Affine.Validate()
	}
	if affineErr != nil {
		out.skipped = true
		out.issues = append(out.issues, perrors.NewGeoreferencingError(adapted.Tile.ID, affineErr))
		return out
	}

	geom := p.extractor.Extract(adapted.Tile)
	out.records = geom.Records
	out.issues = append(out.issues, geom.Issues...)
	for _, rec := range geom.Records {
		if rec.IsPath() {
			continue
		}
		out.points = append(out.points, entity.NewPointFeature(
			Georeference(adapted.Tile.Affine, rec.Center),
			rec.ClassLabel,
			adapted.Tile.ID,
			rec.AreaPhysical,
		))
	}
	return out
}

// stitch gathers path segments of all kept tiles in the frame of the first
// kept tile, stitches them and georeferences the result.
func (p *Pipeline) stitch(ctx context.Context, res *entity.RunResult) ([]entity.GeoFeature, error) {
	if len(res.Tiles) == 0 {
		return nil, ctx.Err()
	}
	ref := res.Tiles[0].Affine

	var segments []entity.PathSegment
	maxHeight := 0
	for i, tile := range res.Tiles {
		if tile.Height > maxHeight {
			maxHeight = tile.Height
		}
		for _, rec := range res.Records[i] {
			if !rec.IsPath() {
				continue
			}
			for _, s := range rec.Segments {
				segments = append(segments, entity.PathSegment{
					Segment: entity.Segment{
						A: Reproject(tile.Affine, ref, s.A),
						B: Reproject(tile.Affine, ref, s.B),
					},
					TileID:        tile.ID,
					TileIndex:     tile.Index,
					InstanceIndex: rec.InstanceIndex,
					AreaPhysical:  rec.AreaPhysical,
				})
			}
		}
	}
	if maxHeight <= 0 {
		maxHeight = p.cfg.DefaultTileHeight
	}
	threshold := float64(maxHeight) / p.cfg.ProximityDivisor

	stitched, err := p.stitcher.Stitch(ctx, segments, threshold)
	if err != nil {
		return nil, err
	}
	res.StitchedPaths = stitched.Paths
	res.Issues = append(res.Issues, stitched.Issues...)

	features := make([]entity.GeoFeature, 0, len(stitched.Paths))
	for _, sp := range stitched.Paths {
		features = append(features, entity.NewLineFeature(
			GeoreferenceLine(ref, sp.Line),
			sp.ClassLabel,
			strings.Join(sp.TileIDs, ", "),
			sp.AreaPhysical,
		))
	}
	return features, nil
}

// Overlays returns what the renderer draws for each kept tile, in tile pixels.
func Overlays(res *entity.RunResult) []entity.TileOverlay {
	out := make([]entity.TileOverlay, 0, len(res.Tiles))
	for i, tile := range res.Tiles {
		ov := entity.TileOverlay{TileID: tile.ID, ClassCounts: ClassCounts(res.Records[i])}
		for _, rec := range res.Records[i] {
			if rec.IsPath() {
				ov.Segments = append(ov.Segments, rec.Segments...)
				continue
			}
			ov.Centers = append(ov.Centers, rec.Center)
		}
		out = append(out, ov)
	}
	return out
}

// EmptyJSON is the collection published when there is nothing to report.
func (p *Pipeline) EmptyJSON() []byte {
	return p.assembler.EmptyJSON()
}
