package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	perrors "ortho-mapper/internal/errors"
	"ortho-mapper/internal/logging"
)

// OutputFileName is the collection file inside a run directory.
const OutputFileName = "output.geojson"

// RunRequest starts one run over a directory of tile detections.
type RunRequest struct {
	ID       string // generated when empty
	InputDir string
	Label    string // defaults to the run timestamp
}

type RunService struct {
	source    port.DetectionSource
	pipeline  *Pipeline
	store     port.ArtifactStore
	archiver  port.Archiver
	renderer  port.TileRenderer
	runs      port.RunRepository
	notifiers []port.RunNotifier
	timeout   time.Duration
	log       *logging.Logger
	now       func() time.Time
}

// RunServiceDeps groups the collaborators of a RunService. Renderer,
// Archiver and Notifiers are optional.
type RunServiceDeps struct {
	Source    port.DetectionSource
	Pipeline  *Pipeline
	Store     port.ArtifactStore
	Archiver  port.Archiver
	Renderer  port.TileRenderer
	Runs      port.RunRepository
	Notifiers []port.RunNotifier
	Timeout   time.Duration
	Logger    *logging.Logger
}

func NewRunService(deps RunServiceDeps) *RunService {
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &RunService{
		source:    deps.Source,
		pipeline:  deps.Pipeline,
		store:     deps.Store,
		archiver:  deps.Archiver,
		renderer:  deps.Renderer,
		runs:      deps.Runs,
		notifiers: deps.Notifiers,
		timeout:   deps.Timeout,
		log:       log,
		now:       time.Now,
	}
}

// AddNotifier registers a notifier for finished runs. It must be called
// before the first Execute.
func (s *RunService) AddNotifier(n port.RunNotifier) {
	s.notifiers = append(s.notifiers, n)
}

// Execute runs the pipeline over req.InputDir and persists its artifacts.
// A cancelled or timed out run returns the context error and publishes nothing.
func (s *RunService) Execute(ctx context.Context, req RunRequest) (*entity.RunRecord, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := s.now().UTC()
	label := req.Label
	if label == "" {
		label = created.Format("20060102150405")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.log.With("run")
	log.Info("run started", "run_id", id, "input", req.InputDir)

	raws, err := s.source.Load(ctx, req.InputDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, perrors.NewSourceFailedError(req.InputDir, err).WithRun(id)
	}

	res, err := s.pipeline.Run(ctx, id, raws)
	if err != nil {
		log.Warn("run aborted", "run_id", id, "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &entity.RunRecord{
		ID:           id,
		Label:        label,
		CreatedAt:    created,
		Status:       res.Outcome,
		TileCount:    len(res.Tiles) + len(res.SkippedTiles),
		FeatureCount: res.FeatureCount(),
		PathCount:    len(res.StitchedPaths),
		IssueCount:   len(res.Issues),
		ClassCounts:  res.ClassCounts,
	}

	record.GeoJSONPath, err = s.store.WriteArtifact(ctx, id, OutputFileName, res.GeoJSON)
	if err != nil {
		return nil, perrors.NewStorageFailedError(id, err)
	}
	s.annotate(ctx, log, id, res)
	if _, err := s.store.PublishLatest(ctx, res.GeoJSON); err != nil {
		return nil, perrors.NewStorageFailedError(id, err)
	}

	if s.archiver != nil {
		path, size, err := s.archiver.Archive(ctx, id, s.store.RunDir(id))
		if err != nil {
			log.Warn("archive failed", "run_id", id, "error", err)
		} else {
			record.ArchivePath, record.ArchiveSize = path, size
		}
	}

	if err := s.runs.Save(ctx, record); err != nil {
		return nil, perrors.NewStorageFailedError(id, err)
	}

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, record); err != nil {
			log.Warn("notify failed", "run_id", id, "error", err)
		}
	}

	log.Info("run finished",
		"run_id", id,
		"status", record.Status,
		"features", record.FeatureCount,
		"paths", record.PathCount,
		"issues", record.IssueCount,
	)
	return record, nil
}

// annotate renders every kept tile that has an image. Failures are logged.
func (s *RunService) annotate(ctx context.Context, log *logging.Logger, runID string, res *entity.RunResult) {
	if s.renderer == nil {
		return
	}
	for i, ov := range Overlays(res) {
		tile := res.Tiles[i]
		if tile.ImagePath == "" {
			continue
		}
		img, err := s.renderer.Annotate(ctx, tile.ImagePath, ov)
		if err != nil {
			log.Warn("annotate failed", "run_id", runID, "tile_id", tile.ID, "error", err)
			continue
		}
		name := fmt.Sprintf("annotated/%s.jpg", tile.ID)
		if _, err := s.store.WriteArtifact(ctx, runID, name, img); err != nil {
			log.Warn("write annotated image failed", "run_id", runID, "tile_id", tile.ID, "error", err)
		}
	}
}

// Latest returns the last published collection, or an empty one when no
// run has been published yet.
func (s *RunService) Latest(ctx context.Context) ([]byte, error) {
	data, err := s.store.ReadLatest(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return s.pipeline.EmptyJSON(), nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RunService) Get(ctx context.Context, id string) (*entity.RunRecord, error) {
	return s.runs.Get(ctx, id)
}

func (s *RunService) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	return s.runs.List(ctx, limit)
}
