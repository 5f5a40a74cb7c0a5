package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	perrors "ortho-mapper/internal/errors"
	"ortho-mapper/internal/infrastructure/archive"
	"ortho-mapper/internal/infrastructure/publish"
	"ortho-mapper/internal/infrastructure/source"
	"ortho-mapper/internal/infrastructure/storage"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []*entity.RunRecord
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, rec *entity.RunRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
	return n.err
}

type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) Annotate(ctx context.Context, imagePath string, overlay entity.TileOverlay) ([]byte, error) {
	r.calls++
	if overlay.TileID == "broken" {
		return nil, errors.New("cannot decode image")
	}
	return []byte("jpeg:" + overlay.TileID), nil
}

type blockingSource struct{}

func (blockingSource) Load(ctx context.Context, dir string) ([]entity.RawTile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type runFixture struct {
	svc      *RunService
	store    *publish.FileStore
	runs     *storage.MemoryRunRepository
	notifier *recordingNotifier
	root     string
	latest   string
}

func newRunFixture(t *testing.T, src port.DetectionSource) *runFixture {
	t.Helper()
	root := t.TempDir()
	f := &runFixture{
		store:    publish.NewFileStore(filepath.Join(root, "runs"), filepath.Join(root, "latest.geojson")),
		runs:     storage.NewMemoryRunRepository(),
		notifier: &recordingNotifier{},
		root:     root,
		latest:   filepath.Join(root, "latest.geojson"),
	}
	if src == nil {
		src = source.NewFSSource(nil)
	}
	f.svc = NewRunService(RunServiceDeps{
		Source:   src,
		Pipeline: newTestPipeline(nil),
		Store:    f.store,
		Archiver: archive.NewZipArchiver(filepath.Join(root, "archives")),
		Runs:     f.runs,
		Timeout:  time.Minute,
	})
	f.svc.AddNotifier(f.notifier)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return f
}

func writeTiles(t *testing.T, tiles ...entity.RawTile) string {
	t.Helper()
	dir := t.TempDir()
	for _, tile := range tiles {
		data, err := json.Marshal(tile)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, tile.TileID+".json"), data, 0o644))
	}
	return dir
}

func TestRunService_LatestBeforeFirstRun(t *testing.T) {
	f := newRunFixture(t, nil)
	data, err := f.svc.Latest(context.Background())
	require.NoError(t, err)
	doc := decodeCollection(t, data)
	require.Equal(t, "FeatureCollection", doc.Type)
	require.Empty(t, doc.Features)
}

func TestRunService_ExecutePublishesArtifacts(t *testing.T) {
	f := newRunFixture(t, nil)
	dir := writeTiles(t, treeTile("t1", []float64{0.15, -0.15, 0, 0, 1000, 2000}))

	rec, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-1", InputDir: dir})
	require.NoError(t, err)
	require.Equal(t, "run-1", rec.ID)
	require.Equal(t, "20240501123000", rec.Label)
	require.Equal(t, entity.OutcomeSuccess, rec.Status)
	require.Equal(t, 1, rec.TileCount)
	require.Equal(t, 1, rec.FeatureCount)
	require.Equal(t, map[string]int{"single-tree": 1}, rec.ClassCounts)

	output, err := os.ReadFile(rec.GeoJSONPath)
	require.NoError(t, err)
	require.Contains(t, string(output), `"polygon_area":"4.0 m²"`)

	latest, err := f.svc.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, output, latest)

	require.FileExists(t, rec.ArchivePath)
	require.Positive(t, rec.ArchiveSize)

	stored, err := f.svc.Get(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, rec.GeoJSONPath, stored.GeoJSONPath)

	list, err := f.svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.Len(t, f.notifier.records, 1)
	require.Equal(t, "run-1", f.notifier.records[0].ID)
}

func TestRunService_GeneratesIDAndKeepsLabel(t *testing.T) {
	f := newRunFixture(t, nil)
	dir := writeTiles(t, treeTile("t1", []float64{0.15, -0.15, 0, 0, 1000, 2000}))

	rec, err := f.svc.Execute(context.Background(), RunRequest{InputDir: dir, Label: "field-7"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "field-7", rec.Label)
}

func TestRunService_NotifierFailureDoesNotFailRun(t *testing.T) {
	f := newRunFixture(t, nil)
	f.notifier.err = errors.New("broker down")
	dir := writeTiles(t, treeTile("t1", []float64{0.15, -0.15, 0, 0, 1000, 2000}))

	rec, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-n", InputDir: dir})
	require.NoError(t, err)
	require.Equal(t, entity.OutcomeSuccess, rec.Status)
}

func TestRunService_DegradedRunIsStillPublished(t *testing.T) {
	f := newRunFixture(t, nil)
	good := []float64{0.15, -0.15, 0, 0, 1000, 2000}
	dir := writeTiles(t,
		treeTile("t0", good),
		treeTile("t1", []float64{0.15, -0.15, 0, 0, 1000}),
		treeTile("t2", good),
	)

	rec, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-d", InputDir: dir})
	require.NoError(t, err)
	require.Equal(t, entity.OutcomeDegraded, rec.Status)
	require.Equal(t, 3, rec.TileCount)
	require.Equal(t, 2, rec.FeatureCount)
	require.Equal(t, 1, rec.IssueCount)
	require.FileExists(t, f.latest)
}

func TestRunService_AnnotatesTilesWithImages(t *testing.T) {
	f := newRunFixture(t, nil)
	renderer := &fakeRenderer{}
	f.svc.renderer = renderer

	dir := writeTiles(t,
		treeTile("t0", []float64{0.15, -0.15, 0, 0, 1000, 2000}),
		treeTile("broken", []float64{0.15, -0.15, 0, 0, 1000, 2000}),
		treeTile("noimage", []float64{0.15, -0.15, 0, 0, 1000, 2000}),
	)
	for _, name := range []string{"t0.png", "broken.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644))
	}

	_, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-img", InputDir: dir})
	require.NoError(t, err)
	require.Equal(t, 2, renderer.calls)

	img, err := os.ReadFile(filepath.Join(f.store.RunDir("run-img"), "annotated", "t0.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg:t0", string(img))
	require.NoFileExists(t, filepath.Join(f.store.RunDir("run-img"), "annotated", "broken.jpg"))
}

func TestRunService_MissingInputDir(t *testing.T) {
	f := newRunFixture(t, nil)
	_, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-x", InputDir: filepath.Join(f.root, "missing")})
	require.Error(t, err)
	require.True(t, perrors.HasCode(err, perrors.ErrorSourceFailed))
	require.NoFileExists(t, f.latest)
}

func TestRunService_TimeoutPublishesNothing(t *testing.T) {
	f := newRunFixture(t, blockingSource{})
	f.svc.timeout = 20 * time.Millisecond

	_, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-t", InputDir: "ignored"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoFileExists(t, f.latest)
	require.Empty(t, f.notifier.records)

	_, err = f.svc.Get(context.Background(), "run-t")
	require.ErrorIs(t, err, port.ErrRunNotFound)
}

func TestRunService_CancelledRunKeepsPreviousLatest(t *testing.T) {
	f := newRunFixture(t, nil)
	dir := writeTiles(t, treeTile("t1", []float64{0.15, -0.15, 0, 0, 1000, 2000}))
	_, err := f.svc.Execute(context.Background(), RunRequest{ID: "run-1", InputDir: dir})
	require.NoError(t, err)
	before, err := os.ReadFile(f.latest)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.svc.Execute(ctx, RunRequest{ID: "run-2", InputDir: writeTiles(t, pathTiles()...)})
	require.ErrorIs(t, err, context.Canceled)

	after, err := os.ReadFile(f.latest)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
