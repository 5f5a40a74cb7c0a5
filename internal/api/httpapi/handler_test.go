package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	perrors "ortho-mapper/internal/errors"
)

type fakeRunService struct {
	records   map[string]*entity.RunRecord
	latest    []byte
	execErr   error
	executed  []app.RunRequest
	listLimit int
}

func (f *fakeRunService) Execute(ctx context.Context, req app.RunRequest) (*entity.RunRecord, error) {
	f.executed = append(f.executed, req)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &entity.RunRecord{ID: "run-1", Label: req.Label, Status: entity.OutcomeSuccess}, nil
}

func (f *fakeRunService) Get(ctx context.Context, id string) (*entity.RunRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, port.ErrRunNotFound
	}
	return rec, nil
}

func (f *fakeRunService) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	f.listLimit = limit
	var out []*entity.RunRecord
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRunService) Latest(ctx context.Context) ([]byte, error) {
	return f.latest, nil
}

type fakeQueue struct {
	requests []app.RunRequest
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, req app.RunRequest) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.requests = append(q.requests, req)
	return "queued-1", nil
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	rr := serve(NewHandler(&fakeRunService{}, nil, nil), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCreateRun_Inline(t *testing.T) {
	runs := &fakeRunService{}
	rr := serve(NewHandler(runs, nil, nil), http.MethodPost, "/runs", `{"input_dir":"/data/tiles","label":"field"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var rec entity.RunRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	require.Equal(t, "run-1", rec.ID)
	require.Equal(t, []app.RunRequest{{InputDir: "/data/tiles", Label: "field"}}, runs.executed)
}

func TestCreateRun_Queued(t *testing.T) {
	runs := &fakeRunService{}
	q := &fakeQueue{}
	rr := serve(NewHandler(runs, q, nil), http.MethodPost, "/runs", `{"input_dir":"/data/tiles"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.JSONEq(t, `{"id":"queued-1","status":"queued"}`, rr.Body.String())
	require.Len(t, q.requests, 1)
	require.Empty(t, runs.executed)

	q.err = errors.New("redis down")
	rr = serve(NewHandler(runs, q, nil), http.MethodPost, "/runs", `{"input_dir":"/data/tiles"}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCreateRun_BadRequests(t *testing.T) {
	h := NewHandler(&fakeRunService{}, nil, nil)

	rr := serve(h, http.MethodPost, "/runs", `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeError(t, rr).Code)

	rr = serve(h, http.MethodPost, "/runs", `{"label":"x"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"source", perrors.NewSourceFailedError("/data", errors.New("no such dir")), http.StatusUnprocessableEntity, "source_error"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"storage", perrors.NewStorageFailedError("run", errors.New("disk full")), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeRunService{execErr: tt.err}, nil, nil)
			rr := serve(h, http.MethodPost, "/runs", `{"input_dir":"/data"}`)
			require.Equal(t, tt.status, rr.Code)
			require.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestListRuns(t *testing.T) {
	runs := &fakeRunService{}
	h := NewHandler(runs, nil, nil)

	rr := serve(h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
	require.Equal(t, defaultListLimit, runs.listLimit)

	rr = serve(h, http.MethodGet, "/runs?limit=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 3, runs.listLimit)

	for _, bad := range []string{"0", "-1", "abc"} {
		rr = serve(h, http.MethodGet, "/runs?limit="+bad, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestGetRun(t *testing.T) {
	runs := &fakeRunService{records: map[string]*entity.RunRecord{
		"abc": {ID: "abc", Status: entity.OutcomeDegraded, FeatureCount: 4},
	}}
	h := NewHandler(runs, nil, nil)

	rr := serve(h, http.MethodGet, "/runs/abc", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec entity.RunRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	require.Equal(t, entity.OutcomeDegraded, rec.Status)
	require.Equal(t, 4, rec.FeatureCount)

	rr = serve(h, http.MethodGet, "/runs/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decodeError(t, rr).Code)
}

func TestArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK-zip-bytes"), 0o644))

	runs := &fakeRunService{records: map[string]*entity.RunRecord{
		"abc":  {ID: "abc", ArchivePath: path},
		"bare": {ID: "bare"},
	}}
	h := NewHandler(runs, nil, nil)

	rr := serve(h, http.MethodGet, "/runs/abc/archive", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "abc.zip")
	require.Equal(t, "PK-zip-bytes", rr.Body.String())

	rr = serve(h, http.MethodGet, "/runs/bare/archive", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLatest(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[]}`
	rr := serve(NewHandler(&fakeRunService{latest: []byte(body)}, nil, nil), http.MethodGet, "/geojson/latest", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	require.Equal(t, body, rr.Body.String())
}
