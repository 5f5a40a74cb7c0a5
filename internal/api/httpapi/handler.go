package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	perrors "ortho-mapper/internal/errors"
	"ortho-mapper/internal/logging"
)

const defaultListLimit = 20

// RunService is what the API needs from the application layer.
type RunService interface {
	Execute(ctx context.Context, req app.RunRequest) (*entity.RunRecord, error)
	Get(ctx context.Context, id string) (*entity.RunRecord, error)
	List(ctx context.Context, limit int) ([]*entity.RunRecord, error)
	Latest(ctx context.Context) ([]byte, error)
}

// Enqueuer defers a run to the queue consumer.
type Enqueuer interface {
	Enqueue(ctx context.Context, req app.RunRequest) (string, error)
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type RunRequestBody struct {
	InputDir string `json:"input_dir"`
	Label    string `json:"label,omitempty"`
}

type QueuedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Handler struct {
	runs  RunService
	queue Enqueuer
	log   *logging.Logger
}

// NewHandler builds the API. With a nil queue POST /runs executes inline.
func NewHandler(runs RunService, queue Enqueuer, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{runs: runs, queue: queue, log: log}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/runs", h.handleCreateRun).Methods("POST")
	r.HandleFunc("/runs", h.handleListRuns).Methods("GET")
	r.HandleFunc("/runs/{id}", h.handleGetRun).Methods("GET")
	r.HandleFunc("/runs/{id}/archive", h.handleArchive).Methods("GET")
	r.HandleFunc("/geojson/latest", h.handleLatest).Methods("GET")
	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Handler:      h.Router(),
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendErrorResponse(w, "invalid_request", "Request body is not valid JSON", err.Error(), http.StatusBadRequest)
		return
	}
	if body.InputDir == "" {
		sendErrorResponse(w, "invalid_request", "input_dir is required", "", http.StatusBadRequest)
		return
	}
	req := app.RunRequest{InputDir: body.InputDir, Label: body.Label}

	if h.queue != nil {
		id, err := h.queue.Enqueue(r.Context(), req)
		if err != nil {
			h.log.Error("enqueue failed", "input", body.InputDir, "error", err)
			sendErrorResponse(w, "queue_error", "Failed to enqueue run", err.Error(), http.StatusServiceUnavailable)
			return
		}
		sendJSON(w, http.StatusAccepted, QueuedResponse{ID: id, Status: "queued"})
		return
	}

	rec, err := h.runs.Execute(r.Context(), req)
	if err != nil {
		h.sendRunError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendErrorResponse(w, "invalid_request", "limit must be a positive integer", raw, http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.sendRunError(w, err)
		return
	}
	if recs == nil {
		recs = []*entity.RunRecord{}
	}
	sendJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendRunError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendRunError(w, err)
		return
	}
	if rec.ArchivePath == "" {
		sendErrorResponse(w, "not_found", "Run has no archive", rec.ID, http.StatusNotFound)
		return
	}
	f, err := os.Open(rec.ArchivePath)
	if err != nil {
		sendErrorResponse(w, "not_found", "Archive is missing", err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		sendErrorResponse(w, "storage_error", "Failed to read archive", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(rec.ArchivePath)+`"`)
	http.ServeContent(w, r, filepath.Base(rec.ArchivePath), info.ModTime(), f)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	data, err := h.runs.Latest(r.Context())
	if err != nil {
		h.sendRunError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) sendRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrRunNotFound):
		sendErrorResponse(w, "not_found", "Run not found", "", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		sendErrorResponse(w, "timeout", "Run timed out", err.Error(), http.StatusGatewayTimeout)
	case perrors.HasCode(err, perrors.ErrorSourceFailed):
		sendErrorResponse(w, "source_error", "Failed to read tile detections", err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error("request failed", "error", err)
		sendErrorResponse(w, "internal_error", "Internal error", err.Error(), http.StatusInternalServerError)
	}
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message, details string, status int) {
	sendJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
