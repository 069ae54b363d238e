package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/storage/minio"
)

// SnapshotStore archives analysis reports. *minio.SnapshotArchive implements it.
type SnapshotStore interface {
	Save(ctx context.Context, userID string, payload interface{}) (*minio.SnapshotInfo, error)
	List(ctx context.Context, userID string) ([]minio.SnapshotInfo, error)
	Load(ctx context.Context, userID, name string) ([]byte, error)
}

// SnapshotHandler serves point-in-time copies of a user's analysis.
type SnapshotHandler struct {
	engine intelligence.Engine
	store  SnapshotStore
	logger logging.Logger
}

func NewSnapshotHandler(engine intelligence.Engine, store SnapshotStore, logger logging.Logger) *SnapshotHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SnapshotHandler{engine: engine, store: store, logger: logger}
}

func (h *SnapshotHandler) RegisterRoutes(r chi.Router) {
	r.Post("/snapshots", h.Create)
	r.Get("/snapshots", h.List)
	r.Get("/snapshots/{name}", h.Get)
}

// Create runs a full analysis and archives it. A failed analysis is returned
// as-is and nothing is stored.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	rep := h.engine.AnalyzeCollection(r.Context(), uid)
	if rep.Failure != nil {
		writeReport(w, rep.Outcome, rep)
		return
	}
	info, err := h.store.Save(r.Context(), uid, rep)
	if err != nil {
		h.logger.Error("snapshot save failed", logging.UserID(uid), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.List(r.Context(), userID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if infos == nil {
		infos = []minio.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": infos})
}

// Get streams the stored document back unchanged.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Load(r.Context(), userID(r), chi.URLParam(r, "name"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
