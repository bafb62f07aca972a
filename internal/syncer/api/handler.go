package api

import (
	"encoding/json"
	"net/http"

	"ms-ticketsync/internal/logger"
)

// SyncController is the slice of the engine the HTTP surface needs.
type SyncController interface {
	Ready() bool
	ForceSync() bool
}

type Handler struct {
	Engine SyncController
	Logger *logger.Logger
}

func NewHandler(engine SyncController, log *logger.Logger) *Handler {
	return &Handler{Engine: engine, Logger: log}
}

// Healthz is the liveness probe: the process is up.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, successResponse("ok"))
}

// Readyz is the readiness probe: 503 until the first full sync pass has
// completed since process start.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.Engine.Ready() {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse("not ready", "no sync pass has completed yet"))
		return
	}
	h.writeJSON(w, http.StatusOK, successResponse("ready"))
}

// TriggerSync starts a pass immediately. 202 when started, 409 when a pass
// is already in flight (single-flight, no queueing).
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.Engine.ForceSync() {
		h.writeJSON(w, http.StatusConflict, errorResponse("sync not started", "a sync pass is already running"))
		return
	}
	h.Logger.LogSync("api", "manual sync triggered")
	h.writeJSON(w, http.StatusAccepted, successResponse("sync started"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body Response) {
	body.Ready = h.Engine.Ready()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
