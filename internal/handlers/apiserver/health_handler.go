package apiserver

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"stayprivate/internal/apperr"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /health/db.
type HealthHandler struct {
	store Pinger
	log   *zap.Logger
}

func NewHealthHandler(store Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

func (h *HealthHandler) DatabaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			"ok":      false,
			"error":   apperr.ReasonStoreUnavailable,
			"message": "数据库不可用",
			"status":  "disconnected",
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"status": "connected"})
}
