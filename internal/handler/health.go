package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Responder
	db  Pinger
	now func() time.Time
}

func NewHealthHandler(db Pinger, rs Responder) *HealthHandler {
	return &HealthHandler{Responder: rs, db: db, now: time.Now}
}

// HandleHealth reports liveness and database reachability.
//
// HTTP: GET /api/health
//
// An unreachable database answers 503 so load balancers take the instance
// out of rotation.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := envelope{
		"status":   "ok",
		"database": "ok",
		"time":     h.now().UTC().Format(time.RFC3339),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger().Error("health check: database unreachable", slog.String("error", err.Error()))
		body["status"] = "degraded"
		body["database"] = "unreachable"
		body["success"] = false
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	writeOK(w, http.StatusOK, body)
}
