package handler

import (
	"net/http"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

// ReadingHandler serves the caller's own glucose timeline.
type ReadingHandler struct {
	Responder
	readings *service.ReadingService
	sync     *service.SyncService
}

func NewReadingHandler(readings *service.ReadingService, sync *service.SyncService, rs Responder) *ReadingHandler {
	return &ReadingHandler{Responder: rs, readings: readings, sync: sync}
}

// Value is a pointer so a missing field fails "required" while 0 is still
// accepted and left to the service's range check.
type createReadingRequest struct {
	Value     *float64   `json:"value"     validate:"required"`
	Timestamp *time.Time `json:"timestamp"`
	Context   string     `json:"context"   validate:"max=50"`
	Notes     string     `json:"notes"     validate:"max=1000"`
}

// HandleCreate records a manual reading.
//
// HTTP: POST /api/readings
//
// The response reports the alert level the reading produced. Notifications
// for it are queued, never sent inline, so the 201 does not wait on email or
// SMS providers.
func (h *ReadingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createReadingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := service.RecordInput{Value: *req.Value, Context: req.Context, Notes: req.Notes}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	res, err := h.readings.Record(r.Context(), caller.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{
		"reading_id": res.Reading.ID,
		"reading":    res.Reading,
		"alert":      res.Alert,
	})
}

// HandleList returns readings newest first.
//
// HTTP: GET /api/readings?since=<RFC3339>&days=<n>
//
// since wins over days; with neither, the last seven days are returned.
func (h *ReadingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var q service.ListQuery
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, apperror.ValidationFailed("since", "since must be an RFC3339 timestamp"))
			return
		}
		q.Since = &since
	}
	if q.Days, err = queryInt(r, "days"); err != nil {
		h.writeError(w, r, err)
		return
	}

	readings, err := h.readings.List(r.Context(), caller.ID, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"readings": readings})
}

// HandleSync pulls the caller's recent device readings and merges them.
//
// HTTP: POST /api/sync
//
// Repeating the call is safe: samples already on the timeline are skipped
// and readings_added counts only new rows.
func (h *ReadingHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	added, err := h.sync.Sync(r.Context(), caller.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"readings_added": added})
}
