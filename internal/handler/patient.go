package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geniesugar/glucose-monitor/internal/service"
)

// PatientHandler serves the clinician views of patient records.
type PatientHandler struct {
	Responder
	summaries *service.SummaryService
	comments  *service.CommentService
}

func NewPatientHandler(summaries *service.SummaryService, comments *service.CommentService, rs Responder) *PatientHandler {
	return &PatientHandler{Responder: rs, summaries: summaries, comments: comments}
}

type createCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// HandleSummary lists every patient with their glucose summary.
//
// HTTP: GET /api/patients/summary?days=<n>
// Auth: doctor, dietician or admin
//
// A patient whose summary cannot be computed still appears, with "error"
// set and null statistics.
func (h *PatientHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	window, err := h.summaries.WindowForDays(days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows, err := h.summaries.PatientSummaries(r.Context(), window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"patients": rows})
}

// HandleCreateComment adds a note to a patient's record.
//
// HTTP: POST /api/patients/{id}/comments
// Auth: doctor, dietician or admin
func (h *PatientHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), caller, chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"comment_id": comment.ID, "comment": comment})
}

// HandleListComments returns a patient's comments, newest first.
//
// HTTP: GET /api/patients/{id}/comments
// Auth: any clinician, or the patient themselves
func (h *PatientHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	comments, err := h.comments.List(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"comments": comments})
}
