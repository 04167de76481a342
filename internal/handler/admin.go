package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geniesugar/glucose-monitor/internal/service"
)

type AdminHandler struct {
	Responder
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService, rs Responder) *AdminHandler {
	return &AdminHandler{Responder: rs, admin: admin}
}

// HandleDeleteUser removes an account and everything it owns.
//
// HTTP: DELETE /api/admin/users/{id}
// Auth: admin
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.admin.DeleteUser(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"message": "User deleted"})
}
