package handler

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

const stateCookie = "dexcom_oauth_state"

// DeviceHandler links a user's Dexcom account, either by id or through the
// OAuth connect flow.
type DeviceHandler struct {
	Responder
	devices       *service.DeviceService
	secureCookies bool
}

func NewDeviceHandler(devices *service.DeviceService, secureCookies bool, rs Responder) *DeviceHandler {
	return &DeviceHandler{Responder: rs, devices: devices, secureCookies: secureCookies}
}

type linkDeviceRequest struct {
	DexcomID string `json:"dexcom_id" validate:"max=128"`
}

// HandleLink sets or clears the caller's dexcom_id.
//
// HTTP: PUT /api/devices/dexcom
func (h *DeviceHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req linkDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.devices.Link(r.Context(), caller.ID, req.DexcomID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"user": user})
}

// HandleConnect redirects the browser to Dexcom's authorization page.
//
// HTTP: GET /api/devices/dexcom/connect
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// Dexcom. HandleCallback only accepts a callback whose state matches it.
func (h *DeviceHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	url, err := h.devices.ConnectURL(state)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/devices/dexcom",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback completes the connect flow.
//
// HTTP: GET /api/devices/dexcom/callback?code=...&state=...
func (h *DeviceHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.writeError(w, r, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/api/devices/dexcom",
		MaxAge: -1,
	})

	if denied := r.URL.Query().Get("error"); denied != "" {
		h.writeError(w, r, apperror.ValidationFailed("code", "Dexcom authorization was denied"))
		return
	}

	if err := h.devices.CompleteConnect(r.Context(), caller.ID, r.URL.Query().Get("code")); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"message": "Dexcom connected"})
}
