package handler

import (
	"net/http"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/auth"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

// AuthHandler manages password login and session cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create a patient account (welcome email queued)
//   - HandleLogin    → verify credentials, issue a JWT in the body and a cookie
//   - HandleLogout   → clear the JWT cookie
//   - HandleMe       → return the currently logged-in user's profile
type AuthHandler struct {
	Responder
	auth          *service.AuthService
	secureCookies bool
}

func NewAuthHandler(authService *service.AuthService, secureCookies bool, rs Responder) *AuthHandler {
	return &AuthHandler{Responder: rs, auth: authService, secureCookies: secureCookies}
}

type registerRequest struct {
	FullName       string `json:"full_name"       validate:"required,max=200"`
	Email          string `json:"email"           validate:"required,email,max=254"`
	Password       string `json:"password"        validate:"required"`
	Phone          string `json:"phone"           validate:"omitempty,max=32"`
	Role           string `json:"role"            validate:"omitempty,oneof=patient doctor dietician admin"`
	DateOfBirth    string `json:"date_of_birth"   validate:"omitempty,datetime=2006-01-02"`
	MedicalHistory string `json:"medical_history" validate:"max=5000"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userView is the short profile returned by register and login.
type userView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func viewOf(u *model.User) userView {
	return userView{ID: u.ID, Name: u.FullName, Email: u.Email, Role: u.Role}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := service.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		Role:           model.Role(req.Role),
		MedicalHistory: req.MedicalHistory,
	}
	if req.DateOfBirth != "" {
		// validated above by the datetime tag
		dob, _ := time.Parse(time.DateOnly, req.DateOfBirth)
		in.DateOfBirth = &dob
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{
		"message": "Registration successful!",
		"user_id": user.ID,
		"user":    viewOf(user),
	})
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /api/auth/login
//
// The token is returned in the body for API clients and set as an HttpOnly
// cookie for browsers. HttpOnly keeps it away from page JavaScript;
// SameSite=Lax keeps it off cross-site POSTs.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeOK(w, http.StatusOK, envelope{
		"token": res.Token,
		"user":  viewOf(res.User),
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /api/auth/logout
//
// Tokens are stateless, so logout only removes the browser's copy. A bearer
// token held elsewhere stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete now
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeOK(w, http.StatusOK, envelope{"message": "Logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"user": user})
}
