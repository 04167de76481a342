package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/geniesugar/glucose-monitor/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// only this package can create a key that collides with ours.
type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
)

// CookieName is the HttpOnly cookie set on login.
const CookieName = "token"

// These bodies use the same envelope as the handler package. They are
// literal strings here so auth does not import handler.
const (
	unauthorizedBody = `{"success":false,"error":"Authentication required","code":"unauthorized"}`
	forbiddenBody    = `{"success":false,"error":"You do not have access to this resource","code":"forbidden"}`
)

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the Authorization header ("Bearer <jwt>") and falls
// back to the "token" cookie. A valid token puts the user ID and role in the
// request context. A missing or invalid one stops the chain with 401.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractClaims(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, unauthorizedBody)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.UserID(), claims.Role)))
		})
	}
}

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after RequireAuth.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, unauthorizedBody)
				return
			}
			if !slices.Contains(roles, role) {
				writeAuthError(w, http.StatusForbidden, forbiddenBody)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying the caller's identity.
// Tests use it to call handlers without minting a token.
func WithIdentity(ctx context.Context, userID string, role model.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RoleFromContext retrieves the authenticated role.
func RoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok && role != ""
}

// extractClaims prefers the Authorization header and falls back to the cookie.
func extractClaims(r *http.Request, tokens *TokenService) (*Claims, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie means the request is anonymous.
		return nil, err
	}
	return tokens.Validate(cookie.Value)
}

func writeAuthError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
