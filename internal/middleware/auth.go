package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/service"
)

type contextKey string

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "njord_session"

// WithPrincipal resolves the session token from the cookie or the
// Authorization header and attaches the principal to the request context.
// This middleware is optional: a missing or invalid token means the
// request proceeds anonymously and the protected operations reject it
// themselves.
func WithPrincipal(identity service.IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := identity.ResolvePrincipal(r.Context(), token)
			if err != nil || principal == nil {
				// Invalid or expired session, continue anonymously
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects unauthenticated requests with 401.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if domain.PrincipalFromContext(r.Context()) == nil {
			writeAuthError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose principal lacks the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := domain.PrincipalFromContext(r.Context())
		if p == nil {
			writeAuthError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Authentication required")
			return
		}
		if !p.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, domain.EFORBIDDEN, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeAuthError mirrors the handler error envelope without importing the
// handler package, to avoid a circular import.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": message, "code": code}},
	})
}
