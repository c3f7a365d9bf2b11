package api

import (
	"net/http"
	"time"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/middleware"
	"github.com/dukerupert/njord/internal/service"
)

// AuthHandler serves signup, login, logout and session introspection.
type AuthHandler struct {
	identity      service.IdentityService
	sessionTTL    time.Duration
	secureCookies bool
}

// NewAuthHandler creates an auth handler. secureCookies should be true in
// production so session cookies are HTTPS-only.
func NewAuthHandler(identity service.IdentityService, sessionTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		identity:      identity,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Signup registers a new customer account and opens a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.identity.Register(r.Context(), req.Email, req.Password, domain.RoleUser); err != nil {
		writeError(w, r, err)
		return
	}

	principal, token, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	writeData(w, http.StatusCreated, toPrincipalJSON(principal))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	principal, token, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	writeData(w, http.StatusOK, toPrincipalJSON(principal))
}

// Logout clears the session cookie. The token itself stays valid until it
// expires; sessions are stateless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.me", "Authentication required"))
		return
	}
	writeData(w, http.StatusOK, toPrincipalJSON(principal))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
