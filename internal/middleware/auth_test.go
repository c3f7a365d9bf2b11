package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
)

type stubIdentity struct {
	principal *domain.Principal
	seenToken string
}

func (s *stubIdentity) Register(ctx context.Context, email, password string, role domain.Role) (*domain.Principal, error) {
	return nil, nil
}

func (s *stubIdentity) Authenticate(ctx context.Context, email, password string) (*domain.Principal, string, error) {
	return nil, "", nil
}

func (s *stubIdentity) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	s.seenToken = token
	return s.principal, nil
}

func (s *stubIdentity) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	return nil, nil
}

func capturePrincipal(captured **domain.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = domain.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithPrincipalFromCookie(t *testing.T) {
	principal := &domain.Principal{ID: postgres.NewUUID(), Role: domain.RoleUser}
	identity := &stubIdentity{principal: principal}

	var captured *domain.Principal
	handler := WithPrincipal(identity)(capturePrincipal(&captured))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-123"})
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "tok-123", identity.seenToken)
	require.NotNil(t, captured)
	assert.Equal(t, principal.ID, captured.ID)
}

func TestWithPrincipalFromBearerHeader(t *testing.T) {
	identity := &stubIdentity{principal: &domain.Principal{ID: postgres.NewUUID()}}

	var captured *domain.Principal
	handler := WithPrincipal(identity)(capturePrincipal(&captured))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok-456")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "tok-456", identity.seenToken)
	assert.NotNil(t, captured)
}

func TestWithPrincipalAnonymous(t *testing.T) {
	identity := &stubIdentity{}

	var captured *domain.Principal
	handler := WithPrincipal(identity)(capturePrincipal(&captured))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, identity.seenToken)
	assert.Nil(t, captured)
}

func TestRequirePrincipal(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects anonymous requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequirePrincipal(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), domain.EUNAUTHORIZED)
	})

	t.Run("passes authenticated requests", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := domain.WithPrincipal(r.Context(), &domain.Principal{ID: postgres.NewUUID()})
		w := httptest.NewRecorder()
		RequirePrincipal(next).ServeHTTP(w, r.WithContext(ctx))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects non-admin principals", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := domain.WithPrincipal(r.Context(), &domain.Principal{ID: postgres.NewUUID(), Role: domain.RoleUser})
		w := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(w, r.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("passes admins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := domain.WithPrincipal(r.Context(), &domain.Principal{ID: postgres.NewUUID(), Role: domain.RoleAdmin})
		w := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(w, r.WithContext(ctx))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
