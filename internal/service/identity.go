package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/njord/internal/auth"
	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
)

// IdentityService resolves and manages principals.
type IdentityService interface {
	// Register creates a principal from an email and plaintext password.
	Register(ctx context.Context, email, password string, role domain.Role) (*domain.Principal, error)

	// Authenticate verifies credentials and returns the principal plus a
	// signed session token.
	Authenticate(ctx context.Context, email, password string) (*domain.Principal, string, error)

	// ResolvePrincipal maps a session token to its principal. An invalid,
	// expired, or unknown token resolves to nil principal and nil error:
	// requests without a valid session proceed anonymously and fail later
	// at the operation's own access check.
	ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error)

	// GetPrincipal looks up a principal by id.
	GetPrincipal(ctx context.Context, id string) (*domain.Principal, error)
}

type identityService struct {
	store  postgres.Querier
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewIdentityService creates an identity service.
func NewIdentityService(store postgres.Querier, tokens *auth.TokenManager, logger *slog.Logger) IdentityService {
	return &identityService{
		store:  store,
		tokens: tokens,
		logger: logger.With("service", "identity"),
	}
}

func (s *identityService) Register(ctx context.Context, email, password string, role domain.Role) (*domain.Principal, error) {
	const op = "identity.register"

	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if err == auth.ErrPasswordTooShort {
			return nil, domain.Invalid(op, err.Error())
		}
		return nil, domain.Internal(err, op, "failed to hash password")
	}

	row, err := s.store.CreatePrincipal(ctx, postgres.CreatePrincipalParams{
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Internal(err, op, "failed to create account")
	}

	s.logger.Info("principal registered", "principal_id", postgres.UUIDString(row.ID), "role", role)
	return toDomainPrincipal(row), nil
}

func (s *identityService) Authenticate(ctx context.Context, email, password string) (*domain.Principal, string, error) {
	const op = "identity.authenticate"

	email = strings.ToLower(strings.TrimSpace(email))
	row, err := s.store.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if isNoRows(err) {
			// Same error as a bad password so the response does not
			// reveal which emails have accounts.
			return nil, "", domain.ErrInvalidPassword
		}
		return nil, "", domain.Internal(err, op, "failed to look up account")
	}

	if err := auth.VerifyPassword(password, row.PasswordHash); err != nil {
		return nil, "", domain.ErrInvalidPassword
	}

	token, err := s.tokens.Issue(postgres.UUIDString(row.ID), row.Role)
	if err != nil {
		return nil, "", domain.Internal(err, op, "failed to issue session token")
	}

	return toDomainPrincipal(row), token, nil
}

func (s *identityService) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	const op = "identity.resolve"

	if token == "" {
		return nil, nil
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("session token rejected", "reason", err)
		return nil, nil
	}

	id, err := postgres.UUIDFromString(claims.PrincipalID)
	if err != nil {
		return nil, nil
	}

	row, err := s.store.GetPrincipalByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			// Token outlived the account.
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to look up account")
	}

	return toDomainPrincipal(row), nil
}

func (s *identityService) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	const op = "identity.get"

	pid, err := postgres.UUIDFromString(id)
	if err != nil {
		return nil, domain.Invalid(op, "invalid principal id")
	}

	row, err := s.store.GetPrincipalByID(ctx, pid)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, domain.Internal(err, op, "failed to look up account")
	}

	return toDomainPrincipal(row), nil
}

func toDomainPrincipal(row postgres.Principal) *domain.Principal {
	return &domain.Principal{
		ID:        row.ID,
		Email:     row.Email,
		Role:      domain.Role(row.Role),
		CreatedAt: row.CreatedAt,
	}
}
