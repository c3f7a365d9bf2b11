package domain

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Principal domain errors.
var (
	ErrPrincipalNotFound = &Error{Code: ENOTFOUND, Message: "Account not found"}
	ErrEmailTaken        = &Error{Code: ECONFLICT, Message: "An account with that email already exists"}
	ErrInvalidEmail      = &Error{Code: EINVALID, Message: "Invalid email address"}
	ErrInvalidPassword   = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}
)

// Role classifies a principal's access level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is an authenticated actor: a customer account or an admin.
// Soft-deleted principals are never resolved from credentials.
type Principal struct {
	ID        pgtype.UUID
	Email     string
	Role      Role
	CreatedAt pgtype.Timestamptz
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
