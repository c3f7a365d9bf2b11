package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Principal is a row in the principals table.
type Principal struct {
	ID           pgtype.UUID
	Email        string
	PasswordHash string
	Role         string
	DeletedAt    pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// CreatePrincipalParams contains parameters for CreatePrincipal.
type CreatePrincipalParams struct {
	Email        string
	PasswordHash string
	Role         string
}

const createPrincipal = `
INSERT INTO principals (email, password_hash, role)
VALUES ($1, $2, $3)
RETURNING id, email, password_hash, role, deleted_at, created_at, updated_at
`

func (s *Store) CreatePrincipal(ctx context.Context, arg CreatePrincipalParams) (Principal, error) {
	row := s.db.QueryRow(ctx, createPrincipal, arg.Email, arg.PasswordHash, arg.Role)
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getPrincipalByEmail = `
SELECT id, email, password_hash, role, deleted_at, created_at, updated_at
FROM principals
WHERE email = $1 AND deleted_at IS NULL
`

func (s *Store) GetPrincipalByEmail(ctx context.Context, email string) (Principal, error) {
	row := s.db.QueryRow(ctx, getPrincipalByEmail, email)
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getPrincipalByID = `
SELECT id, email, password_hash, role, deleted_at, created_at, updated_at
FROM principals
WHERE id = $1 AND deleted_at IS NULL
`

func (s *Store) GetPrincipalByID(ctx context.Context, id pgtype.UUID) (Principal, error) {
	row := s.db.QueryRow(ctx, getPrincipalByID, id)
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const softDeletePrincipal = `
UPDATE principals
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (s *Store) SoftDeletePrincipal(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, softDeletePrincipal, id)
	return err
}
