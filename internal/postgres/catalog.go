package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// CatalogEntry is a row in the catalog_entries table.
type CatalogEntry struct {
	ID          pgtype.UUID
	Kind        string
	Name        string
	Description string
	PriceCents  int32
	SellerID    pgtype.UUID
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// CreateCatalogEntryParams contains parameters for CreateCatalogEntry.
type CreateCatalogEntryParams struct {
	Kind        string
	Name        string
	Description string
	PriceCents  int32
	SellerID    pgtype.UUID
}

const createCatalogEntry = `
INSERT INTO catalog_entries (kind, name, description, price_cents, seller_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, kind, name, description, price_cents, seller_id, created_at, updated_at
`

func (s *Store) CreateCatalogEntry(ctx context.Context, arg CreateCatalogEntryParams) (CatalogEntry, error) {
	row := s.db.QueryRow(ctx, createCatalogEntry, arg.Kind, arg.Name, arg.Description, arg.PriceCents, arg.SellerID)
	var e CatalogEntry
	err := row.Scan(&e.ID, &e.Kind, &e.Name, &e.Description, &e.PriceCents, &e.SellerID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const getCatalogEntryByID = `
SELECT id, kind, name, description, price_cents, seller_id, created_at, updated_at
FROM catalog_entries
WHERE id = $1
`

func (s *Store) GetCatalogEntryByID(ctx context.Context, id pgtype.UUID) (CatalogEntry, error) {
	row := s.db.QueryRow(ctx, getCatalogEntryByID, id)
	var e CatalogEntry
	err := row.Scan(&e.ID, &e.Kind, &e.Name, &e.Description, &e.PriceCents, &e.SellerID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// ListCatalogEntriesParams contains pagination parameters for ListCatalogEntries.
type ListCatalogEntriesParams struct {
	Limit  int32
	Offset int32
}

const listCatalogEntries = `
SELECT id, kind, name, description, price_cents, seller_id, created_at, updated_at
FROM catalog_entries
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

func (s *Store) ListCatalogEntries(ctx context.Context, arg ListCatalogEntriesParams) ([]CatalogEntry, error) {
	rows, err := s.db.Query(ctx, listCatalogEntries, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Name, &e.Description, &e.PriceCents, &e.SellerID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
