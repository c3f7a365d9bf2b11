package domain

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Catalog domain errors.
var (
	ErrCatalogEntryNotFound = &Error{Code: ENOTFOUND, Message: "Catalog entry not found"}
	ErrInvalidPrice         = &Error{Code: EINVALID, Message: "Price must be greater than 0"}
)

// CatalogKind distinguishes the two purchasable entry types.
type CatalogKind string

const (
	KindProduct CatalogKind = "product"
	KindService CatalogKind = "service"
)

// CatalogEntry is a purchasable product or service. Prices are integer
// minor-currency units (cents). Entries referenced by a completed order
// have no update or delete operations defined.
type CatalogEntry struct {
	ID          pgtype.UUID
	Kind        CatalogKind
	Name        string
	Description string
	PriceCents  int32
	SellerID    pgtype.UUID
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}
