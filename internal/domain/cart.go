package domain

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Cart domain errors.
var (
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrCartProcessed    = &Error{Code: ECONFLICT, Message: "Cart has already been processed"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity adjustment must be non-zero"}
)

// Cart is a principal's mutable pre-purchase collection of line items.
// At most one cart per principal is open (processed = false, abandoned =
// false) at a time; the constraint is enforced by the persistence layer.
// A cart transitions processed: false -> true exactly once, at successful
// checkout, and is never deleted.
type Cart struct {
	ID          pgtype.UUID
	PrincipalID pgtype.UUID
	Processed   bool
	Abandoned   bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// CartItem is one line item joined with its catalog entry's live price.
// Pricing is computed at read/checkout time, not frozen at add time, so a
// catalog price change between add and checkout is reflected at checkout.
type CartItem struct {
	ID             pgtype.UUID
	EntryID        pgtype.UUID
	EntryKind      CatalogKind
	EntryName      string
	Quantity       int32
	UnitPriceCents int32
	LineSubtotal   int32
}

// CartSummary aggregates a cart with its items and computed total.
type CartSummary struct {
	Cart       Cart
	Items      []CartItem
	TotalCents int32
	ItemCount  int
}

// LineItemResult is the outcome of a single line-item adjustment. Removed
// is the tombstone marker for an item deleted by a quantity drop to zero.
type LineItemResult struct {
	Item    *CartItem
	Removed bool
}
