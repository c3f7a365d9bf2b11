package domain

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Order domain errors.
var (
	ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrChargeUnknown = &Error{Code: ENOTFOUND, Message: "No charge found for reconciliation"}
)

// Order is the immutable record of a completed, charged purchase. It is
// created exactly once per successful checkout and links back to the cart
// it was converted from; the cart's items are retained as the order's line
// items.
type Order struct {
	ID          pgtype.UUID
	PrincipalID pgtype.UUID
	CartID      pgtype.UUID
	TotalCents  int32
	ChargeID    string
	Currency    string
	CreatedAt   pgtype.Timestamptz
}

// OrderDetail aggregates an order with its line items, the retained items
// of the processed cart. Item prices come from the live catalog; the
// authoritative charged amount is Order.TotalCents.
type OrderDetail struct {
	Order Order
	Items []CartItem
}
