package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Cart is a row in the carts table.
type Cart struct {
	ID          pgtype.UUID
	PrincipalID pgtype.UUID
	Processed   bool
	Abandoned   bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// CartItem is a row in the cart_items table.
type CartItem struct {
	ID        pgtype.UUID
	CartID    pgtype.UUID
	EntryID   pgtype.UUID
	Quantity  int32
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartItemDetail joins a cart item with its catalog entry's live price.
type CartItemDetail struct {
	ID         pgtype.UUID
	EntryID    pgtype.UUID
	EntryKind  string
	EntryName  string
	Quantity   int32
	PriceCents int32
}

const createCart = `
INSERT INTO carts (principal_id)
VALUES ($1)
RETURNING id, principal_id, processed, abandoned, created_at, updated_at
`

// CreateCart inserts an open cart. The partial unique index on carts makes
// this fail with a unique violation when the principal already has one.
func (s *Store) CreateCart(ctx context.Context, principalID pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, createCart, principalID)
	var c Cart
	err := row.Scan(&c.ID, &c.PrincipalID, &c.Processed, &c.Abandoned, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getOpenCartByPrincipal = `
SELECT id, principal_id, processed, abandoned, created_at, updated_at
FROM carts
WHERE principal_id = $1 AND NOT processed AND NOT abandoned
`

func (s *Store) GetOpenCartByPrincipal(ctx context.Context, principalID pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, getOpenCartByPrincipal, principalID)
	var c Cart
	err := row.Scan(&c.ID, &c.PrincipalID, &c.Processed, &c.Abandoned, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCartByID = `
SELECT id, principal_id, processed, abandoned, created_at, updated_at
FROM carts
WHERE id = $1
`

func (s *Store) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, getCartByID, id)
	var c Cart
	err := row.Scan(&c.ID, &c.PrincipalID, &c.Processed, &c.Abandoned, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCartByIDForUpdate = `
SELECT id, principal_id, processed, abandoned, created_at, updated_at
FROM carts
WHERE id = $1
FOR UPDATE
`

// GetCartByIDForUpdate locks the cart row for the duration of the enclosing
// transaction. Only meaningful on a transaction-bound store.
func (s *Store) GetCartByIDForUpdate(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, getCartByIDForUpdate, id)
	var c Cart
	err := row.Scan(&c.ID, &c.PrincipalID, &c.Processed, &c.Abandoned, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const markCartProcessed = `
UPDATE carts
SET processed = true, updated_at = now()
WHERE id = $1 AND NOT processed
`

func (s *Store) MarkCartProcessed(ctx context.Context, id pgtype.UUID) error {
	tag, err := s.db.Exec(ctx, markCartProcessed, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// UpsertCartItemParams contains parameters for the line-item statements.
// Delta is a signed quantity adjustment.
type UpsertCartItemParams struct {
	CartID  pgtype.UUID
	EntryID pgtype.UUID
	Delta   int32
}

const insertOrIncrementCartItem = `
INSERT INTO cart_items (cart_id, entry_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, entry_id)
DO UPDATE SET quantity = cart_items.quantity + $3, updated_at = now()
RETURNING id, cart_id, entry_id, quantity, created_at, updated_at
`

// InsertOrIncrementCartItem merges a positive adjustment into an existing
// line item, or creates the item. The arithmetic happens in the database so
// concurrent adjustments to the same cart serialize on the row.
func (s *Store) InsertOrIncrementCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, insertOrIncrementCartItem, arg.CartID, arg.EntryID, arg.Delta)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.EntryID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

const adjustCartItemQuantity = `
UPDATE cart_items
SET quantity = quantity + $3, updated_at = now()
WHERE cart_id = $1 AND entry_id = $2
RETURNING id, cart_id, entry_id, quantity, created_at, updated_at
`

// AdjustCartItemQuantity applies a negative adjustment to an existing line
// item. Callers must first remove the item via DeleteDepletedCartItem when
// the adjustment would take the quantity to zero or below.
func (s *Store) AdjustCartItemQuantity(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, adjustCartItemQuantity, arg.CartID, arg.EntryID, arg.Delta)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.EntryID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

const deleteDepletedCartItem = `
DELETE FROM cart_items
WHERE cart_id = $1 AND entry_id = $2 AND quantity + $3 <= 0
RETURNING id
`

// DeleteDepletedCartItem removes a line item whose quantity would drop to
// zero or below under the given adjustment. Returns true when a row was
// deleted.
func (s *Store) DeleteDepletedCartItem(ctx context.Context, arg UpsertCartItemParams) (bool, error) {
	rows, err := s.db.Query(ctx, deleteDepletedCartItem, arg.CartID, arg.EntryID, arg.Delta)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	deleted := rows.Next()
	return deleted, rows.Err()
}

const getCartItemDetails = `
SELECT ci.id, ci.entry_id, ce.kind, ce.name, ci.quantity, ce.price_cents
FROM cart_items ci
JOIN catalog_entries ce ON ce.id = ci.entry_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at
`

// GetCartItemDetails returns the cart's line items joined with the current
// catalog price. This is the pricing source for both cart reads and the
// checkout total.
func (s *Store) GetCartItemDetails(ctx context.Context, cartID pgtype.UUID) ([]CartItemDetail, error) {
	rows, err := s.db.Query(ctx, getCartItemDetails, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartItemDetail
	for rows.Next() {
		var d CartItemDetail
		if err := rows.Scan(&d.ID, &d.EntryID, &d.EntryKind, &d.EntryName, &d.Quantity, &d.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
