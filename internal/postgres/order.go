package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNoRowsAffected is returned by mutations that matched no rows.
var ErrNoRowsAffected = errors.New("no rows affected")

// Order is a row in the orders table. Orders have no update or delete
// statements; the ledger is append-only.
type Order struct {
	ID          pgtype.UUID
	PrincipalID pgtype.UUID
	CartID      pgtype.UUID
	TotalCents  int32
	ChargeID    string
	Currency    string
	CreatedAt   pgtype.Timestamptz
}

// UnreconciledCharge is a row in the unreconciled_charges table.
type UnreconciledCharge struct {
	ID          pgtype.UUID
	ChargeID    string
	CartID      pgtype.UUID
	AmountCents int32
	Reason      string
	CreatedAt   pgtype.Timestamptz
	ResolvedAt  pgtype.Timestamptz
}

// CreateOrderParams contains parameters for CreateOrder.
type CreateOrderParams struct {
	PrincipalID pgtype.UUID
	CartID      pgtype.UUID
	TotalCents  int32
	ChargeID    string
	Currency    string
}

const createOrder = `
INSERT INTO orders (principal_id, cart_id, total_cents, charge_id, currency)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, principal_id, cart_id, total_cents, charge_id, currency, created_at
`

func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := s.db.QueryRow(ctx, createOrder, arg.PrincipalID, arg.CartID, arg.TotalCents, arg.ChargeID, arg.Currency)
	var o Order
	err := row.Scan(&o.ID, &o.PrincipalID, &o.CartID, &o.TotalCents, &o.ChargeID, &o.Currency, &o.CreatedAt)
	return o, err
}

const getOrderByID = `
SELECT id, principal_id, cart_id, total_cents, charge_id, currency, created_at
FROM orders
WHERE id = $1
`

func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, getOrderByID, id)
	var o Order
	err := row.Scan(&o.ID, &o.PrincipalID, &o.CartID, &o.TotalCents, &o.ChargeID, &o.Currency, &o.CreatedAt)
	return o, err
}

const getOrderByCartID = `
SELECT id, principal_id, cart_id, total_cents, charge_id, currency, created_at
FROM orders
WHERE cart_id = $1
`

func (s *Store) GetOrderByCartID(ctx context.Context, cartID pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, getOrderByCartID, cartID)
	var o Order
	err := row.Scan(&o.ID, &o.PrincipalID, &o.CartID, &o.TotalCents, &o.ChargeID, &o.Currency, &o.CreatedAt)
	return o, err
}

const listOrdersByPrincipal = `
SELECT id, principal_id, cart_id, total_cents, charge_id, currency, created_at
FROM orders
WHERE principal_id = $1
ORDER BY created_at DESC
`

func (s *Store) ListOrdersByPrincipal(ctx context.Context, principalID pgtype.UUID) ([]Order, error) {
	rows, err := s.db.Query(ctx, listOrdersByPrincipal, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const listAllOrders = `
SELECT id, principal_id, cart_id, total_cents, charge_id, currency, created_at
FROM orders
ORDER BY created_at DESC
`

func (s *Store) ListAllOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Query(ctx, listAllOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.PrincipalID, &o.CartID, &o.TotalCents, &o.ChargeID, &o.Currency, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateUnreconciledChargeParams contains parameters for CreateUnreconciledCharge.
type CreateUnreconciledChargeParams struct {
	ChargeID    string
	CartID      pgtype.UUID
	AmountCents int32
	Reason      string
}

const createUnreconciledCharge = `
INSERT INTO unreconciled_charges (charge_id, cart_id, amount_cents, reason)
VALUES ($1, $2, $3, $4)
ON CONFLICT (charge_id) DO NOTHING
RETURNING id, charge_id, cart_id, amount_cents, reason, created_at, resolved_at
`

// CreateUnreconciledCharge records a charge that succeeded at the gateway
// without a committed order. Idempotent per charge id.
func (s *Store) CreateUnreconciledCharge(ctx context.Context, arg CreateUnreconciledChargeParams) (UnreconciledCharge, error) {
	row := s.db.QueryRow(ctx, createUnreconciledCharge, arg.ChargeID, arg.CartID, arg.AmountCents, arg.Reason)
	var u UnreconciledCharge
	err := row.Scan(&u.ID, &u.ChargeID, &u.CartID, &u.AmountCents, &u.Reason, &u.CreatedAt, &u.ResolvedAt)
	return u, err
}

const getUnreconciledChargeByChargeID = `
SELECT id, charge_id, cart_id, amount_cents, reason, created_at, resolved_at
FROM unreconciled_charges
WHERE charge_id = $1 AND resolved_at IS NULL
`

func (s *Store) GetUnreconciledChargeByChargeID(ctx context.Context, chargeID string) (UnreconciledCharge, error) {
	row := s.db.QueryRow(ctx, getUnreconciledChargeByChargeID, chargeID)
	var u UnreconciledCharge
	err := row.Scan(&u.ID, &u.ChargeID, &u.CartID, &u.AmountCents, &u.Reason, &u.CreatedAt, &u.ResolvedAt)
	return u, err
}

const resolveUnreconciledCharge = `
UPDATE unreconciled_charges
SET resolved_at = now()
WHERE charge_id = $1 AND resolved_at IS NULL
`

func (s *Store) ResolveUnreconciledCharge(ctx context.Context, chargeID string) error {
	_, err := s.db.Exec(ctx, resolveUnreconciledCharge, chargeID)
	return err
}
