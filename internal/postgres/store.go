// Package postgres implements the persistence layer on pgx. Queries are
// handwritten SQL; all mutations used by checkout run inside an explicit
// transaction obtained through BeginTx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the query surface consumed by the service layer. *Store
// implements it against a pool or against an open transaction.
type Querier interface {
	BeginTx(ctx context.Context) (Tx, error)

	CreatePrincipal(ctx context.Context, arg CreatePrincipalParams) (Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (Principal, error)
	GetPrincipalByID(ctx context.Context, id pgtype.UUID) (Principal, error)
	SoftDeletePrincipal(ctx context.Context, id pgtype.UUID) error

	CreateCatalogEntry(ctx context.Context, arg CreateCatalogEntryParams) (CatalogEntry, error)
	GetCatalogEntryByID(ctx context.Context, id pgtype.UUID) (CatalogEntry, error)
	ListCatalogEntries(ctx context.Context, arg ListCatalogEntriesParams) ([]CatalogEntry, error)

	CreateCart(ctx context.Context, principalID pgtype.UUID) (Cart, error)
	GetOpenCartByPrincipal(ctx context.Context, principalID pgtype.UUID) (Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error)
	GetCartByIDForUpdate(ctx context.Context, id pgtype.UUID) (Cart, error)
	MarkCartProcessed(ctx context.Context, id pgtype.UUID) error
	InsertOrIncrementCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error)
	AdjustCartItemQuantity(ctx context.Context, arg UpsertCartItemParams) (CartItem, error)
	DeleteDepletedCartItem(ctx context.Context, arg UpsertCartItemParams) (bool, error)
	GetCartItemDetails(ctx context.Context, cartID pgtype.UUID) ([]CartItemDetail, error)

	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error)
	GetOrderByCartID(ctx context.Context, cartID pgtype.UUID) (Order, error)
	ListOrdersByPrincipal(ctx context.Context, principalID pgtype.UUID) ([]Order, error)
	ListAllOrders(ctx context.Context) ([]Order, error)

	CreateUnreconciledCharge(ctx context.Context, arg CreateUnreconciledChargeParams) (UnreconciledCharge, error)
	GetUnreconciledChargeByChargeID(ctx context.Context, chargeID string) (UnreconciledCharge, error)
	ResolveUnreconciledCharge(ctx context.Context, chargeID string) error
}

// Tx wraps an open database transaction. Queries() returns a Querier bound
// to the transaction; Rollback after Commit is a no-op.
type Tx interface {
	Queries() Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store implements Querier.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

// Compile-time check that Store satisfies Querier.
var _ Querier = (*Store)(nil)

// New creates a Store backed by a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// BeginTx starts a transaction and returns a Tx whose Queries run inside it.
func (s *Store) BeginTx(ctx context.Context) (Tx, error) {
	if s.pool == nil {
		return nil, errors.New("nested transactions are not supported")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &storeTx{
		tx:      tx,
		queries: &Store{db: tx},
	}, nil
}

type storeTx struct {
	tx      pgx.Tx
	queries *Store
}

func (t *storeTx) Queries() Querier { return t.queries }

func (t *storeTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *storeTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a serialization or lock
// acquisition failure worth retrying (SQLSTATE 40001, 40P01, 55P03).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
