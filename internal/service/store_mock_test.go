package service

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/njord/internal/postgres"
)

// fakeStore is an in-memory postgres.Querier for service tests. Error
// hooks let individual tests inject failures at specific steps.
type fakeStore struct {
	mu sync.Mutex

	principals map[pgtype.UUID]postgres.Principal
	entries    map[pgtype.UUID]postgres.CatalogEntry
	carts      map[pgtype.UUID]postgres.Cart
	items      map[pgtype.UUID][]postgres.CartItem
	orders     map[pgtype.UUID]postgres.Order
	pending    map[string]postgres.UnreconciledCharge

	createOrderErr   error
	markProcessedErr error
	commitErr        error

	// lockSeesProcessed makes the locked cart read return processed=true,
	// simulating the loser of a concurrent checkout acquiring the row
	// lock after the winner committed.
	lockSeesProcessed bool

	markProcessedCalls int
}

var _ postgres.Querier = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		principals: make(map[pgtype.UUID]postgres.Principal),
		entries:    make(map[pgtype.UUID]postgres.CatalogEntry),
		carts:      make(map[pgtype.UUID]postgres.Cart),
		items:      make(map[pgtype.UUID][]postgres.CartItem),
		orders:     make(map[pgtype.UUID]postgres.Order),
		pending:    make(map[string]postgres.UnreconciledCharge),
	}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

// seedEntry registers a catalog entry and returns its id.
func (f *fakeStore) seedEntry(name string, priceCents int32) pgtype.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := postgres.NewUUID()
	f.entries[id] = postgres.CatalogEntry{
		ID:         id,
		Kind:       "product",
		Name:       name,
		PriceCents: priceCents,
	}
	return id
}

// seedPrincipal registers a principal row and returns its id.
func (f *fakeStore) seedPrincipal(email, hash, role string) pgtype.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := postgres.NewUUID()
	f.principals[id] = postgres.Principal{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	return id
}

func (f *fakeStore) BeginTx(ctx context.Context) (postgres.Tx, error) {
	return &fakeTx{store: f}, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) Queries() postgres.Querier { return t.store }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.commitErr
}

func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

func (f *fakeStore) CreatePrincipal(ctx context.Context, arg postgres.CreatePrincipalParams) (postgres.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.Email == arg.Email {
			return postgres.Principal{}, uniqueViolation()
		}
	}
	p := postgres.Principal{
		ID:           postgres.NewUUID(),
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
	}
	f.principals[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetPrincipalByEmail(ctx context.Context, email string) (postgres.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.Email == email {
			return p, nil
		}
	}
	return postgres.Principal{}, pgx.ErrNoRows
}

func (f *fakeStore) GetPrincipalByID(ctx context.Context, id pgtype.UUID) (postgres.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[id]
	if !ok {
		return postgres.Principal{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) SoftDeletePrincipal(ctx context.Context, id pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.principals, id)
	return nil
}

func (f *fakeStore) CreateCatalogEntry(ctx context.Context, arg postgres.CreateCatalogEntryParams) (postgres.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := postgres.CatalogEntry{
		ID:          postgres.NewUUID(),
		Kind:        arg.Kind,
		Name:        arg.Name,
		Description: arg.Description,
		PriceCents:  arg.PriceCents,
		SellerID:    arg.SellerID,
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetCatalogEntryByID(ctx context.Context, id pgtype.UUID) (postgres.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return postgres.CatalogEntry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeStore) ListCatalogEntries(ctx context.Context, arg postgres.ListCatalogEntriesParams) ([]postgres.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postgres.CatalogEntry
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) CreateCart(ctx context.Context, principalID pgtype.UUID) (postgres.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.PrincipalID == principalID && !c.Processed && !c.Abandoned {
			return postgres.Cart{}, uniqueViolation()
		}
	}
	c := postgres.Cart{ID: postgres.NewUUID(), PrincipalID: principalID}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetOpenCartByPrincipal(ctx context.Context, principalID pgtype.UUID) (postgres.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.PrincipalID == principalID && !c.Processed && !c.Abandoned {
			return c, nil
		}
	}
	return postgres.Cart{}, pgx.ErrNoRows
}

func (f *fakeStore) GetCartByID(ctx context.Context, id pgtype.UUID) (postgres.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return postgres.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetCartByIDForUpdate(ctx context.Context, id pgtype.UUID) (postgres.Cart, error) {
	c, err := f.GetCartByID(ctx, id)
	if err != nil {
		return c, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockSeesProcessed {
		c.Processed = true
	}
	return c, nil
}

func (f *fakeStore) MarkCartProcessed(ctx context.Context, id pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markProcessedCalls++
	if f.markProcessedErr != nil {
		return f.markProcessedErr
	}
	c, ok := f.carts[id]
	if !ok || c.Processed {
		return postgres.ErrNoRowsAffected
	}
	c.Processed = true
	f.carts[id] = c
	return nil
}

func (f *fakeStore) InsertOrIncrementCartItem(ctx context.Context, arg postgres.UpsertCartItemParams) (postgres.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[arg.CartID]
	for i, it := range items {
		if it.EntryID == arg.EntryID {
			items[i].Quantity += arg.Delta
			return items[i], nil
		}
	}
	it := postgres.CartItem{
		ID:       postgres.NewUUID(),
		CartID:   arg.CartID,
		EntryID:  arg.EntryID,
		Quantity: arg.Delta,
	}
	f.items[arg.CartID] = append(items, it)
	return it, nil
}

func (f *fakeStore) AdjustCartItemQuantity(ctx context.Context, arg postgres.UpsertCartItemParams) (postgres.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[arg.CartID]
	for i, it := range items {
		if it.EntryID == arg.EntryID {
			items[i].Quantity += arg.Delta
			return items[i], nil
		}
	}
	return postgres.CartItem{}, pgx.ErrNoRows
}

func (f *fakeStore) DeleteDepletedCartItem(ctx context.Context, arg postgres.UpsertCartItemParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[arg.CartID]
	for i, it := range items {
		if it.EntryID == arg.EntryID && it.Quantity+arg.Delta <= 0 {
			f.items[arg.CartID] = append(items[:i], items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetCartItemDetails(ctx context.Context, cartID pgtype.UUID) ([]postgres.CartItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postgres.CartItemDetail
	for _, it := range f.items[cartID] {
		entry := f.entries[it.EntryID]
		out = append(out, postgres.CartItemDetail{
			ID:         it.ID,
			EntryID:    it.EntryID,
			EntryKind:  entry.Kind,
			EntryName:  entry.Name,
			Quantity:   it.Quantity,
			PriceCents: entry.PriceCents,
		})
	}
	return out, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, arg postgres.CreateOrderParams) (postgres.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrderErr != nil {
		return postgres.Order{}, f.createOrderErr
	}
	for _, o := range f.orders {
		if o.CartID == arg.CartID {
			return postgres.Order{}, uniqueViolation()
		}
	}
	o := postgres.Order{
		ID:          postgres.NewUUID(),
		PrincipalID: arg.PrincipalID,
		CartID:      arg.CartID,
		TotalCents:  arg.TotalCents,
		ChargeID:    arg.ChargeID,
		Currency:    arg.Currency,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id pgtype.UUID) (postgres.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return postgres.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) GetOrderByCartID(ctx context.Context, cartID pgtype.UUID) (postgres.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.CartID == cartID {
			return o, nil
		}
	}
	return postgres.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) ListOrdersByPrincipal(ctx context.Context, principalID pgtype.UUID) ([]postgres.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postgres.Order
	for _, o := range f.orders {
		if o.PrincipalID == principalID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllOrders(ctx context.Context) ([]postgres.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postgres.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) CreateUnreconciledCharge(ctx context.Context, arg postgres.CreateUnreconciledChargeParams) (postgres.UnreconciledCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[arg.ChargeID]; ok {
		// ON CONFLICT DO NOTHING yields no row to scan
		return postgres.UnreconciledCharge{}, pgx.ErrNoRows
	}
	u := postgres.UnreconciledCharge{
		ID:          postgres.NewUUID(),
		ChargeID:    arg.ChargeID,
		CartID:      arg.CartID,
		AmountCents: arg.AmountCents,
		Reason:      arg.Reason,
	}
	f.pending[arg.ChargeID] = u
	return u, nil
}

func (f *fakeStore) GetUnreconciledChargeByChargeID(ctx context.Context, chargeID string) (postgres.UnreconciledCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.pending[chargeID]
	if !ok || u.ResolvedAt.Valid {
		return postgres.UnreconciledCharge{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) ResolveUnreconciledCharge(ctx context.Context, chargeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.pending[chargeID]; ok {
		u.ResolvedAt = pgtype.Timestamptz{Valid: true}
		f.pending[chargeID] = u
	}
	return nil
}
