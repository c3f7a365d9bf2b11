package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
)

// CartService manages a principal's open cart and its line items.
type CartService interface {
	// GetOrCreateOpenCart returns the principal's open cart, creating one
	// lazily when none exists. At most one cart per principal is open at a
	// time, including under concurrent first calls.
	GetOrCreateOpenCart(ctx context.Context, principalID pgtype.UUID) (*domain.Cart, error)

	// UpsertLineItem applies a signed quantity adjustment to the open
	// cart's line item for the given catalog entry. A positive delta on a
	// missing item creates it; adjustments to an existing item merge into
	// its quantity; a result of zero or less removes the item, reported
	// as Removed. A cart that closed since it was resolved is rejected
	// with ErrCartProcessed.
	UpsertLineItem(ctx context.Context, principalID pgtype.UUID, entryID string, delta int32) (*domain.LineItemResult, error)

	// GetCartSummary returns the open cart with items and total, priced
	// from the catalog at read time.
	GetCartSummary(ctx context.Context, principalID pgtype.UUID) (*domain.CartSummary, error)
}

type cartService struct {
	store  postgres.Querier
	logger *slog.Logger
}

// NewCartService creates a cart service.
func NewCartService(store postgres.Querier, logger *slog.Logger) CartService {
	return &cartService{
		store:  store,
		logger: logger.With("service", "cart"),
	}
}

func (s *cartService) GetOrCreateOpenCart(ctx context.Context, principalID pgtype.UUID) (*domain.Cart, error) {
	const op = "cart.resolve"

	cart, err := s.store.GetOpenCartByPrincipal(ctx, principalID)
	if err == nil {
		return toDomainCart(cart), nil
	}
	if !isNoRows(err) {
		return nil, domain.Internal(err, op, "failed to look up cart")
	}

	cart, err = s.store.CreateCart(ctx, principalID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			// Lost the race with a concurrent create; the winner's cart
			// is the open cart.
			cart, err = s.store.GetOpenCartByPrincipal(ctx, principalID)
			if err != nil {
				return nil, domain.Internal(err, op, "failed to look up cart")
			}
			return toDomainCart(cart), nil
		}
		return nil, domain.Internal(err, op, "failed to create cart")
	}

	s.logger.Info("cart created",
		"cart_id", postgres.UUIDString(cart.ID),
		"principal_id", postgres.UUIDString(principalID))
	return toDomainCart(cart), nil
}

func (s *cartService) UpsertLineItem(ctx context.Context, principalID pgtype.UUID, entryID string, delta int32) (*domain.LineItemResult, error) {
	const op = "cart.upsert_item"

	if delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}

	eid, err := postgres.UUIDFromString(entryID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid catalog entry id")
	}

	entry, err := s.store.GetCatalogEntryByID(ctx, eid)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCatalogEntryNotFound
		}
		return nil, domain.Internal(err, op, "failed to look up catalog entry")
	}

	cart, err := s.GetOrCreateOpenCart(ctx, principalID)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)
	qtx := tx.Queries()

	// Re-check under the row lock. A checkout holding the lock commits
	// processed=true before releasing it, so an item can never land on a
	// cart after it closed.
	locked, err := qtx.GetCartByIDForUpdate(ctx, cart.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to lock cart")
	}
	if locked.Processed {
		return nil, domain.ErrCartProcessed
	}

	params := postgres.UpsertCartItemParams{
		CartID:  cart.ID,
		EntryID: eid,
		Delta:   delta,
	}

	result, err := s.applyItemDelta(ctx, qtx, params, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit line item update")
	}
	return result, nil
}

func (s *cartService) applyItemDelta(ctx context.Context, q postgres.Querier, params postgres.UpsertCartItemParams, entry postgres.CatalogEntry) (*domain.LineItemResult, error) {
	const op = "cart.upsert_item"

	if params.Delta > 0 {
		item, err := q.InsertOrIncrementCartItem(ctx, params)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to update line item")
		}
		return &domain.LineItemResult{Item: toDomainCartItem(item, entry)}, nil
	}

	// Negative adjustment. Remove the item when the result would be zero
	// or less, otherwise decrement in place.
	removed, err := q.DeleteDepletedCartItem(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to remove line item")
	}
	if removed {
		return &domain.LineItemResult{Removed: true}, nil
	}

	item, err := q.AdjustCartItemQuantity(ctx, params)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, domain.Internal(err, op, "failed to update line item")
	}
	return &domain.LineItemResult{Item: toDomainCartItem(item, entry)}, nil
}

func (s *cartService) GetCartSummary(ctx context.Context, principalID pgtype.UUID) (*domain.CartSummary, error) {
	cart, err := s.GetOrCreateOpenCart(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return summarizeCart(ctx, s.store, *cart)
}

// summarizeCart builds a priced summary for the given cart using whatever
// query surface it is handed, so checkout can reuse it inside an open
// transaction.
func summarizeCart(ctx context.Context, q postgres.Querier, cart domain.Cart) (*domain.CartSummary, error) {
	const op = "cart.summarize"

	details, err := q.GetCartItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}

	summary := &domain.CartSummary{
		Cart:  cart,
		Items: make([]domain.CartItem, 0, len(details)),
	}

	var total int64
	for _, d := range details {
		line := int64(d.Quantity) * int64(d.PriceCents)
		total += line
		if total > math.MaxInt32 {
			return nil, domain.Internal(nil, op, "cart total overflows")
		}
		summary.Items = append(summary.Items, domain.CartItem{
			ID:             d.ID,
			EntryID:        d.EntryID,
			EntryKind:      domain.CatalogKind(d.EntryKind),
			EntryName:      d.EntryName,
			Quantity:       d.Quantity,
			UnitPriceCents: d.PriceCents,
			LineSubtotal:   int32(line),
		})
		summary.ItemCount += int(d.Quantity)
	}
	summary.TotalCents = int32(total)

	return summary, nil
}

func toDomainCart(row postgres.Cart) *domain.Cart {
	return &domain.Cart{
		ID:          row.ID,
		PrincipalID: row.PrincipalID,
		Processed:   row.Processed,
		Abandoned:   row.Abandoned,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toDomainCartItem(row postgres.CartItem, entry postgres.CatalogEntry) *domain.CartItem {
	return &domain.CartItem{
		ID:             row.ID,
		EntryID:        row.EntryID,
		EntryKind:      domain.CatalogKind(entry.Kind),
		EntryName:      entry.Name,
		Quantity:       row.Quantity,
		UnitPriceCents: entry.PriceCents,
		LineSubtotal:   row.Quantity * entry.PriceCents,
	}
}
