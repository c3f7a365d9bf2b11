package service

import (
	"context"
	"log/slog"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
	"github.com/dukerupert/njord/internal/telemetry"
)

// OrderService reads the order ledger and handles reconciliation.
type OrderService interface {
	// GetOrder returns an order with its line items. Non-admin principals
	// can only read their own orders; access to someone else's order is
	// reported as not found so order ids cannot be probed.
	GetOrder(ctx context.Context, principal *domain.Principal, orderID string) (*domain.OrderDetail, error)

	// ListOrders returns the principal's orders, newest first. Admins get
	// every order.
	ListOrders(ctx context.Context, principal *domain.Principal) ([]domain.Order, error)

	// ReconcileCharge converts a recorded unreconciled charge into its
	// missing order. Admin only.
	ReconcileCharge(ctx context.Context, principal *domain.Principal, chargeID string) (*domain.Order, error)
}

type orderService struct {
	store    postgres.Querier
	currency string
	logger   *slog.Logger
}

// NewOrderService creates an order service. currency is the default code
// for reconciled orders, which predate knowing the request currency.
func NewOrderService(store postgres.Querier, currency string, logger *slog.Logger) OrderService {
	return &orderService{
		store:    store,
		currency: currency,
		logger:   logger.With("service", "order"),
	}
}

func (s *orderService) GetOrder(ctx context.Context, principal *domain.Principal, orderID string) (*domain.OrderDetail, error) {
	const op = "order.get"

	if principal == nil {
		return nil, domain.Unauthorized(op, "Authentication required")
	}

	id, err := postgres.UUIDFromString(orderID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid order id")
	}

	row, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to look up order")
	}

	if row.PrincipalID != principal.ID && !principal.IsAdmin() {
		return nil, domain.ErrOrderNotFound
	}

	// The cart's items are retained after checkout and double as the
	// order's line items.
	details, err := s.store.GetCartItemDetails(ctx, row.CartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}

	detail := &domain.OrderDetail{
		Order: *toDomainOrder(row),
		Items: make([]domain.CartItem, 0, len(details)),
	}
	for _, d := range details {
		detail.Items = append(detail.Items, domain.CartItem{
			ID:             d.ID,
			EntryID:        d.EntryID,
			EntryKind:      domain.CatalogKind(d.EntryKind),
			EntryName:      d.EntryName,
			Quantity:       d.Quantity,
			UnitPriceCents: d.PriceCents,
			LineSubtotal:   d.Quantity * d.PriceCents,
		})
	}
	return detail, nil
}

func (s *orderService) ListOrders(ctx context.Context, principal *domain.Principal) ([]domain.Order, error) {
	const op = "order.list"

	if principal == nil {
		return nil, domain.Unauthorized(op, "Authentication required")
	}

	var (
		rows []postgres.Order
		err  error
	)
	if principal.IsAdmin() {
		rows, err = s.store.ListAllOrders(ctx)
	} else {
		rows, err = s.store.ListOrdersByPrincipal(ctx, principal.ID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, *toDomainOrder(row))
	}
	return orders, nil
}

func (s *orderService) ReconcileCharge(ctx context.Context, principal *domain.Principal, chargeID string) (*domain.Order, error) {
	const op = "order.reconcile"

	if principal == nil {
		return nil, domain.Unauthorized(op, "Authentication required")
	}
	if !principal.IsAdmin() {
		return nil, domain.Forbidden(op, "Admin access required")
	}

	pending, err := s.store.GetUnreconciledChargeByChargeID(ctx, chargeID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrChargeUnknown
		}
		return nil, domain.Internal(err, op, "failed to look up charge")
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)
	qtx := tx.Queries()

	cart, err := qtx.GetCartByIDForUpdate(ctx, pending.CartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to lock cart")
	}

	// The order may have landed after all, through a customer retry that
	// recovered the charge via its idempotency key.
	if existing, err := qtx.GetOrderByCartID(ctx, cart.ID); err == nil {
		if err := qtx.ResolveUnreconciledCharge(ctx, chargeID); err != nil {
			return nil, domain.Internal(err, op, "failed to resolve charge")
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, domain.Internal(err, op, "failed to commit reconciliation")
		}
		return toDomainOrder(existing), nil
	} else if !isNoRows(err) {
		return nil, domain.Internal(err, op, "failed to look up order")
	}

	order, err := qtx.CreateOrder(ctx, postgres.CreateOrderParams{
		PrincipalID: cart.PrincipalID,
		CartID:      cart.ID,
		TotalCents:  pending.AmountCents,
		ChargeID:    pending.ChargeID,
		Currency:    s.currency,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create order")
	}
	if !cart.Processed {
		if err := qtx.MarkCartProcessed(ctx, cart.ID); err != nil {
			return nil, domain.Internal(err, op, "failed to close cart")
		}
	}
	if err := qtx.ResolveUnreconciledCharge(ctx, chargeID); err != nil {
		return nil, domain.Internal(err, op, "failed to resolve charge")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit reconciliation")
	}

	telemetry.OrdersCreated.Inc()
	s.logger.Info("charge reconciled",
		"charge_id", chargeID,
		"order_id", postgres.UUIDString(order.ID),
		"admin_id", postgres.UUIDString(principal.ID))
	return toDomainOrder(order), nil
}
