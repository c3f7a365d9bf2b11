package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/njord/internal/billing"
	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/events"
	"github.com/dukerupert/njord/internal/postgres"
	"github.com/dukerupert/njord/internal/telemetry"
)

const (
	// gatewayCallTimeout bounds a single charge-creation call.
	gatewayCallTimeout = 10 * time.Second

	// probeAttempts and probeTimeout bound the reconciliation probe after
	// a timed-out charge call.
	probeAttempts = 3
	probeTimeout  = 5 * time.Second
	probeBackoff  = 500 * time.Millisecond
)

// CheckoutService converts a principal's open cart into an order.
type CheckoutService interface {
	// Checkout charges the open cart's total and records the order. The
	// cart id doubles as the charge idempotency key, so a retried
	// checkout of the same cart can never charge twice.
	Checkout(ctx context.Context, principalID pgtype.UUID, params CheckoutParams) (*domain.Order, error)
}

// CheckoutParams contains parameters for Checkout.
type CheckoutParams struct {
	// SourceToken is the opaque payment source token from the client.
	SourceToken string

	// Currency defaults to the service's configured currency when empty.
	Currency string
}

type checkoutService struct {
	store     postgres.Querier
	provider  billing.Provider
	publisher events.Publisher
	currency  string
	logger    *slog.Logger
}

// NewCheckoutService creates a checkout service. currency is the default
// ISO 4217 code used when the request does not name one.
func NewCheckoutService(store postgres.Querier, provider billing.Provider, publisher events.Publisher, currency string, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		store:     store,
		provider:  provider,
		publisher: publisher,
		currency:  currency,
		logger:    logger.With("service", "checkout"),
	}
}

func (s *checkoutService) Checkout(ctx context.Context, principalID pgtype.UUID, params CheckoutParams) (*domain.Order, error) {
	const op = "checkout.checkout"

	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}

	cart, err := s.store.GetOpenCartByPrincipal(ctx, principalID)
	if err != nil {
		if isNoRows(err) {
			// No open cart checks out the same as an empty one.
			return nil, domain.ErrEmptyCart
		}
		return nil, domain.Internal(err, op, "failed to look up cart")
	}

	// Cheap pre-check before taking any lock or talking to the gateway.
	precheck, err := s.store.GetCartItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}
	if len(precheck) == 0 {
		return nil, domain.ErrEmptyCart
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)
	qtx := tx.Queries()

	// The row lock serializes concurrent checkouts of the same cart: one
	// caller proceeds, the rest block here and then see processed=true.
	locked, err := qtx.GetCartByIDForUpdate(ctx, cart.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to lock cart")
	}
	if locked.Processed {
		return nil, domain.ErrCartProcessed
	}

	// Prices come from the catalog now, not from when items were added.
	summary, err := summarizeCart(ctx, qtx, *toDomainCart(locked))
	if err != nil {
		return nil, err
	}
	if len(summary.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if summary.TotalCents <= 0 {
		return nil, domain.Internal(nil, op, "computed non-positive cart total")
	}

	cartID := postgres.UUIDString(cart.ID)
	charge, err := s.charge(ctx, billing.CreateChargeParams{
		AmountCents:    summary.TotalCents,
		Currency:       currency,
		SourceToken:    params.SourceToken,
		IdempotencyKey: cartID,
		Metadata: map[string]string{
			"cart_id":      cartID,
			"principal_id": postgres.UUIDString(principalID),
		},
	})
	if err != nil {
		return nil, err
	}

	// The order records what the gateway charged. A charge recovered by
	// the probe was committed by an earlier attempt, and its amount wins
	// over the freshly computed total if the cart changed in between.
	chargedCents := charge.AmountCents
	chargedCurrency := charge.Currency
	if chargedCurrency == "" {
		chargedCurrency = currency
	}
	if chargedCents != summary.TotalCents {
		s.logger.Warn("recovered charge amount differs from current cart total",
			"cart_id", cartID,
			"charge_id", charge.ID,
			"charged_cents", chargedCents,
			"cart_total_cents", summary.TotalCents)
	}

	order, err := qtx.CreateOrder(ctx, postgres.CreateOrderParams{
		PrincipalID: principalID,
		CartID:      cart.ID,
		TotalCents:  chargedCents,
		ChargeID:    charge.ID,
		Currency:    chargedCurrency,
	})
	if err != nil {
		return nil, s.recordUnreconciled(ctx, charge, cart.ID, err, "order insert failed")
	}
	if err := qtx.MarkCartProcessed(ctx, cart.ID); err != nil {
		return nil, s.recordUnreconciled(ctx, charge, cart.ID, err, "cart processed update failed")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.recordUnreconciled(ctx, charge, cart.ID, err, "commit failed")
	}

	telemetry.OrdersCreated.Inc()
	s.logger.Info("order created",
		"order_id", postgres.UUIDString(order.ID),
		"cart_id", cartID,
		"total_cents", order.TotalCents,
		"charge_id", order.ChargeID)

	s.publishCreated(ctx, order)

	return toDomainOrder(order), nil
}

// charge calls the gateway under a deadline and classifies the outcome:
// success, definitive decline, or unknown. Unknown outcomes are probed via
// the idempotency key before giving up.
func (s *checkoutService) charge(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
	const op = "checkout.charge"

	callCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()

	charge, err := s.provider.CreateCharge(callCtx, params)
	if err == nil {
		return charge, nil
	}

	if decline, ok := billing.IsDecline(err); ok {
		telemetry.ChargesDeclined.Inc()
		s.logger.Info("charge declined",
			"cart_id", params.IdempotencyKey,
			"decline_code", decline.Code)
		return nil, &domain.Error{
			Code:    domain.EPAYMENT,
			Op:      op,
			Message: decline.Reason,
			Err:     decline,
		}
	}

	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, domain.Internal(err, op, "charge creation failed")
	}

	// The call timed out: the gateway may or may not have committed the
	// charge. The idempotency key is the only safe way to find out.
	s.logger.Warn("charge call timed out, probing gateway", "cart_id", params.IdempotencyKey)
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		probeCtx, cancelProbe := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		found, probeErr := s.provider.GetChargeByIdempotencyKey(probeCtx, params.IdempotencyKey)
		cancelProbe()

		if probeErr == nil {
			if found == nil {
				// Gateway is reachable and has no charge for the key:
				// the timed-out call never committed.
				return nil, &domain.Error{
					Code:    domain.EPAYMENT,
					Op:      op,
					Message: "Payment could not be completed. Please try again.",
					Err:     err,
				}
			}
			if found.Succeeded() {
				s.logger.Info("probe recovered committed charge",
					"cart_id", params.IdempotencyKey,
					"charge_id", found.ID)
				return found, nil
			}
			return nil, &domain.Error{
				Code:    domain.EPAYMENT,
				Op:      op,
				Message: "Payment did not complete. Please try again.",
			}
		}

		s.logger.Warn("gateway probe failed",
			"cart_id", params.IdempotencyKey,
			"attempt", attempt,
			"error", probeErr)
		if attempt < probeAttempts {
			time.Sleep(probeBackoff)
		}
	}

	telemetry.GatewayTimeouts.Inc()
	return nil, domain.GatewayTimeout(err, op, "payment gateway did not respond")
}

// recordUnreconciled handles a persistence failure after the charge has
// committed at the gateway. The charge is written to the reconciliation
// table outside the failed transaction, best effort, and the customer gets
// an internal error with a support reference.
func (s *checkoutService) recordUnreconciled(ctx context.Context, charge *billing.Charge, cartID pgtype.UUID, cause error, reason string) error {
	const op = "checkout.persist"

	telemetry.UnreconciledCharges.Inc()

	wrapped := domain.Internal(cause, op, "order could not be recorded")
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, recErr := s.store.CreateUnreconciledCharge(recordCtx, postgres.CreateUnreconciledChargeParams{
		ChargeID:    charge.ID,
		CartID:      cartID,
		AmountCents: charge.AmountCents,
		Reason:      reason,
	})
	if recErr != nil && !isNoRows(recErr) {
		s.logger.Error("FAILED TO RECORD UNRECONCILED CHARGE",
			"charge_id", charge.ID,
			"cart_id", postgres.UUIDString(cartID),
			"amount_cents", charge.AmountCents,
			"record_error", recErr)
	}

	s.logger.Error("charge committed without order",
		"charge_id", charge.ID,
		"cart_id", postgres.UUIDString(cartID),
		"amount_cents", charge.AmountCents,
		"reason", reason,
		"support_ref", domain.ErrorRef(wrapped),
		"error", cause)

	return wrapped
}

func (s *checkoutService) publishCreated(ctx context.Context, order postgres.Order) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderCreated(ctx, events.OrderCreated{
		OrderID:     postgres.UUIDString(order.ID),
		PrincipalID: postgres.UUIDString(order.PrincipalID),
		CartID:      postgres.UUIDString(order.CartID),
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
		ChargeID:    order.ChargeID,
		CreatedAt:   order.CreatedAt.Time,
	})
	if err != nil {
		s.logger.Warn("failed to publish order event",
			"order_id", postgres.UUIDString(order.ID),
			"error", err)
	}
}

func toDomainOrder(row postgres.Order) *domain.Order {
	return &domain.Order{
		ID:          row.ID,
		PrincipalID: row.PrincipalID,
		CartID:      row.CartID,
		TotalCents:  row.TotalCents,
		ChargeID:    row.ChargeID,
		Currency:    row.Currency,
		CreatedAt:   row.CreatedAt,
	}
}
