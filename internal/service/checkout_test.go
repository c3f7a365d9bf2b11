package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/njord/internal/billing"
	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/events"
	"github.com/dukerupert/njord/internal/postgres"
)

func newCheckoutFixture(t *testing.T) (*fakeStore, *billing.MockProvider, CartService, CheckoutService) {
	t.Helper()
	store := newFakeStore()
	provider := billing.NewMockProvider()
	carts := NewCartService(store, testLogger())
	checkout := NewCheckoutService(store, provider, events.NoopPublisher{}, "usd", testLogger())
	return store, provider, carts, checkout
}

func TestCheckoutSuccess(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 2)
	require.NoError(t, err)
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)

	order, err := checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	require.NoError(t, err)

	assert.Equal(t, int32(3000), order.TotalCents)
	assert.Equal(t, "usd", order.Currency)
	assert.NotEmpty(t, order.ChargeID)
	assert.Equal(t, cart.ID, order.CartID)

	// The cart is closed and its items retained as the order's line items.
	closed, err := store.GetCartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, closed.Processed)
	items, err := store.GetCartItemDetails(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// Exactly one gateway call, keyed by the cart id.
	assert.Equal(t, []string{"CreateCharge"}, provider.CallLog)
	ch, err := provider.GetChargeByIdempotencyKey(ctx, postgres.UUIDString(cart.ID))
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, order.ChargeID, ch.ID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	_, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()

	// Open a cart but add nothing.
	_, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	// The gateway was never contacted.
	assert.Empty(t, provider.CallLog)
}

func TestCheckoutNoCart(t *testing.T) {
	ctx := context.Background()
	_, _, _, checkout := newCheckoutFixture(t)

	_, err := checkout.Checkout(ctx, postgres.NewUUID(), CheckoutParams{SourceToken: "tok_visa"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckoutDeclineLeavesCartOpen(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	provider.CreateChargeFunc = func(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
		return nil, &billing.DeclineError{Code: "card_declined", Reason: "Your card was declined."}
	}

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_chargeDeclined"})
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Equal(t, "Your card was declined.", domain.ErrorMessage(err))

	// Cart stays open with its items; no order exists.
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)
	assert.False(t, cart.Processed)
	assert.Empty(t, store.orders)

	// A retry with a working card succeeds.
	provider.CreateChargeFunc = nil
	order, err := checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, int32(1500), order.TotalCents)
}

func TestCheckoutProcessedCartConflicts(t *testing.T) {
	ctx := context.Background()
	store, _, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	require.NoError(t, err)

	// A repeat checkout finds no open cart, which reads the same as an
	// empty one.
	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckoutLoserSeesProcessedCart(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	// The loser of a concurrent checkout resolved the cart while it was
	// still open, then blocked on the row lock; by the time the lock is
	// granted the winner has committed.
	store.lockSeesProcessed = true

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	// The loser never reached the gateway.
	assert.Empty(t, provider.CallLog)
}

func TestCheckoutTimeoutRecoversCommittedCharge(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 2)
	require.NoError(t, err)
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)

	// The call times out but the charge committed at the gateway.
	provider.SeedCharge(postgres.UUIDString(cart.ID), &billing.Charge{
		ID:          "ch_recovered",
		AmountCents: 3000,
		Currency:    "usd",
		Status:      "succeeded",
	})
	provider.CreateChargeFunc = func(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
		return nil, context.DeadlineExceeded
	}

	order, err := checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, "ch_recovered", order.ChargeID)

	closed, err := store.GetCartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, closed.Processed)
}

func TestCheckoutRecoveredChargeAmountWinsOverCartTotal(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)

	// An earlier attempt charged 1500. The cart grew to 3000 before the
	// retry, which times out and recovers the committed charge.
	provider.SeedCharge(postgres.UUIDString(cart.ID), &billing.Charge{
		ID:          "ch_recovered",
		AmountCents: 1500,
		Currency:    "eur",
		Status:      "succeeded",
	})
	_, err = carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)
	provider.CreateChargeFunc = func(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
		return nil, context.DeadlineExceeded
	}

	order, err := checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, "ch_recovered", order.ChargeID)
	assert.Equal(t, int32(1500), order.TotalCents)
	assert.Equal(t, "eur", order.Currency)
}

func TestCheckoutTimeoutWithNoCharge(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	// Timeout, and the probe confirms no charge was committed.
	provider.CreateChargeFunc = func(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
		return nil, context.DeadlineExceeded
	}

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	// Cart still open, retry is safe.
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)
	assert.False(t, cart.Processed)
	assert.Empty(t, store.orders)
}

func TestCheckoutTimeoutWithUnreachableGateway(t *testing.T) {
	ctx := context.Background()
	store, provider, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	provider.CreateChargeFunc = func(ctx context.Context, params billing.CreateChargeParams) (*billing.Charge, error) {
		return nil, context.DeadlineExceeded
	}
	provider.GetChargeByIdempotencyKeyFunc = func(ctx context.Context, key string) (*billing.Charge, error) {
		return nil, errors.New("connection refused")
	}

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.ETIMEOUT, domain.ErrorCode(err))
	assert.NotEmpty(t, domain.ErrorRef(err))

	// Probed the maximum number of times before giving up.
	probes := 0
	for _, call := range provider.CallLog {
		if call == "GetChargeByIdempotencyKey" {
			probes++
		}
	}
	assert.Equal(t, probeAttempts, probes)
	assert.Empty(t, store.orders)
}

func TestCheckoutPersistFailureRecordsCharge(t *testing.T) {
	ctx := context.Background()
	store, _, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 2)
	require.NoError(t, err)
	cart, err := carts.GetOrCreateOpenCart(ctx, principalID)
	require.NoError(t, err)

	store.createOrderErr = errors.New("connection reset")

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.NotEmpty(t, domain.ErrorRef(err))

	// The committed charge landed in the reconciliation table.
	require.Len(t, store.pending, 1)
	for _, pending := range store.pending {
		assert.Equal(t, cart.ID, pending.CartID)
		assert.Equal(t, int32(3000), pending.AmountCents)
	}
}

func TestCheckoutCommitFailureRecordsCharge(t *testing.T) {
	ctx := context.Background()
	store, _, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 1500))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	store.commitErr = errors.New("server closed the connection")

	_, err = checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa"})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	require.Len(t, store.pending, 1)
}

func TestCheckoutCustomCurrency(t *testing.T) {
	ctx := context.Background()
	store, _, carts, checkout := newCheckoutFixture(t)
	principalID := postgres.NewUUID()
	entryID := postgres.UUIDString(store.seedEntry("Widget", 900))

	_, err := carts.UpsertLineItem(ctx, principalID, entryID, 1)
	require.NoError(t, err)

	order, err := checkout.Checkout(ctx, principalID, CheckoutParams{SourceToken: "tok_visa", Currency: "gbp"})
	require.NoError(t, err)
	assert.Equal(t, "gbp", order.Currency)
}
