package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/charge"
)

// StripeProvider implements Provider using the Stripe Charges API.
type StripeProvider struct{}

// NewStripeProvider creates a Stripe billing provider. Setting the key is
// process-wide; the stripe-go package keeps no per-client state here.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

// CreateCharge creates a charge via Stripe. Card declines are returned as
// *DeclineError; everything else (network failures, context deadline) is
// passed through for the caller to classify.
func (s *StripeProvider) CreateCharge(ctx context.Context, params CreateChargeParams) (*Charge, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	chargeParams := &stripe.ChargeParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(int64(params.AmountCents)),
		Currency: stripe.String(params.Currency),
	}
	chargeParams.SetSource(params.SourceToken)
	chargeParams.SetIdempotencyKey(params.IdempotencyKey)
	for k, v := range params.Metadata {
		chargeParams.AddMetadata(k, v)
	}
	// Stripe's charge search cannot filter on the idempotency key header,
	// so it is mirrored into metadata for the reconciliation probe.
	chargeParams.AddMetadata("idempotency_key", params.IdempotencyKey)

	ch, err := charge.New(chargeParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			code := string(stripeErr.DeclineCode)
			if code == "" {
				code = string(stripeErr.Code)
			}
			return nil, &DeclineError{Code: code, Reason: stripeErr.Msg}
		}
		return nil, err
	}

	return fromStripeCharge(ch), nil
}

// GetChargeByIdempotencyKey searches Stripe for a charge created with the
// given idempotency key. Returns nil, nil when no charge exists.
func (s *StripeProvider) GetChargeByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Charge, error) {
	searchParams := &stripe.ChargeSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf(`metadata["idempotency_key"]:"%s"`, idempotencyKey),
		},
	}

	iter := charge.Search(searchParams)
	for iter.Next() {
		return fromStripeCharge(iter.Charge()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func fromStripeCharge(ch *stripe.Charge) *Charge {
	return &Charge{
		ID:          ch.ID,
		AmountCents: int32(ch.Amount),
		Currency:    string(ch.Currency),
		Status:      string(ch.Status),
		Metadata:    ch.Metadata,
		CreatedAt:   time.Unix(ch.Created, 0),
	}
}
