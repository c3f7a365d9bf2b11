// Package billing is the boundary to the external charge-creation service.
// The orchestrator depends only on Provider; implementations exist for
// Stripe and for tests.
package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment charge processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreateCharge creates a committed charge for the given amount.
	// The idempotency key is mandatory: a retried call with the same key
	// must not produce a second charge.
	CreateCharge(ctx context.Context, params CreateChargeParams) (*Charge, error)

	// GetChargeByIdempotencyKey looks up a charge previously created with
	// the given idempotency key. Returns nil, nil when no charge exists.
	// Callers use this to resolve ambiguous outcomes such as timeouts.
	GetChargeByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Charge, error)
}

// CreateChargeParams contains parameters for creating a charge.
type CreateChargeParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD).
	// Must be greater than 0.
	AmountCents int32

	// Currency code (ISO 4217 lowercase) - e.g., "usd", "gbp"
	Currency string

	// SourceToken is the opaque payment source token supplied by the client.
	SourceToken string

	// IdempotencyKey prevents duplicate charges on retried checkouts.
	// The orchestrator uses the cart id.
	IdempotencyKey string

	// Metadata for filtering and reconciliation (always includes cart_id)
	Metadata map[string]string
}

// Charge represents a committed charge at the gateway.
type Charge struct {
	// ID is the gateway's charge identifier (e.g., ch_...)
	ID string

	// AmountCents is the charged amount in smallest currency unit
	AmountCents int32

	// Currency code
	Currency string

	// Status: succeeded, pending, failed
	Status string

	// Metadata passed during creation
	Metadata map[string]string

	// CreatedAt is when the charge was created at the gateway
	CreatedAt time.Time
}

// Succeeded reports whether the charge committed at the gateway.
func (c *Charge) Succeeded() bool {
	return c != nil && c.Status == "succeeded"
}
