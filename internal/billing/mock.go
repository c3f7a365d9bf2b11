package billing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider implements Provider for testing.
// Set the *Func fields to control behavior per test; unset methods fall
// back to an in-memory gateway that honors idempotency keys.
type MockProvider struct {
	mu      sync.Mutex
	charges map[string]*Charge // keyed by idempotency key
	nextID  int

	CreateChargeFunc              func(ctx context.Context, params CreateChargeParams) (*Charge, error)
	GetChargeByIdempotencyKeyFunc func(ctx context.Context, idempotencyKey string) (*Charge, error)

	// CallLog records method invocations for assertion in tests
	CallLog []string
}

// NewMockProvider creates a mock billing provider with default implementations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		charges: make(map[string]*Charge),
	}
}

func (m *MockProvider) logCall(method string) {
	m.CallLog = append(m.CallLog, method)
}

// CreateCharge creates a mock charge. Repeated calls with the same
// idempotency key return the original charge.
func (m *MockProvider) CreateCharge(ctx context.Context, params CreateChargeParams) (*Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logCall("CreateCharge")

	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, params)
	}

	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if existing, ok := m.charges[params.IdempotencyKey]; ok {
		return existing, nil
	}

	m.nextID++
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	ch := &Charge{
		ID:          fmt.Sprintf("ch_mock_%d", m.nextID),
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Status:      "succeeded",
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	m.charges[params.IdempotencyKey] = ch
	return ch, nil
}

// GetChargeByIdempotencyKey returns the stored charge for the key, or nil.
func (m *MockProvider) GetChargeByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logCall("GetChargeByIdempotencyKey")

	if m.GetChargeByIdempotencyKeyFunc != nil {
		return m.GetChargeByIdempotencyKeyFunc(ctx, idempotencyKey)
	}
	return m.charges[idempotencyKey], nil
}

// SeedCharge stores a charge under the given idempotency key, for tests
// that simulate a charge committed during a timed-out call.
func (m *MockProvider) SeedCharge(idempotencyKey string, ch *Charge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[idempotencyKey] = ch
}

// Reset clears stored charges and the call log.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = make(map[string]*Charge)
	m.CallLog = nil
	m.nextID = 0
}
