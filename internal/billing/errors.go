package billing

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned before any network call when the charge
// amount is not a positive integer.
var ErrInvalidAmount = errors.New("charge amount must be greater than 0")

// DeclineError is a definitive rejection by the gateway: no charge was
// created and the caller may retry with a different payment source.
type DeclineError struct {
	// Code is the gateway's machine-readable decline code.
	Code string

	// Reason is the gateway's human-readable decline reason, safe to show
	// to the customer.
	Reason string
}

func (e *DeclineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("charge declined (%s): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("charge declined: %s", e.Reason)
}

// IsDecline reports whether err is a definitive gateway decline, and
// returns it when so.
func IsDecline(err error) (*DeclineError, bool) {
	var de *DeclineError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
