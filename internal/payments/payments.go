package payments

import (
	"context"
	"errors"
)

var (
	// ErrInvalidSignature means the webhook payload could not be authenticated.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrNotConfigured    = errors.New("payments: processor not configured")
)

// CheckoutRequest describes a one-off credit purchase.
type CheckoutRequest struct {
	Email       string
	Label       string
	AmountCents int
	Credits     int
}

// Event is the subset of a processor notification the ledger cares about.
type Event struct {
	ID        string
	Type      string
	Email     string
	Credits   int
	Completed bool
}

type Processor interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}
