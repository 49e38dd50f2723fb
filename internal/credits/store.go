package credits

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned by Store implementations when no account matches the email.
	ErrUserNotFound  = errors.New("credits: user not found")
	ErrInvalidAmount = errors.New("credits: amount must be positive")
)

// Store holds per-account balances. Every method is a single atomic step
// against the account record; no read-modify-write happens in callers.
type Store interface {
	// ChargeOne decrements the balance by one only when it is at least one.
	// It reports false when the guard failed or the account does not exist.
	ChargeOne(ctx context.Context, email string) (bool, error)
	RefundOne(ctx context.Context, email string) error
	TopUp(ctx context.Context, email string, amount int) error
	// ApplyPurchase records eventID and adds amount in one step. It reports
	// false without changing the balance when eventID was already recorded.
	ApplyPurchase(ctx context.Context, eventID, email string, amount int) (bool, error)
	Balance(ctx context.Context, email string) (int, error)
}
