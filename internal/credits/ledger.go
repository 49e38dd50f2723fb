package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resumegenie/internal/shared/metrics"
	"resumegenie/internal/shared/telemetry"
)

// Ledger wraps a Store with validation, metrics and logging.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Charge takes one credit. It returns false when the balance was below one at
// the moment of the update.
func (l *Ledger) Charge(ctx context.Context, email string) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	ok, err := l.store.ChargeOne(ctx, email)
	if err != nil {
		telemetry.Error("credits.charge_failed", map[string]any{"user_email": email, "error": err})
		return false, fmt.Errorf("charge credit: %w", err)
	}
	if !ok {
		telemetry.Info("credits.charge_rejected", map[string]any{"user_email": email})
		return false, nil
	}
	metrics.AddCreditsCharged(1)
	telemetry.Info("credits.charged", map[string]any{"user_email": email, "amount": 1})
	return true, nil
}

// Refund returns one credit previously taken by Charge.
func (l *Ledger) Refund(ctx context.Context, email string) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.store.RefundOne(ctx, email); err != nil {
		telemetry.Error("credits.refund_failed", map[string]any{"user_email": email, "error": err})
		return fmt.Errorf("refund credit: %w", err)
	}
	metrics.AddCreditsRefunded(1)
	telemetry.Info("credits.refunded", map[string]any{"user_email": email, "amount": 1})
	return nil
}

// TopUp adds credits outside of a payment event, e.g. an admin grant.
func (l *Ledger) TopUp(ctx context.Context, email string, amount int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := l.store.TopUp(ctx, email, amount); err != nil {
		return fmt.Errorf("top up credits: %w", err)
	}
	metrics.AddCreditsToppedUp(amount)
	telemetry.Info("credits.topped_up", map[string]any{"user_email": email, "amount": amount})
	return nil
}

// ApplyPurchase credits a completed payment once per event id.
func (l *Ledger) ApplyPurchase(ctx context.Context, eventID, email string, amount int) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	if strings.TrimSpace(eventID) == "" {
		return false, errors.New("credits: event id is required")
	}
	applied, err := l.store.ApplyPurchase(ctx, eventID, email, amount)
	if err != nil {
		return false, fmt.Errorf("apply purchase: %w", err)
	}
	fields := map[string]any{"user_email": email, "amount": amount, "event_id": eventID}
	if !applied {
		metrics.IncWebhookDuplicate()
		telemetry.Info("credits.purchase_duplicate", fields)
		return false, nil
	}
	metrics.IncWebhookProcessed()
	metrics.AddCreditsToppedUp(amount)
	telemetry.Info("credits.purchase_applied", fields)
	return true, nil
}

func (l *Ledger) Balance(ctx context.Context, email string) (int, error) {
	if err := l.ready(); err != nil {
		return 0, err
	}
	return l.store.Balance(ctx, email)
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return errors.New("credits ledger not configured")
	}
	return nil
}
