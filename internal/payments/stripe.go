package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"

	metadataEmail   = "email"
	metadataCredits = "credits"
)

// StripeProcessor creates Checkout Sessions and verifies Stripe webhooks.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	frontendURL   string
}

func NewStripeProcessor(secretKey, webhookSecret, frontendURL string) *StripeProcessor {
	p := &StripeProcessor{
		webhookSecret: webhookSecret,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
	}
	if strings.TrimSpace(secretKey) != "" {
		p.api = client.New(secretKey, nil)
	}
	return p
}

func (p *StripeProcessor) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if p.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Label),
					},
					UnitAmount: stripe.Int64(int64(req.AmountCents)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.frontendURL + "/success"),
		CancelURL:  stripe.String(p.frontendURL + "/cancel"),
	}
	params.Context = ctx
	params.AddMetadata(metadataEmail, req.Email)
	params.AddMetadata(metadataCredits, strconv.Itoa(req.Credits))

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// ParseEvent verifies the Stripe-Signature header and extracts purchase
// metadata from checkout session events. Other event types are returned with
// Completed=false.
func (p *StripeProcessor) ParseEvent(payload []byte, signature string) (Event, error) {
	if strings.TrimSpace(p.webhookSecret) == "" {
		return Event{}, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if out.Type != eventCheckoutCompleted && out.Type != eventAsyncPaymentSucceeded {
		return out, nil
	}
	if evt.Data == nil {
		return Event{}, fmt.Errorf("payments: event %s has no data", evt.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Email = strings.TrimSpace(session.Metadata[metadataEmail])
	if out.Email == "" {
		out.Email = strings.TrimSpace(session.CustomerEmail)
	}
	if raw := strings.TrimSpace(session.Metadata[metadataCredits]); raw != "" {
		credits, err := strconv.Atoi(raw)
		if err != nil {
			return Event{}, fmt.Errorf("payments: invalid credits metadata %q", raw)
		}
		out.Credits = credits
	}
	out.Completed = session.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid
	return out, nil
}
