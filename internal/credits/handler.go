package credits

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/payments"
	"resumegenie/internal/shared/server/middleware"
	"resumegenie/internal/shared/server/respond"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/shared/util"
)

const maxWebhookBytes = 64 << 10

type Handler struct {
	Ledger   *Ledger
	Payments payments.Processor
}

func NewHandler(ledger *Ledger, processor payments.Processor) *Handler {
	return &Handler{Ledger: ledger, Payments: processor}
}

type checkoutRequest struct {
	PlanType      string `json:"plan_type" binding:"required"`
	CustomCredits int    `json:"custom_credits"`
}

type planView struct {
	Plan
	Price float64 `json:"price"`
}

// RegisterRoutes attaches the credit endpoints to rg (mounted at /credits).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans", h.plans)
	rg.POST("/checkout", middleware.RequireUser(), h.checkout)
	rg.POST("/create-checkout-session", middleware.RequireUser(), h.checkout)
	rg.POST("/webhook", h.webhook)
}

func (h *Handler) plans(c *gin.Context) {
	presets := Plans()
	views := make([]planView, 0, len(presets))
	for _, p := range presets {
		views = append(views, planView{Plan: p, Price: float64(p.AmountCents) / 100})
	}
	respond.OK(c, gin.H{
		"success":             true,
		"plans":               views,
		"custom_credit_price": float64(CustomCentsPerCredit) / 100,
		"custom_credit_note":  "Only allowed if purchasing more than 25 credits",
	})
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "plan_type is required", nil)
		return
	}
	plan, err := PlanFor(req.PlanType, req.CustomCredits)
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_plan", "Invalid plan type or custom credits must be > 25", nil)
		return
	}
	if h.Payments == nil {
		respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "payments are not configured", nil)
		return
	}

	url, err := h.Payments.CreateCheckout(c.Request.Context(), payments.CheckoutRequest{
		Email:       middleware.UserEmailFromContext(c),
		Label:       plan.Label,
		AmountCents: plan.AmountCents,
		Credits:     plan.Credits,
	})
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "payments are not configured", nil)
			return
		}
		telemetry.Error("credits.checkout_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"plan_type":  plan.Type,
			"error":      err,
		})
		respond.Error(c, http.StatusBadGateway, "checkout_failed", "failed to create checkout session", nil)
		return
	}
	respond.OK(c, gin.H{"url": url})
}

// webhook applies completed purchases. Anything that retrying cannot fix is
// acknowledged with 200 so the processor stops redelivering.
func (h *Handler) webhook(c *gin.Context) {
	if h.Payments == nil {
		respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "payments are not configured", nil)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil || len(payload) > maxWebhookBytes {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "unreadable webhook payload", nil)
		return
	}

	evt, err := h.Payments.ParseEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			respond.Error(c, http.StatusBadRequest, "invalid_signature", "invalid webhook signature", nil)
		case errors.Is(err, payments.ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "payments are not configured", nil)
		default:
			respond.Error(c, http.StatusBadRequest, "invalid_payload", err.Error(), nil)
		}
		return
	}

	fields := map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"event_id":   evt.ID,
		"event_type": evt.Type,
	}
	if !evt.Completed {
		telemetry.Info("credits.webhook_ignored", fields)
		respond.OK(c, gin.H{"received": true, "ignored": true})
		return
	}

	email := util.NormalizeEmail(evt.Email)
	fields["user_email"] = email
	fields["credits"] = evt.Credits
	if email == "" || evt.Credits <= 0 {
		telemetry.Warn("credits.webhook_incomplete_metadata", fields)
		respond.OK(c, gin.H{"received": true, "applied": false})
		return
	}

	applied, err := h.Ledger.ApplyPurchase(c.Request.Context(), evt.ID, email, evt.Credits)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			telemetry.Warn("credits.webhook_unknown_user", fields)
			respond.OK(c, gin.H{"received": true, "applied": false})
			return
		}
		fields["error"] = err
		telemetry.Error("credits.webhook_failed", fields)
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to apply purchase", nil)
		return
	}
	if !applied {
		respond.OK(c, gin.H{"received": true, "duplicate": true})
		return
	}
	respond.OK(c, gin.H{"received": true, "applied": true})
}
