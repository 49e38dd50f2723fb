package analyses

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/limits"
	"resumegenie/internal/scoring"
	"resumegenie/internal/shared/server/middleware"
	"resumegenie/internal/shared/server/respond"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/users"
)

const (
	msgSaved      = "Resume saved to database"
	msgNotSaved   = "Entry generated but not saved (user not logged in)"
	msgSaveFailed = "Entry generated but could not be saved, please try again later"
)

// UserLookup resolves the authenticated email to an account.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc   *Service
	Users UserLookup
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, lookup UserLookup) *Handler {
	return &Handler{Svc: svc, Users: lookup}
}

type analyzeRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// RegisterRoutes attaches the resume routes to rg (mounted at /resume).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/limits", h.limits)

	private := rg.Group("", middleware.RequireUser())
	private.GET("/history", h.history)
	private.GET("/:id", h.getAnalysis)
}

// caller returns nil for anonymous requests and for tokens whose account no
// longer exists.
func (h *Handler) caller(c *gin.Context) (*users.User, error) {
	email := middleware.UserEmailFromContext(c)
	if email == "" || h.Users == nil {
		return nil, nil
	}
	user, err := h.Users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.Set("authError", "unknown_user")
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	caller, err := h.caller(c)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return
	}

	out, err := h.Svc.Analyze(c.Request.Context(), AnalyzeInput{
		ResumeText:     req.ResumeText,
		JobDescription: req.JobDescription,
		Caller:         caller,
	})
	if out.Transition != "" {
		c.Set("statusTransition", out.Transition)
	}
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	if out.AnalysisID != "" {
		c.Set("analysisId", out.AnalysisID)
	}

	message := msgNotSaved
	switch {
	case out.Saved:
		message = msgSaved
	case caller != nil:
		message = msgSaveFailed
	}
	data := gin.H{
		"score":             out.Score,
		"feedback":          out.Feedback,
		"tailored_resume":   out.TailoredResume,
		"remaining_credits": out.RemainingCredits,
		"tier":              out.Tier,
		"credit_used":       out.CreditUsed,
		"saved":             out.Saved,
	}
	if out.AnalysisID != "" {
		data["id"] = out.AnalysisID
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func writeAnalyzeError(c *gin.Context, err error) {
	var exceeded *limits.ExceededError
	var loginRequired *LoginRequiredError
	var failure *scoring.Failure
	switch {
	case errors.Is(err, ErrEmptyInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Resume and Job Description cannot be empty", nil)
	case errors.As(err, &exceeded):
		respond.Error(c, http.StatusBadRequest, "limits_exceeded", "Text limits exceeded", exceeded.Details())
	case errors.As(err, &loginRequired):
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required for longer resumes", loginRequired.Details())
	case errors.Is(err, ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits. Please buy more to proceed.", nil)
	case errors.Is(err, ErrChargeRejected):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "Credit deduction failed. Please try again", nil)
	case errors.As(err, &failure):
		respond.Error(c, http.StatusBadRequest, "scoring_failed", failure.Message, gin.H{"kind": failure.Kind})
	default:
		telemetry.Error("analysis.failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to analyze resume", nil)
	}
}

func (h *Handler) limits(c *gin.Context) {
	caller, err := h.caller(c)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return
	}
	view := h.Svc.Limits(c.Request.Context(), caller)
	respond.OK(c, gin.H{
		"success":     true,
		"tier":        view.Tier,
		"limits":      view.Limits,
		"free_limits": view.FreeLimits,
		"credits":     view.Credits,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	email := middleware.UserEmailFromContext(c)
	analysis, err := h.Svc.Get(c.Request.Context(), email, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Resume Entry not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.OK(c, gin.H{
		"success": true,
		"data":    analysis,
		"message": "Resume retrieved",
	})
}

func (h *Handler) history(c *gin.Context) {
	email := middleware.UserEmailFromContext(c)

	limit := 0
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.History(c.Request.Context(), email, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	respond.OK(c, gin.H{
		"success": true,
		"count":   len(analyses),
		"data":    analyses,
		"message": "All resumes retrieved",
	})
}
