package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resumegenie/internal/credits"
	"resumegenie/internal/limits"
	"resumegenie/internal/scoring"
	"resumegenie/internal/shared/metrics"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/shared/util"
	"resumegenie/internal/users"
)

// DefaultScoringTimeout bounds a single provider call when none is configured.
const DefaultScoringTimeout = 90 * time.Second

const (
	StateReceived             = "received"
	StateNormalized           = "normalized"
	StateTierChecked          = "tier_checked"
	StateCreditCharged        = "credit_charged"
	StateScored               = "scored"
	StatePersisted            = "persisted"
	StateResponded            = "responded"
	StateRejectedBeforeCharge = "rejected_before_charge"
	StateRejectedAfterCharge  = "rejected_after_charge"
)

var errNotConfigured = errors.New("analyses service is not configured")

// Service runs the analyze flow: normalize, classify, charge, score, persist.
type Service struct {
	Repo           Repo
	Ledger         *credits.Ledger
	Scorer         scoring.Gateway
	ScoringTimeout time.Duration
	now            func() time.Time
}

func NewService(repo Repo, ledger *credits.Ledger, scorer scoring.Gateway) *Service {
	return &Service{Repo: repo, Ledger: ledger, Scorer: scorer, ScoringTimeout: DefaultScoringTimeout}
}

// AnalyzeInput is one analyze request. Caller is nil for anonymous requests.
type AnalyzeInput struct {
	ResumeText     string
	JobDescription string
	Caller         *users.User
}

// Outcome is the result of Analyze. On error only Tier and Transition are set.
type Outcome struct {
	Score            int
	Feedback         string
	TailoredResume   string
	RemainingCredits *int
	Tier             limits.Tier
	CreditUsed       bool
	Saved            bool
	AnalysisID       string
	// Transition is the last state change, e.g. "scored->responded".
	Transition string
}

type run struct {
	state   string
	last    string
	started time.Time
	fields  map[string]any
}

func (r *run) move(to string, extra map[string]any) {
	r.last = r.state + "->" + to
	r.state = to
	fields := make(map[string]any, len(r.fields)+len(extra)+1)
	for k, v := range r.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	fields["status_transition"] = r.last
	if to == StateRejectedBeforeCharge || to == StateRejectedAfterCharge {
		telemetry.Warn("analysis.status", fields)
		return
	}
	telemetry.Info("analysis.status", fields)
}

// Analyze scores a resume against a job description. A credit taken for the
// request is always refunded when scoring fails.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (Outcome, error) {
	if s == nil || s.Scorer == nil || s.Ledger == nil {
		return Outcome{}, errNotConfigured
	}
	metrics.IncAnalysisStarted()

	email := ""
	if in.Caller != nil {
		email = in.Caller.Email
	}
	r := &run{
		state:   StateReceived,
		started: s.clock(),
		fields:  map[string]any{"user_email": email, "is_authenticated": in.Caller != nil},
	}
	out := Outcome{Tier: limits.TierFor(in.Caller != nil)}
	r.fields["tier"] = string(out.Tier)

	reject := func(reason string, err error) (Outcome, error) {
		metrics.IncAnalysisRejected(reason)
		r.move(StateRejectedBeforeCharge, map[string]any{"reason": reason})
		out.Transition = r.last
		return out, err
	}

	resume := util.CleanInputText(in.ResumeText)
	jd := util.CleanInputText(in.JobDescription)
	if resume == "" || jd == "" {
		return reject("empty_input", ErrEmptyInput)
	}
	r.move(StateNormalized, nil)

	decision, err := limits.Classify(resume, jd, out.Tier)
	if err != nil {
		// Anonymous content that a signed-in caller could submit is an
		// upgrade prompt, not a hard limit.
		var exceeded *limits.ExceededError
		if in.Caller == nil && errors.As(err, &exceeded) && limits.Validate(exceeded.Current, limits.TierPaid) == nil {
			return reject("login_required", loginRequired(exceeded.Current))
		}
		return reject("limits_exceeded", err)
	}
	r.move(StateTierChecked, map[string]any{
		"needs_credit": decision.NeedsCredit,
		"resume_chars": decision.Usage.ResumeChars,
		"jd_chars":     decision.Usage.JDChars,
	})

	if decision.NeedsCredit {
		if in.Caller == nil {
			return reject("login_required", loginRequired(decision.Usage))
		}
		balance, err := s.Ledger.Balance(ctx, email)
		if err != nil {
			return reject("balance_lookup_failed", fmt.Errorf("read balance: %w", err))
		}
		if balance < 1 {
			return reject("insufficient_credits", ErrInsufficientCredits)
		}
		charged, err := s.Ledger.Charge(ctx, email)
		if err != nil {
			return reject("charge_failed", err)
		}
		if !charged {
			return reject("charge_rejected", ErrChargeRejected)
		}
		out.CreditUsed = true
		r.move(StateCreditCharged, nil)
	}

	result, err := s.score(ctx, scoring.Request{ResumeText: resume, JobDescription: jd, Tier: out.Tier})
	if err != nil {
		metrics.IncAnalysisFailed()
		if !out.CreditUsed {
			r.move(StateRejectedBeforeCharge, map[string]any{"reason": "scoring_failed", "error": err})
			out.Transition = r.last
			return out, err
		}
		// The refund must land even if the caller has gone away.
		if refundErr := s.Ledger.Refund(context.WithoutCancel(ctx), email); refundErr != nil {
			telemetry.Error("analysis.refund_failed", map[string]any{"user_email": email, "error": refundErr})
		}
		out.CreditUsed = false
		r.move(StateRejectedAfterCharge, map[string]any{"reason": "scoring_failed", "error": err})
		out.Transition = r.last
		return out, err
	}
	out.Score = result.Score
	out.Feedback = result.Feedback
	out.TailoredResume = result.TailoredResume
	r.move(StateScored, map[string]any{"score": result.Score})

	if in.Caller != nil {
		s.persist(ctx, r, &out, email, resume, jd)
		out.RemainingCredits = s.remaining(ctx, in.Caller, out.CreditUsed)
	}

	elapsed := s.clock().Sub(r.started)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(elapsed.Milliseconds()))
	r.move(StateResponded, map[string]any{
		"credit_used": out.CreditUsed,
		"saved":       out.Saved,
		"duration_ms": elapsed.Milliseconds(),
	})
	out.Transition = r.last
	return out, nil
}

func loginRequired(u limits.Usage) *LoginRequiredError {
	e := &LoginRequiredError{Usage: u, FreeLimits: limits.FreeLimits, PaidLimits: limits.PaidLimits, Messages: []string{}}
	var exceeded *limits.ExceededError
	if errors.As(limits.Validate(u, limits.TierFree), &exceeded) {
		e.Messages = exceeded.Messages
	}
	return e
}

func (s *Service) score(ctx context.Context, req scoring.Request) (scoring.Result, error) {
	timeout := s.ScoringTimeout
	if timeout <= 0 {
		timeout = DefaultScoringTimeout
	}
	scoreCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Scorer.Score(scoreCtx, req)
}

func (s *Service) persist(ctx context.Context, r *run, out *Outcome, email, resume, jd string) {
	if s.Repo == nil {
		return
	}
	analysis := Analysis{
		ID:             uuid.NewString(),
		OwnerEmail:     email,
		ResumeText:     resume,
		JobDescription: jd,
		Score:          out.Score,
		Feedback:       out.Feedback,
		TailoredResume: out.TailoredResume,
		Tier:           out.Tier,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		telemetry.Error("analysis.persist_failed", map[string]any{
			"user_email": analysis.OwnerEmail,
			"error":      err,
		})
		return
	}
	out.Saved = true
	out.AnalysisID = analysis.ID
	r.move(StatePersisted, map[string]any{"analysis_id": analysis.ID})
}

func (s *Service) remaining(ctx context.Context, caller *users.User, charged bool) *int {
	balance, err := s.Ledger.Balance(ctx, caller.Email)
	if err != nil {
		balance = caller.Credits
		if charged {
			balance--
		}
	}
	return &balance
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Get returns one of the owner's analyses.
func (s *Service) Get(ctx context.Context, ownerEmail, analysisID string) (Analysis, error) {
	if ownerEmail == "" || analysisID == "" {
		return Analysis{}, ErrNotFound
	}
	if s.Repo == nil {
		return Analysis{}, errNotConfigured
	}
	return s.Repo.GetByID(ctx, ownerEmail, analysisID)
}

// History lists the owner's analyses newest first.
func (s *Service) History(ctx context.Context, ownerEmail string, limit, offset int) ([]Analysis, error) {
	if s.Repo == nil {
		return nil, errNotConfigured
	}
	return s.Repo.ListByOwner(ctx, ownerEmail, limit, offset)
}

// LimitsView is the ceiling table that applies to a caller.
type LimitsView struct {
	Tier       limits.Tier  `json:"tier"`
	Limits     limits.Table `json:"limits"`
	FreeLimits limits.Table `json:"free_limits"`
	Credits    *int         `json:"credits"`
}

// Limits describes the caller's tier. Credits is nil for anonymous callers.
func (s *Service) Limits(ctx context.Context, caller *users.User) LimitsView {
	tier := limits.TierFor(caller != nil)
	view := LimitsView{
		Tier:       tier,
		Limits:     limits.ForTier(tier),
		FreeLimits: limits.FreeLimits,
	}
	if caller != nil {
		credits := caller.Credits
		if s.Ledger != nil {
			if balance, err := s.Ledger.Balance(ctx, caller.Email); err == nil {
				credits = balance
			}
		}
		view.Credits = &credits
	}
	return view
}
