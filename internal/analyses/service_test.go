package analyses

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resumegenie/internal/credits"
	"resumegenie/internal/limits"
	"resumegenie/internal/scoring"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/users"
)

type fakeScorer struct {
	mu     sync.Mutex
	result scoring.Result
	err    error
	calls  int
	last   scoring.Request
	block  bool
}

func (f *fakeScorer) Score(ctx context.Context, req scoring.Request) (scoring.Result, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return scoring.Result{}, &scoring.Failure{Kind: scoring.KindTimeout, Message: "scoring provider timed out", Err: ctx.Err()}
	}
	return f.result, f.err
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingRepo struct{ MemoryRepo }

func (r *failingRepo) Create(ctx context.Context, analysis Analysis) error {
	return errors.New("disk full")
}

// lostRaceStore reports a funded balance but never applies the decrement,
// as when a concurrent request spends the last credit first.
type lostRaceStore struct{ *users.MemoryRepo }

func (lostRaceStore) ChargeOne(ctx context.Context, email string) (bool, error) {
	return false, nil
}

type fixture struct {
	svc      *Service
	accounts *users.MemoryRepo
	repo     *MemoryRepo
	scorer   *fakeScorer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := users.NewMemoryRepo()
	repo := NewMemoryRepo()
	scorer := &fakeScorer{result: scoring.Result{Score: 72, Feedback: "Quantify impact", TailoredResume: "Tailored"}}
	return &fixture{
		svc:      NewService(repo, credits.NewLedger(accounts), scorer),
		accounts: accounts,
		repo:     repo,
		scorer:   scorer,
	}
}

func (f *fixture) seedUser(t *testing.T, email string, balance int) *users.User {
	t.Helper()
	u, err := f.accounts.Create(context.Background(), users.User{Email: email, PasswordHash: "x", Credits: balance})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func (f *fixture) balance(t *testing.T, email string) int {
	t.Helper()
	b, err := f.accounts.Balance(context.Background(), email)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestAnalyzeAnonymousFreeTier(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 50),
		JobDescription: strings.Repeat("j", 50),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.Tier != limits.TierFree || out.CreditUsed || out.Saved || out.RemainingCredits != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Score != 72 || out.Feedback != "Quantify impact" || out.TailoredResume != "Tailored" {
		t.Fatalf("unexpected scoring fields: %+v", out)
	}
	if out.Transition != "scored->responded" {
		t.Fatalf("transition = %q", out.Transition)
	}
	if f.scorer.last.Tier != limits.TierFree {
		t.Fatalf("scorer got tier %q", f.scorer.last.Tier)
	}
}

func TestAnalyzeChargesAndPersists(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "paid@example.com", 1)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 2000),
		JobDescription: strings.Repeat("j", 2000),
		Caller:         caller,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !out.CreditUsed || !out.Saved || out.AnalysisID == "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.RemainingCredits == nil || *out.RemainingCredits != 0 {
		t.Fatalf("remaining credits = %v", out.RemainingCredits)
	}
	if got := f.balance(t, caller.Email); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	saved, err := f.repo.GetByID(context.Background(), caller.Email, out.AnalysisID)
	if err != nil {
		t.Fatalf("get saved: %v", err)
	}
	if saved.Score != 72 || saved.Tier != limits.TierPaid || len(saved.ResumeText) != 2000 {
		t.Fatalf("unexpected saved analysis: %+v", saved)
	}
}

func TestAnalyzeAuthenticatedFreeUsageIsNotCharged(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "free@example.com", 3)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ResumeText: "short resume", JobDescription: "short jd", Caller: caller})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.CreditUsed || !out.Saved {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Tier != limits.TierPaid {
		t.Fatalf("tier = %q", out.Tier)
	}
	if out.RemainingCredits == nil || *out.RemainingCredits != 3 {
		t.Fatalf("remaining credits = %v", out.RemainingCredits)
	}
}

func TestAnalyzeInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "broke@example.com", 0)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 1200),
		JobDescription: "jd",
		Caller:         caller,
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if f.scorer.callCount() != 0 {
		t.Fatalf("scorer should not be called")
	}
	if got := f.balance(t, caller.Email); got != 0 {
		t.Fatalf("balance changed to %d", got)
	}
	if out.Transition != "tier_checked->rejected_before_charge" {
		t.Fatalf("transition = %q", out.Transition)
	}
}

func TestAnalyzeRefundsWhenScoringFails(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "refund@example.com", 1)
	f.scorer.err = &scoring.Failure{Kind: scoring.KindProviderRejected, Message: "Resume is missing a skills section"}

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 2000),
		JobDescription: strings.Repeat("j", 2000),
		Caller:         caller,
	})
	var failure *scoring.Failure
	if !errors.As(err, &failure) || failure.Message != "Resume is missing a skills section" {
		t.Fatalf("expected scoring failure, got %v", err)
	}
	if got := f.balance(t, caller.Email); got != 1 {
		t.Fatalf("balance = %d, want refund to 1", got)
	}
	history, _ := f.repo.ListByOwner(context.Background(), caller.Email, 0, 0)
	if len(history) != 0 {
		t.Fatalf("failed analysis must not be persisted")
	}
	if out.CreditUsed || out.Transition != "credit_charged->rejected_after_charge" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestAnalyzeTimeoutRefunds(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "slow@example.com", 2)
	f.scorer.block = true
	f.svc.ScoringTimeout = 10 * time.Millisecond

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 1500),
		JobDescription: "jd",
		Caller:         caller,
	})
	var failure *scoring.Failure
	if !errors.As(err, &failure) || failure.Kind != scoring.KindTimeout {
		t.Fatalf("expected timeout failure, got %v", err)
	}
	if got := f.balance(t, caller.Email); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
}

func TestAnalyzeLoginRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 1200),
		JobDescription: strings.Repeat("j", 600),
	})
	var loginErr *LoginRequiredError
	if !errors.As(err, &loginErr) {
		t.Fatalf("expected LoginRequiredError, got %v", err)
	}
	if loginErr.Usage.TotalChars != 1800 {
		t.Fatalf("usage = %+v", loginErr.Usage)
	}
	if len(loginErr.Messages) != 1 || !strings.HasPrefix(loginErr.Messages[0], "Resume too long: 1200/1000") {
		t.Fatalf("messages = %v", loginErr.Messages)
	}
	if errs, _ := loginErr.Details()["errors"].([]string); len(errs) != 1 {
		t.Fatalf("details should list violations, got %v", loginErr.Details())
	}
	if f.scorer.callCount() != 0 {
		t.Fatalf("scorer should not be called")
	}
}

func TestAnalyzeRejectsOversizeAndEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{ResumeText: " \x00\x01 ", JobDescription: "jd"})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	_, err = f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 3001),
		JobDescription: strings.Repeat("j", 1600),
	})
	var exceeded *limits.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if len(exceeded.Violations) != 3 || exceeded.Limits != limits.FreeLimits {
		t.Fatalf("unexpected anonymous violation: %+v", exceeded)
	}

	caller := f.seedUser(t, "big@example.com", 5)
	_, err = f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 3001),
		JobDescription: "jd",
		Caller:         caller,
	})
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if len(exceeded.Violations) != 1 || exceeded.Violations[0] != limits.DimensionResume || exceeded.Limits != limits.PaidLimits {
		t.Fatalf("unexpected paid violation: %+v", exceeded)
	}
	if got := f.balance(t, caller.Email); got != 5 {
		t.Fatalf("balance changed to %d", got)
	}
	if f.scorer.callCount() != 0 {
		t.Fatalf("scorer should not be called")
	}
}

func TestAnalyzeLostChargeRaceSkipsScoring(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "late@example.com", 1)
	f.svc.Ledger = credits.NewLedger(lostRaceStore{f.accounts})

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 1200),
		JobDescription: "jd",
		Caller:         caller,
	})
	if !errors.Is(err, ErrChargeRejected) {
		t.Fatalf("expected ErrChargeRejected, got %v", err)
	}
	if out.CreditUsed || out.Transition != "tier_checked->rejected_before_charge" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.scorer.callCount() != 0 {
		t.Fatalf("scorer should not be called, got %d calls", f.scorer.callCount())
	}
	saved, err := f.repo.ListByOwner(context.Background(), caller.Email, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected no saved entries, got %d", len(saved))
	}
	if got := f.balance(t, caller.Email); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
}

func TestAnalyzeConcurrentChargesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "race@example.com", 1)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
				ResumeText:     strings.Repeat("r", 1200),
				JobDescription: "jd",
				Caller:         caller,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrChargeRejected):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful analysis, got %d", succeeded)
	}
	if got := f.balance(t, caller.Email); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestAnalyzePersistFailureStillResponds(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "persist@example.com", 1)
	f.svc.Repo = &failingRepo{}

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ResumeText: "resume", JobDescription: "jd", Caller: caller})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.Saved || out.AnalysisID != "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestAnalyzeLogsStatusTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	f := newFixture(t)
	caller := f.seedUser(t, "log@example.com", 1)
	if _, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ResumeText:     strings.Repeat("r", 1200),
		JobDescription: "jd",
		Caller:         caller,
	}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var got []string
	for _, entry := range logs.FilterMessage("analysis.status").All() {
		got = append(got, entry.ContextMap()["status_transition"].(string))
	}
	want := []string{
		"received->normalized",
		"normalized->tier_checked",
		"tier_checked->credit_charged",
		"credit_charged->scored",
		"scored->persisted",
		"persisted->responded",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestHistoryAndLimits(t *testing.T) {
	f := newFixture(t)
	caller := f.seedUser(t, "hist@example.com", 4)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = f.repo.Create(context.Background(), Analysis{
			ID:         string(rune('a' + i)),
			OwnerEmail: caller.Email,
			Score:      i,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	items, err := f.svc.History(context.Background(), caller.Email, 2, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c" || items[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", items)
	}

	if _, err := f.svc.Get(context.Background(), "other@example.com", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}

	view := f.svc.Limits(context.Background(), caller)
	if view.Tier != limits.TierPaid || view.Limits != limits.PaidLimits || view.Credits == nil || *view.Credits != 4 {
		t.Fatalf("unexpected paid view: %+v", view)
	}
	anon := f.svc.Limits(context.Background(), nil)
	if anon.Tier != limits.TierFree || anon.Limits != limits.FreeLimits || anon.Credits != nil {
		t.Fatalf("unexpected anonymous view: %+v", anon)
	}
}
