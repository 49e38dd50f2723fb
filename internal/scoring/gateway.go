package scoring

import (
	"context"
	"errors"
	"time"

	"resumegenie/internal/shared/telemetry"
)

// LLMGateway scores through a single Completer call.
type LLMGateway struct {
	completer Completer
	provider  string
	model     string
}

var _ Gateway = (*LLMGateway)(nil)

func NewGateway(completer Completer, provider, model string) *LLMGateway {
	return &LLMGateway{completer: completer, provider: provider, model: model}
}

func (g *LLMGateway) Provider() string { return g.provider }

func (g *LLMGateway) Model() string { return g.model }

// Score makes exactly one provider call. Transport errors, deadline expiry
// and undecodable replies all come back as *Failure.
func (g *LLMGateway) Score(ctx context.Context, req Request) (Result, error) {
	if g == nil || g.completer == nil {
		return Result{}, &Failure{Kind: KindTransport, Message: "scoring provider is not configured"}
	}

	start := time.Now()
	raw, err := g.completer.Complete(ctx, BuildPrompt(req))
	fields := map[string]any{
		"provider":    g.provider,
		"model":       g.model,
		"tier":        string(req.Tier),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		telemetry.Warn("scoring.provider_error", fields)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Failure{Kind: KindTimeout, Message: "scoring provider timed out", Err: err}
		}
		return Result{}, &Failure{Kind: KindTransport, Message: "scoring provider is unavailable", Err: err}
	}

	result, err := ParseResponse(raw)
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			fields["kind"] = string(failure.Kind)
		}
		telemetry.Warn("scoring.rejected", fields)
		return Result{}, err
	}
	fields["score"] = result.Score
	telemetry.Info("scoring.completed", fields)
	return result, nil
}
