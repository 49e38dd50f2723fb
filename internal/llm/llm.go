// Package llm holds what the text-model providers share.
package llm

import (
	"context"
	"errors"

	"resumegenie/internal/shared/telemetry"
)

// DefaultTemperature keeps scoring replies stable between calls.
const DefaultTemperature float32 = 0.3

// SystemInstruction is sent ahead of every scoring prompt.
const SystemInstruction = "You are a professional resume analysis assistant. Respond only with a single JSON object."

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// ErrEmptyReply is returned when a provider answers without text.
var ErrEmptyReply = errors.New("LLM reply was empty")

// PlaceholderClient stands in when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	_ = prompt
	return "", ErrNotImplemented
}

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LogUsage records a completed provider call.
func LogUsage(provider, model string, usage *Usage) {
	fields := map[string]any{
		"provider": provider,
		"model":    model,
	}
	if usage != nil {
		fields["prompt_tokens"] = usage.PromptTokens
		fields["completion_tokens"] = usage.CompletionTokens
		fields["total_tokens"] = usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}
