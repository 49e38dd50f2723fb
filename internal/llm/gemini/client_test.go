package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"resumegenie/internal/llm"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "  ", "gemini-2.5-flash"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestCompleteJoinsParts(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"success":true,`, "", ` "score":10}`)}
	c := newClient(fake, "")

	out, err := c.Complete(context.Background(), "  score me  ")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "{\"success\":true,\n\"score\":10}" {
		t.Fatalf("output = %q", out)
	}
	if fake.model != defaultModel || c.Model() != defaultModel {
		t.Fatalf("model = %q", fake.model)
	}
	if fake.prompt != "score me" {
		t.Fatalf("prompt = %q", fake.prompt)
	}
	if fake.config == nil || fake.config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON response config")
	}
	if fake.config.Temperature == nil || *fake.config.Temperature != llm.DefaultTemperature {
		t.Fatalf("expected default temperature")
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	c := newClient(&fakeModels{resp: &genai.GenerateContentResponse{}}, "gemini-pro")
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, llm.ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestCompleteWrapsSDKError(t *testing.T) {
	sdkErr := genai.APIError{Code: 503, Status: "UNAVAILABLE"}
	c := newClient(&fakeModels{err: sdkErr}, "gemini-pro")

	_, err := c.Complete(context.Background(), "p")
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 503 {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
}

func TestCompleteRejectsEmptyPrompt(t *testing.T) {
	fake := &fakeModels{resp: textResponse("x")}
	if _, err := newClient(fake, "m").Complete(context.Background(), "   "); err == nil {
		t.Fatalf("expected error")
	}
	if fake.model != "" {
		t.Fatalf("provider should not be called")
	}
}
