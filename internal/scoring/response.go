package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const rawSnippetLen = 200

type providerReply struct {
	Success        *bool        `json:"success"`
	Score          *json.Number `json:"score"`
	Message        string       `json:"message"`
	Feedback       *string      `json:"feedback"`
	TailoredResume *string      `json:"tailored_resume"`
}

// ParseResponse decodes a provider reply. Markdown code fences around the JSON
// are tolerated and the score is clamped into [0,100].
func ParseResponse(raw string) (Result, error) {
	content := StripCodeFences(raw)
	if content == "" {
		return Result{}, &Failure{Kind: KindMalformed, Message: "empty response from scoring provider"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()
	var reply providerReply
	if err := dec.Decode(&reply); err != nil {
		return Result{}, &Failure{
			Kind:    KindMalformed,
			Message: "failed to parse scoring response: " + snippet(content),
			Err:     err,
		}
	}
	if reply.Success == nil {
		return Result{}, &Failure{Kind: KindMalformed, Message: "missing or invalid 'success' field"}
	}
	if !*reply.Success {
		msg := strings.TrimSpace(reply.Message)
		if msg == "" {
			msg = "the scoring provider rejected the input"
		}
		return Result{}, &Failure{Kind: KindProviderRejected, Message: msg}
	}

	switch {
	case reply.Score == nil:
		return Result{}, &Failure{Kind: KindMalformed, Message: "missing required field: score"}
	case reply.Feedback == nil:
		return Result{}, &Failure{Kind: KindMalformed, Message: "missing required field: feedback"}
	case reply.TailoredResume == nil:
		return Result{}, &Failure{Kind: KindMalformed, Message: "missing required field: tailored_resume"}
	}

	score, err := reply.Score.Float64()
	if err != nil || math.IsNaN(score) {
		return Result{}, &Failure{Kind: KindMalformed, Message: fmt.Sprintf("invalid score %q", reply.Score.String())}
	}
	return Result{
		Score:          clampScore(score),
		Feedback:       *reply.Feedback,
		TailoredResume: *reply.TailoredResume,
	}, nil
}

// StripCodeFences returns the body of the first ```json (or bare ```) block,
// or the trimmed input when there is none.
func StripCodeFences(raw string) string {
	content := strings.TrimSpace(raw)
	open := "```json"
	start := strings.Index(content, open)
	if start < 0 {
		open = "```"
		start = strings.Index(content, open)
	}
	if start < 0 {
		return content
	}
	body := content[start+len(open):]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= rawSnippetLen {
		return s
	}
	return string(r[:rawSnippetLen]) + "..."
}
