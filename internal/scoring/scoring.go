package scoring

import (
	"context"
	"fmt"

	"resumegenie/internal/limits"
)

// Request is the normalized input to a scoring call.
type Request struct {
	ResumeText     string
	JobDescription string
	Tier           limits.Tier
}

// Result is a successful analysis.
type Result struct {
	Score          int
	Feedback       string
	TailoredResume string
}

// Gateway scores a resume against a job description. Every failure is
// returned as *Failure.
type Gateway interface {
	Score(ctx context.Context, req Request) (Result, error)
}

// Completer sends a prompt to a text model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type FailureKind string

const (
	KindProviderRejected FailureKind = "provider_rejected"
	KindMalformed        FailureKind = "malformed_response"
	KindTransport        FailureKind = "transport"
	KindTimeout          FailureKind = "timeout"
)

// Failure is a scoring error safe to show to the caller.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("scoring %s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("scoring %s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
