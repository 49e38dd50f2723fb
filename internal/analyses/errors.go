package analyses

import (
	"errors"

	"resumegenie/internal/limits"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyInput          = errors.New("resume and job description cannot be empty")
	ErrInsufficientCredits = errors.New("not enough credits, please buy more to proceed")
	// ErrChargeRejected means the balance check passed but the guarded
	// decrement did not apply, usually because a concurrent request won.
	ErrChargeRejected = errors.New("credit deduction failed, please try again")
)

// LoginRequiredError is returned when an anonymous caller submits content
// beyond the free allowance.
type LoginRequiredError struct {
	Usage      limits.Usage
	FreeLimits limits.Table
	PaidLimits limits.Table
	// Messages names each dimension over the free ceiling.
	Messages []string
}

func (e *LoginRequiredError) Error() string {
	return "login required for longer resumes"
}

// Details is the structured payload returned to clients.
func (e *LoginRequiredError) Details() map[string]any {
	return map[string]any{
		"free_limits": e.FreeLimits,
		"paid_limits": e.PaidLimits,
		"current":     e.Usage,
		"errors":      e.Messages,
	}
}
