// Package limits decides which usage tier applies to a request and whether the
// submitted content fits inside that tier's size ceilings.
package limits

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Tier classifies a caller for size-limit purposes.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// TierFor returns the paid tier for authenticated callers and free otherwise.
func TierFor(authenticated bool) Tier {
	if authenticated {
		return TierPaid
	}
	return TierFree
}

// Table is a set of character ceilings.
type Table struct {
	ResumeChars int `json:"resume_chars"`
	JDChars     int `json:"jd_chars"`
	TotalChars  int `json:"total_chars"`
}

var (
	// FreeLimits bounds free usage and is also the ceiling for anonymous callers.
	FreeLimits = Table{ResumeChars: 1000, JDChars: 1500, TotalChars: 2500}
	// PaidLimits is the ceiling for authenticated callers.
	PaidLimits = Table{ResumeChars: 3000, JDChars: 5000, TotalChars: 8000}
)

// ForTier returns the ceiling table for the tier.
func ForTier(tier Tier) Table {
	if tier == TierPaid {
		return PaidLimits
	}
	return FreeLimits
}

// Usage holds the measured character counts of a request.
type Usage struct {
	ResumeChars int `json:"resume_chars"`
	JDChars     int `json:"jd_chars"`
	TotalChars  int `json:"total_chars"`
}

// Measure counts code points of already-normalized text.
func Measure(resume, jobDescription string) Usage {
	r := utf8.RuneCountInString(resume)
	j := utf8.RuneCountInString(jobDescription)
	return Usage{ResumeChars: r, JDChars: j, TotalChars: r + j}
}

// IsFreeUsage reports whether every dimension fits within FreeLimits.
func IsFreeUsage(u Usage) bool {
	return within(u, FreeLimits)
}

func within(u Usage, t Table) bool {
	return u.ResumeChars <= t.ResumeChars &&
		u.JDChars <= t.JDChars &&
		u.TotalChars <= t.TotalChars
}

// Dimension names one measured quantity.
type Dimension string

const (
	DimensionResume Dimension = "resume"
	DimensionJD     Dimension = "jd"
	DimensionTotal  Dimension = "total"
)

// ExceededError lists every dimension that is over the tier's ceiling.
type ExceededError struct {
	Tier       Tier
	Violations []Dimension
	Messages   []string
	Limits     Table
	Current    Usage
}

func (e *ExceededError) Error() string {
	return "text limits exceeded: " + strings.Join(e.Messages, "; ")
}

// Details is the structured payload returned to clients.
func (e *ExceededError) Details() map[string]any {
	return map[string]any{
		"message": "Text limits exceeded",
		"errors":  e.Messages,
		"limits":  e.Limits,
		"current": e.Current,
		"tier":    e.Tier,
	}
}

// Validate checks u against the tier's ceiling and returns *ExceededError on violation.
func Validate(u Usage, tier Tier) error {
	limits := ForTier(tier)
	var violations []Dimension
	var messages []string

	if u.ResumeChars > limits.ResumeChars {
		violations = append(violations, DimensionResume)
		messages = append(messages, fmt.Sprintf("Resume too long: %d/%d characters", u.ResumeChars, limits.ResumeChars))
	}
	if u.JDChars > limits.JDChars {
		violations = append(violations, DimensionJD)
		messages = append(messages, fmt.Sprintf("Job description too long: %d/%d characters", u.JDChars, limits.JDChars))
	}
	if u.TotalChars > limits.TotalChars {
		violations = append(violations, DimensionTotal)
		messages = append(messages, fmt.Sprintf("Total content too long: %d/%d characters", u.TotalChars, limits.TotalChars))
	}
	if len(violations) == 0 {
		return nil
	}
	return &ExceededError{
		Tier:       tier,
		Violations: violations,
		Messages:   messages,
		Limits:     limits,
		Current:    u,
	}
}

// Decision is the outcome of classifying a request.
type Decision struct {
	Tier        Tier
	NeedsCredit bool
	Usage       Usage
	Limits      Table
}

// Classify validates the tier ceiling first and then applies the free-usage test.
func Classify(resume, jobDescription string, tier Tier) (Decision, error) {
	u := Measure(resume, jobDescription)
	if err := Validate(u, tier); err != nil {
		return Decision{}, err
	}
	return Decision{
		Tier:        tier,
		NeedsCredit: !IsFreeUsage(u),
		Usage:       u,
		Limits:      ForTier(tier),
	}, nil
}
