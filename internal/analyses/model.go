package analyses

import (
	"time"

	"resumegenie/internal/limits"
)

// Analysis is a saved scoring result. Only authenticated callers get one.
type Analysis struct {
	ID             string      `json:"id"`
	OwnerEmail     string      `json:"user_email"`
	ResumeText     string      `json:"resume_text"`
	JobDescription string      `json:"job_description"`
	Score          int         `json:"score"`
	Feedback       string      `json:"feedback"`
	TailoredResume string      `json:"tailored_resume"`
	Tier           limits.Tier `json:"tier"`
	CreatedAt      time.Time   `json:"created_at"`
}
