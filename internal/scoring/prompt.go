package scoring

import (
	"strings"

	"resumegenie/internal/limits"
)

const paidValidation = `VALIDATION REQUIREMENTS:
The job description must include:
- Job responsibilities or description
- Required qualifications or skills
- Company or role context

The resume must include:
- Education section
- Work experience
- Skills section
- Projects or accomplishments

If validation fails, return success=false with a message listing what is missing.`

const freeValidation = `VALIDATION REQUIREMENTS:
Basic validation only. Work with whatever content is provided, even if some sections are missing:
- The job description should contain some job-related information
- The resume should contain some professional information`

const responseFormat = `RESPONSE FORMAT:
Respond ONLY with a JSON object in exactly this shape:
{
  "success": true or false,
  "score": <integer 0-100>,
  "message": "<error message when success is false>",
  "feedback": "<detailed, actionable feedback>",
  "tailored_resume": "<the complete resume rewritten for this job>"
}`

// BuildPrompt renders the provider prompt. Paid requests ask the provider to
// reject incomplete inputs; free requests are scored best-effort.
func BuildPrompt(req Request) string {
	paid := req.Tier == limits.TierPaid

	var b strings.Builder
	b.WriteString("You are a professional resume analysis assistant. You will receive a job description and a resume, then score the fit and produce an optimized resume.\n\n")
	if paid {
		b.WriteString(paidValidation)
	} else {
		b.WriteString(freeValidation)
	}
	b.WriteString("\n\nTASK:\n")
	if paid {
		b.WriteString("1. Validate that both inputs meet the requirements\n")
	} else {
		b.WriteString("1. Review the provided content\n")
	}
	b.WriteString("2. Score the resume's fit for the job from 0 to 100\n")
	b.WriteString("3. Provide specific, actionable feedback\n")
	b.WriteString("4. Generate an optimized resume tailored to the job, keeping the original format\n\n")
	b.WriteString(responseFormat)
	b.WriteString("\n\nJOB DESCRIPTION:\n")
	b.WriteString(req.JobDescription)
	b.WriteString("\n\nRESUME:\n")
	b.WriteString(req.ResumeText)
	b.WriteString("\n")
	return b.String()
}
