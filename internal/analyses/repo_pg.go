package analyses

import (
	"context"
	"database/sql"
	"errors"

	"resumegenie/internal/limits"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, user_email, resume_text, job_description, score, feedback, tailored_resume, tier, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var tier string
	if err := row.Scan(
		&a.ID,
		&a.OwnerEmail,
		&a.ResumeText,
		&a.JobDescription,
		&a.Score,
		&a.Feedback,
		&a.TailoredResume,
		&tier,
		&a.CreatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Tier = limits.Tier(tier)
	return a, nil
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO resume_entries (id, user_email, resume_text, job_description, score, feedback, tailored_resume, tier, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.OwnerEmail,
		analysis.ResumeText,
		analysis.JobDescription,
		analysis.Score,
		analysis.Feedback,
		analysis.TailoredResume,
		string(analysis.Tier),
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerEmail, analysisID string) (Analysis, error) {
	const query = `
SELECT ` + selectColumns + `
FROM resume_entries
WHERE id = $1 AND user_email = $2
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, ownerEmail))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// ListByOwner returns analyses for an owner, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]Analysis, error) {
	if offset < 0 {
		offset = 0
	}
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	const query = `
SELECT ` + selectColumns + `
FROM resume_entries
WHERE user_email = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, ownerEmail, limitArg, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return analyses, nil
}

// ReassignOwner moves every analysis owned by from to to.
func (r *PGRepo) ReassignOwner(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `UPDATE resume_entries SET user_email = $2 WHERE user_email = $1`, from, to)
	return err
}

// EmailChanged lets the repo follow account email changes.
func (r *PGRepo) EmailChanged(ctx context.Context, from, to string) error {
	return r.ReassignOwner(ctx, from, to)
}
