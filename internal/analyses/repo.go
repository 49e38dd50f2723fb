package analyses

import "context"

// Repo defines persistence operations for analyses. Every read is scoped to
// the owning email.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, ownerEmail, analysisID string) (Analysis, error)
	// ListByOwner returns newest first. A limit of zero means no limit.
	ListByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]Analysis, error)
	ReassignOwner(ctx context.Context, from, to string) error
}
