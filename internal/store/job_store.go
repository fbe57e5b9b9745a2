package store

import (
	"context"

	"articlepress/internal/domain"
)

// JobPatch is a partial mutation. Nil fields are left untouched; the
// store refreshes UpdatedAt on every applied patch.
type JobPatch struct {
	Status       *string
	ErrorMessage *string
	ArtifactPath *string
}

// JobStore is the single source of truth for job lifecycle state.
// Get and Update report absence through their bool return rather than an
// error: an unknown id on Update is a no-op by contract, and the caller
// decides whether that is worth logging.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	Update(ctx context.Context, id string, patch JobPatch) (domain.Job, bool, error)
	Size(ctx context.Context) (int, error)
}

func String(s string) *string {
	return &s
}
