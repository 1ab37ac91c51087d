package repository

import (
	"context"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// JobRepository is the durable record of job state. Update is the only
// mutation path: implementations must serialize concurrent mutations of the
// same job so per-source completions never clobber each other.
type JobRepository interface {
	// Create stores a new job. Fails with domain.ErrAlreadyExists on id reuse.
	Create(ctx context.Context, job *model.Job) error

	// Get returns a read snapshot (deep copy). Fails with domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)

	// Update applies mutate atomically to the stored job and returns the
	// resulting snapshot. If mutate returns an error nothing is written.
	Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error)

	// List returns jobs ordered by creation time descending.
	List(ctx context.Context, offset, limit int) ([]*model.Job, error)

	// CountByStatus returns job totals keyed by status.
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)

	// DeleteTerminalBefore removes terminal jobs whose CompletedAt precedes
	// cutoff, returning how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
