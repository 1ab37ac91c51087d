package usecase

import (
	"context"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase serves the admin counters.
type StatsUseCase interface {
	JobCounts(ctx context.Context) (map[model.JobStatus]int, error)
}

type statsUC struct {
	jobs repository.JobRepository
}

func NewStatsUseCase(jobs repository.JobRepository) *statsUC {
	return &statsUC{jobs: jobs}
}

func (u *statsUC) JobCounts(ctx context.Context) (map[model.JobStatus]int, error) {
	counts, err := u.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	// Zero-fill so dashboards always see every status key.
	for _, s := range []model.JobStatus{
		model.JobStatusPending, model.JobStatusRunning,
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusTimedOut,
	} {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	return counts, nil
}
