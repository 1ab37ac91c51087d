package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo is the in-memory job store. Each job carries its own mutex so
// concurrent per-source completions of the same job serialize against each
// other without a global write lock across jobs.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	job *model.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]*entry)}
}

func (r *JobRepo) Create(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = &entry{job: job.Clone()}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

func (r *JobRepo) Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Mutate a copy so a failing mutation leaves the committed state intact.
	next := e.job.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	e.job = next
	return next.Clone(), nil
}

func (r *JobRepo) List(ctx context.Context, offset, limit int) ([]*model.Job, error) {
	r.mu.RLock()
	all := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		all = append(all, e)
	}
	r.mu.RUnlock()

	snapshots := make([]*model.Job, 0, len(all))
	for _, e := range all {
		e.mu.Lock()
		snapshots = append(snapshots, e.job.Clone())
		e.mu.Unlock()
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].ID > snapshots[j].ID
		}
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(snapshots) {
		return []*model.Job{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(snapshots) {
		end = len(snapshots)
	}
	return snapshots[offset:end], nil
}

func (r *JobRepo) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	r.mu.RLock()
	all := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		all = append(all, e)
	}
	r.mu.RUnlock()

	counts := make(map[model.JobStatus]int)
	for _, e := range all {
		e.mu.Lock()
		counts[e.job.Status]++
		e.mu.Unlock()
	}
	return counts, nil
}

func (r *JobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.jobs {
		e.mu.Lock()
		old := e.job.Status.Terminal() && e.job.CompletedAt != nil && e.job.CompletedAt.Before(cutoff)
		e.mu.Unlock()
		if old {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed, nil
}
