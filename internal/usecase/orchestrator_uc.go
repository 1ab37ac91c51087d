package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
	"github.com/Kassag-stack/visionly.ai/internal/infra/logging"
	"github.com/Kassag-stack/visionly.ai/internal/infra/metrics"
	"github.com/Kassag-stack/visionly.ai/internal/infra/worker"
)

// Compile-time check
var _ OrchestratorUseCase = (*orchestratorUC)(nil)

// OrchestratorUseCase owns the job lifecycle: accept a query, fan out to
// the source adapters, fold the terminal results into an insight, and serve
// status polls.
type OrchestratorUseCase interface {
	// Submit validates the query, persists a pending job and schedules its
	// dispatch. The returned snapshot is what the caller should render.
	Submit(ctx context.Context, q model.Query) (*model.Job, error)
	// Status returns a read snapshot of the job.
	Status(ctx context.Context, jobID string) (*model.Job, error)
	// List pages jobs newest first.
	List(ctx context.Context, offset, limit int) ([]*model.Job, error)
}

// SourceRegistry resolves adapters by name.
type SourceRegistry interface {
	Get(name string) (adapter.SourceAdapter, bool)
	Names() []string
}

// JobCache is the optional read-through cache for terminal jobs.
type JobCache interface {
	Store(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// SubmissionLimiter bounds how often one shop may submit.
type SubmissionLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type orchestratorUC struct {
	jobs      repository.JobRepository
	registry  SourceRegistry
	pool      *worker.Pool
	agg       AggregateUseCase
	viz       VisualizeUseCase
	narrative NarrativeUseCase
	notifier  adapter.Notifier
	cache     JobCache          // nil when redis is not configured
	limiter   SubmissionLimiter // nil disables submission limiting
	jobsCfg   config.JobsConfig
	rateCfg   config.RateLimitConfig
	log       *zerolog.Logger

	limiterKey func(shopDomain string) string
}

func NewOrchestratorUseCase(
	jobs repository.JobRepository,
	registry SourceRegistry,
	pool *worker.Pool,
	agg AggregateUseCase,
	viz VisualizeUseCase,
	narrative NarrativeUseCase,
	notifier adapter.Notifier,
	cache JobCache,
	limiter SubmissionLimiter,
	limiterKey func(string) string,
	jobsCfg config.JobsConfig,
	rateCfg config.RateLimitConfig,
	logger *zerolog.Logger,
) *orchestratorUC {
	l := logger.With().Str("component", "OrchestratorUC").Logger()
	return &orchestratorUC{
		jobs:       jobs,
		registry:   registry,
		pool:       pool,
		agg:        agg,
		viz:        viz,
		narrative:  narrative,
		notifier:   notifier,
		cache:      cache,
		limiter:    limiter,
		limiterKey: limiterKey,
		jobsCfg:    jobsCfg,
		rateCfg:    rateCfg,
		log:        &l,
	}
}

func (u *orchestratorUC) Submit(ctx context.Context, q model.Query) (*model.Job, error) {
	if err := u.validate(&q); err != nil {
		return nil, err
	}

	if u.limiter != nil && u.rateCfg.SubmissionsPerMinute > 0 {
		key := u.limiterKey(q.Snapshot.ShopDomain)
		allowed, err := u.limiter.Allow(ctx, key, u.rateCfg.SubmissionsPerMinute, time.Minute)
		if err != nil {
			// Fail open: a limiter outage must not block submissions.
			u.log.Warn().Err(err).Msg("submission limiter unavailable")
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	job := model.NewJob(ulid.Make().String(), q, time.Now().UTC())
	if err := u.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	metrics.IncJobSubmitted()

	task := func(taskCtx context.Context) { u.run(taskCtx, job.ID) }
	if err := u.pool.Submit(task); err != nil {
		if !errors.Is(err, domain.ErrQueueFull) {
			return nil, err
		}
		// The job is already accepted and persisted, so park a goroutine
		// on the blocking path instead of dropping it.
		u.log.Warn().Str("job_id", job.ID).Msg("dispatch queue saturated, enqueue blocking")
		go func() {
			if err := u.pool.Enqueue(context.Background(), task); err != nil {
				u.failJob(context.Background(), job.ID, "dispatch queue unavailable: "+err.Error())
			}
		}()
	}
	return job.Clone(), nil
}

func (u *orchestratorUC) validate(q *model.Query) error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty query text", domain.ErrInvalidQuery)
	}
	if !q.Snapshot.Valid() {
		return fmt.Errorf("%w: snapshot missing shop domain or products", domain.ErrInvalidQuery)
	}
	if len(q.Sources) == 0 {
		q.Sources = u.registry.Names()
		if len(q.Sources) == 0 {
			return fmt.Errorf("%w: no sources configured", domain.ErrInvalidQuery)
		}
		return nil
	}
	seen := make(map[string]struct{}, len(q.Sources))
	for _, s := range q.Sources {
		if _, ok := u.registry.Get(s); !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownSource, s)
		}
		seen[s] = struct{}{}
	}
	if len(seen) != len(q.Sources) {
		return fmt.Errorf("%w: duplicate sources", domain.ErrInvalidQuery)
	}
	return nil
}

func (u *orchestratorUC) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if u.cache != nil {
		if job, err := u.cache.Get(ctx, jobID); err == nil && job != nil {
			return job, nil
		}
	}
	job, err := u.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if u.cache != nil && job.Status.Terminal() {
		if err := u.cache.Store(ctx, job); err != nil {
			u.log.Debug().Err(err).Str("job_id", jobID).Msg("job cache store failed")
		}
	}
	return job, nil
}

func (u *orchestratorUC) List(ctx context.Context, offset, limit int) ([]*model.Job, error) {
	return u.jobs.List(ctx, offset, limit)
}

// run is the dispatch path executed on the worker pool.
func (u *orchestratorUC) run(ctx context.Context, jobID string) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, u.log)

	job, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		if j.Status != model.JobStatusPending {
			return fmt.Errorf("%w: job %s is %s, not pending", domain.ErrInvalidArgument, j.ID, j.Status)
		}
		j.Status = model.JobStatusRunning
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("job could not start")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, u.jobsCfg.JobTimeout)
	defer cancel()

	g := new(errgroup.Group)
	for _, name := range job.Query.Sources {
		name := name
		ad, ok := u.registry.Get(name)
		if !ok {
			// Validated at submit time; an adapter can still disappear on
			// a config reload between accept and dispatch.
			u.recordSource(ctx, jobID, &model.SourceResult{
				Source: name,
				State:  model.SourceStateError,
				Error:  &model.SourceError{Kind: model.FailureUnreachable, Message: "source not configured"},
			})
			continue
		}
		g.Go(func() error {
			u.recordSource(ctx, jobID, u.fetchOne(jobCtx, ad, job.Query))
			return nil
		})
	}
	_ = g.Wait()

	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	u.finalize(ctx, jobID, timedOut)
}

// fetchOne runs one adapter under the per-source timeout and classifies the
// outcome. It never returns an error: failures become the result's state.
func (u *orchestratorUC) fetchOne(ctx context.Context, ad adapter.SourceAdapter, q model.Query) *model.SourceResult {
	srcCtx, cancel := context.WithTimeout(ctx, u.jobsCfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	raw, err := ad.Fetch(srcCtx, adapter.SourceQuery{Query: q.Text, Timestamp: start.UTC()})
	latency := time.Since(start).Milliseconds()

	res := &model.SourceResult{Source: ad.Name(), LatencyMs: latency}
	switch {
	case err == nil:
		res.State = model.SourceStateOK
		res.Data = raw
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		res.State = model.SourceStateTimeout
		res.Error = &model.SourceError{Kind: model.FailureTimeout, Message: "source deadline exceeded"}
	default:
		res.State = model.SourceStateError
		var se *model.SourceError
		if errors.As(err, &se) {
			res.Error = se
		} else {
			res.Error = &model.SourceError{Kind: model.FailureUnreachable, Message: err.Error()}
		}
	}
	metrics.ObserveSourceFetch(res.Source, string(res.State), latency)
	return res
}

// recordSource commits one terminal source result. The first terminal state
// wins: a late fetch never overwrites a retroactive timeout and vice versa.
func (u *orchestratorUC) recordSource(ctx context.Context, jobID string, res *model.SourceResult) {
	_, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		slot, ok := j.SourceResults[res.Source]
		if !ok || slot.State.Terminal() {
			return nil
		}
		*slot = *res
		j.RecomputeProgress()
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Str("source", res.Source).Msg("source result not recorded")
	}
}

// finalize stamps any still-pending sources, aggregates what succeeded and
// moves the job to its terminal status.
func (u *orchestratorUC) finalize(ctx context.Context, jobID string, timedOut bool) {
	log := logging.With(logging.WithJobID(ctx, jobID), u.log)

	job, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		for _, r := range j.SourceResults {
			if !r.State.Terminal() {
				r.State = model.SourceStateTimeout
				r.Error = &model.SourceError{Kind: model.FailureTimeout, Message: "job deadline exceeded"}
			}
		}
		j.RecomputeProgress()
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("finalize: source results not settled")
		return
	}

	// Aggregation and artifacts run outside the store mutation so the
	// record is never locked across an LLM round trip. Only this runner
	// writes the job after fan-in, so the read is not racy.
	var (
		insight   *model.CombinedInsight
		artifacts map[string]json.RawMessage
		analysis  string
		lastError string
	)
	insight, aggErr := u.agg.Combine(ctx, job.SourceResults)
	switch {
	case aggErr == nil:
		artifacts = u.viz.Render(ctx, job.SourceResults, insight)
		analysis = u.generateNarrative(job.Query, insight)
	case errors.Is(aggErr, domain.ErrNoSourcesSucceeded):
		lastError = aggErr.Error()
	default:
		log.Error().Err(aggErr).Msg("aggregation failed")
		lastError = aggErr.Error()
	}

	status := model.JobStatusCompleted
	if timedOut {
		status = model.JobStatusTimedOut
	} else if insight == nil {
		status = model.JobStatusFailed
	}

	final, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		j.Insight = insight
		j.Artifacts = artifacts
		j.DetailedAnalysis = analysis
		j.LastError = lastError
		j.Finish(status, time.Now().UTC())
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("finalize: terminal status not persisted")
		return
	}

	metrics.ObserveJobFinished(string(final.Status), time.Since(final.CreatedAt).Seconds())
	log.Info().
		Str("status", string(final.Status)).
		Int("progress", final.Progress).
		Bool("degraded", insight != nil && insight.Degraded).
		Msg("job finished")

	if u.cache != nil {
		if err := u.cache.Store(ctx, final); err != nil {
			log.Debug().Err(err).Msg("job cache store failed")
		}
	}
	u.notify(ctx, final)
}

// generateNarrative runs the LLM stage on its own deadline, detached from
// the job context: a timed-out job still gets its narrative attempt.
func (u *orchestratorUC) generateNarrative(q model.Query, insight *model.CombinedInsight) string {
	if u.narrative == nil {
		return ""
	}
	nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	text, err := u.narrative.Generate(nctx, q, insight)
	if err != nil {
		u.log.Warn().Err(err).Msg("narrative skipped")
		return ""
	}
	return text
}

func (u *orchestratorUC) notify(ctx context.Context, job *model.Job) {
	if u.notifier == nil {
		return
	}
	text := fmt.Sprintf("Analysis %s for %s: %s (progress %d%%)",
		job.ID, job.Query.Snapshot.ShopDomain, job.Status, job.Progress)
	if err := u.notifier.Notify(ctx, text); err != nil {
		u.log.Debug().Err(err).Msg("notify failed")
	}
}

func (u *orchestratorUC) failJob(ctx context.Context, jobID, reason string) {
	_, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		j.LastError = reason
		j.Finish(model.JobStatusFailed, time.Now().UTC())
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Msg("job not marked failed")
	}
}
