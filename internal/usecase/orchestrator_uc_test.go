package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
	"github.com/Kassag-stack/visionly.ai/internal/infra/memstore"
	"github.com/Kassag-stack/visionly.ai/internal/infra/worker"
)

// --- fakes ---

type fakeAdapter struct {
	name    string
	payload string
	err     error
	delay   time.Duration
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return json.RawMessage(a.payload), nil
}

type fakeRegistry struct {
	adapters map[string]adapter.SourceAdapter
}

func newFakeRegistry(ads ...*fakeAdapter) *fakeRegistry {
	r := &fakeRegistry{adapters: make(map[string]adapter.SourceAdapter)}
	for _, a := range ads {
		r.adapters[a.name] = a
	}
	return r
}

func (r *fakeRegistry) Get(name string) (adapter.SourceAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *fakeRegistry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

// --- harness ---

type harness struct {
	uc       *orchestratorUC
	notifier *fakeNotifier
	pool     *worker.Pool
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, jobsCfg config.JobsConfig, limiter SubmissionLimiter, ads ...*fakeAdapter) *harness {
	t.Helper()
	if jobsCfg.SourceTimeout == 0 {
		jobsCfg.SourceTimeout = time.Second
	}
	if jobsCfg.JobTimeout == 0 {
		jobsCfg.JobTimeout = 5 * time.Second
	}

	log := nopLogger()
	pool := worker.NewPool(2, 8, log)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	notifier := &fakeNotifier{}
	uc := NewOrchestratorUseCase(
		memstore.NewJobRepo(),
		newFakeRegistry(ads...),
		pool,
		NewAggregateUseCase(log),
		NewVisualizeUseCase(log),
		nil,
		notifier,
		nil,
		limiter,
		func(shop string) string { return "test:" + shop },
		jobsCfg,
		config.RateLimitConfig{SubmissionsPerMinute: 10},
		log,
	)
	h := &harness{uc: uc, notifier: notifier, pool: pool, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	return h
}

func (h *harness) waitTerminal(t *testing.T, jobID string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.uc.Status(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func submitQuery(sources ...string) model.Query {
	return model.Query{
		Text:    "how are my snowboards doing",
		Sources: sources,
		Snapshot: model.StoreSnapshot{
			ShopDomain: "snowpeak.myshopify.com",
			Products:   []model.Product{{ID: "p1", Title: "Alpine Snowboard"}},
		},
	}
}

// --- tests ---

func TestSubmitRunsJobToCompletion(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil,
		&fakeAdapter{name: "meta", payload: `{"posts": [
			{"likes": 10, "comments": 4, "sentiment": 0.3, "caption": "board drop"},
			{"likes": 30, "comments": 10, "sentiment": 0.5, "caption": "new stock"}
		]}`},
		&fakeAdapter{name: "trends", payload: `{"interest_over_time": [5, 9, 14, 20]}`},
	)

	job, err := h.uc.Submit(context.Background(), submitQuery("meta", "trends"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("submitted status = %s, want pending", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("submitted progress = %d, want 0", job.Progress)
	}

	final := h.waitTerminal(t, job.ID)
	if final.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (last_error=%q)", final.Status, final.LastError)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	if final.Insight == nil {
		t.Fatal("completed job must carry an insight")
	}
	if final.Insight.Degraded {
		t.Error("all sources ok, insight must not be degraded")
	}
	if len(final.Artifacts) == 0 {
		t.Error("completed job must carry artifacts")
	}
	for name, r := range final.SourceResults {
		if r.State != model.SourceStateOK {
			t.Errorf("source %s state = %s, want ok", name, r.State)
		}
	}
	if h.notifier.count() == 0 {
		t.Error("terminal job must trigger a notification")
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil, &fakeAdapter{name: "meta", payload: `{"posts": []}`})

	q := submitQuery("meta")
	q.Text = ""
	if _, err := h.uc.Submit(context.Background(), q); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("empty text: err = %v, want ErrInvalidQuery", err)
	}

	q = submitQuery("meta")
	q.Snapshot.Products = nil
	if _, err := h.uc.Submit(context.Background(), q); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("empty snapshot: err = %v, want ErrInvalidQuery", err)
	}

	if _, err := h.uc.Submit(context.Background(), submitQuery("does-not-exist")); !errors.Is(err, domain.ErrUnknownSource) {
		t.Errorf("unknown source: err = %v, want ErrUnknownSource", err)
	}

	if _, err := h.uc.Submit(context.Background(), submitQuery("meta", "meta")); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("duplicate sources: err = %v, want ErrInvalidQuery", err)
	}
}

func TestSubmitDefaultsToAllConfiguredSources(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil,
		&fakeAdapter{name: "trends", payload: `{"interest_over_time": [1, 2, 3]}`},
	)
	job, err := h.uc.Submit(context.Background(), submitQuery())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(job.Query.Sources) != 1 || job.Query.Sources[0] != "trends" {
		t.Fatalf("defaulted sources = %v, want [trends]", job.Query.Sources)
	}
	h.waitTerminal(t, job.ID)
}

func TestPartialFailureCompletesDegraded(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil,
		&fakeAdapter{name: "trends", payload: `{"interest_over_time": [3, 2, 1]}`},
		&fakeAdapter{name: "news", err: &model.SourceError{Kind: model.FailureUnreachable, Message: "dial tcp: refused"}},
	)

	job, err := h.uc.Submit(context.Background(), submitQuery("trends", "news"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := h.waitTerminal(t, job.ID)
	if final.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if final.Insight == nil || !final.Insight.Degraded {
		t.Error("partial failure must complete with a degraded insight")
	}
	news := final.SourceResults["news"]
	if news.State != model.SourceStateError || news.Error == nil || news.Error.Kind != model.FailureUnreachable {
		t.Errorf("news result = %+v, want unreachable error", news)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
}

func TestAllSourcesFailedJobFails(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil,
		&fakeAdapter{name: "meta", err: &model.SourceError{Kind: model.FailureUnauthorized, Message: "401"}},
		&fakeAdapter{name: "news", err: &model.SourceError{Kind: model.FailureRateLimited, Message: "429"}},
	)

	job, err := h.uc.Submit(context.Background(), submitQuery("meta", "news"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := h.waitTerminal(t, job.ID)
	if final.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.Insight != nil {
		t.Error("failed job must not carry an insight")
	}
	if final.LastError == "" {
		t.Error("failed job must explain itself in last_error")
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100 (all sources terminal)", final.Progress)
	}
}

func TestJobTimeoutMarksPendingSourcesAndKeepsInsight(t *testing.T) {
	h := newHarness(t,
		config.JobsConfig{SourceTimeout: 2 * time.Second, JobTimeout: 100 * time.Millisecond},
		nil,
		&fakeAdapter{name: "trends", payload: `{"interest_over_time": [8, 9, 12]}`},
		&fakeAdapter{name: "weather", delay: 3 * time.Second, payload: `{"hourly": {}}`},
	)

	job, err := h.uc.Submit(context.Background(), submitQuery("trends", "weather"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := h.waitTerminal(t, job.ID)
	if final.Status != model.JobStatusTimedOut {
		t.Fatalf("status = %s, want timed_out", final.Status)
	}
	w := final.SourceResults["weather"]
	if w.State != model.SourceStateTimeout {
		t.Errorf("slow source state = %s, want timeout", w.State)
	}
	if final.SourceResults["trends"].State != model.SourceStateOK {
		t.Error("fast source must keep its ok result")
	}
	if final.Insight == nil {
		t.Error("timed-out job with one ok source must still aggregate")
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100 after retroactive timeouts", final.Progress)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not stamped on timeout")
	}
}

func TestSubmitRateLimited(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, denyLimiter{},
		&fakeAdapter{name: "meta", payload: `{"posts": []}`},
	)
	if _, err := h.uc.Submit(context.Background(), submitQuery("meta")); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil, &fakeAdapter{name: "meta", payload: `{"posts": []}`})
	if _, err := h.uc.Status(context.Background(), "no-such-job"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestProgressIsMonotone(t *testing.T) {
	h := newHarness(t, config.JobsConfig{}, nil,
		&fakeAdapter{name: "meta", payload: `{"posts": [{"likes": 1, "comments": 1, "sentiment": 0}]}`},
		&fakeAdapter{name: "trends", delay: 80 * time.Millisecond, payload: `{"interest_over_time": [1, 2]}`},
	)

	job, err := h.uc.Submit(context.Background(), submitQuery("meta", "trends"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cur, err := h.uc.Status(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if cur.Progress < last {
			t.Fatalf("progress regressed: %d -> %d", last, cur.Progress)
		}
		last = cur.Progress
		if cur.Status.Terminal() {
			if cur.Progress != 100 {
				t.Fatalf("terminal progress = %d, want 100", cur.Progress)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never finished")
}
