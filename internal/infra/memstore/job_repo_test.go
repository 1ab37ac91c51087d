package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

func sampleQuery(sources ...string) model.Query {
	return model.Query{
		Text:    "winter demand outlook",
		Sources: sources,
		Snapshot: model.StoreSnapshot{
			ShopDomain: "snowpeak.myshopify.com",
			Products:   []model.Product{{ID: "p1", Title: "Alpine Snowboard"}},
		},
	}
}

func TestCreateAndGetReturnsCopy(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()
	job := model.NewJob("job-1", sampleQuery("news"), time.Now())

	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Mutating the original after Create must not leak into the store.
	job.Status = model.JobStatusFailed

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobStatusPending {
		t.Fatalf("stored job mutated through caller reference: %s", got.Status)
	}
	// And mutating the returned snapshot must not write back.
	got.SourceResults["news"].State = model.SourceStateOK
	again, _ := repo.Get(ctx, "job-1")
	if again.SourceResults["news"].State != model.SourceStatePending {
		t.Fatal("snapshot mutation leaked into store")
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()
	job := model.NewJob("job-1", sampleQuery("news"), time.Now())
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, job); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	repo := NewJobRepo()
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := repo.Update(context.Background(), "nope", func(j *model.Job) error { return nil }); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpdateFailureLeavesStateIntact(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, model.NewJob("job-1", sampleQuery("news"), time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "job-1", func(j *model.Job) error {
		j.Status = model.JobStatusRunning
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	got, _ := repo.Get(ctx, "job-1")
	if got.Status != model.JobStatusPending {
		t.Fatalf("failed mutation was committed: %s", got.Status)
	}
}

func TestConcurrentSourceUpdatesAreNotLost(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()

	sources := make([]string, 20)
	for i := range sources {
		sources[i] = fmt.Sprintf("src%02d", i)
	}
	if err := repo.Create(ctx, model.NewJob("job-1", sampleQuery(sources...), time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			_, err := repo.Update(ctx, "job-1", func(j *model.Job) error {
				j.SourceResults[src].State = model.SourceStateOK
				j.RecomputeProgress()
				return nil
			})
			if err != nil {
				t.Errorf("update %s: %v", src, err)
			}
		}(src)
	}
	wg.Wait()

	got, _ := repo.Get(ctx, "job-1")
	for _, src := range sources {
		if got.SourceResults[src].State != model.SourceStateOK {
			t.Fatalf("lost update for %s", src)
		}
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %d, want 100", got.Progress)
	}
}

func TestDeleteTerminalBefore(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()
	now := time.Now()

	oldDone := model.NewJob("old-done", sampleQuery("news"), now.Add(-48*time.Hour))
	oldDone.Finish(model.JobStatusCompleted, now.Add(-47*time.Hour))
	oldPending := model.NewJob("old-pending", sampleQuery("news"), now.Add(-48*time.Hour))
	fresh := model.NewJob("fresh", sampleQuery("news"), now)
	fresh.Finish(model.JobStatusFailed, now)

	for _, j := range []*model.Job{oldDone, oldPending, fresh} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("create %s: %v", j.ID, err)
		}
	}

	n, err := repo.DeleteTerminalBefore(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d jobs, want 1", n)
	}
	if _, err := repo.Get(ctx, "old-done"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatal("old terminal job should be gone")
	}
	if _, err := repo.Get(ctx, "old-pending"); err != nil {
		t.Fatal("non-terminal job must never be swept")
	}
	if _, err := repo.Get(ctx, "fresh"); err != nil {
		t.Fatal("recent terminal job must survive")
	}
}

func TestListOrdering(t *testing.T) {
	repo := NewJobRepo()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		j := model.NewJob(fmt.Sprintf("job-%d", i), sampleQuery("news"), base.Add(time.Duration(i)*time.Second))
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	jobs, err := repo.List(ctx, 0, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len = %d, want 3", len(jobs))
	}
	if jobs[0].ID != "job-4" || jobs[2].ID != "job-2" {
		t.Fatalf("unexpected order: %s, %s, %s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}
