package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/infra/memstore"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func seedJob(t *testing.T, repo *memstore.JobRepo, id string, createdAt time.Time, status model.JobStatus) {
	t.Helper()
	q := model.Query{
		Text:    "demand outlook",
		Sources: []string{"news"},
		Snapshot: model.StoreSnapshot{
			ShopDomain: "snowpeak.myshopify.com",
			Products:   []model.Product{{ID: "p1", Title: "Alpine Snowboard"}},
		},
	}
	j := model.NewJob(id, q, createdAt)
	if status.Terminal() {
		j.Finish(status, createdAt.Add(time.Minute))
	}
	if err := repo.Create(context.Background(), j); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestSweepRemovesOnlyExpiredTerminalJobs(t *testing.T) {
	repo := memstore.NewJobRepo()
	now := time.Now()
	seedJob(t, repo, "expired-completed", now.Add(-48*time.Hour), model.JobStatusCompleted)
	seedJob(t, repo, "expired-failed", now.Add(-48*time.Hour), model.JobStatusFailed)
	seedJob(t, repo, "expired-pending", now.Add(-48*time.Hour), model.JobStatusPending)
	seedJob(t, repo, "fresh-completed", now, model.JobStatusCompleted)

	w := NewRetentionWorker(time.Hour, 24*time.Hour, repo, nil, testLogger())
	w.sweep(context.Background())

	for _, id := range []string{"expired-completed", "expired-failed"} {
		if _, err := repo.Get(context.Background(), id); !errors.Is(err, domain.ErrJobNotFound) {
			t.Fatalf("%s should have been swept, got %v", id, err)
		}
	}
	for _, id := range []string{"expired-pending", "fresh-completed"} {
		if _, err := repo.Get(context.Background(), id); err != nil {
			t.Fatalf("%s must survive the sweep: %v", id, err)
		}
	}
}

func TestRunSweepsOnTickAndStopsOnCancel(t *testing.T) {
	repo := memstore.NewJobRepo()
	seedJob(t, repo, "expired", time.Now().Add(-48*time.Hour), model.JobStatusCompleted)

	w := NewRetentionWorker(10*time.Millisecond, 24*time.Hour, repo, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := repo.Get(context.Background(), "expired"); errors.Is(err, domain.ErrJobNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expired job was never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
