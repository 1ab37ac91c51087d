package worker

import (
	"context"
	"sync"

	"github.com/Kassag-stack/visionly.ai/internal/domain"

	"github.com/rs/zerolog"
)

// A small worker pool that bounds how many dispatch tasks run at once.
// Submitted jobs queue up to queueDepth; saturation surfaces as
// domain.ErrQueueFull so callers can decide whether to block.

type Task func(ctx context.Context)

type Pool struct {
	wg    sync.WaitGroup
	tasks chan Task
	quit  chan struct{}
	n     int
	log   *zerolog.Logger
}

func NewPool(workers, queueDepth int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = workers * 4
	}
	poolLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		tasks: make(chan Task, queueDepth),
		quit:  make(chan struct{}),
		n:     workers,
		log:   &poolLog,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.tasks:
					if task == nil {
						continue
					}
					task(ctx)
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Int("queue_depth", cap(p.tasks)).Msg("worker pool started")
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit enqueues without blocking; domain.ErrQueueFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Enqueue blocks until there is room, the context ends, or the pool stops.
// Used for accepted jobs that must not be dropped under load.
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	if task == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return domain.ErrQueueFull
	}
}
