package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo is the durable Postgres job store. The whole job record is kept as
// a JSONB payload with status/progress/timestamps mirrored into columns for
// indexable queries. Update serializes concurrent mutations of one job with
// SELECT ... FOR UPDATE.
type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
CREATE TABLE IF NOT EXISTS insight_jobs (
  id           TEXT PRIMARY KEY,
  status       TEXT NOT NULL,
  progress     INT NOT NULL DEFAULT 0,
  payload      JSONB NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS insight_jobs_created_at_idx ON insight_jobs (created_at DESC);`
	_, err := pool.Exec(ctx, q)
	return err
}

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO insight_jobs (id, status, progress, payload, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	_, err = r.pool.Exec(ctx, q, job.ID, job.Status, job.Progress, payload, job.CreatedAt, job.CompletedAt)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT payload FROM insight_jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

func (r *jobRepo) Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error) {
	var out *model.Job
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		const sel = `SELECT payload FROM insight_jobs WHERE id = $1 FOR UPDATE;`
		job, err := scanJob(ex.QueryRow(ctx, sel, id))
		if err != nil {
			return err
		}
		if err := mutate(job); err != nil {
			return err
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return err
		}
		const upd = `
UPDATE insight_jobs
SET status = $2, progress = $3, payload = $4, completed_at = $5
WHERE id = $1;`
		if _, err := ex.Exec(ctx, upd, job.ID, job.Status, job.Progress, payload, job.CompletedAt); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) List(ctx context.Context, offset, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
SELECT payload FROM insight_jobs
ORDER BY created_at DESC, id DESC
OFFSET $1 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		var job model.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM insight_jobs GROUP BY status;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *jobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `
DELETE FROM insight_jobs
WHERE status IN ('completed', 'failed', 'timed_out') AND completed_at < $1;`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	var job model.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
