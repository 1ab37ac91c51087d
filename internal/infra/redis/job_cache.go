package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// JobCache caches terminal job snapshots so hot polling of finished jobs
// does not hit the store. Only terminal jobs are cached: they are immutable,
// so staleness is impossible.
type JobCache struct {
	client *Client
	ttl    time.Duration
}

func NewJobCache(client *Client, ttl time.Duration) *JobCache {
	return &JobCache{client: client, ttl: ttl}
}

func (c *JobCache) Store(ctx context.Context, job *model.Job) error {
	if !job.Status.Terminal() {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "insight_job:"+job.ID, data, c.ttl)
}

func (c *JobCache) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := c.client.Get(ctx, "insight_job:"+jobID)
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *JobCache) Delete(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, "insight_job:"+jobID)
}
