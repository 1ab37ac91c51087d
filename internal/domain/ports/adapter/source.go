package adapter

import (
	"context"
	"encoding/json"
	"time"
)

// SourceQuery is what every adapter is invoked with: the analysis text plus
// the submission timestamp the providers expect.
type SourceQuery struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceAdapter is the uniform fetch capability, one implementation per
// external provider. Fetch returns the provider payload on success or a
// *model.SourceError classifying the failure. Adapters own their auth,
// pagination and bounded retry-with-backoff; the orchestrator never retries.
// Implementations must honor ctx cancellation promptly.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, q SourceQuery) (json.RawMessage, error)
}
