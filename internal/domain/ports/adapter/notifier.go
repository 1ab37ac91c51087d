package adapter

import "context"

// Notifier pushes a short message to the merchant's ops channel when a job
// reaches a terminal state. Best effort; errors are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
