package ai

import (
	"context"

	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
)

var _ adapter.LLMAdapter = (*NoopAdapter)(nil)

// NoopAdapter stands in when no AI provider is configured. Jobs still
// complete; they just carry no prose analysis.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (a *NoopAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (a *NoopAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "", nil
}
