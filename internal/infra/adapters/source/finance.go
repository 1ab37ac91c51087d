package source

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.SourceAdapter = (*FinanceAdapter)(nil)

// FinanceAdapter fetches exchange-rate and commodity series relevant to the
// merchant's supply costs.
type FinanceAdapter struct {
	c *httpClient
}

func NewFinanceAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *FinanceAdapter {
	return &FinanceAdapter{c: newHTTPClient("finance", cfg, logger)}
}

func (a *FinanceAdapter) Name() string { return "finance" }

func (a *FinanceAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("interval", "1d")

	raw, err := a.c.getJSON(ctx, "/v1/rates", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "rates"); err != nil {
		return nil, err
	}
	return raw, nil
}
