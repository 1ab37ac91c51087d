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

var _ adapter.SourceAdapter = (*TrendsAdapter)(nil)

// TrendsAdapter fetches search-interest series for the query keywords.
type TrendsAdapter struct {
	c *httpClient
}

func NewTrendsAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *TrendsAdapter {
	return &TrendsAdapter{c: newHTTPClient("trends", cfg, logger)}
}

func (a *TrendsAdapter) Name() string { return "trends" }

func (a *TrendsAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("timeframe", "today 3-m")

	raw, err := a.c.getJSON(ctx, "/v1/interest_over_time", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "interest_over_time"); err != nil {
		return nil, err
	}
	return raw, nil
}
