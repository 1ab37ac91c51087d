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

var _ adapter.SourceAdapter = (*NewsAdapter)(nil)

// NewsAdapter fetches recent coverage with per-article sentiment scores.
type NewsAdapter struct {
	c *httpClient
}

func NewNewsAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *NewsAdapter {
	return &NewsAdapter{c: newHTTPClient("news", cfg, logger)}
}

func (a *NewsAdapter) Name() string { return "news" }

func (a *NewsAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("language", "en")
	params.Set("sort_by", "relevancy")

	raw, err := a.c.getJSON(ctx, "/v2/everything", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "articles"); err != nil {
		return nil, err
	}
	return raw, nil
}
