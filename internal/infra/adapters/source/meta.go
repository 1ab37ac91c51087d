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

var _ adapter.SourceAdapter = (*MetaAdapter)(nil)

// MetaAdapter fetches post engagement and sentiment data from the Meta
// graph boundary.
type MetaAdapter struct {
	c *httpClient
}

func NewMetaAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *MetaAdapter {
	return &MetaAdapter{c: newHTTPClient("meta", cfg, logger)}
}

func (a *MetaAdapter) Name() string { return "meta" }

func (a *MetaAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("fields", "likes,comments,shares,sentiment")

	raw, err := a.c.getJSON(ctx, "/v1/insights/posts", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "posts"); err != nil {
		return nil, err
	}
	return raw, nil
}
