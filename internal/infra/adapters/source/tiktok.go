package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.SourceAdapter = (*TikTokAdapter)(nil)

// TikTokAdapter fetches short-video engagement data from the TikTok
// research boundary.
type TikTokAdapter struct {
	c     *httpClient
	count int
}

func NewTikTokAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *TikTokAdapter {
	return &TikTokAdapter{c: newHTTPClient("tiktok", cfg, logger), count: 50}
}

func (a *TikTokAdapter) Name() string { return "tiktok" }

func (a *TikTokAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("max_count", strconv.Itoa(a.count))

	raw, err := a.c.getJSON(ctx, "/v2/research/videos", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "videos"); err != nil {
		return nil, err
	}
	return raw, nil
}
