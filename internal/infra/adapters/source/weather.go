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

var _ adapter.SourceAdapter = (*WeatherAdapter)(nil)

// WeatherAdapter fetches forecast data for seasonal demand signals.
type WeatherAdapter struct {
	c *httpClient
}

func NewWeatherAdapter(cfg config.SourceConfig, logger *zerolog.Logger) *WeatherAdapter {
	return &WeatherAdapter{c: newHTTPClient("weather", cfg, logger)}
}

func (a *WeatherAdapter) Name() string { return "weather" }

func (a *WeatherAdapter) Fetch(ctx context.Context, q adapter.SourceQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	params.Set("days", "14")

	raw, err := a.c.getJSON(ctx, "/v1/forecast", params)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(a.Name(), raw, "hourly"); err != nil {
		return nil, err
	}
	return raw, nil
}
