package source

import (
	"sort"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// Registry holds the configured source adapters keyed by name. Dispatch by
// name keeps the orchestrator free of per-provider branching.
type Registry struct {
	adapters map[string]adapter.SourceAdapter
}

// NewRegistry builds adapters for every source with a configured base URL.
func NewRegistry(cfg config.SourcesConfig, logger *zerolog.Logger) *Registry {
	r := &Registry{adapters: make(map[string]adapter.SourceAdapter)}
	if cfg.Meta.Enabled() {
		r.Register(NewMetaAdapter(cfg.Meta, logger))
	}
	if cfg.TikTok.Enabled() {
		r.Register(NewTikTokAdapter(cfg.TikTok, logger))
	}
	if cfg.News.Enabled() {
		r.Register(NewNewsAdapter(cfg.News, logger))
	}
	if cfg.Finance.Enabled() {
		r.Register(NewFinanceAdapter(cfg.Finance, logger))
	}
	if cfg.Trends.Enabled() {
		r.Register(NewTrendsAdapter(cfg.Trends, logger))
	}
	if cfg.Weather.Enabled() {
		r.Register(NewWeatherAdapter(cfg.Weather, logger))
	}
	return r
}

func (r *Registry) Register(a adapter.SourceAdapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (adapter.SourceAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
