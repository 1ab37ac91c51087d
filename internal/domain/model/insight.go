package model

import "time"

// SourceSummary is the normalized reduction of one successful RawResult.
// Metrics hold named scalar scores; Series is the normalized time series the
// correlation stage pairs across sources.
type SourceSummary struct {
	Source  string             `json:"source"`
	Metrics map[string]float64 `json:"metrics"`
	Series  []float64          `json:"series,omitempty"`
}

// Correlation is the co-movement signal between two summarized sources.
type Correlation struct {
	SourceA     string  `json:"source_a"`
	SourceB     string  `json:"source_b"`
	Coefficient float64 `json:"coefficient"`
	Samples     int     `json:"samples"`
}

// Recommendation is one ranked textual insight.
type Recommendation struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// CombinedInsight is the aggregation output: deterministic for identical
// terminal source results, modulo GeneratedAt.
type CombinedInsight struct {
	PerSourceSummary        map[string]SourceSummary `json:"per_source_summary"`
	CrossSourceCorrelations []Correlation            `json:"cross_source_correlations"`
	Recommendations         []Recommendation         `json:"recommendations"`
	Degraded                bool                     `json:"degraded"`
	GeneratedAt             time.Time                `json:"generated_at"`
}

func (c *CombinedInsight) Clone() *CombinedInsight {
	cp := *c
	cp.PerSourceSummary = make(map[string]SourceSummary, len(c.PerSourceSummary))
	for k, v := range c.PerSourceSummary {
		sv := v
		sv.Metrics = make(map[string]float64, len(v.Metrics))
		for mk, mv := range v.Metrics {
			sv.Metrics[mk] = mv
		}
		sv.Series = append([]float64(nil), v.Series...)
		cp.PerSourceSummary[k] = sv
	}
	cp.CrossSourceCorrelations = append([]Correlation(nil), c.CrossSourceCorrelations...)
	cp.Recommendations = make([]Recommendation, len(c.Recommendations))
	for i, r := range c.Recommendations {
		r.Sources = append([]string(nil), r.Sources...)
		cp.Recommendations[i] = r
	}
	return &cp
}
