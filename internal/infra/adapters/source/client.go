package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 4 * time.Second
)

// httpClient is the shared transport for all source adapters: bearer auth,
// client-side rate pacing, and bounded retry-with-backoff on transient
// failures. Non-transient failures (auth, schema) surface immediately.
type httpClient struct {
	name    string
	base    string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     *zerolog.Logger
}

func newHTTPClient(name string, cfg config.SourceConfig, logger *zerolog.Logger) *httpClient {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	cliLog := logger.With().Str("source", name).Logger()
	return &httpClient{
		name:    name,
		base:    cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		log:     &cliLog,
	}
}

// getJSON performs a GET against path with params, returning the raw JSON
// body. Failures come back as *model.SourceError except context
// cancellation, which propagates unchanged so the caller can distinguish
// timeouts from provider errors.
func (c *httpClient) getJSON(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		raw, retryable, err := c.doOnce(ctx, path, params)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("transient source failure, retrying")
	}
	return nil, lastErr
}

func (c *httpClient) doOnce(ctx context.Context, path string, params url.Values) (json.RawMessage, bool, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, &model.SourceError{Kind: model.FailureUnreachable, Message: err.Error()}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, &model.SourceError{Kind: model.FailureUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, &model.SourceError{Kind: model.FailureUnauthorized, Message: fmt.Sprintf("%s http %d", c.name, resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &model.SourceError{Kind: model.FailureRateLimited, Message: fmt.Sprintf("%s http 429", c.name)}
	case resp.StatusCode >= 500:
		return nil, true, &model.SourceError{Kind: model.FailureUnreachable, Message: fmt.Sprintf("%s http %d", c.name, resp.StatusCode)}
	case resp.StatusCode >= 300:
		return nil, false, &model.SourceError{Kind: model.FailureUnreachable, Message: fmt.Sprintf("%s http %d", c.name, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, true, &model.SourceError{Kind: model.FailureUnreachable, Message: err.Error()}
	}
	if !json.Valid(body) {
		return nil, false, &model.SourceError{Kind: model.FailureSchemaViolation, Message: c.name + " returned non-JSON body"}
	}
	return json.RawMessage(body), false, nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// requireKeys checks the payload is a JSON object carrying every named key.
// A miss is a schema violation, handled like any other provider error.
func requireKeys(name string, raw json.RawMessage, keys ...string) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return &model.SourceError{Kind: model.FailureSchemaViolation, Message: name + ": payload is not a JSON object"}
	}
	for _, k := range keys {
		if _, ok := probe[k]; !ok {
			return &model.SourceError{Kind: model.FailureSchemaViolation, Message: fmt.Sprintf("%s: missing %q", name, k)}
		}
	}
	return nil
}

// AsSourceError extracts the structured failure, if any.
func AsSourceError(err error) (*model.SourceError, bool) {
	var se *model.SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
