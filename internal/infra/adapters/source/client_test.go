package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestClient(baseURL string) *httpClient {
	return newHTTPClient("test", config.SourceConfig{BaseURL: baseURL, APIKey: "k"}, testLogger())
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("missing bearer credential, got %q", got)
		}
		if r.URL.Query().Get("query") != "snowboards" {
			t.Errorf("query param not forwarded")
		}
		w.Write([]byte(`{"articles": []}`))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("query", "snowboards")
	raw, err := newTestClient(srv.URL).getJSON(context.Background(), "/v2/everything", params)
	if err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if err := requireKeys("test", raw, "articles"); err != nil {
		t.Fatalf("schema check: %v", err)
	}
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).getJSON(context.Background(), "/", nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestGetJSONBoundedAttempts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).getJSON(context.Background(), "/", nil)
	se, ok := AsSourceError(err)
	if !ok || se.Kind != model.FailureUnreachable {
		t.Fatalf("expected unreachable failure, got %v", err)
	}
	if calls != maxAttempts {
		t.Fatalf("calls = %d, want %d", calls, maxAttempts)
	}
}

func TestGetJSONUnauthorizedDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).getJSON(context.Background(), "/", nil)
	se, ok := AsSourceError(err)
	if !ok || se.Kind != model.FailureUnauthorized {
		t.Fatalf("expected unauthorized failure, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestGetJSONNonJSONBodyIsSchemaViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).getJSON(context.Background(), "/", nil)
	se, ok := AsSourceError(err)
	if !ok || se.Kind != model.FailureSchemaViolation {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestGetJSONContextCancellationPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).getJSON(ctx, "/", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestAdapterSchemaValidation(t *testing.T) {
	// Provider answers 200 with a JSON object missing the required key:
	// the adapter must classify it as a schema violation, not a success.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": 1}`))
	}))
	defer srv.Close()

	news := NewNewsAdapter(config.SourceConfig{BaseURL: srv.URL}, testLogger())
	_, err := news.Fetch(context.Background(), adapter.SourceQuery{Query: "q", Timestamp: time.Now()})
	se, ok := AsSourceError(err)
	if !ok || se.Kind != model.FailureSchemaViolation {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestRegistryDispatch(t *testing.T) {
	cfg := config.SourcesConfig{
		News:    config.SourceConfig{BaseURL: "http://news.local"},
		Finance: config.SourceConfig{BaseURL: "http://finance.local"},
	}
	reg := NewRegistry(cfg, testLogger())

	names := reg.Names()
	if len(names) != 2 || names[0] != "finance" || names[1] != "news" {
		t.Fatalf("unexpected registry names: %v", names)
	}
	if _, ok := reg.Get("meta"); ok {
		t.Fatal("unconfigured source must not be registered")
	}
	a, ok := reg.Get("news")
	if !ok || a.Name() != "news" {
		t.Fatal("news adapter missing")
	}
}

func TestFetchReturnsRawPayload(t *testing.T) {
	payload := `{"rates": [{"pair": "USD/JPY", "values": [1, 2, 3]}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	fin := NewFinanceAdapter(config.SourceConfig{BaseURL: srv.URL}, testLogger())
	raw, err := fin.Fetch(context.Background(), adapter.SourceQuery{Query: "usd", Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var got, want interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	json.Unmarshal([]byte(payload), &want)
	if gm, wm := got.(map[string]interface{}), want.(map[string]interface{}); len(gm) != len(wm) {
		t.Fatalf("payload altered in transit")
	}
}
