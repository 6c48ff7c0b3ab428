package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Shared test doubles for the store interfaces. Each records the queries it
// saw so tests can assert on call counts and parameters.

type fakeGraph struct {
	mu      sync.Mutex
	readFn  func(query string, params map[string]any) ([]map[string]any, error)
	writeFn func(query string, params map[string]any) ([]map[string]any, error)
	reads   []map[string]any
	writes  []map[string]any
}

func (f *fakeGraph) Read(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.reads = append(f.reads, params)
	f.mu.Unlock()
	if f.readFn == nil {
		return nil, nil
	}
	return f.readFn(query, params)
}

func (f *fakeGraph) Write(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.writes = append(f.writes, params)
	f.mu.Unlock()
	if f.writeFn == nil {
		return nil, nil
	}
	return f.writeFn(query, params)
}

func (f *fakeGraph) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads)
}

type fakeSQL struct {
	mu      sync.Mutex
	queryFn func(query string, args map[string]any) ([]map[string]any, error)
	queries []string
}

func (f *fakeSQL) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.queryFn == nil {
		return nil, nil
	}
	return f.queryFn(query, args)
}

type fakeSearch struct {
	mu    sync.Mutex
	hits  []CastHit
	err   error
	calls int
}

func (f *fakeSearch) SearchCasts(ctx context.Context, query string, limit int) ([]CastHit, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.hits, f.err
}

type fakeUsage struct {
	mu    sync.Mutex
	count int64
	err   error
}

func (f *fakeUsage) Increment(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.count, f.err
}

func testConfig() Config {
	return Config{
		Port:            "8000",
		ClankPass:       "clank-secret",
		FarstorePass:    "farstore-secret",
		ReputationPass:  "reputation-secret",
		FartPass:        "fart-secret",
		LeaderboardPass: "leaderboard-secret",
	}
}

func newTestApp(graph graphStore, sql sqlStore, search castSource, usage usageCounter) *App {
	if graph == nil {
		graph = &fakeGraph{}
	}
	if sql == nil {
		sql = &fakeSQL{}
	}
	if usage == nil {
		usage = &fakeUsage{}
	}
	return newApp(testConfig(), graph, sql, search, nil, usage)
}

func postJSON(t *testing.T, app *App, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRootEndpoint(t *testing.T) {
	app := newTestApp(nil, nil, nil, nil)

	rec := getPath(t, app, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["name"] != "FCS-v0 API" {
		t.Fatalf("unexpected service name: %v", body["name"])
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	app := newTestApp(nil, nil, nil, nil)

	rec := getPath(t, app, "/no-such-endpoint")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["error"] == nil {
		t.Fatal("expected JSON error body")
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(nil, nil, &fakeSearch{}, nil)

	rec := getPath(t, app, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["graph_connected"] != true {
		t.Fatal("expected graph_connected true")
	}
	if body["search_enabled"] != true {
		t.Fatal("expected search_enabled true")
	}
}

func TestOpenAPIDocument(t *testing.T) {
	app := newTestApp(nil, nil, nil, nil)

	rec := getPath(t, app, "/openapi.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("openapi document is not valid JSON: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("unexpected openapi version: %v", doc["openapi"])
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatal("missing paths object")
	}
	for _, p := range []string{"/casts-search-weighted", "/user-reputation/{fid}", "/allowlist/check", "/loan-history"} {
		if paths[p] == nil {
			t.Fatalf("openapi document missing path %s", p)
		}
	}
}
