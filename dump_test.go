package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDumpSearchResultsWritesFile(t *testing.T) {
	dir := t.TempDir()

	casts := []EnrichedCast{
		{Hash: "0xa", Text: "one", Source: sourceEnriched},
		{Hash: "0xb", Text: "two", Source: sourceRaw},
	}
	dumpSearchResults(dir, "degen season", casts, 5)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dump dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dump file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "degen season") {
		t.Errorf("dump file name %q should start with the sanitized query", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading dump file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("dump file is not valid JSON: %v", err)
	}
	if payload["query"] != "degen season" {
		t.Errorf("expected query 'degen season', got %v", payload["query"])
	}
	if payload["hit_count"] != float64(5) {
		t.Errorf("expected hit_count 5, got %v", payload["hit_count"])
	}
	if payload["enriched_count"] != float64(1) {
		t.Errorf("expected enriched_count 1, got %v", payload["enriched_count"])
	}
	if payload["total_count"] != float64(2) {
		t.Errorf("expected total_count 2, got %v", payload["total_count"])
	}
}

func TestDumpSearchResultsNoDirConfigured(t *testing.T) {
	// Empty dir disables dumping entirely. Nothing to assert beyond not
	// panicking and not creating files in the working directory.
	dumpSearchResults("", "query", nil, 0)
}
