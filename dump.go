package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// dumpSearchResults writes a pipeline run's query and result set to a
// timestamped file for offline inspection. Best effort only: failures are
// logged and never affect the response.
func dumpSearchResults(dir, query string, casts []EnrichedCast, hitCount int) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("creating dump directory", "error", err)
		return
	}

	name := sanitizeQuery(query)
	if name == "" {
		name = "empty_query"
	}
	path := filepath.Join(dir, name+"_"+time.Now().Format("20060102_150405")+".json")

	enriched := 0
	for _, cast := range casts {
		if cast.Source == sourceEnriched {
			enriched++
		}
	}

	payload := map[string]any{
		"query":          query,
		"timestamp":      time.Now().Format(time.RFC3339),
		"hit_count":      hitCount,
		"enriched_count": enriched,
		"total_count":    len(casts),
		"casts":          casts,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		slog.Error("encoding search dump", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("writing search dump", "error", err)
		return
	}
	slog.Info("saved search results", "path", path)
}
