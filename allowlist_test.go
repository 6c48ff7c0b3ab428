package main

import (
	"net/http"
	"strings"
	"testing"
)

func TestAllowlistRejectsBadKey(t *testing.T) {
	app := newTestApp(nil, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "wrong",
		"query_id": "abc",
		"mode":     "users",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAllowlistRejectsInvalidMode(t *testing.T) {
	app := newTestApp(nil, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "reputation-secret",
		"query_id": "abc",
		"mode":     "everything",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAllowlistNotFound(t *testing.T) {
	// Increment query returns zero rows when no allowlist matches.
	graph := &fakeGraph{}
	app := newTestApp(graph, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "reputation-secret",
		"query_id": "missing",
		"mode":     "users",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(graph.writes) != 1 {
		t.Fatalf("expected 1 increment write, got %d", len(graph.writes))
	}
}

func TestAllowlistUsersMode(t *testing.T) {
	graph := &fakeGraph{
		writeFn: func(query string, params map[string]any) ([]map[string]any, error) {
			if params["queryId"] != "list-1" {
				t.Fatalf("expected queryId list-1, got %v", params["queryId"])
			}
			return []map[string]any{{"newCount": int64(6)}}, nil
		},
		readFn: func(query string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{
				{"fid": int64(1), "username": "alice", "quotientScore": 0.91, "primaryEthAddress": "0xabc"},
				{"fid": int64(2), "username": "bob", "quotientScore": 0.77},
			}, nil
		},
	}
	app := newTestApp(graph, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "reputation-secret",
		"query_id": "list-1",
		"mode":     "users",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["request_count"] != float64(6) {
		t.Fatalf("expected request_count 6, got %v", body["request_count"])
	}
	data := body["data"].(map[string]any)
	if data["total_count"] != float64(2) {
		t.Fatalf("expected 2 users, got %v", data["total_count"])
	}
	users := data["users"].([]any)
	first := users[0].(map[string]any)
	if first["username"] != "alice" || first["eligible"] != true {
		t.Fatalf("unexpected first user: %v", first)
	}
}

func TestAllowlistCheckMode(t *testing.T) {
	graph := &fakeGraph{
		writeFn: func(query string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"newCount": int64(2)}}, nil
		},
		readFn: func(query string, params map[string]any) ([]map[string]any, error) {
			if !strings.Contains(query, "_ALLOWLIST_CONDITION") {
				t.Fatalf("unexpected query: %s", query)
			}
			if params["fid"] != int64(42) {
				t.Fatalf("expected fid 42, got %v", params["fid"])
			}
			return []map[string]any{{
				"fid":             int64(42),
				"quotientScore":   0.88,
				"meetsReputation": true,
				"overallEligible": false,
				"conditions": []any{
					map[string]any{"type": "farcaster-follower", "targetName": "dwr", "meets": true},
					map[string]any{"type": "token-holder", "targetName": "0xdef", "meets": false},
				},
			}}, nil
		},
	}
	app := newTestApp(graph, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "reputation-secret",
		"query_id": "list-1",
		"mode":     "check",
		"fid":      42,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	data := body["data"].(map[string]any)
	if data["eligible"] != false {
		t.Fatalf("expected eligible false, got %v", data["eligible"])
	}
	if data["meets_reputation_threshold"] != true {
		t.Fatal("expected meets_reputation_threshold true")
	}
	conditions := data["conditions"].([]any)
	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conditions))
	}
	second := conditions[1].(map[string]any)
	if second["meets_condition"] != false {
		t.Fatalf("expected unmet condition, got %v", second)
	}
}

func TestAllowlistCheckModeUserNotFound(t *testing.T) {
	graph := &fakeGraph{
		writeFn: func(query string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"newCount": int64(3)}}, nil
		},
	}
	app := newTestApp(graph, nil, nil, nil)

	rec := postJSON(t, app, "/allowlist/check", map[string]any{
		"api_key":  "reputation-secret",
		"query_id": "list-1",
		"mode":     "check",
		"fid":      404,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["error"] != "user not found or allowlist not found" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}
