package main

import (
	"context"
	"net/http"
	"time"
)

// Store interfaces are narrow enough that handlers can be exercised
// against in-test fakes without any backing infrastructure.

// graphStore runs parameterized Cypher against the social graph.
type graphStore interface {
	Read(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// sqlStore runs parameterized SQL over the interaction logs and leaderboard
// snapshots, returning rows as generic maps.
type sqlStore interface {
	Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
}

// castSource is any backend that can run a ranked full-text cast search.
// The document store and the Neynar API both satisfy it.
type castSource interface {
	SearchCasts(ctx context.Context, query string, limit int) ([]CastHit, error)
}

// usageCounter atomically bumps a per-key request counter.
type usageCounter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// App carries the injected store clients. Handlers are methods on it; no
// driver handle lives in a package-level variable.
type App struct {
	cfg    Config
	graph  graphStore
	sql    sqlStore
	search castSource
	neynar castSource
	usage  usageCounter
	start  time.Time
}

func newApp(cfg Config, graph graphStore, sql sqlStore, search castSource, neynar castSource, usage usageCounter) *App {
	return &App{
		cfg:    cfg,
		graph:  graph,
		sql:    sql,
		search: search,
		neynar: neynar,
		usage:  usage,
		start:  time.Now(),
	}
}

func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /openapi.json", handleOpenAPI)

	mux.HandleFunc("POST /casts-search-weighted", a.handleWeightedCasts)

	mux.HandleFunc("GET /user-reputation/{fid}", a.handleReputationGet)
	mux.HandleFunc("POST /user-reputation", a.handleReputationPost)

	mux.HandleFunc("POST /allowlist/check", a.handleAllowlistCheck)

	mux.HandleFunc("GET /leaderboard/{name}", a.handleLeaderboard)
	mux.HandleFunc("GET /leaderboard/{name}/user", a.handleLeaderboardUser)

	mux.HandleFunc("POST /farcaster-connections", a.handleConnections)
	mux.HandleFunc("POST /farcaster-connections-all", a.handleConnectionsAll)
	mux.HandleFunc("POST /farcaster-users/mutuals", a.handleMutuals)
	mux.HandleFunc("POST /farcaster-linked-wallets", a.handleLinkedWallets)
	mux.HandleFunc("POST /wallet-lookup", a.handleWalletLookup)

	mux.HandleFunc("POST /token-believer-score", a.handleTokenBelieverScore)
	mux.HandleFunc("POST /token", a.handleTokenBelieverScore) // legacy alias
	mux.HandleFunc("POST /token-top-believers", a.handleTopBelievers)
	mux.HandleFunc("POST /holds-clankers", a.handleHoldsClankers)
	mux.HandleFunc("POST /farstore-miniapp-key-promoters", a.handleKeyPromoters)
	mux.HandleFunc("POST /loan-history", a.handleLoanHistory)

	mux.HandleFunc("/", a.handleRoot)

	return mux
}

func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "no such endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "FCS-v0 API",
		"description": "Farcaster credibility scoring: weighted cast search, reputation, allowlists, leaderboards, and wallet graph lookups.",
		"docs":        "/openapi.json",
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"graph_connected": a.graph != nil,
		"sql_connected":   a.sql != nil,
		"search_enabled":  a.search != nil,
		"uptime":          time.Since(a.start).String(),
	})
}
