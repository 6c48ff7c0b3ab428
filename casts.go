package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// searchTimeout bounds each search and enrichment call; past it the stage
// degrades to empty results instead of failing the request.
const searchTimeout = 10 * time.Second

const authorEnrichmentQuery = `
MATCH (wc:Warpcast:Account)
WHERE toInteger(wc.fid) IN $fids
OPTIONAL MATCH (wc)-[:ACCOUNT]-(wallet:Wallet)
OPTIONAL MATCH (wc)-[:ACCOUNT]-(account:Account)
OPTIONAL MATCH ()-[rewards:REWARDS]->(:Wallet)-[:ACCOUNT]-(wc:Warpcast:Account)
WITH
    toInteger(wc.fid) AS fid,
    wc.username AS authorUsername,
    wc.bio AS authorBio,
    wc.fcCredScore AS fcCredScore,
    toFloat(sum(coalesce(toFloat(wallet.balance), 0))) AS walletEthStablesValueUsd,
    toFloat(sum(coalesce(toFloat(rewards.value), 0))) AS rewardsEarned,
    collect(distinct({platform: account.platform, username: account.username})) AS linkedAccounts,
    collect(distinct({address: wallet.address, network: wallet.network})) AS linkedWallets
RETURN
    fid,
    authorUsername,
    authorBio,
    fcCredScore,
    walletEthStablesValueUsd,
    rewardsEarned,
    [acc IN linkedAccounts WHERE acc.platform <> "Wallet"] AS linkedAccounts,
    linkedWallets`

type castSearchRequest struct {
	Query string `json:"query"`
}

// handleWeightedCasts runs the weighted cast search: sanitize the query,
// fetch ranked hits from the search index, enrich authors from the graph in
// one batched lookup, merge and dedupe, then score. The quota increment
// runs concurrently with the fetch since the two are independent.
// POST /casts-search-weighted?api_key=<key>
func (a *App) handleWeightedCasts(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")
	if !validKey(apiKey, a.cfg.FartPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var req castSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
	defer cancel()

	clean := sanitizeQuery(req.Query)
	slog.Info("weighted cast search", "raw", req.Query, "cleaned", clean)
	started := time.Now()

	var counter int64
	var usageErr error
	usageDone := make(chan struct{})
	go func() {
		defer close(usageDone)
		counter, usageErr = a.usage.Increment(ctx, apiKey)
	}()

	hits := a.searchCasts(ctx, clean, 100)

	<-usageDone
	if usageErr != nil {
		// Quota accounting is advisory; a dead counter store must not take
		// the search surface down with it.
		slog.Warn("usage counter unavailable", "error", usageErr)
	} else if counter > usageQuotaLimit {
		slog.Warn("usage quota exceeded", "count", counter)
		writeError(w, http.StatusTooManyRequests, "usage exceeded")
		return
	}

	profiles := a.enrichAuthors(ctx, distinctFIDs(hits))
	casts := mergeCasts(hits, profiles)
	metrics := scoreCasts(casts)

	dumpSearchResults(a.cfg.DumpDir, req.Query, casts, len(hits))

	slog.Info("weighted cast search complete",
		"duration", time.Since(started),
		"casts", metrics.Casts,
		"unique_authors", metrics.UniqueAuthors,
		"weighted_score", metrics.WeightedScore)

	writeJSON(w, http.StatusOK, map[string]any{
		"casts":   casts,
		"total":   len(casts),
		"metrics": metrics,
	})
}

// searchCasts queries the document search backend. Failures degrade to "no
// results": the hits are advisory, never load-bearing.
func (a *App) searchCasts(ctx context.Context, query string, limit int) []CastHit {
	if a.search == nil {
		slog.Warn("search backend not configured, skipping search")
		return nil
	}
	hits, err := a.search.SearchCasts(ctx, query, limit)
	if err != nil {
		slog.Warn("cast search failed", "error", err)
		return nil
	}
	return hits
}

// enrichAuthors resolves a set of distinct author FIDs to profiles with one
// batched graph lookup. An empty set issues no query; a failed lookup
// degrades to an empty map.
func (a *App) enrichAuthors(ctx context.Context, fids []int64) map[int64]AuthorProfile {
	if len(fids) == 0 {
		return nil
	}

	rows, err := a.graph.Read(ctx, authorEnrichmentQuery, map[string]any{"fids": fids})
	if err != nil {
		slog.Warn("author enrichment failed", "error", err)
		return nil
	}

	profiles := make(map[int64]AuthorProfile, len(rows))
	for _, row := range rows {
		fid := rowInt(row, "fid")
		if fid == 0 {
			continue
		}
		profiles[fid] = AuthorProfile{
			FID:            fid,
			Username:       rowString(row, "authorUsername"),
			Bio:            rowString(row, "authorBio"),
			CredScore:      rowFloatPtr(row, "fcCredScore"),
			WalletValueUSD: rowFloat(row, "walletEthStablesValueUsd"),
			RewardsEarned:  rowFloat(row, "rewardsEarned"),
			LinkedAccounts: linkedAccountsFromRow(row, "linkedAccounts"),
			LinkedWallets:  linkedWalletsFromRow(row, "linkedWallets"),
		}
	}
	slog.Info("enriched authors", "requested", len(fids), "found", len(profiles))
	return profiles
}

func distinctFIDs(hits []CastHit) []int64 {
	seen := make(map[int64]bool, len(hits))
	var fids []int64
	for _, hit := range hits {
		if hit.AuthorFID != 0 && !seen[hit.AuthorFID] {
			seen[hit.AuthorFID] = true
			fids = append(fids, hit.AuthorFID)
		}
	}
	return fids
}

func linkedAccountsFromRow(row map[string]any, key string) []LinkedAccount {
	var accounts []LinkedAccount
	for _, m := range rowMaps(row, key) {
		platform := rowString(m, "platform")
		username := rowString(m, "username")
		if platform == "" && username == "" {
			continue
		}
		accounts = append(accounts, LinkedAccount{Platform: platform, Username: username})
	}
	return accounts
}

func linkedWalletsFromRow(row map[string]any, key string) []LinkedWallet {
	var wallets []LinkedWallet
	for _, m := range rowMaps(row, key) {
		address := rowString(m, "address")
		if address == "" {
			continue
		}
		wallets = append(wallets, LinkedWallet{Address: address, Network: rowString(m, "network")})
	}
	return wallets
}
