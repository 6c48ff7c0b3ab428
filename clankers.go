package main

import (
	"log/slog"
	"net/http"
)

const holdsClankersQuery = `
MATCH (wc:WarpcastAccount)-[:HOLDS]->(t:Token {chain: $chain})
WHERE wc.fid IN $fids
RETURN DISTINCT
    t.address AS address,
    t.name AS name,
    t.description AS description,
    t.imageUrl AS imageUrl,
    count(distinct(wc)) AS count_holders,
    collect(distinct({
        fid: wc.fid,
        username: wc.username,
        pfpUrl: wc.pfpUrl,
        quotientScore: wc.earlySummerNorm
    })) AS holders
ORDER BY count_holders DESC, t.name ASC`

type UserHolder struct {
	FID           int64    `json:"fid"`
	Username      string   `json:"username"`
	PfpURL        string   `json:"pfpUrl"`
	QuotientScore *float64 `json:"quotientScore"`
}

type TokenHolding struct {
	Address      string       `json:"address"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	ImageURL     string       `json:"imageUrl"`
	CountHolders int64        `json:"count_holders"`
	Holders      []UserHolder `json:"holders"`
}

type holdsClankersRequest struct {
	APIKey string  `json:"api_key"`
	FIDs   []int64 `json:"fids"`
	Chain  string  `json:"chain"`
}

// handleHoldsClankers returns the tokens held by a set of Farcaster users on
// one chain, with per-token holder lists. No holdings is an empty list, not
// a 404.
// POST /holds-clankers {"fids": [...], "chain": "arbitrum", "api_key": "..."}
func (a *App) handleHoldsClankers(w http.ResponseWriter, r *http.Request) {
	var req holdsClankersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}
	if len(req.FIDs) == 0 {
		writeError(w, http.StatusBadRequest, "fids is required")
		return
	}
	if req.Chain == "" {
		req.Chain = "arbitrum"
	}

	rows, err := a.graph.Read(r.Context(), holdsClankersQuery, map[string]any{
		"fids":  req.FIDs,
		"chain": req.Chain,
	})
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	tokens := make([]TokenHolding, 0, len(rows))
	for _, row := range rows {
		holders := []UserHolder{}
		for _, h := range rowMaps(row, "holders") {
			holders = append(holders, UserHolder{
				FID:           rowInt(h, "fid"),
				Username:      rowString(h, "username"),
				PfpURL:        rowString(h, "pfpUrl"),
				QuotientScore: rowFloatPtr(h, "quotientScore"),
			})
		}
		tokens = append(tokens, TokenHolding{
			Address:      rowString(row, "address"),
			Name:         rowString(row, "name"),
			Description:  rowString(row, "description"),
			ImageURL:     rowString(row, "imageUrl"),
			CountHolders: rowInt(row, "count_holders"),
			Holders:      holders,
		})
	}
	slog.Info("token holdings fetched", "fids", len(req.FIDs), "chain", req.Chain, "tokens", len(tokens))

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens":       tokens,
		"total_tokens": len(tokens),
		"queried_fids": len(req.FIDs),
		"chain":        req.Chain,
	})
}
