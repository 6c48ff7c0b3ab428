package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const mutualFollowersQuery = `
SELECT DISTINCT
    t1.target_fid AS fid,
    COALESCE(p.username, '') AS username,
    COALESCE(p.pfp_url, '') AS pfp_url
FROM neynar.follows t1
INNER JOIN neynar.follows t2 ON (t2.fid = t1.target_fid AND t2.target_fid = @fid)
LEFT JOIN neynar.profiles p ON p.fid = t1.target_fid
WHERE t1.fid = @fid
ORDER BY username`

const linkedWalletsQuery = `
SELECT
    p.username,
    COALESCE(
        ARRAY_AGG(DISTINCT CONCAT('0x', encode(v.address, 'hex'))),
        ARRAY[]::text[]
    ) AS addresses
FROM neynar.profiles p
LEFT JOIN neynar.verifications v ON v.fid = p.fid
WHERE p.fid = @fid
GROUP BY p.username`

type UserProfile struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
	PfpURL   string `json:"pfp_url"`
}

type mutualsRequest struct {
	APIKey string `json:"api_key"`
	FID    int64  `json:"fid"`
}

type linkedWalletsRequest struct {
	APIKey        string `json:"api_key"`
	WalletAddress string `json:"wallet_address"`
}

// handleMutuals lists users who follow and are followed by the given FID.
// POST /farcaster-users/mutuals {"fid": N, "api_key": "..."}
func (a *App) handleMutuals(w http.ResponseWriter, r *http.Request) {
	var req mutualsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	rows, err := a.sql.Query(r.Context(), mutualFollowersQuery, map[string]any{"fid": req.FID})
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	mutuals := make([]UserProfile, 0, len(rows))
	for _, row := range rows {
		mutuals = append(mutuals, UserProfile{
			FID:      rowInt(row, "fid"),
			Username: rowString(row, "username"),
			PfpURL:   rowString(row, "pfp_url"),
		})
	}
	slog.Info("mutual followers fetched", "fid", req.FID, "count", len(mutuals))

	writeJSON(w, http.StatusOK, map[string]any{
		"fid":              req.FID,
		"mutual_followers": mutuals,
		"count":            len(mutuals),
	})
}

// handleLinkedWallets resolves a wallet address to its Farcaster account and
// returns every verified address linked to that account. An address with no
// associated account is a 404.
// POST /farcaster-linked-wallets {"wallet_address": "0x...", "api_key": "..."}
func (a *App) handleLinkedWallets(w http.ResponseWriter, r *http.Request) {
	var req linkedWalletsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	address := normalizeAddress(req.WalletAddress)
	fid, found, err := a.fidFromWallet(r, address)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no Farcaster account found for wallet address: %s", address))
		return
	}

	rows, err := a.sql.Query(r.Context(), linkedWalletsQuery, map[string]any{"fid": fid})
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	username := ""
	wallets := []string{}
	if len(rows) > 0 {
		username = rowString(rows[0], "username")
		for _, addr := range rowStrings(rows[0], "addresses") {
			wallets = append(wallets, strings.ToLower(addr))
		}
	}
	slog.Info("linked wallets fetched", "fid", fid, "count", len(wallets))

	writeJSON(w, http.StatusOK, map[string]any{
		"input_address":  address,
		"fid":            fid,
		"username":       username,
		"linked_wallets": wallets,
		"count":          len(wallets),
	})
}
