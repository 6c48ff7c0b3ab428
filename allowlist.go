package main

import (
	"log/slog"
	"net/http"
)

// The increment doubles as the existence check: a missing (or draft)
// allowlist updates nothing and returns zero rows.
const allowlistIncrementQuery = `
MATCH (allowlist:_Allowlist {uuid: $queryId})
WHERE NOT allowlist:_Draft
SET allowlist.requestCount = COALESCE(allowlist.requestCount, 0) + 1
RETURN allowlist.requestCount AS newCount`

const allowlistUsersQuery = `
MATCH (allowlist:_Allowlist {uuid: $allowlistId})
WHERE NOT allowlist:_Draft

MATCH (user:WarpcastAccount)
OPTIONAL MATCH (user)-[rr:ACCOUNT {primary: True}]->(wallet:Wallet {protocol: 'ethereum'})
WHERE user.earlySummerNorm >= allowlist.fcCredCutoff

OPTIONAL MATCH (allowlist)-[cond:_ALLOWLIST_CONDITION]->(target)

OPTIONAL MATCH (user)-[rel]-(target)
WHERE (
  (cond.type = 'farcaster-follower' AND type(rel) = 'FOLLOWS') OR
  (cond.type = 'farcaster-channel' AND type(rel) IN ['MEMBER', 'FOLLOWS']) OR
  (cond.type = 'token-holder' AND EXISTS { MATCH (user)-[:ACCOUNT]->(wallet:Wallet)-[:HOLDS]->(target) }) OR
  (cond.type = 'miniapp-users' AND type(rel) = '_HAS_CONTEXT')
)

WITH user,
     count(DISTINCT cond) AS totalConditions,
     count(DISTINCT rel) AS metConditions,
     wallet.address AS primaryEthAddress

WHERE totalConditions = 0 OR totalConditions = metConditions

RETURN
  user.fid AS fid,
  user.username AS username,
  user.pfpUrl AS pfpUrl,
  user.earlySummerNorm AS quotientScore,
  user.earlySummerRank AS quotientRank,
  primaryEthAddress
ORDER BY user.earlySummerNorm DESC`

const allowlistCheckQuery = `
MATCH (allowlist:_Allowlist {uuid: $allowlistId})
WHERE NOT allowlist:_Draft

MATCH (user:WarpcastAccount {fid: $fid})
OPTIONAL MATCH (user)-[rr:ACCOUNT {primary: True}]->(wallet:Wallet {protocol: 'ethereum'})

WITH allowlist, user, user.earlySummerNorm >= allowlist.fcCredCutoff AS meetsReputation, wallet.address AS primaryEthAddress

OPTIONAL MATCH (allowlist)-[cond:_ALLOWLIST_CONDITION]->(target)

WITH allowlist, user, meetsReputation,
     [condition IN collect(CASE WHEN cond IS NOT NULL THEN {
       type: cond.type,
       targetName: CASE
         WHEN target:WarpcastAccount THEN target.username
         WHEN target:Channel THEN target.channelId
         WHEN target:Token THEN target.address
         WHEN target:_Context THEN
           [(target)-[:_USAGE_CONTEXT]-(m:Miniapp) | m.name][0] + " - " + target._displayName
         ELSE "Unknown"
       END,
       meets: CASE cond.type
         WHEN 'farcaster-follower' THEN
           EXISTS { MATCH (user)-[:FOLLOWS]->(target) }
         WHEN 'farcaster-channel' THEN
           EXISTS { MATCH (user)-[:MEMBER|FOLLOWS]->(target) }
         WHEN 'token-holder' THEN
           EXISTS { MATCH (user)-[:ACCOUNT]->(wallet:Wallet)-[:HOLDS]->(target) }
         WHEN 'miniapp-users' THEN
           EXISTS { MATCH (user)-[:_HAS_CONTEXT]->(target) }
         ELSE false
       END
     } END) WHERE condition IS NOT NULL] AS conditions,
     primaryEthAddress

RETURN
  user.fid AS fid,
  user.earlySummerNorm AS quotientScore,
  meetsReputation,
  conditions,
  meetsReputation AND size([c IN conditions WHERE c.meets = false]) = 0 AS overallEligible`

type allowlistRequest struct {
	APIKey  string `json:"api_key"`
	QueryID string `json:"query_id"`
	Mode    string `json:"mode"` // "users" or "check"
	FID     int64  `json:"fid"`
}

// EligibleUser is one entry in the users-mode response.
type EligibleUser struct {
	FID               int64    `json:"fid"`
	Username          string   `json:"username"`
	PfpURL            string   `json:"pfp_url,omitempty"`
	QuotientScore     float64  `json:"quotient_score"`
	QuotientRank      *float64 `json:"quotient_rank"`
	PrimaryEthAddress string   `json:"primary_eth_address,omitempty"`
	Eligible          bool     `json:"eligible"`
}

// ConditionResult is the per-condition breakdown in check mode.
type ConditionResult struct {
	Type           string `json:"type"`
	TargetName     string `json:"target_name"`
	MeetsCondition bool   `json:"meets_condition"`
}

// handleAllowlistCheck serves both allowlist modes: "users" returns every
// eligible account, "check" evaluates one FID against each condition.
// POST /allowlist/check
func (a *App) handleAllowlistCheck(w http.ResponseWriter, r *http.Request) {
	var req allowlistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}
	if req.Mode != "users" && req.Mode != "check" {
		writeError(w, http.StatusBadRequest, "mode must be \"users\" or \"check\"")
		return
	}

	incRows, err := a.graph.Write(r.Context(), allowlistIncrementQuery, map[string]any{"queryId": req.QueryID})
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if len(incRows) == 0 {
		writeError(w, http.StatusNotFound, "allowlist not found")
		return
	}
	requestCount := rowInt(incRows[0], "newCount")
	slog.Info("allowlist request", "query_id", req.QueryID, "mode", req.Mode, "request_count", requestCount)

	var data any
	switch req.Mode {
	case "users":
		users, err := a.eligibleUsers(r, req.QueryID)
		if err != nil {
			writeStoreError(w, err, "")
			return
		}
		data = map[string]any{"users": users, "total_count": len(users)}
	case "check":
		check, err := a.checkEligibility(r, req.QueryID, req.FID)
		if err != nil {
			writeStoreError(w, err, "user not found or allowlist not found")
			return
		}
		data = check
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query_id":      req.QueryID,
		"mode":          req.Mode,
		"request_count": requestCount,
		"data":          data,
	})
}

func (a *App) eligibleUsers(r *http.Request, queryID string) ([]EligibleUser, error) {
	rows, err := a.graph.Read(r.Context(), allowlistUsersQuery, map[string]any{"allowlistId": queryID})
	if err != nil {
		return nil, err
	}
	users := make([]EligibleUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, EligibleUser{
			FID:               rowInt(row, "fid"),
			Username:          rowString(row, "username"),
			PfpURL:            rowString(row, "pfpUrl"),
			QuotientScore:     rowFloat(row, "quotientScore"),
			QuotientRank:      rowFloatPtr(row, "quotientRank"),
			PrimaryEthAddress: rowString(row, "primaryEthAddress"),
			Eligible:          true,
		})
	}
	return users, nil
}

func (a *App) checkEligibility(r *http.Request, queryID string, fid int64) (map[string]any, error) {
	rows, err := a.graph.Read(r.Context(), allowlistCheckQuery, map[string]any{"allowlistId": queryID, "fid": fid})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNotFound
	}
	row := rows[0]

	conditions := []ConditionResult{}
	for _, cond := range rowMaps(row, "conditions") {
		name := rowString(cond, "targetName")
		if name == "" {
			continue
		}
		conditions = append(conditions, ConditionResult{
			Type:           rowString(cond, "type"),
			TargetName:     name,
			MeetsCondition: rowBool(cond, "meets"),
		})
	}

	return map[string]any{
		"fid":                        rowInt(row, "fid"),
		"eligible":                   rowBool(row, "overallEligible"),
		"quotient_score":             rowFloat(row, "quotientScore"),
		"meets_reputation_threshold": rowBool(row, "meetsReputation"),
		"conditions":                 conditions,
	}, nil
}
