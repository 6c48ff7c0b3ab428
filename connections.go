package main

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Attention is interactions the user initiated, influence is interactions the
// user received. Recasts, replies and mentions weigh more than likes; thread
// replies sit in between.
const attentionQuery = `
WITH attention_data AS (
    SELECT target_fid, 1 AS weight
    FROM neynar.reactions
    WHERE reaction_type = 1
        AND fid = @fid
        AND target_fid != @fid
        AND timestamp >= NOW() - INTERVAL '1 month'
        AND deleted_at IS NULL
    UNION ALL
    SELECT target_fid, 5 AS weight
    FROM neynar.reactions
    WHERE reaction_type = 2
        AND fid = @fid
        AND target_fid != @fid
        AND timestamp >= NOW() - INTERVAL '1 month'
        AND deleted_at IS NULL
    UNION ALL
    SELECT parent_fid AS target_fid, 5 AS weight
    FROM neynar.casts
    WHERE parent_fid IS NOT NULL
        AND fid = @fid
        AND parent_fid != @fid
        AND timestamp >= NOW() - INTERVAL '1 month'
        AND deleted_at IS NULL
    UNION ALL
    SELECT r.fid AS target_fid, 3 AS weight
    FROM neynar.casts c
    JOIN neynar.casts r ON c.root_parent_hash = r.hash
    WHERE c.root_parent_hash IS NOT NULL
        AND c.fid = @fid
        AND r.fid != @fid
        AND c.timestamp >= NOW() - INTERVAL '1 month'
        AND c.deleted_at IS NULL
    UNION ALL
    SELECT mentioned_fid AS target_fid, 5 AS weight
    FROM neynar.recent_mentions
    WHERE source_fid = @fid
        AND mentioned_fid != @fid
)
SELECT
    ad.target_fid AS fid,
    p.username,
    p.pfp_url,
    SUM(ad.weight)::int AS score,
    COUNT(*)::int AS interaction_count
FROM attention_data ad
LEFT JOIN neynar.profiles p ON ad.target_fid = p.fid
WHERE ad.target_fid IS NOT NULL
GROUP BY ad.target_fid, p.username, p.pfp_url
ORDER BY score DESC
LIMIT 25`

const influenceQuery = `
WITH influence_data AS (
    SELECT fid AS source_fid, 1 AS weight
    FROM neynar.reactions
    WHERE reaction_type = 1
        AND target_fid = @fid
        AND fid != @fid
        AND timestamp >= NOW() - INTERVAL '2 months'
        AND deleted_at IS NULL
    UNION ALL
    SELECT fid AS source_fid, 5 AS weight
    FROM neynar.reactions
    WHERE reaction_type = 2
        AND target_fid = @fid
        AND fid != @fid
        AND timestamp >= NOW() - INTERVAL '2 months'
        AND deleted_at IS NULL
    UNION ALL
    SELECT fid AS source_fid, 5 AS weight
    FROM neynar.casts
    WHERE parent_fid = @fid
        AND fid != @fid
        AND timestamp >= NOW() - INTERVAL '2 months'
        AND deleted_at IS NULL
    UNION ALL
    SELECT source_fid, 5 AS weight
    FROM neynar.recent_mentions
    WHERE mentioned_fid = @fid
        AND source_fid != @fid
)
SELECT
    id.source_fid AS fid,
    p.username,
    p.pfp_url,
    SUM(id.weight)::int AS score,
    COUNT(*)::int AS interaction_count
FROM influence_data id
LEFT JOIN neynar.profiles p ON id.source_fid = p.fid
WHERE id.source_fid IS NOT NULL
GROUP BY id.source_fid, p.username, p.pfp_url
ORDER BY score DESC
LIMIT 25`

const mutualsRankedQuery = `
WITH mutuals AS (
    SELECT DISTINCT t1.target_fid AS fid
    FROM neynar.follows t1
    JOIN neynar.follows t2 ON t2.fid = t1.target_fid AND t2.target_fid = @fid
    WHERE t1.fid = @fid AND t1.target_fid <> @fid
    AND t1.deleted_at IS NULL
    AND t2.deleted_at IS NULL
),
attention_likes AS (
    SELECT r.target_fid AS fid, COUNT(*) AS cnt
    FROM neynar.reactions r
    WHERE r.reaction_type = 1 AND r.fid = @fid
        AND r.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND r.deleted_at IS NULL
        AND r.target_fid IN (SELECT fid FROM mutuals)
    GROUP BY r.target_fid
),
attention_recasts AS (
    SELECT r.target_fid AS fid, COUNT(*) AS cnt
    FROM neynar.reactions r
    WHERE r.reaction_type = 2 AND r.fid = @fid
        AND r.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND r.deleted_at IS NULL
        AND r.target_fid IN (SELECT fid FROM mutuals)
    GROUP BY r.target_fid
),
attention_replies AS (
    SELECT c.parent_fid AS fid, COUNT(*) AS cnt
    FROM neynar.casts c
    WHERE c.parent_fid IS NOT NULL AND c.fid = @fid
        AND c.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND c.deleted_at IS NULL
        AND c.parent_fid IN (SELECT fid FROM mutuals)
    GROUP BY c.parent_fid
),
attention_threads AS (
    SELECT r2.fid AS fid, COUNT(*) AS cnt
    FROM neynar.casts c2
    JOIN neynar.casts r2 ON c2.root_parent_hash = r2.hash
    WHERE c2.root_parent_hash IS NOT NULL AND c2.fid = @fid
        AND c2.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND c2.deleted_at IS NULL
        AND r2.fid IN (SELECT fid FROM mutuals)
    GROUP BY r2.fid
),
attention_mentions AS (
    SELECT rm.mentioned_fid AS fid, COUNT(*) AS cnt
    FROM neynar.recent_mentions rm
    WHERE rm.source_fid = @fid
        AND rm.mentioned_fid IN (SELECT fid FROM mutuals)
    GROUP BY rm.mentioned_fid
),
influence_likes AS (
    SELECT r.fid AS fid, COUNT(*) AS cnt
    FROM neynar.reactions r
    WHERE r.reaction_type = 1 AND r.target_fid = @fid
        AND r.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND r.deleted_at IS NULL
        AND r.fid IN (SELECT fid FROM mutuals)
    GROUP BY r.fid
),
influence_recasts AS (
    SELECT r.fid AS fid, COUNT(*) AS cnt
    FROM neynar.reactions r
    WHERE r.reaction_type = 2 AND r.target_fid = @fid
        AND r.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND r.deleted_at IS NULL
        AND r.fid IN (SELECT fid FROM mutuals)
    GROUP BY r.fid
),
influence_replies AS (
    SELECT c.fid AS fid, COUNT(*) AS cnt
    FROM neynar.casts c
    WHERE c.parent_fid = @fid
        AND c.timestamp >= CURRENT_DATE - INTERVAL '6 months'
        AND c.deleted_at IS NULL
        AND c.fid IN (SELECT fid FROM mutuals)
    GROUP BY c.fid
),
influence_mentions AS (
    SELECT rm.source_fid AS fid, COUNT(*) AS cnt
    FROM neynar.recent_mentions rm
    WHERE rm.mentioned_fid = @fid
        AND rm.source_fid IN (SELECT fid FROM mutuals)
    GROUP BY rm.source_fid
),
scored AS (
    SELECT
        m.fid,
        COALESCE(p.username, '') AS username,
        COALESCE(p.pfp_url, '') AS pfp_url,
        (COALESCE(al.cnt, 0) * 1 + COALESCE(ar.cnt, 0) * 5 + COALESCE(arep.cnt, 0) * 5 + COALESCE(at.cnt, 0) * 3 + COALESCE(am.cnt, 0) * 5) AS attention_score,
        (COALESCE(il.cnt, 0) * 1 + COALESCE(ir.cnt, 0) * 5 + COALESCE(irep.cnt, 0) * 5 + COALESCE(im.cnt, 0) * 5) AS influence_score
    FROM mutuals m
    LEFT JOIN neynar.profiles p ON p.fid = m.fid
    LEFT JOIN attention_likes al ON al.fid = m.fid
    LEFT JOIN attention_recasts ar ON ar.fid = m.fid
    LEFT JOIN attention_replies arep ON arep.fid = m.fid
    LEFT JOIN attention_threads at ON at.fid = m.fid
    LEFT JOIN attention_mentions am ON am.fid = m.fid
    LEFT JOIN influence_likes il ON il.fid = m.fid
    LEFT JOIN influence_recasts ir ON ir.fid = m.fid
    LEFT JOIN influence_replies irep ON irep.fid = m.fid
    LEFT JOIN influence_mentions im ON im.fid = m.fid
)
SELECT
    fid,
    username,
    pfp_url,
    attention_score,
    influence_score,
    (attention_score + influence_score) AS combined_score
FROM scored
ORDER BY combined_score DESC, username ASC`

type ConnectionUser struct {
	FID              int64  `json:"fid"`
	Username         string `json:"username"`
	PfpURL           string `json:"pfp_url"`
	Rank             int    `json:"rank"`
	Score            int64  `json:"score"`
	InteractionCount int64  `json:"interaction_count"`
	IsMutual         bool   `json:"is_mutual"`
}

type MutualUser struct {
	FID            int64   `json:"fid"`
	Username       string  `json:"username"`
	PfpURL         string  `json:"pfp_url"`
	Rank           int     `json:"rank"`
	CombinedScore  float64 `json:"combined_score"`
	AttentionScore float64 `json:"attention_score"`
	InfluenceScore float64 `json:"influence_score"`
}

type connectionsRequest struct {
	APIKey     string `json:"api_key"`
	FID        int64  `json:"fid"`
	Categories string `json:"categories"`
}

// handleConnections returns top attention and influence connections plus
// their intersection as mutuals. The two underlying queries are independent
// and run concurrently.
// POST /farcaster-connections {"fid": N, "api_key": "...", "categories": "attention,mutuals"}
func (a *App) handleConnections(w http.ResponseWriter, r *http.Request) {
	var req connectionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	categories := parseCategories(req.Categories)
	needAttention := categories["attention"] || categories["mutuals"]
	needInfluence := categories["influence"] || categories["mutuals"]

	var (
		wg                         sync.WaitGroup
		attention, influence       []ConnectionUser
		attentionErr, influenceErr error
	)
	if needAttention {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attention, attentionErr = a.connectionScores(r, attentionQuery, req.FID)
		}()
	}
	if needInfluence {
		wg.Add(1)
		go func() {
			defer wg.Done()
			influence, influenceErr = a.connectionScores(r, influenceQuery, req.FID)
		}()
	}
	wg.Wait()
	if attentionErr != nil {
		writeStoreError(w, attentionErr, "")
		return
	}
	if influenceErr != nil {
		writeStoreError(w, influenceErr, "")
		return
	}

	attentionByFID := make(map[int64]*ConnectionUser, len(attention))
	for i := range attention {
		attentionByFID[attention[i].FID] = &attention[i]
	}
	influenceByFID := make(map[int64]*ConnectionUser, len(influence))
	for i := range influence {
		influenceByFID[influence[i].FID] = &influence[i]
	}

	var mutuals []MutualUser
	for fid, att := range attentionByFID {
		inf, ok := influenceByFID[fid]
		if !ok {
			continue
		}
		att.IsMutual = true
		inf.IsMutual = true
		username := att.Username
		if username == "" {
			username = inf.Username
		}
		pfp := att.PfpURL
		if pfp == "" {
			pfp = inf.PfpURL
		}
		mutuals = append(mutuals, MutualUser{
			FID:            fid,
			Username:       username,
			PfpURL:         pfp,
			CombinedScore:  float64(att.Score + inf.Score),
			AttentionScore: float64(att.Score),
			InfluenceScore: float64(inf.Score),
		})
	}
	sort.Slice(mutuals, func(i, j int) bool {
		if mutuals[i].CombinedScore != mutuals[j].CombinedScore {
			return mutuals[i].CombinedScore > mutuals[j].CombinedScore
		}
		return mutuals[i].Username < mutuals[j].Username
	})
	for i := range mutuals {
		mutuals[i].Rank = i + 1
	}

	slog.Info("connections fetched", "fid", req.FID,
		"attention", len(attention), "influence", len(influence), "mutuals", len(mutuals))

	resp := map[string]any{"fid": req.FID}
	if categories["attention"] {
		resp["attention"] = attention
	}
	if categories["influence"] {
		resp["influence"] = influence
	}
	if categories["mutuals"] {
		if mutuals == nil {
			mutuals = []MutualUser{}
		}
		resp["mutuals"] = mutuals
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleConnectionsAll returns every mutual follow ranked by combined
// attention and influence over the last six months. A user with no mutuals
// gets an empty list, not a 404.
// POST /farcaster-connections-all {"fid": N, "api_key": "..."}
func (a *App) handleConnectionsAll(w http.ResponseWriter, r *http.Request) {
	var req connectionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validKey(req.APIKey, a.cfg.ReputationPass) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	rows, err := a.sql.Query(r.Context(), mutualsRankedQuery, map[string]any{"fid": req.FID})
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	mutuals := make([]MutualUser, 0, len(rows))
	for i, row := range rows {
		mutuals = append(mutuals, MutualUser{
			FID:            rowInt(row, "fid"),
			Username:       rowString(row, "username"),
			PfpURL:         rowString(row, "pfp_url"),
			Rank:           i + 1,
			CombinedScore:  rowFloat(row, "combined_score"),
			AttentionScore: rowFloat(row, "attention_score"),
			InfluenceScore: rowFloat(row, "influence_score"),
		})
	}
	slog.Info("ranked mutuals fetched", "fid", req.FID, "count", len(mutuals))

	writeJSON(w, http.StatusOK, map[string]any{
		"fid":     req.FID,
		"mutuals": mutuals,
		"count":   len(mutuals),
	})
}

func (a *App) connectionScores(r *http.Request, query string, fid int64) ([]ConnectionUser, error) {
	rows, err := a.sql.Query(r.Context(), query, map[string]any{"fid": fid})
	if err != nil {
		return nil, err
	}
	users := make([]ConnectionUser, 0, len(rows))
	for i, row := range rows {
		users = append(users, ConnectionUser{
			FID:              rowInt(row, "fid"),
			Username:         rowString(row, "username"),
			PfpURL:           rowString(row, "pfp_url"),
			Rank:             i + 1,
			Score:            rowInt(row, "score"),
			InteractionCount: rowInt(row, "interaction_count"),
		})
	}
	return users, nil
}

func parseCategories(raw string) map[string]bool {
	all := map[string]bool{"attention": true, "influence": true, "mutuals": true}
	if strings.TrimSpace(raw) == "" {
		return all
	}
	out := make(map[string]bool)
	for _, c := range strings.Split(raw, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if all[c] {
			out[c] = true
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}
