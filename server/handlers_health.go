package server

import (
	"net/http"
	"time"

	"github.com/solstice-gg/matchroom/telemetry"
)

// HandleHealthz is a liveness probe: the process is up and serving.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadyz is a readiness probe: it fails when the database is
// unreachable so load balancers stop routing traffic here.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.db.PingContext(ctx); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Status          string         `json:"status"`
	Time            time.Time      `json:"time"`
	MatchesByStatus map[string]int `json:"matches_by_status"`
	PlayerLinks     int            `json:"player_links"`
	OAuthConfigured bool           `json:"oauth_configured"`
	DiscordReady    bool           `json:"discord_ready"`
}

// HandleStatus reports an operational summary for dashboards and debugging.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	resp := statusResponse{
		Status:          "ok",
		Time:            time.Now().UTC(),
		MatchesByStatus: map[string]int{},
		OAuthConfigured: h.cfg.ValidateOAuthReady() == nil,
		DiscordReady:    h.cfg.ValidateProvisioningReady() == nil,
	}

	rows, err := h.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM matches GROUP BY status`)
	if err != nil {
		log.Error("status query failed", "error", err)
		resp.Status = "degraded"
	} else {
		defer rows.Close()
		for rows.Next() {
			var st string
			var n int
			if err := rows.Scan(&st, &n); err != nil {
				log.Error("status scan failed", "error", err)
				resp.Status = "degraded"
				break
			}
			resp.MatchesByStatus[st] = n
		}
		if err := rows.Err(); err != nil {
			log.Error("status rows failed", "error", err)
			resp.Status = "degraded"
		}
	}

	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM player_links`).Scan(&resp.PlayerLinks); err != nil {
		log.Error("link count query failed", "error", err)
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}
