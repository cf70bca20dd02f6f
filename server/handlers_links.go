package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	dbpkg "github.com/solstice-gg/matchroom/db"
	"github.com/solstice-gg/matchroom/faceit"
	"github.com/solstice-gg/matchroom/telemetry"
)

type manualLinkRequest struct {
	DiscordID      string `json:"discord_id"`
	FaceitNickname string `json:"faceit_nickname"`
}

type linkResponse struct {
	DiscordID      string    `json:"discord_id"`
	FaceitID       string    `json:"faceit_id"`
	FaceitNickname string    `json:"faceit_nickname"`
	VerifiedMethod string    `json:"verified_method"`
	LinkedAt       time.Time `json:"linked_at"`
}

// HandleCreateLink registers a link without the OAuth flow by resolving a
// FACEIT nickname through the search API. Admin-only; the OAuth flow is the
// path regular users take.
func (h *Handlers) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req manualLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DiscordID == "" || req.FaceitNickname == "" {
		http.Error(w, "discord_id and faceit_nickname are required", http.StatusBadRequest)
		return
	}

	player, err := h.faceit.SearchPlayer(ctx, req.FaceitNickname)
	if err != nil {
		if errors.Is(err, faceit.ErrPlayerNotFound) {
			http.Error(w, "faceit player not found", http.StatusNotFound)
			return
		}
		log.Error("faceit player search failed", "nickname", req.FaceitNickname, "error", err)
		http.Error(w, "faceit lookup failed", http.StatusBadGateway)
		return
	}

	link := dbpkg.PlayerLink{
		DiscordID:      req.DiscordID,
		FaceitID:       player.ID,
		FaceitNickname: player.Nickname,
		VerifiedMethod: "manual",
		LinkedAt:       time.Now().UTC(),
	}
	if err := dbpkg.UpsertPlayerLink(ctx, h.db, link); err != nil {
		log.Error("link upsert failed", "discord_id", req.DiscordID, "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	log.Info("manual link registered", "discord_id", req.DiscordID, "faceit_nickname", player.Nickname)
	writeJSON(w, http.StatusOK, linkResponse{
		DiscordID:      link.DiscordID,
		FaceitID:       link.FaceitID,
		FaceitNickname: link.FaceitNickname,
		VerifiedMethod: link.VerifiedMethod,
		LinkedAt:       link.LinkedAt,
	})
}

// HandleGetLink returns the link for a Discord user, 404 when absent.
func (h *Handlers) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	discordID := strings.TrimPrefix(r.URL.Path, "/links/")
	if discordID == "" || strings.Contains(discordID, "/") {
		http.Error(w, "missing discord id", http.StatusBadRequest)
		return
	}

	link, err := dbpkg.GetPlayerLinkByDiscordID(ctx, h.db, discordID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("link lookup failed", "discord_id", discordID, "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if link == nil {
		http.Error(w, "not linked", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, linkResponse{
		DiscordID:      link.DiscordID,
		FaceitID:       link.FaceitID,
		FaceitNickname: link.FaceitNickname,
		VerifiedMethod: link.VerifiedMethod,
		LinkedAt:       link.LinkedAt,
	})
}
