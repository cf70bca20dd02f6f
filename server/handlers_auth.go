package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/solstice-gg/matchroom/telemetry"
	"github.com/solstice-gg/matchroom/verify"
)

// HandleVerifyStart begins the FACEIT account-linking flow for a Discord
// user and redirects the browser to the authorization page.
func (h *Handlers) HandleVerifyStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		http.Error(w, "missing discord_id", http.StatusBadRequest)
		return
	}
	if err := h.cfg.ValidateOAuthReady(); err != nil {
		log.Error("oauth start rejected, config incomplete", "error", err)
		http.Error(w, "account linking not configured", http.StatusInternalServerError)
		return
	}

	authURL, state, err := h.flow.Begin(ctx, discordID)
	if err != nil {
		if errors.Is(err, verify.ErrAlreadyLinked) {
			renderPage(w, http.StatusConflict, "Already linked",
				"This Discord account is already linked to a FACEIT account.")
			return
		}
		log.Error("oauth start failed", "discord_id", discordID, "error", err)
		http.Error(w, "failed to start verification", http.StatusInternalServerError)
		return
	}

	log.Info("oauth flow started", "discord_id", discordID, "state", state[:8])
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleVerifyCallback completes the linking flow. It is hit by the user's
// browser, so outcomes are rendered as small HTML pages rather than JSON.
func (h *Handlers) HandleVerifyCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		log.Warn("oauth callback returned error", "error", errCode, "description", q.Get("error_description"))
		renderPage(w, http.StatusBadRequest, "Verification failed",
			fmt.Sprintf("The authorization server reported an error: %s", html.EscapeString(errCode)))
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		renderPage(w, http.StatusBadRequest, "Verification failed",
			"Missing state or code parameter.")
		return
	}

	link, err := h.flow.Complete(ctx, state, code)
	if err != nil {
		switch {
		case errors.Is(err, verify.ErrStateInvalidOrExpired):
			renderPage(w, http.StatusBadRequest, "Verification failed",
				"This verification link is invalid or has expired. Please start over.")
		case errors.Is(err, verify.ErrTokenExchange), errors.Is(err, verify.ErrUserInfo):
			log.Error("oauth callback exchange failed", "error", err)
			renderPage(w, http.StatusInternalServerError, "Verification failed",
				"Could not complete verification with FACEIT. Please try again.")
		default:
			log.Error("oauth callback failed", "error", err)
			renderPage(w, http.StatusInternalServerError, "Verification failed",
				"An unexpected error occurred. Please try again.")
		}
		return
	}

	log.Info("account linked", "discord_id", link.DiscordID, "faceit_nickname", link.FaceitNickname)
	renderPage(w, http.StatusOK, "Verification complete",
		fmt.Sprintf("Your Discord account is now linked to FACEIT player %s. You can close this tab.",
			html.EscapeString(link.FaceitNickname)))
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title>
<style>
body { font-family: sans-serif; background: #1e1f22; color: #dbdee1; display: flex; justify-content: center; padding-top: 15vh; }
.card { background: #2b2d31; border-radius: 8px; padding: 2rem 3rem; max-width: 28rem; text-align: center; }
h1 { font-size: 1.3rem; }
</style>
</head>
<body><div class="card"><h1>%s</h1><p>%s</p></div></body>
</html>
`

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, pageTemplate, html.EscapeString(title), html.EscapeString(title), message)
}
