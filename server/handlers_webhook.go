package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/solstice-gg/matchroom/crypto"
	"github.com/solstice-gg/matchroom/match"
	"github.com/solstice-gg/matchroom/telemetry"
)

const maxWebhookBody = 1 << 20

// HandleFaceitWebhook ingests match lifecycle events. Unrecognized but
// well-formed payloads are acknowledged with 200 so the sender does not
// retry them; only malformed JSON or a panic yields 500. Handler errors
// after a recognized event are logged and still acknowledged, since the
// event itself was understood and replaying it would not help.
func (h *Handlers) HandleFaceitWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook handler panic", "panic", rec, "stack", string(debug.Stack()))
			telemetry.CountWebhook("panic")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("webhook body read failed", "error", err)
		telemetry.CountWebhook("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read failed"})
		return
	}

	if h.cfg.WebhookSecret != "" {
		sig := r.Header.Get("X-Webhook-Signature")
		if !crypto.VerifySignature(h.cfg.WebhookSecret, body, sig) {
			log.Warn("webhook signature rejected", "have_signature", sig != "")
			telemetry.CountWebhook("rejected")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
	}

	ev, err := match.Normalize(body)
	if err != nil {
		if errors.Is(err, match.ErrNotRecognized) {
			log.Info("webhook payload not recognized")
			telemetry.CountWebhook("ignored")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unrecognized payload"})
			return
		}
		log.Error("webhook payload invalid json", "error", err)
		telemetry.CountWebhook("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalid json"})
		return
	}

	if ev.Kind == match.KindUnknown {
		log.Info("webhook event type ignored", "event", ev.RawKind, "match_id", ev.MatchID)
		telemetry.CountWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": ev.RawKind})
		return
	}

	log.Info("webhook event received", "event", ev.RawKind, "match_id", ev.MatchID)
	if err := h.engine.HandleEvent(ctx, ev); err != nil {
		log.Error("webhook event handling failed", "event", ev.RawKind, "match_id", ev.MatchID, "error", err)
		telemetry.CountWebhook("error")
	} else {
		telemetry.CountWebhook("success")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "event": ev.RawKind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
