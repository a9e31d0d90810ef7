package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/onnwee/slack-digest/telemetry"
)

// HandleDigestTrigger handles POST /api/digest/trigger.
//
// With a "channel" in the body, one digest is generated synchronously and
// returned. Without one, a batch run over all watched channels is started in
// the background and 202 is returned immediately. An optional "date"
// (YYYY-MM-DD) selects a past day for single-channel runs.
func (h *Handlers) HandleDigestTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Channel string `json:"channel"`
		Date    string `json:"date"`
	}
	// An empty body means a batch run; only reject bodies that fail to parse.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Channel == "" {
		// Detach from the request context: the batch outlives this request.
		go h.svc.GenerateAndSendDailyDigests(h.ctx)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"message": "digest generation started for all watched channels",
		})
		return
	}

	d, err := h.svc.GenerateDailyDigest(r.Context(), req.Channel, req.Date)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("digest trigger failed", "channel", req.Channel, "err", err)
		writeError(w, http.StatusInternalServerError, "digest generation failed")
		return
	}
	if d == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    nil,
			"message": "no digest produced (no messages, unknown channel, or a generation already running)",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": d})
}

// HandleDigestGet handles GET /api/digest/{channel}?days=N, returning cached
// digest history newest first.
func (h *Handlers) HandleDigestGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	channel := strings.TrimPrefix(r.URL.Path, "/api/digest/")
	if channel == "" || strings.Contains(channel, "/") {
		writeError(w, http.StatusBadRequest, "channel name required")
		return
	}
	days := parseIntQuery(r, "days", 7)
	if days < 1 || days > 30 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 30")
		return
	}

	digests := h.svc.DigestHistory(r.Context(), channel, days)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"channel": channel,
		"count":   len(digests),
		"data":    digests,
	})
}

// HandleRecap handles POST /api/recap, summarizing a channel's recent messages
// on demand.
func (h *Handlers) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel name required")
		return
	}

	recap, err := h.svc.QuickRecap(r.Context(), req.Channel)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("recap failed", "channel", req.Channel, "err", err)
		writeError(w, http.StatusInternalServerError, "recap generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "channel": req.Channel, "recap": recap})
}
