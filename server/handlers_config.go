package server

import (
	"net/http"
)

// HandleConfig handles GET /api/config, returning the non-secret runtime
// configuration.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	weekdays := "daily"
	if h.cfg.DigestWeekdaysOnly {
		weekdays = "weekdays"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"watchedChannels": h.cfg.WatchedChannels,
		"schedule":        h.cfg.DigestAt + " UTC (" + weekdays + ")",
		"maxMessages":     h.cfg.MaxMessagesPerDigest,
		"cacheBackend":    h.cfg.CacheBackend,
		"environment":     h.cfg.AppEnv,
	})
}

// HandleRoot serves a small service descriptor on "/" and 404s everything else.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "slack-digest",
		"version": serviceVersion,
		"endpoints": []string{
			"GET /healthz",
			"GET /readyz",
			"GET /metrics",
			"POST /api/digest/trigger",
			"GET /api/digest/{channel}",
			"POST /api/recap",
			"GET /api/config",
		},
	})
}
