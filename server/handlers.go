// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/slack-digest/cache"
	"github.com/onnwee/slack-digest/config"
	"github.com/onnwee/slack-digest/digest"
)

// DigestService is the pipeline surface the HTTP handlers need.
// *digest.Service satisfies it.
type DigestService interface {
	GenerateDailyDigest(ctx context.Context, channelName, date string) (*digest.Digest, error)
	GenerateAndSendDailyDigests(ctx context.Context)
	DigestHistory(ctx context.Context, channelName string, days int) []digest.Digest
	QuickRecap(ctx context.Context, channelName string) (string, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx       context.Context
	svc       DigestService
	store     cache.Store
	cfg       *config.Config
	startedAt time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// ctx is the process lifetime context used for background batch triggers.
func NewHandlers(ctx context.Context, svc DigestService, store cache.Store, cfg *config.Config) *Handlers {
	return &Handlers{
		ctx:       ctx,
		svc:       svc,
		store:     store,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err), slog.String("component", "http"))
	}
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// parseIntQuery parses an integer query parameter, returning def when absent
// or malformed.
func parseIntQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
