// Command slack-digest is the main entrypoint for the digest service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects the cache backend (in-memory or Redis).
//   - Starts background jobs: the scheduled daily digest run and, in
//     production, the weekly coverage report.
//   - Exposes an HTTP server with /healthz, /readyz, /metrics, and the
//     /api digest endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/slack-digest/cache"
	"github.com/onnwee/slack-digest/config"
	"github.com/onnwee/slack-digest/digest"
	"github.com/onnwee/slack-digest/openaiapi"
	"github.com/onnwee/slack-digest/server"
	"github.com/onnwee/slack-digest/slackapi"
	"github.com/onnwee/slack-digest/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateDigestReady(); err != nil {
		slog.Error("credentials check failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("slack-digest", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Cache backend
	store := cache.New(cfg.CacheBackend, cfg.RedisURL)
	connectCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	err = store.Connect(connectCtx)
	cancel()
	if err != nil {
		slog.Error("failed to connect cache backend", slog.String("backend", cfg.CacheBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Disconnect(context.Background()); err != nil {
			slog.Error("failed to disconnect cache", slog.Any("err", err))
		}
	}()

	// API clients and the digest pipeline
	slack := &slackapi.Client{Token: cfg.SlackBotToken}
	summarizer := &openaiapi.Client{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, MaxTokens: cfg.SummaryMaxTokens}
	svc := digest.NewService(slack, summarizer, digest.NewCache(store), cfg)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting digest jobs",
		slog.Any("channels", cfg.WatchedChannels),
		slog.String("schedule", cfg.DigestAt),
		slog.Bool("weekdays_only", cfg.DigestWeekdaysOnly))
	go digest.StartDigestJob(ctx, svc, cfg)
	if cfg.IsProduction() {
		go digest.StartWeeklySummaryJob(ctx, svc, cfg)
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/readiness/metrics/api)
	go func() {
		if err := server.Start(ctx, svc, store, cfg); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
