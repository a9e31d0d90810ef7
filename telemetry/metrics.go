// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	DigestsGenerated    prometheus.Counter
	DigestsFailed       prometheus.Counter
	GenerationsRejected prometheus.Counter
	MessageCacheHits    prometheus.Counter
	MessageCacheMisses  prometheus.Counter
	DigestCacheHits     prometheus.Counter
	DigestCacheMisses   prometheus.Counter
	MessagesFetched     prometheus.Counter

	// Histograms (seconds)
	SummarizeDuration prometheus.Observer
	FetchDuration     prometheus.Observer

	// Gauges
	GenerationInFlightGauge prometheus.Gauge // 1=generating,0=idle
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DigestsGenerated = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_generated_total", Help: "Number of daily digests generated"})
		DigestsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_failed_total", Help: "Number of digest generations that failed"})
		GenerationsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_rejected_total", Help: "Number of generation requests rejected because one was already running"})
		MessageCacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_message_cache_hits_total", Help: "Message batch cache hits"})
		MessageCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_message_cache_misses_total", Help: "Message batch cache misses"})
		DigestCacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_cache_hits_total", Help: "Digest cache hits"})
		DigestCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_cache_misses_total", Help: "Digest cache misses"})
		MessagesFetched = promauto.NewCounter(prometheus.CounterOpts{Name: "digest_messages_fetched_total", Help: "Messages fetched from the chat platform"})
		SummarizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "digest_summarize_duration_seconds", Help: "Summary generation duration seconds", Buckets: prometheus.DefBuckets})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "digest_fetch_duration_seconds", Help: "Message range fetch duration seconds", Buckets: prometheus.DefBuckets})
		GenerationInFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "digest_generation_in_flight", Help: "Digest generation running=1 idle=0"})
	})
}

// SetGenerationInFlight sets gauge to 1 if running else 0.
func SetGenerationInFlight(running bool) {
	if GenerationInFlightGauge != nil {
		if running {
			GenerationInFlightGauge.Set(1)
		} else {
			GenerationInFlightGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
