package digest

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/onnwee/slack-digest/config"
)

// nextRunAfter returns the next scheduled digest run strictly after t, using
// the configured HH:MM wall-clock time in UTC. With weekdays-only enabled,
// Saturday and Sunday are skipped.
func nextRunAfter(t time.Time, hour, min int, weekdaysOnly bool) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, min, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	for weekdaysOnly && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartDigestJob runs the scheduled daily digest loop until ctx is cancelled.
// Set DIGEST_RUN_ON_START=1 to fire a batch immediately at boot (useful in
// development).
func StartDigestJob(ctx context.Context, svc *Service, cfg *config.Config) {
	hour, min, err := config.ParseClock(cfg.DigestAt)
	if err != nil {
		slog.Error("invalid DIGEST_AT, digest job not started", slog.String("value", cfg.DigestAt), slog.Any("err", err), slog.String("component", "digest_job"))
		return
	}
	if os.Getenv("DIGEST_RUN_ON_START") == "1" {
		svc.GenerateAndSendDailyDigests(ctx)
	}
	for {
		next := nextRunAfter(time.Now(), hour, min, cfg.DigestWeekdaysOnly)
		slog.Info("next digest run scheduled", slog.Time("at", next), slog.String("component", "digest_job"))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		svc.GenerateAndSendDailyDigests(ctx)
	}
}

// StartWeeklySummaryJob logs a per-channel digest coverage report every Friday
// after the daily run. It only reads the cache.
func StartWeeklySummaryJob(ctx context.Context, svc *Service, cfg *config.Config) {
	hour, min, err := config.ParseClock(cfg.DigestAt)
	if err != nil {
		return
	}
	for {
		next := nextRunAfter(time.Now(), hour, min+30, false)
		for next.Weekday() != time.Friday {
			next = next.AddDate(0, 0, 1)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		for _, name := range cfg.WatchedChannels {
			history := svc.DigestHistory(ctx, name, 7)
			slog.Info("weekly digest coverage",
				slog.String("channel", name),
				slog.Int("digests_this_week", len(history)),
				slog.String("component", "weekly_job"))
		}
	}
}
