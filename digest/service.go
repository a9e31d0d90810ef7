package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/slack-digest/config"
	"github.com/onnwee/slack-digest/slackapi"
	"github.com/onnwee/slack-digest/telemetry"
)

// MessageSource is the chat-platform surface the orchestrator needs.
// *slackapi.Client satisfies it.
type MessageSource interface {
	ResolveChannelID(ctx context.Context, name string) (string, error)
	FetchRange(ctx context.Context, channelID string, oldest, latest int64, max int) []slackapi.Message
	RecentMessages(ctx context.Context, channelID string, limit int) []slackapi.Message
	SendDailyDigest(ctx context.Context, channelID, summary, channelName string) error
}

// Summarizer is the text-generation surface. *openaiapi.Client satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error)
	QuickRecap(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error)
}

// Service is the digest pipeline orchestrator. Generation is single-flight for
// the whole process: while one generation runs, further interactive requests
// are rejected with an absent result. This is deliberately coarse (one
// generation at a time system-wide, not per channel) — a known limitation, not
// a per-key lock.
type Service struct {
	slack      MessageSource
	summarizer Summarizer
	cache      *Cache
	cfg        *config.Config

	inFlight atomic.Bool
}

func NewService(slack MessageSource, summarizer Summarizer, cache *Cache, cfg *config.Config) *Service {
	return &Service{slack: slack, summarizer: summarizer, cache: cache, cfg: cfg}
}

// GenerateDailyDigest builds (or returns the cached) digest for a channel and
// date (YYYY-MM-DD UTC; empty means today).
//
// Absent outcomes return (nil, nil): another generation already in flight, an
// unresolvable channel name, or a day with no messages. Summarizer failures
// return an error. Nothing is cached for empty days, so a later call on a
// still-accumulating day can succeed once messages exist.
func (s *Service) GenerateDailyDigest(ctx context.Context, channelName, date string) (*Digest, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Info("digest generation already in progress, skipping",
			slog.String("channel", channelName), slog.String("component", "digest"))
		telemetry.GenerationsRejected.Inc()
		return nil, nil
	}
	telemetry.SetGenerationInFlight(true)
	defer func() {
		telemetry.SetGenerationInFlight(false)
		s.inFlight.Store(false)
	}()
	return s.generateLocked(ctx, channelName, date)
}

// generateLocked is the pipeline body; callers must hold the in-flight guard.
func (s *Service) generateLocked(ctx context.Context, channelName, date string) (*Digest, error) {
	if date == "" {
		date = Today()
	}
	logger := slog.Default().With(slog.String("channel", channelName), slog.String("date", date), slog.String("component", "digest"))
	logger.Info("generating daily digest")

	channelID, err := s.slack.ResolveChannelID(ctx, channelName)
	if err != nil {
		logger.Info("channel not resolved", slog.Any("err", err))
		return nil, nil
	}

	if cached, ok := s.cache.Digest(ctx, channelID, date); ok {
		logger.Info("using cached digest")
		telemetry.DigestCacheHits.Inc()
		return cached, nil
	}
	telemetry.DigestCacheMisses.Inc()

	msgs := s.messagesForDate(ctx, channelID, date)
	if len(msgs) == 0 {
		logger.Info("no messages for date")
		return nil, nil
	}
	logger.Info("processing messages", slog.Int("count", len(msgs)))

	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, msgs, channelName)
	if err != nil {
		telemetry.DigestsFailed.Inc()
		return nil, fmt.Errorf("generate summary for #%s: %w", channelName, err)
	}
	telemetry.SummarizeDuration.Observe(time.Since(start).Seconds())

	d := &Digest{
		ChannelName:  channelName,
		Date:         date,
		MessageCount: len(msgs),
		Summary:      summary,
		GeneratedAt:  time.Now().UTC(),
		Participants: ExtractParticipants(msgs),
	}
	s.cache.StoreDigest(ctx, channelID, date, d)
	telemetry.DigestsGenerated.Inc()
	logger.Info("daily digest generated", slog.Int("participants", len(d.Participants)))
	return d, nil
}

// messagesForDate is the two-tier retrieval: cached batch if present, otherwise
// a range fetch over the day's UTC bounds. Non-empty fetched batches are cached
// with a freshness tier depending on whether the day is still accumulating;
// empty batches are never cached, so a transient platform hiccup cannot pin an
// empty result for a TTL window.
func (s *Service) messagesForDate(ctx context.Context, channelID, date string) []slackapi.Message {
	if msgs, ok := s.cache.Messages(ctx, channelID, date); ok {
		slog.Debug("using cached messages", slog.String("channel_id", channelID), slog.String("date", date), slog.String("component", "digest"))
		telemetry.MessageCacheHits.Inc()
		return msgs
	}
	telemetry.MessageCacheMisses.Inc()

	oldest, latest, err := dayBounds(date)
	if err != nil {
		slog.Warn("invalid digest date", slog.String("date", date), slog.Any("err", err), slog.String("component", "digest"))
		return nil
	}

	start := time.Now()
	msgs := s.slack.FetchRange(ctx, channelID, oldest, latest, s.cfg.MaxMessagesPerDigest)
	telemetry.FetchDuration.Observe(time.Since(start).Seconds())
	telemetry.MessagesFetched.Add(float64(len(msgs)))

	if len(msgs) > 0 {
		ttl := MessagesClosedTTL
		if date == Today() {
			ttl = MessagesTodayTTL
		}
		s.cache.StoreMessages(ctx, channelID, date, msgs, ttl)
		slog.Debug("cached messages", slog.String("date", date), slog.Duration("ttl", ttl), slog.String("component", "digest"))
	}
	return msgs
}

// GenerateAndSendDailyDigests generates today's digest for every watched
// channel and posts each result back to its channel. Channels run concurrently;
// one channel's failure is logged and never aborts the others.
//
// The whole batch holds the in-flight guard once, so interactive requests are
// rejected while it runs but the fan-out itself is not self-defeating.
func (s *Service) GenerateAndSendDailyDigests(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Info("digest generation already in progress, skipping batch run", slog.String("component", "digest"))
		telemetry.GenerationsRejected.Inc()
		return
	}
	telemetry.SetGenerationInFlight(true)
	defer func() {
		telemetry.SetGenerationInFlight(false)
		s.inFlight.Store(false)
	}()

	slog.Info("starting daily digest generation", slog.Int("channels", len(s.cfg.WatchedChannels)), slog.String("component", "digest"))
	var wg sync.WaitGroup
	for _, name := range s.cfg.WatchedChannels {
		wg.Add(1)
		go func(channelName string) {
			defer wg.Done()
			d, err := s.generateLocked(ctx, channelName, "")
			if err != nil {
				slog.Error("failed to generate digest", slog.String("channel", channelName), slog.Any("err", err), slog.String("component", "digest"))
				return
			}
			if d == nil {
				return
			}
			channelID, err := s.slack.ResolveChannelID(ctx, channelName)
			if err != nil {
				slog.Warn("digest generated but channel no longer resolves", slog.String("channel", channelName), slog.Any("err", err), slog.String("component", "digest"))
				return
			}
			if err := s.slack.SendDailyDigest(ctx, channelID, d.Summary, channelName); err != nil {
				slog.Error("failed to send digest", slog.String("channel", channelName), slog.Any("err", err), slog.String("component", "digest"))
			}
		}(name)
	}
	wg.Wait()
	slog.Info("daily digest generation completed", slog.String("component", "digest"))
}

// DigestHistory returns the cached digests for the last days calendar days
// (today included), newest first. It only reads the cache — history never
// triggers regeneration — and silently omits days without a cached digest.
func (s *Service) DigestHistory(ctx context.Context, channelName string, days int) []Digest {
	if days <= 0 {
		days = 7
	}
	channelID, err := s.slack.ResolveChannelID(ctx, channelName)
	if err != nil {
		slog.Info("channel not resolved for history", slog.String("channel", channelName), slog.Any("err", err), slog.String("component", "digest"))
		return nil
	}
	var digests []Digest
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		date := DateOf(now.AddDate(0, 0, -i))
		if d, ok := s.cache.Digest(ctx, channelID, date); ok {
			digests = append(digests, *d)
		}
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].Date > digests[j].Date })
	return digests
}

// QuickRecap summarizes the channel's most recent messages on demand. Unlike
// daily digests, recaps bypass the cache and the in-flight guard; a summarizer
// failure surfaces to the caller.
func (s *Service) QuickRecap(ctx context.Context, channelName string) (string, error) {
	channelID, err := s.slack.ResolveChannelID(ctx, channelName)
	if err != nil {
		return "", fmt.Errorf("resolve channel #%s: %w", channelName, err)
	}
	msgs := s.slack.RecentMessages(ctx, channelID, 50)
	if len(msgs) == 0 {
		return "No recent messages found in this channel.", nil
	}
	recap, err := s.summarizer.QuickRecap(ctx, msgs, channelName)
	if err != nil {
		return "", fmt.Errorf("generate recap for #%s: %w", channelName, err)
	}
	return recap, nil
}

// InFlight reports whether a generation is currently running.
func (s *Service) InFlight() bool { return s.inFlight.Load() }
