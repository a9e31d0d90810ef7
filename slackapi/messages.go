package slackapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"
)

// Message is a channel message after content filtering, with the author field
// holding a display name when the lookup succeeded (the raw user id otherwise).
// Ts is the platform-assigned timestamp: a monotonic decimal string, unique per
// channel and sortable as a real number; it doubles as the dedup key.
type Message struct {
	Ts       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTs string `json:"thread_ts,omitempty"`
}

// FetchRange collects a channel's content messages in [oldest, latest] (epoch
// seconds, inclusive), paginating sequentially until the cursor is exhausted or
// max messages have been collected (a hard ceiling). Author ids are resolved to
// display names best-effort, and the batch is returned ascending by timestamp
// with duplicate timestamps dropped.
//
// Any page error aborts the whole fetch: the partial batch is discarded and an
// empty batch returned, so callers only ever cache complete days. Errors are
// logged, not returned.
func (c *Client) FetchRange(ctx context.Context, channelID string, oldest, latest int64, max int) []Message {
	if max <= 0 {
		max = 100
	}
	var collected []Message
	cursor := ""
	for {
		page, err := c.HistoryPage(ctx, channelID, oldest, latest, cursor)
		if err != nil {
			slog.Warn("fetch range aborted; returning empty batch",
				slog.String("channel_id", channelID), slog.Any("err", err), slog.String("component", "slackapi"))
			return nil
		}
		for _, raw := range page.Messages {
			if !isContent(raw) {
				continue
			}
			collected = append(collected, Message{Ts: raw.Ts, User: raw.User, Text: raw.Text, ThreadTs: raw.ThreadTs})
			if len(collected) >= max {
				break
			}
		}
		if len(collected) >= max || !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.enrichUserNames(ctx, collected)
	sortByTs(collected)
	return dedupeByTs(collected)
}

// RecentMessages returns the channel's most recent content messages in
// chronological order, at most limit of them. Best-effort: errors are logged and
// yield an empty result.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) []Message {
	if limit <= 0 {
		limit = 100
	}
	page, err := c.HistoryPage(ctx, channelID, 0, 0, "")
	if err != nil {
		slog.Warn("recent messages fetch failed",
			slog.String("channel_id", channelID), slog.Any("err", err), slog.String("component", "slackapi"))
		return nil
	}
	var msgs []Message
	for _, raw := range page.Messages {
		if !isContent(raw) {
			continue
		}
		msgs = append(msgs, Message{Ts: raw.Ts, User: raw.User, Text: raw.Text, ThreadTs: raw.ThreadTs})
		if len(msgs) >= limit {
			break
		}
	}
	// History pages arrive newest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	c.enrichUserNames(ctx, msgs)
	return msgs
}

// isContent filters out non-content events: bot posts, system subtypes, and
// anything without text.
func isContent(m RawMessage) bool {
	return m.BotID == "" && m.Type == "message" && m.Subtype == "" && m.Text != ""
}

// enrichUserNames replaces author ids with display names in place. Each distinct
// id is looked up once; a failed lookup leaves the raw id and never fails the
// batch.
func (c *Client) enrichUserNames(ctx context.Context, msgs []Message) {
	names := map[string]string{}
	for i := range msgs {
		id := msgs[i].User
		if id == "" {
			continue
		}
		name, seen := names[id]
		if !seen {
			var err error
			name, err = c.DisplayName(ctx, id)
			if err != nil {
				slog.Debug("user name lookup failed; keeping id",
					slog.String("user_id", id), slog.Any("err", err), slog.String("component", "slackapi"))
				name = ""
			}
			names[id] = name
		}
		if name != "" {
			msgs[i].User = name
		}
	}
}

func sortByTs(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return tsFloat(msgs[i].Ts) < tsFloat(msgs[j].Ts)
	})
}

// dedupeByTs drops messages sharing a timestamp with an earlier one. Input must
// be sorted ascending.
func dedupeByTs(msgs []Message) []Message {
	out := msgs[:0]
	prev := ""
	for _, m := range msgs {
		if m.Ts == prev {
			continue
		}
		out = append(out, m)
		prev = m.Ts
	}
	return out
}

func tsFloat(ts string) float64 {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return f
}

// SendDailyDigest posts a finished digest summary back to its channel with
// basic Block Kit framing.
func (c *Client) SendDailyDigest(ctx context.Context, channelID, summary, channelName string) error {
	blocks := []Block{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": fmt.Sprintf("Daily Digest for #%s", channelName)},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": summary},
		},
		{"type": "divider"},
		{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("Generated on %s", time.Now().UTC().Format("2006-01-02"))},
			},
		},
	}
	return c.PostMessage(ctx, channelID, fmt.Sprintf("Daily Digest for #%s", channelName), blocks)
}
