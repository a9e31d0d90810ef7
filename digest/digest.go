// Package digest turns a channel's raw chat messages into a structured daily
// digest: a deduplicated chronological transcript summarized by a language
// model, annotated with participant statistics, and cached per (channel, day).
//
// All calendar math is UTC: a digest date is a UTC calendar day, range
// boundaries are that day's UTC bounds, and "today" (for the cache freshness
// tier) is the current UTC date.
package digest

import (
	"sort"
	"time"

	"github.com/onnwee/slack-digest/slackapi"
)

// Participant is the per-author message count derived from one batch.
type Participant struct {
	User         string `json:"user"`
	MessageCount int    `json:"messageCount"`
}

// Digest is the finished daily digest for one channel. The JSON field names are
// the service's externally persisted shape; do not rename them.
type Digest struct {
	ChannelName  string        `json:"channelName"`
	Date         string        `json:"date"` // YYYY-MM-DD, UTC day
	MessageCount int           `json:"messageCount"`
	Summary      string        `json:"summary"`
	GeneratedAt  time.Time     `json:"generatedAt"`
	Participants []Participant `json:"participants"`
}

// ExtractParticipants computes per-author message counts from a batch, sorted
// descending by count. Ties keep the order in which authors first appear in the
// batch. The counts always sum to len(msgs).
func ExtractParticipants(msgs []slackapi.Message) []Participant {
	counts := map[string]int{}
	var order []string
	for _, m := range msgs {
		if _, seen := counts[m.User]; !seen {
			order = append(order, m.User)
		}
		counts[m.User]++
	}
	participants := make([]Participant, 0, len(order))
	for _, user := range order {
		participants = append(participants, Participant{User: user, MessageCount: counts[user]})
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].MessageCount > participants[j].MessageCount
	})
	return participants
}

// DateOf formats t as the digest date of its UTC calendar day.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Today returns the current UTC digest date.
func Today() string {
	return DateOf(time.Now())
}

// dayBounds returns the inclusive epoch-second boundaries of a YYYY-MM-DD UTC day.
func dayBounds(date string) (oldest, latest int64, err error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, err
	}
	oldest = t.Unix()
	latest = oldest + 24*60*60 - 1
	return oldest, latest, nil
}
