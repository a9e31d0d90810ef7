package digest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/slack-digest/config"
	"github.com/onnwee/slack-digest/slackapi"
	"github.com/onnwee/slack-digest/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

// fakeSlack is an in-memory MessageSource. Safe for concurrent use so batch
// fan-out tests can share one instance.
type fakeSlack struct {
	mu       sync.Mutex
	channels map[string]string             // name -> id
	history  map[string][]slackapi.Message // id -> day's messages
	recent   map[string][]slackapi.Message // id -> recent messages

	fetchCalls int
	sent       []string // channel ids that received a digest post
}

func (f *fakeSlack) ResolveChannelID(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.channels[name]
	if !ok {
		return "", fmt.Errorf("channel not found: %s", name)
	}
	return id, nil
}

func (f *fakeSlack) FetchRange(ctx context.Context, channelID string, oldest, latest int64, max int) []slackapi.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	msgs := f.history[channelID]
	if len(msgs) > max {
		msgs = msgs[:max]
	}
	return msgs
}

func (f *fakeSlack) RecentMessages(ctx context.Context, channelID string, limit int) []slackapi.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent[channelID]
}

func (f *fakeSlack) SendDailyDigest(ctx context.Context, channelID, summary, channelName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID)
	return nil
}

func (f *fakeSlack) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSlack) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// fakeSummarizer returns canned text, optionally failing for specific channels
// or blocking until released.
type fakeSummarizer struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]bool
	block   chan struct{} // when non-nil, Summarize waits for close
}

func (f *fakeSummarizer) Summarize(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	fail := f.failFor[channelName]
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if fail {
		return "", fmt.Errorf("model unavailable")
	}
	return "summary for " + channelName, nil
}

func (f *fakeSummarizer) QuickRecap(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error) {
	return "recap for " + channelName, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(slack *fakeSlack, sum *fakeSummarizer, store *recordingStore) *Service {
	cfg := &config.Config{
		WatchedChannels:      []string{"standup", "project-x"},
		MaxMessagesPerDigest: 100,
	}
	return NewService(slack, sum, NewCache(store), cfg)
}

func standupSlack() *fakeSlack {
	return &fakeSlack{
		channels: map[string]string{"standup": "C1", "project-x": "C2"},
		history: map[string][]slackapi.Message{
			"C1": {
				{Ts: "100.1", User: "alice", Text: "deployed"},
				{Ts: "100.2", User: "bob", Text: "reviewing"},
				{Ts: "100.3", User: "alice", Text: "done"},
			},
		},
		recent: map[string][]slackapi.Message{},
	}
}

func TestGenerateDailyDigest(t *testing.T) {
	slack := standupSlack()
	sum := &fakeSummarizer{}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	ctx := context.Background()

	d, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20")
	if err != nil {
		t.Fatalf("GenerateDailyDigest error: %v", err)
	}
	if d == nil {
		t.Fatal("digest is nil")
	}
	if d.ChannelName != "standup" || d.Date != "2026-08-20" {
		t.Errorf("digest header = %s/%s, want standup/2026-08-20", d.ChannelName, d.Date)
	}
	if d.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", d.MessageCount)
	}
	if d.Summary != "summary for standup" {
		t.Errorf("Summary = %q", d.Summary)
	}
	if d.GeneratedAt.IsZero() || d.GeneratedAt.Location() != time.UTC {
		t.Errorf("GeneratedAt = %v, want non-zero UTC", d.GeneratedAt)
	}
	want := []Participant{{User: "alice", MessageCount: 2}, {User: "bob", MessageCount: 1}}
	if len(d.Participants) != 2 || d.Participants[0] != want[0] || d.Participants[1] != want[1] {
		t.Errorf("Participants = %+v, want %+v", d.Participants, want)
	}
	if !store.Exists(ctx, "digest:C1:2026-08-20") {
		t.Error("digest not cached")
	}
	if got := store.ttls["channel:C1:2026-08-20"]; got != MessagesClosedTTL {
		t.Errorf("closed day message TTL = %v, want %v", got, MessagesClosedTTL)
	}
}

func TestGenerateDailyDigestCachedDigestSkipsWork(t *testing.T) {
	slack := standupSlack()
	sum := &fakeSummarizer{}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	ctx := context.Background()

	if _, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20"); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	fetchesBefore, callsBefore := slack.fetches(), sum.callCount()

	d, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20")
	if err != nil || d == nil {
		t.Fatalf("second generation: d=%v err=%v", d, err)
	}
	if slack.fetches() != fetchesBefore {
		t.Error("warm digest cache still fetched messages")
	}
	if sum.callCount() != callsBefore {
		t.Error("warm digest cache still called the summarizer")
	}
}

func TestGenerateDailyDigestUsesCachedMessages(t *testing.T) {
	slack := standupSlack()
	sum := &fakeSummarizer{}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	ctx := context.Background()

	cached := []slackapi.Message{{Ts: "50.0", User: "carol", Text: "cached"}}
	NewCache(store).StoreMessages(ctx, "C1", "2026-08-19", cached, MessagesClosedTTL)

	d, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-19")
	if err != nil || d == nil {
		t.Fatalf("generation: d=%v err=%v", d, err)
	}
	if slack.fetches() != 0 {
		t.Error("fetched from the platform despite a cached batch")
	}
	if d.MessageCount != 1 || d.Participants[0].User != "carol" {
		t.Errorf("digest built from wrong batch: %+v", d)
	}
}

func TestGenerateDailyDigestEmptyDay(t *testing.T) {
	slack := standupSlack()
	slack.history["C2"] = nil
	sum := &fakeSummarizer{}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	ctx := context.Background()

	d, err := svc.GenerateDailyDigest(ctx, "project-x", "2026-08-20")
	if err != nil {
		t.Fatalf("empty day returned error: %v", err)
	}
	if d != nil {
		t.Fatalf("empty day returned digest: %+v", d)
	}
	if sum.callCount() != 0 {
		t.Error("summarizer called for empty day")
	}
	if store.Exists(ctx, "channel:C2:2026-08-20") {
		t.Error("empty batch was cached")
	}
	if store.Exists(ctx, "digest:C2:2026-08-20") {
		t.Error("digest cached for empty day")
	}
}

func TestGenerateDailyDigestUnknownChannel(t *testing.T) {
	svc := newTestService(standupSlack(), &fakeSummarizer{}, newRecordingStore())

	d, err := svc.GenerateDailyDigest(context.Background(), "nope", "2026-08-20")
	if err != nil {
		t.Fatalf("unknown channel returned error: %v", err)
	}
	if d != nil {
		t.Fatalf("unknown channel returned digest: %+v", d)
	}
}

func TestGenerateDailyDigestSummarizerFailure(t *testing.T) {
	slack := standupSlack()
	sum := &fakeSummarizer{failFor: map[string]bool{"standup": true}}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	ctx := context.Background()

	if _, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20"); err == nil {
		t.Fatal("expected summarizer error to propagate")
	}
	if store.Exists(ctx, "digest:C1:2026-08-20") {
		t.Error("failed generation left a cached digest")
	}
	// The message batch stays cached so a retry skips the refetch.
	if !store.Exists(ctx, "channel:C1:2026-08-20") {
		t.Error("message batch not cached after summarizer failure")
	}
}

func TestGenerateDailyDigestSingleFlight(t *testing.T) {
	slack := standupSlack()
	block := make(chan struct{})
	sum := &fakeSummarizer{block: block}
	svc := newTestService(slack, sum, newRecordingStore())
	ctx := context.Background()

	done := make(chan *Digest, 1)
	go func() {
		d, _ := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20")
		done <- d
	}()

	// Wait for the first generation to reach the summarizer.
	deadline := time.After(2 * time.Second)
	for sum.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first generation never reached the summarizer")
		case <-time.After(time.Millisecond):
		}
	}

	d, err := svc.GenerateDailyDigest(ctx, "standup", "2026-08-20")
	if err != nil {
		t.Fatalf("concurrent request errored: %v", err)
	}
	if d != nil {
		t.Error("concurrent request produced a digest instead of being rejected")
	}

	close(block)
	if d := <-done; d == nil {
		t.Error("original generation failed")
	}
	if svc.InFlight() {
		t.Error("in-flight flag stuck after completion")
	}
}

func TestGenerateAndSendDailyDigests(t *testing.T) {
	slack := standupSlack()
	slack.channels["random"] = "C3"
	slack.history["C2"] = []slackapi.Message{{Ts: "200.1", User: "dan", Text: "update"}}
	slack.history["C3"] = []slackapi.Message{{Ts: "300.1", User: "eve", Text: "hi"}}
	sum := &fakeSummarizer{failFor: map[string]bool{"project-x": true}}
	store := newRecordingStore()
	svc := newTestService(slack, sum, store)
	svc.cfg.WatchedChannels = []string{"standup", "project-x", "random"}
	ctx := context.Background()

	svc.GenerateAndSendDailyDigests(ctx)

	today := Today()
	if !store.Exists(ctx, "digest:C1:"+today) {
		t.Error("standup digest missing")
	}
	if store.Exists(ctx, "digest:C2:"+today) {
		t.Error("failed channel left a cached digest")
	}
	if !store.Exists(ctx, "digest:C3:"+today) {
		t.Error("random digest missing; one channel's failure leaked")
	}
	if got := slack.sentCount(); got != 2 {
		t.Errorf("sent %d digest posts, want 2", got)
	}
	if svc.InFlight() {
		t.Error("in-flight flag stuck after batch")
	}
}

func TestDigestHistory(t *testing.T) {
	slack := standupSlack()
	store := newRecordingStore()
	svc := newTestService(slack, &fakeSummarizer{}, store)
	ctx := context.Background()

	c := NewCache(store)
	now := time.Now().UTC()
	for _, daysAgo := range []int{0, 2, 5} {
		date := DateOf(now.AddDate(0, 0, -daysAgo))
		c.StoreDigest(ctx, "C1", date, &Digest{ChannelName: "standup", Date: date})
	}

	got := svc.DigestHistory(ctx, "standup", 7)
	if len(got) != 3 {
		t.Fatalf("history returned %d digests, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Date < got[i].Date {
			t.Errorf("history not newest-first: %s before %s", got[i-1].Date, got[i].Date)
		}
	}

	// A narrow window excludes older days.
	if got := svc.DigestHistory(ctx, "standup", 2); len(got) != 1 {
		t.Errorf("2-day history returned %d digests, want 1", len(got))
	}

	// History is cache-only; nothing should have been fetched or summarized.
	if slack.fetches() != 0 {
		t.Error("history triggered a platform fetch")
	}

	if got := svc.DigestHistory(ctx, "nope", 7); got != nil {
		t.Errorf("unknown channel history = %v, want nil", got)
	}
}

func TestQuickRecap(t *testing.T) {
	slack := standupSlack()
	slack.recent["C1"] = []slackapi.Message{{Ts: "1.0", User: "alice", Text: "hello"}}
	svc := newTestService(slack, &fakeSummarizer{}, newRecordingStore())
	ctx := context.Background()

	recap, err := svc.QuickRecap(ctx, "standup")
	if err != nil {
		t.Fatalf("QuickRecap error: %v", err)
	}
	if recap != "recap for standup" {
		t.Errorf("recap = %q", recap)
	}

	// Empty channel gets a static friendly message, not an error.
	recap, err = svc.QuickRecap(ctx, "project-x")
	if err != nil {
		t.Fatalf("QuickRecap on empty channel error: %v", err)
	}
	if recap != "No recent messages found in this channel." {
		t.Errorf("empty recap = %q", recap)
	}

	if _, err := svc.QuickRecap(ctx, "nope"); err == nil {
		t.Error("unknown channel recap should error")
	}
}
