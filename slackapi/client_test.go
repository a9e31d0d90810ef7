package slackapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/onnwee/slack-digest/testutil"
)

func newTestClient(base string) *Client {
	return &Client{Token: "xoxb-test", BaseURL: base}
}

func TestResolveChannelID(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.MockChannelList(map[string]string{"standup": "C1", "random": "C2"})
	c := newTestClient(srv.URL)

	id, err := c.ResolveChannelID(context.Background(), "standup")
	if err != nil {
		t.Fatalf("ResolveChannelID error: %v", err)
	}
	if id != "C1" {
		t.Errorf("id = %q, want C1", id)
	}

	if _, err := c.ResolveChannelID(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestResolveChannelIDPaginates(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.Handlers["/conversations.list"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":                true,
				"channels":          []map[string]string{{"id": "C1", "name": "general"}},
				"response_metadata": map[string]string{"next_cursor": "page2"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":       true,
			"channels": []map[string]string{{"id": "C9", "name": "standup"}},
		})
	}
	c := newTestClient(srv.URL)

	id, err := c.ResolveChannelID(context.Background(), "standup")
	if err != nil {
		t.Fatalf("ResolveChannelID error: %v", err)
	}
	if id != "C9" {
		t.Errorf("id = %q, want C9 from second page", id)
	}
}

func TestFetchRangeFiltersAndSorts(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	// History pages arrive newest-first and include non-content events.
	srv.MockHistory([]map[string]any{
		{"type": "message", "ts": "100.3", "user": "U1", "text": "third"},
		{"type": "message", "ts": "100.2", "user": "U2", "text": "second"},
		{"type": "message", "subtype": "channel_join", "ts": "100.15", "user": "U3", "text": "joined"},
		{"type": "message", "ts": "100.2", "user": "U2", "text": "duplicate ts"},
		{"type": "message", "ts": "100.18", "user": "U1", "bot_id": "B1", "text": "bot noise"},
		{"type": "message", "ts": "100.16", "user": "U1", "text": ""},
		{"type": "message", "ts": "100.1", "user": "U1", "text": "first"},
	})
	srv.MockUserInfo(map[string]string{"U1": "alice", "U2": "bob"})
	c := newTestClient(srv.URL)

	msgs := c.FetchRange(context.Background(), "C1", 100, 200, 50)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(msgs), msgs)
	}
	wantTs := []string{"100.1", "100.2", "100.3"}
	wantUser := []string{"alice", "bob", "alice"}
	for i := range msgs {
		if msgs[i].Ts != wantTs[i] {
			t.Errorf("msgs[%d].Ts = %q, want %q", i, msgs[i].Ts, wantTs[i])
		}
		if msgs[i].User != wantUser[i] {
			t.Errorf("msgs[%d].User = %q, want %q", i, msgs[i].User, wantUser[i])
		}
	}
}

func TestFetchRangePaginatesAndCaps(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.Handlers["/conversations.history"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "ts": "100.4", "user": "U1", "text": "d"},
					{"type": "message", "ts": "100.3", "user": "U1", "text": "c"},
				},
				"has_more":          true,
				"response_metadata": map[string]string{"next_cursor": "page2"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"type": "message", "ts": "100.2", "user": "U1", "text": "b"},
				{"type": "message", "ts": "100.1", "user": "U1", "text": "a"},
			},
			"has_more": false,
		})
	}
	srv.MockUserInfo(map[string]string{"U1": "alice"})
	c := newTestClient(srv.URL)

	msgs := c.FetchRange(context.Background(), "C1", 100, 200, 10)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages across pages, want 4", len(msgs))
	}
	if msgs[0].Ts != "100.1" || msgs[3].Ts != "100.4" {
		t.Errorf("cross-page batch not ascending: %+v", msgs)
	}

	// The cap is a hard ceiling: with max=3 the second page is still consulted
	// but only 3 messages survive.
	capped := c.FetchRange(context.Background(), "C1", 100, 200, 3)
	if len(capped) != 3 {
		t.Errorf("got %d messages with max=3, want 3", len(capped))
	}
}

func TestFetchRangeFailsEmpty(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	calls := 0
	srv.Handlers["/conversations.history"] = func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "ts": "100.1", "user": "U1", "text": "a"},
				},
				"has_more":          true,
				"response_metadata": map[string]string{"next_cursor": "page2"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "internal_error"})
	}
	c := newTestClient(srv.URL)

	if msgs := c.FetchRange(context.Background(), "C1", 100, 200, 10); msgs != nil {
		t.Errorf("partial batch returned after page failure: %+v", msgs)
	}
}

func TestFetchRangeEnrichmentBestEffort(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.MockHistory([]map[string]any{
		{"type": "message", "ts": "100.1", "user": "U404", "text": "hello"},
	})
	srv.MockUserInfo(map[string]string{}) // every lookup fails
	c := newTestClient(srv.URL)

	msgs := c.FetchRange(context.Background(), "C1", 100, 200, 10)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].User != "U404" {
		t.Errorf("failed lookup should keep the raw id, got %q", msgs[0].User)
	}
}

func TestRecentMessages(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.MockHistory([]map[string]any{
		{"type": "message", "ts": "103.0", "user": "U1", "text": "newest"},
		{"type": "message", "ts": "102.0", "user": "U1", "text": "middle"},
		{"type": "message", "ts": "101.0", "user": "U1", "text": "oldest"},
	})
	srv.MockUserInfo(map[string]string{"U1": "alice"})
	c := newTestClient(srv.URL)

	msgs := c.RecentMessages(context.Background(), "C1", 2)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// Chronological order, truncated to the newest two.
	if msgs[0].Text != "middle" || msgs[1].Text != "newest" {
		t.Errorf("recent = [%s %s], want [middle newest]", msgs[0].Text, msgs[1].Text)
	}
}

func TestSendDailyDigest(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	var posted []map[string]any
	srv.MockPostMessage(&posted)
	c := newTestClient(srv.URL)

	if err := c.SendDailyDigest(context.Background(), "C1", "the summary", "standup"); err != nil {
		t.Fatalf("SendDailyDigest error: %v", err)
	}
	if len(posted) != 1 {
		t.Fatalf("posted %d messages, want 1", len(posted))
	}
	if posted[0]["channel"] != "C1" {
		t.Errorf("posted to %v, want C1", posted[0]["channel"])
	}
	blocks, ok := posted[0]["blocks"].([]any)
	if !ok || len(blocks) != 4 {
		t.Errorf("expected 4 blocks, got %v", posted[0]["blocks"])
	}
}

func TestCallRejectsAPIError(t *testing.T) {
	srv := testutil.NewMockSlackServer(t)
	srv.Handlers["/conversations.history"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
	}
	c := newTestClient(srv.URL)

	if _, err := c.HistoryPage(context.Background(), "C1", 0, 0, ""); err == nil {
		t.Error("expected error for ok:false response")
	}
}
