// Package slackapi contains minimal helpers to interact with the Slack Web API
// for channel id resolution, message history pagination, user display names, and
// posting messages, using a bot token.
package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://slack.com/api"

	maxRetries   = 3
	initialDelay = 1 * time.Second
)

// Client provides the minimal Slack Web API surface needed for digests.
type Client struct {
	Token      string
	BaseURL    string // override for tests; default https://slack.com/api
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return defaultBaseURL
}

// apiEnvelope is the common ok/error wrapper of every Slack Web API response.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// call performs one Web API method call. GET when body is nil, POST otherwise.
// Retries on 429 and 5xx with exponential backoff; a response with ok:false is a
// hard error (Slack reports client mistakes that way, not via HTTP status).
func (c *Client) call(ctx context.Context, method string, q url.Values, body, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", method, err)
		}
	}

	endpoint := c.base() + "/" + method
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var req *http.Request
		var err error
		if body != nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
			if err == nil {
				req.Header.Set("Content-Type", "application/json; charset=utf-8")
			}
		} else {
			req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		}
		if err != nil {
			return fmt.Errorf("create %s request: %w", method, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)

		resp, err := c.http().Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", method, err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("err", cerr))
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: read response: %w", method, err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
		}

		var env apiEnvelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("%s: decode response: %w", method, err)
		}
		if !env.OK {
			return fmt.Errorf("slack api error: %s: %s", method, env.Error)
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", method, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// ResolveChannelID resolves a channel name to its id, paginating conversations.list.
func (c *Client) ResolveChannelID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("channel name empty")
	}
	cursor := ""
	for {
		q := url.Values{}
		q.Set("types", "public_channel,private_channel")
		q.Set("limit", "200")
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var body struct {
			Channels []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"channels"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := c.call(ctx, "conversations.list", q, nil, &body); err != nil {
			return "", err
		}
		for _, ch := range body.Channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}
		cursor = body.ResponseMetadata.NextCursor
		if cursor == "" {
			return "", fmt.Errorf("channel not found: %s", name)
		}
	}
}

// RawMessage is one event from conversations.history before content filtering.
type RawMessage struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	BotID    string `json:"bot_id"`
	Ts       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTs string `json:"thread_ts"`
}

// HistoryPage is one page of channel history plus its continuation cursor.
type HistoryPage struct {
	Messages   []RawMessage
	HasMore    bool
	NextCursor string
}

// HistoryPage fetches one page of channel messages in [oldest, latest] (epoch
// seconds, inclusive). Pass the previous page's NextCursor to continue.
func (c *Client) HistoryPage(ctx context.Context, channelID string, oldest, latest int64, cursor string) (*HistoryPage, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channelID empty")
	}
	q := url.Values{}
	q.Set("channel", channelID)
	if oldest > 0 {
		q.Set("oldest", fmt.Sprintf("%d", oldest))
	}
	if latest > 0 {
		q.Set("latest", fmt.Sprintf("%d", latest))
	}
	q.Set("inclusive", "true")
	q.Set("limit", "200")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var body struct {
		Messages         []RawMessage `json:"messages"`
		HasMore          bool         `json:"has_more"`
		ResponseMetadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	if err := c.call(ctx, "conversations.history", q, nil, &body); err != nil {
		return nil, err
	}
	return &HistoryPage{
		Messages:   body.Messages,
		HasMore:    body.HasMore,
		NextCursor: body.ResponseMetadata.NextCursor,
	}, nil
}

// DisplayName resolves a user id to a display name (real name preferred).
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("userID empty")
	}
	q := url.Values{}
	q.Set("user", userID)
	var body struct {
		User struct {
			Name     string `json:"name"`
			RealName string `json:"real_name"`
		} `json:"user"`
	}
	if err := c.call(ctx, "users.info", q, nil, &body); err != nil {
		return "", err
	}
	if body.User.RealName != "" {
		return body.User.RealName, nil
	}
	if body.User.Name == "" {
		return "", fmt.Errorf("user not found: %s", userID)
	}
	return body.User.Name, nil
}

// Block is a Slack Block Kit element in its wire form.
type Block map[string]any

// PostMessage posts text (and optional blocks) to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks []Block) error {
	if channelID == "" {
		return fmt.Errorf("channelID empty")
	}
	payload := map[string]any{
		"channel": channelID,
		"text":    text,
	}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}
	return c.call(ctx, "chat.postMessage", nil, payload, nil)
}
