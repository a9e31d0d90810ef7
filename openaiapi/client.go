// Package openaiapi contains a minimal OpenAI chat-completions client used to
// turn ordered message batches into digest summaries and quick recaps.
// Summarization failures are hard errors for the caller: unlike message
// fetching, a failed completion must not silently degrade to an empty digest.
package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/slack-digest/slackapi"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"

	recapMessageWindow = 20
	recapMaxTokens     = 300

	maxRetries   = 3
	initialDelay = 1 * time.Second
)

// Client calls the OpenAI chat-completions API.
type Client struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string // override for tests
	HTTPClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Summarize produces a structured daily summary of the full ordered batch.
func (c *Client) Summarize(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error) {
	prompt := fmt.Sprintf(`You are analyzing messages from the Slack channel #%s. Provide a summary with these sections:

**DAILY SUMMARY** - key topics discussed, decisions made, progress updates
**ACTION ITEMS** - specific tasks mentioned, with assignees and deadlines when stated
**SENTIMENT** - overall team mood and any blockers raised
**KEY PARTICIPANTS** - most active contributors

Messages:

%s

Format the response in clear markdown sections.`, channelName, transcript(msgs))

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return c.complete(ctx,
		"You are a helpful assistant that specializes in analyzing team communications and creating concise, actionable summaries.",
		prompt, maxTokens)
}

// QuickRecap produces a short recap of the most recent messages (at most the
// last 20 of the given batch) with a smaller token budget.
func (c *Client) QuickRecap(ctx context.Context, msgs []slackapi.Message, channelName string) (string, error) {
	if len(msgs) > recapMessageWindow {
		msgs = msgs[len(msgs)-recapMessageWindow:]
	}
	prompt := fmt.Sprintf(`Provide a quick recap of the recent messages from #%s:

**QUICK SUMMARY** - what was discussed (2-3 bullets), immediate action items, current status
**NEXT STEPS** - what needs to happen next and who should follow up

Keep it concise and actionable.

Messages:
%s`, channelName, transcript(msgs))

	return c.complete(ctx,
		"You are a helpful assistant that creates brief, actionable recaps of team conversations.",
		prompt, recapMaxTokens)
}

// transcript renders messages as "[HH:MM:SS] author: text" lines, timestamps in UTC.
func transcript(msgs []slackapi.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		ts := m.Ts
		if dot := strings.IndexByte(ts, '.'); dot >= 0 {
			ts = ts[:dot]
		}
		var sec int64
		fmt.Sscanf(ts, "%d", &sec)
		t := time.Unix(sec, 0).UTC()
		fmt.Fprintf(&b, "[%s] %s: %s\n", t.Format("15:04:05"), m.User, m.Text)
	}
	return b.String()
}

func (c *Client) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := c.Model
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	reqBody, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := c.BaseURL
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return "", fmt.Errorf("create completion request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("completion request: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read completion response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("openai api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("openai api error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var out chatResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("decode completion response: %w", err)
		}
		if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
			return "", fmt.Errorf("empty completion response")
		}
		return out.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
