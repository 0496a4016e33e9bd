package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

const (
	defaultMaxRetries = 3
	maxRetryAfter     = 60 * time.Second
)

// baseBackoff is the first retry delay for 5xx responses and transport errors.
var baseBackoff = time.Second

// Client talks to the Discord REST API as a bot. All failures are returned as
// *models.FetchError.
type Client struct {
	baseURL     string
	token       string
	client      *http.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	log         *slog.Logger
}

func New(baseURL, token string, log *slog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		client:      &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		maxRetries:  defaultMaxRetries,
		log:         log,
	}
}

// Send posts embed to channelID and returns the new message id.
func (c *Client) Send(ctx context.Context, channelID string, embed Embed) (string, error) {
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	body, err := c.do(ctx, http.MethodPost, path, messagePayload{Embeds: []Embed{embed}})
	if err != nil {
		return "", err
	}

	var msg messageResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", &models.FetchError{Op: "send message", URL: path, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if msg.ID == "" {
		return "", &models.FetchError{Op: "send message", URL: path, Err: errors.New("response carried no message id")}
	}
	return msg.ID, nil
}

// Edit replaces the embed of an existing message.
func (c *Client) Edit(ctx context.Context, channelID, messageID string, embed Embed) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	_, err := c.do(ctx, http.MethodPatch, path, messagePayload{Embeds: []Embed{embed}})
	return err
}

// AddReaction reacts to a message as the bot. emoji is a unicode emoji or name:id.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(emoji))
	_, err := c.do(ctx, http.MethodPut, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	op := method + " " + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &models.FetchError{Op: op, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (https://github.com/pauljones0/slickdeals-discord-bot, 1.0)")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = &models.FetchError{Op: op, Err: err}
			if attempt < c.maxRetries && !c.wait(ctx, baseBackoff<<attempt) {
				return nil, lastErr
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		lastErr = &models.FetchError{Op: op, Err: fmt.Errorf("discord status: %s, body: %s", resp.Status, string(body))}
		backoff := retryBackoff(resp, attempt)
		if backoff == 0 {
			return nil, lastErr
		}
		c.log.Warn("Discord request failed, retrying", "op", op, "status", resp.StatusCode, "attempt", attempt+1, "backoff", backoff)
		if attempt < c.maxRetries && !c.wait(ctx, backoff) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// wait sleeps for d and reports false if ctx ended first.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryBackoff returns how long to wait before retrying resp, or zero when the
// status is not retryable.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			d := time.Duration(secs * float64(time.Second))
			if d > maxRetryAfter {
				d = maxRetryAfter
			}
			return d
		}
		return baseBackoff << attempt
	case resp.StatusCode >= 500:
		return baseBackoff << attempt
	default:
		return 0
	}
}
