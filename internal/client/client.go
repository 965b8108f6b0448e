// Package client is the HTTP/JSON client for the chat backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
)

// Config configures the backend client.
type Config struct {
	BaseURL string
	APIKey  string
	Token   string
	Timeout time.Duration
}

// Client calls the chat backend over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
	log     waLog.Logger
}

// New creates a backend client.
func New(cfg Config, log waLog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		log:     log.Sub("Client"),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "api_key=" + url.QueryEscape(c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Stream-Auth-Type", "jwt")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.StatusCode = resp.StatusCode
		c.log.Debugf("%s %s failed: %v", method, path, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func channelPath(channelType, channelID string) string {
	return "/channels/" + url.PathEscape(channelType) + "/" + url.PathEscape(channelID)
}

// Sync fetches the events of cids since the watermark, oldest first. A
// rejected window is reported as ErrSyncWindowTooLarge.
func (c *Client) Sync(ctx context.Context, cids []string, since time.Time) ([]chat.Envelope, error) {
	body := struct {
		ChannelCIDs []string `json:"channel_cids"`
		LastSyncAt  string   `json:"last_sync_at"`
	}{cids, since.UTC().Format(time.RFC3339Nano)}

	var resp struct {
		Events []chat.Envelope `json:"events"`
	}
	if err := c.do(ctx, http.MethodPost, "/sync", body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %w", ErrSyncWindowTooLarge, err)
		}
		return nil, err
	}
	return resp.Events, nil
}

// Channel fetches the current snapshot of one channel.
func (c *Client) Channel(ctx context.Context, channelType, channelID string) (*chat.ChannelState, error) {
	body := map[string]any{"state": true, "watch": false, "presence": false}
	var st chat.ChannelState
	if err := c.do(ctx, http.MethodPost, channelPath(channelType, channelID)+"/query", body, &st); err != nil {
		return nil, err
	}
	if st.Channel == nil {
		return nil, fmt.Errorf("channel %s: %w", chat.CID(channelType, channelID), ErrNotFound)
	}
	return &st, nil
}

// QueryChannels runs a channel query.
func (c *Client) QueryChannels(ctx context.Context, filter chat.Filter, sort chat.Sort, limit int) ([]chat.ChannelState, error) {
	body := map[string]any{
		"filter_conditions": filter,
		"sort":              sort,
		"limit":             limit,
		"state":             true,
	}
	var resp struct {
		Channels []chat.ChannelState `json:"channels"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels", body, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// AppSettings fetches the application settings blob.
func (c *Client) AppSettings(ctx context.Context) (json.RawMessage, error) {
	var resp struct {
		App json.RawMessage `json:"app"`
	}
	if err := c.do(ctx, http.MethodGet, "/app", nil, &resp); err != nil {
		return nil, err
	}
	return resp.App, nil
}

// SendReaction adds a reaction to a message.
func (c *Client) SendReaction(ctx context.Context, messageID string, p chat.SendReactionPayload) error {
	return c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/reaction", p, nil)
}

// DeleteReaction removes the current user's reaction of the given type.
func (c *Client) DeleteReaction(ctx context.Context, messageID, reactionType string) error {
	return c.do(ctx, http.MethodDelete,
		"/messages/"+url.PathEscape(messageID)+"/reaction/"+url.PathEscape(reactionType), nil, nil)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string, hard bool) error {
	path := "/messages/" + url.PathEscape(messageID)
	if hard {
		path += "?hard=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelType, channelID string, msg chat.Message) error {
	body := struct {
		Message chat.Message `json:"message"`
	}{msg}
	return c.do(ctx, http.MethodPost, channelPath(channelType, channelID)+"/message", body, nil)
}
