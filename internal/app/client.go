package app

import (
	"context"
	"errors"
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/client"
	"chatcache/internal/infra/config"
	"chatcache/internal/transport"
)

// Client pairs the backend API client with the realtime transport.
type Client struct {
	API    *client.Client
	Log    waLog.Logger
	Config *config.Config

	transport *transport.Transport
	cancel    context.CancelFunc
	done      chan error
}

// NewClient creates a new Client. The transport is created on Connect.
func NewClient(cfg *config.Config, log waLog.Logger) (*Client, error) {
	api, err := client.New(client.Config{
		BaseURL: cfg.APIBaseURL,
		APIKey:  cfg.APIKey,
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return &Client{
		API:    api,
		Log:    log.Sub("Connection"),
		Config: cfg,
	}, nil
}

// Connect starts the realtime transport in the background, feeding handler.
func (c *Client) Connect(ctx context.Context, handler transport.Handler) error {
	if c.transport != nil {
		return errors.New("already connected")
	}
	tr, err := transport.New(transport.Config{
		URL:    c.Config.RealtimeURL,
		APIKey: c.Config.APIKey,
		Token:  c.Config.APIToken,
	}, handler, c.Log)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.transport = tr
	c.done = make(chan error, 1)
	go func() {
		c.done <- tr.Run(ctx)
	}()
	return nil
}

// IsConnected reports whether the realtime connection is open.
func (c *Client) IsConnected() bool {
	return c.transport != nil && c.transport.Healthy()
}

// Disconnect stops the transport and waits for it to exit.
func (c *Client) Disconnect() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	if err := <-c.done; err != nil && !errors.Is(err, context.Canceled) {
		c.Log.Warnf("Transport stopped: %v", err)
	}
	c.cancel = nil
	c.transport = nil
}
