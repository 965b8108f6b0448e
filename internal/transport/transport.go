// Package transport connects to the realtime event stream and feeds decoded
// envelopes, plus synthesized connectivity signals, to a handler.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/utils/retry"
)

const (
	typeConnectionChanged = "connection.changed"
	readLimit             = 4 << 20
	queueSize             = 256
)

// Handler consumes envelopes in delivery order.
type Handler interface {
	Handle(ctx context.Context, env chat.Envelope)
}

// Config configures a Transport.
type Config struct {
	URL     string
	APIKey  string
	Token   string
	Backoff retry.Config
}

// Transport is a reconnecting websocket client.
type Transport struct {
	cfg     Config
	handler Handler
	log     waLog.Logger

	healthy atomic.Bool
}

// New creates a transport. A zero Backoff selects retry.DefaultConfig.
func New(cfg Config, handler Handler, log waLog.Logger) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("realtime url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	if cfg.Backoff == (retry.Config{}) {
		cfg.Backoff = retry.DefaultConfig()
	}
	return &Transport{
		cfg:     cfg,
		handler: handler,
		log:     log.Sub("Transport"),
	}, nil
}

// Healthy reports whether a connection is currently open.
func (t *Transport) Healthy() bool {
	return t.healthy.Load()
}

// Run connects and reads until ctx is done, reconnecting with backoff after
// every failure. Handler calls happen on a single goroutine.
func (t *Transport) Run(ctx context.Context) error {
	queue := make(chan chat.Envelope, queueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range queue {
			t.handler.Handle(ctx, env)
		}
	}()
	defer func() {
		close(queue)
		<-done
	}()

	for {
		conn, err := retry.DoWithConfig(ctx, t.cfg.Backoff,
			func(attempt int, wait time.Duration, err error) {
				t.log.Warnf("Connect attempt %d failed, retrying in %v: %v", attempt, wait, err)
			},
			func() (*websocket.Conn, error) { return t.dial(ctx) })
		if err != nil {
			return err
		}

		t.setHealthy(queue, true)
		err = t.read(ctx, conn, queue)
		_ = conn.CloseNow()
		t.setHealthy(queue, false)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warnf("Connection closed: %v", err)
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return nil, err
	}
	if t.cfg.APIKey != "" {
		q := u.Query()
		q.Set("api_key", t.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", t.cfg.Token)
		header.Set("Stream-Auth-Type", "jwt")
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	t.log.Infof("Connected to %s", u.Host)
	return conn, nil
}

func (t *Transport) read(ctx context.Context, conn *websocket.Conn, queue chan<- chat.Envelope) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		var env chat.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.log.Warnf("Dropping undecodable event: %v", err)
			continue
		}
		if env.ReceivedAt.IsZero() {
			env.ReceivedAt = time.Now().UTC()
		}
		queue <- env
	}
}

func (t *Transport) setHealthy(queue chan<- chat.Envelope, online bool) {
	if t.healthy.Swap(online) == online {
		return
	}
	queue <- chat.Envelope{Type: typeConnectionChanged, Online: &online, ReceivedAt: time.Now().UTC()}
}
