// Package sync reconciles the local cache with the backend whenever the
// realtime connection comes back.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/client"
	"chatcache/internal/data/store"
	"chatcache/internal/service/event"
)

// DefaultMaxReplayWindow bounds how far back missed events are replayed.
const DefaultMaxReplayWindow = 30 * 24 * time.Hour

// ErrReplayWindowExceeded means the watermark is too old to replay events.
var ErrReplayWindowExceeded = errors.New("watermark is older than the replay window")

// State is the orchestrator's connection state.
type State int32

const (
	Offline State = iota
	SyncingInitial
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "offline"
	case SyncingInitial:
		return "syncing_initial"
	case Online:
		return "online"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Backend is the part of the backend API the orchestrator uses.
type Backend interface {
	Sync(ctx context.Context, cids []string, since time.Time) ([]chat.Envelope, error)
	AppSettings(ctx context.Context) (json.RawMessage, error)
}

// Drainer replays queued offline mutations.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Config configures a Manager.
type Config struct {
	UserID string
	// MaxReplayWindow is the oldest watermark still replayed. Zero disables
	// the limit.
	MaxReplayWindow time.Duration
}

// Manager runs the Offline → SyncingInitial → Online state machine.
type Manager struct {
	stores  *store.Container
	router  *event.Router
	backend Backend
	tasks   Drainer
	cfg     Config
	log     waLog.Logger
	now     func() time.Time

	// mu serializes transitions; a second online signal waits for the
	// running phase instead of starting another one.
	mu    sync.Mutex
	state atomic.Int32

	listeners listeners

	// Scheduler
	schedulerCtx    context.Context
	schedulerCancel context.CancelFunc
	schedulerWg     sync.WaitGroup
}

// NewManager creates a Manager in the Offline state.
func NewManager(stores *store.Container, router *event.Router, backend Backend, tasks Drainer, cfg Config, log waLog.Logger) *Manager {
	return &Manager{
		stores:  stores,
		router:  router,
		backend: backend,
		tasks:   tasks,
		cfg:     cfg,
		log:     log.Sub("SyncManager"),
		now:     time.Now,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Init starts the state machine. When the transport is already healthy the
// initial sync runs immediately.
func (m *Manager) Init(ctx context.Context, healthy bool) {
	if healthy {
		m.OnConnectionChanged(ctx, true)
	}
}

// OnConnectionChanged handles a connectivity signal. Coming online runs the
// initial sync phase before the state becomes Online.
func (m *Manager) OnConnectionChanged(ctx context.Context, online bool) {
	m.mu.Lock()
	m.transition(ctx, online)
	m.mu.Unlock()
	m.listeners.deliver()
}

func (m *Manager) transition(ctx context.Context, online bool) {
	current := m.State()
	if !online {
		if current == Offline {
			return
		}
		m.state.Store(int32(Offline))
		m.log.Infof("Connection lost, state %s -> %s", current, Offline)
		m.listeners.enqueue(false)
		return
	}
	if current != Offline {
		return
	}

	m.state.Store(int32(SyncingInitial))
	m.log.Infof("Connection restored, starting initial sync")
	start := time.Now()
	m.syncInitial(ctx)
	m.state.Store(int32(Online))
	m.log.Infof("Initial sync completed in %v", time.Since(start))
	m.listeners.enqueue(true)
}

// syncInitial drains queued tasks, replays missed events and advances the
// watermark. It never fails: a replay error resets the cache.
func (m *Manager) syncInitial(ctx context.Context) {
	phaseStart := m.now()

	if m.tasks != nil {
		if err := m.tasks.Drain(ctx); err != nil {
			m.log.Warnf("Pending task drain stopped: %v", err)
		}
	}

	var previous chat.SyncStatus
	status, err := m.stores.SyncStatus.Get(ctx, m.cfg.UserID)
	if err != nil {
		m.log.Warnf("Failed to read sync status: %v", err)
	} else if status != nil {
		previous = *status
	}

	if err := m.replay(ctx, previous.LastSyncedAt, phaseStart); err != nil {
		switch {
		case errors.Is(err, client.ErrSyncWindowTooLarge), errors.Is(err, ErrReplayWindowExceeded):
			m.log.Infof("Missed events cannot be replayed, resetting local cache: %v", err)
		default:
			m.log.Warnf("Replay failed, resetting local cache: %v", err)
		}
		if err := m.stores.Store.Engine().Reset(ctx); err != nil {
			m.log.Errorf("Failed to reset local cache: %v", err)
		}
	}

	next := chat.SyncStatus{
		UserID:       m.cfg.UserID,
		LastSyncedAt: phaseStart,
		AppSettings:  previous.AppSettings,
	}
	if previous.LastSyncedAt.After(next.LastSyncedAt) {
		next.LastSyncedAt = previous.LastSyncedAt
	}
	if m.backend != nil {
		settings, err := m.backend.AppSettings(ctx)
		if err != nil {
			m.log.Warnf("Failed to fetch app settings: %v", err)
		} else if len(settings) > 0 {
			next.AppSettings = settings
		}
	}
	if _, err := m.stores.SyncStatus.Upsert(ctx, next, true); err != nil {
		m.log.Errorf("Failed to write sync watermark: %v", err)
	}
}

// replay applies the events missed since the watermark in delivery order
// inside one transaction. Each event sees the writes of the events before
// it, and a failure leaves the cache as it was before the replay.
func (m *Manager) replay(ctx context.Context, since, now time.Time) error {
	if since.IsZero() {
		m.log.Debugf("No watermark, skipping replay")
		return nil
	}
	cids, err := m.stores.Channels.CIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	if len(cids) == 0 {
		m.log.Debugf("No local channels, skipping replay")
		return nil
	}
	if m.cfg.MaxReplayWindow > 0 && now.Sub(since) > m.cfg.MaxReplayWindow {
		return fmt.Errorf("%w: last synced %s", ErrReplayWindowExceeded, since.Format(time.RFC3339))
	}
	if m.backend == nil {
		return errors.New("no backend configured")
	}

	envelopes, err := m.backend.Sync(ctx, cids, since)
	if err != nil {
		return fmt.Errorf("failed to fetch missed events: %w", err)
	}
	if len(envelopes) == 0 {
		return nil
	}
	err = m.stores.Store.InTransaction(ctx, func(tx *store.Container) error {
		router := m.router.WithStores(tx)
		for _, env := range envelopes {
			if _, err := router.Handle(ctx, env, true); err != nil {
				return fmt.Errorf("failed to apply %s event: %w", env.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply %d missed events: %w", len(envelopes), err)
	}
	m.log.Infof("Replayed %d missed events across %d channels", len(envelopes), len(cids))
	return nil
}
