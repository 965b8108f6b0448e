// Package app wires the cache, the backend and the sync services together.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatcache/internal/data/storage"
	"chatcache/internal/data/store"
	"chatcache/internal/infra/config"
	"chatcache/internal/infra/logger"
	"chatcache/internal/service/event"
	"chatcache/internal/service/pending"
	"chatcache/internal/service/sync"
)

// App is the main application orchestrator.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Engine       storage.Engine
	Stores       *store.Container
	Client       *Client
	EventService *event.EventService
	Queue        *pending.Queue
	SyncManager  *sync.Manager

	dispatcher *event.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// OpenStores opens and bootstraps the cache database.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store.Container, error) {
	if err := cfg.EnsureDatabaseDir(); err != nil {
		return nil, fmt.Errorf("failed to ensure database dir: %w", err)
	}
	engine, err := storage.New(cfg.DatabasePath, cfg.DatabaseDriver, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage engine: %w", err)
	}
	if err := engine.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open storage engine: %w", err)
	}
	if err := engine.Bootstrap(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return store.NewContainer(store.NewStore(engine, log)), nil
}

// New creates a new App instance.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	log.Infof("Initializing chatcache for user %s...", cfg.UserID)
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, err
	}
	engine := stores.Store.Engine()

	conn, err := NewClient(cfg, log)
	if err != nil {
		cancel()
		_ = engine.Close()
		return nil, err
	}

	router := event.NewRouter(stores, conn.API, cfg.UserID, log)
	eventService := event.NewEventService(router, log)
	queue := pending.NewQueue(stores.Tasks, conn.API, cfg.TaskCooldown, log)
	manager := sync.NewManager(stores, router, conn.API, queue, sync.Config{
		UserID:          cfg.UserID,
		MaxReplayWindow: cfg.MaxReplayWindow,
	}, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Engine:       engine,
		Stores:       stores,
		Client:       conn,
		EventService: eventService,
		Queue:        queue,
		SyncManager:  manager,
		dispatcher:   event.NewDispatcher(eventService, manager, log),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// ReadOptions are the read settings for the configured user.
func (a *App) ReadOptions() store.ReadOptions {
	return store.ReadOptions{CurrentUserID: a.Config.UserID, MessageLimit: a.Config.RecentMessages}
}

// Run starts the application and blocks until a signal arrives.
func (a *App) Run() error {
	a.Log.Infof("Starting chatcache...")

	// Setup signal handling to cancel context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			a.Log.Infof("Received %v, initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
	}()

	// The transport reports its first healthy connection as a
	// connection.changed event, which starts the initial sync.
	a.SyncManager.StartScheduler(a.Config.DrainInterval)
	if err := a.Client.Connect(a.ctx, a.dispatcher); err != nil {
		_ = a.Shutdown()
		return err
	}

	a.Log.Infof("chatcache is running. Press Ctrl+C to stop.")
	<-a.ctx.Done()
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.cancel()
	a.Client.Disconnect()
	a.SyncManager.StopScheduler()
	return a.Engine.Close()
}
