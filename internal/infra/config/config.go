// Package config loads runtime configuration through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chatcache/internal/data/storage"
)

const (
	envPrefix              = "CHATCACHE"
	defaultLogLevel        = "info"
	defaultDriver          = "sqlite3"
	defaultTaskCooldown    = 500 * time.Millisecond
	defaultDrainInterval   = time.Minute
	defaultMaxReplayWindow = 30 * 24 * time.Hour
	defaultRecentMessages  = 25
	defaultRequestTimeout  = 15 * time.Second
)

// Config holds all application configuration.
type Config struct {
	LogLevel string

	// Storage
	DatabasePath   string
	DatabaseDriver string

	UserID string

	// Backend
	APIBaseURL     string
	APIKey         string
	APIToken       string
	APITimeout     time.Duration
	RealtimeURL    string
	RecentMessages int

	// Sync
	TaskCooldown    time.Duration
	DrainInterval   time.Duration
	MaxReplayWindow time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("database.driver", defaultDriver)
	v.SetDefault("api.timeout", defaultRequestTimeout)
	v.SetDefault("sync.task_cooldown", defaultTaskCooldown)
	v.SetDefault("sync.drain_interval", defaultDrainInterval)
	v.SetDefault("sync.max_replay_window", defaultMaxReplayWindow)
	v.SetDefault("sync.recent_messages", defaultRecentMessages)
}

// DefaultDatabasePath is the cache database location under the user's
// cache directory.
func DefaultDatabasePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chatcache", "chatcache.db")
}

// Load parses and validates configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:        v.GetString("log.level"),
		DatabasePath:    v.GetString("database.path"),
		DatabaseDriver:  v.GetString("database.driver"),
		UserID:          v.GetString("user.id"),
		APIBaseURL:      v.GetString("api.base_url"),
		APIKey:          v.GetString("api.key"),
		APIToken:        v.GetString("api.token"),
		APITimeout:      v.GetDuration("api.timeout"),
		RealtimeURL:     v.GetString("realtime.url"),
		RecentMessages:  v.GetInt("sync.recent_messages"),
		TaskCooldown:    v.GetDuration("sync.task_cooldown"),
		DrainInterval:   v.GetDuration("sync.drain_interval"),
		MaxReplayWindow: v.GetDuration("sync.max_replay_window"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if !slices.Contains(storage.Drivers(), c.DatabaseDriver) {
		return fmt.Errorf("database.driver %q is not one of %v", c.DatabaseDriver, storage.Drivers())
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user.id is required")
	}
	if c.TaskCooldown < 0 {
		return fmt.Errorf("sync.task_cooldown must not be negative")
	}
	if c.MaxReplayWindow < 0 {
		return fmt.Errorf("sync.max_replay_window must not be negative")
	}
	if c.RecentMessages <= 0 {
		return fmt.Errorf("sync.recent_messages must be positive")
	}
	return nil
}

// ValidateRemote checks the settings needed to talk to the backend.
func (c *Config) ValidateRemote() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if strings.TrimSpace(c.RealtimeURL) == "" {
		return fmt.Errorf("realtime.url is required")
	}
	return nil
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c *Config) EnsureDatabaseDir() error {
	if c.DatabasePath == storage.MemoryPath {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.DatabasePath), 0o755)
}
