package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatcache/internal/app"
	"chatcache/internal/chat"
	"chatcache/internal/data/store"
	"chatcache/internal/infra/config"
	"chatcache/internal/infra/logger"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	config.ApplyDefaults(v)

	rootCmd := &cobra.Command{
		Use:          "chatcache",
		Short:        "Offline chat cache and sync engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfig(v, cfgFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("log-level", v.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("database-path", v.GetString("database.path"), "SQLite database path")
	flags.String("database-driver", v.GetString("database.driver"), "SQLite driver (sqlite3, modernc)")
	flags.String("user-id", "", "Current user id")
	bindFlag(v, rootCmd, "log.level", "log-level")
	bindFlag(v, rootCmd, "database.path", "database-path")
	bindFlag(v, rootCmd, "database.driver", "database-driver")
	bindFlag(v, rootCmd, "user.id", "user-id")

	rootCmd.AddCommand(newRunCmd(v), newResetCmd(v), newTasksCmd(v), newChannelsCmd(v))
	return rootCmd
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("chatcache")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func load(v *viper.Viper) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New("chatcache", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withStores runs fn against the opened cache database.
func withStores(ctx context.Context, v *viper.Viper, fn func(*config.Config, *store.Container) error) error {
	cfg, log, err := load(v)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Store.Engine().Close()
	return fn(cfg, stores)
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the backend and keep the cache in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(v)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			application, err := app.New(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			return application.Run()
		},
	}
	flags := cmd.Flags()
	flags.String("api-base-url", "", "Backend REST base URL")
	flags.String("realtime-url", "", "Backend websocket URL")
	flags.String("api-key", "", "Backend API key")
	flags.String("api-token", "", "User token")
	for key, flag := range map[string]string{
		"api.base_url": "api-base-url",
		"realtime.url": "realtime-url",
		"api.key":      "api-key",
		"api.token":    "api-token",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func newResetCmd(v *viper.Viper) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the local cache",
		Long:  "Clear the local cache. Pending tasks are kept unless --all is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), v, func(_ *config.Config, stores *store.Container) error {
				engine := stores.Store.Engine()
				if all {
					return engine.DropAll(cmd.Context())
				}
				return engine.Reset(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also drop queued pending tasks")
	return cmd
}

func newTasksCmd(v *viper.Viper) *cobra.Command {
	var messageID, drop string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List or drop queued offline mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), v, func(_ *config.Config, stores *store.Container) error {
				if drop != "" {
					_, err := stores.Tasks.DeleteForMessage(cmd.Context(), drop, true)
					return err
				}
				var (
					tasks []chat.PendingTask
					err   error
				)
				if messageID != "" {
					tasks, err = stores.Tasks.ForMessage(cmd.Context(), messageID)
				} else {
					tasks, err = stores.Tasks.All(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printTasks(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().StringVar(&messageID, "message", "", "Only list tasks for this message id")
	cmd.Flags().StringVar(&drop, "drop", "", "Drop every task for this message id")
	return cmd
}

func printTasks(out io.Writer, tasks []chat.PendingTask) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCHANNEL\tMESSAGE\tCREATED\tPAYLOAD")
	for _, t := range tasks {
		channel := ""
		if t.ChannelType != "" {
			channel = chat.CID(t.ChannelType, t.ChannelID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Type, channel, t.MessageID,
			t.CreatedAt.Format("2006-01-02 15:04:05"), compact(t.Payload))
	}
	return w.Flush()
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "-"
	}
	return string(raw)
}

func newChannelsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List cached channels with unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), v, func(cfg *config.Config, stores *store.Container) error {
				cids, err := stores.Channels.CIDs(cmd.Context())
				if err != nil {
					return err
				}
				states, err := stores.Channels.Get(cmd.Context(), cids, store.ReadOptions{
					CurrentUserID: cfg.UserID,
					MessageLimit:  cfg.RecentMessages,
				})
				if err != nil {
					return err
				}
				return printChannels(cmd.OutOrStdout(), cfg.UserID, states)
			})
		},
	}
}

func printChannels(out io.Writer, userID string, states []chat.ChannelState) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CID\tMEMBERS\tMESSAGES\tUNREAD\tHIDDEN")
	for _, st := range states {
		unread := 0
		for _, r := range st.Read {
			if r.User != nil && r.User.ID == userID {
				unread = r.UnreadMessages
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\n", st.Channel.CID, len(st.Members), len(st.Messages), unread, st.Channel.Hidden)
	}
	return w.Flush()
}
