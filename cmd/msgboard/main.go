package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shohag/msgboard/internal/api"
	"github.com/shohag/msgboard/internal/config"
	"github.com/shohag/msgboard/internal/edge"
	"github.com/shohag/msgboard/internal/models"
	"github.com/shohag/msgboard/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "msgboard",
		Short: "msgboard — message board API for edge nodes",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(messagesCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the msgboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			deps := api.Deps{
				Store:     store,
				Nodes:     edge.NewClient(cfg.Edge.MDSURL, cfg.Edge.Clusters, cfg.Edge.Timeout),
				Decrypter: edge.NewDecrypter(cfg.Edge.KeySalt),
			}
			server := api.NewServer(cfg.Server, cfg.Devices, deps, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("storage", cfg.Storage.Driver).
				Str("mds", cfg.Edge.MDSURL).
				Msg("msgboard is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			log.Info().Msg("msgboard stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func messagesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Manage stored messages",
	}

	// messages list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in store order",
		RunE: func(cmd *cobra.Command, args []string) error {
			after, _ := cmd.Flags().GetString("after")

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := storage.ListAfter(context.Background(), store, after)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}

			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages found.")
				return nil
			}
			for _, raw := range list {
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			}
			return nil
		},
	}
	listCmd.Flags().String("after", "", "only list messages after this id")

	// messages get
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			value, ok, err := store.GetItem(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get message: %w", err)
			}
			if !ok {
				return fmt.Errorf("no such item: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	// messages post
	postCmd := &cobra.Command{
		Use:   "post",
		Short: "Store a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := cmd.Flags().GetString("body")
			id, _ := cmd.Flags().GetString("id")

			msg, err := messageFromFlags(id, body)
			if err != nil {
				return err
			}
			msg.Stamp(time.Now())

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			value, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := store.SetItem(context.Background(), msg.ID(), string(value)); err != nil {
				return fmt.Errorf("failed to store message: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		},
	}
	postCmd.Flags().String("id", "", "message id (generated when omitted)")
	postCmd.Flags().String("body", "", "message fields as a JSON object")

	// messages delete
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			value, ok, err := store.GetItem(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get message: %w", err)
			}
			if !ok {
				return fmt.Errorf("no such item: %s", args[0])
			}
			if err := store.RemoveItem(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, postCmd, deleteCmd)
	return cmd
}

// messageFromFlags builds a message the way POST /messages would: --id
// wins over a body id, and a missing id is generated.
func messageFromFlags(id, body string) (models.Message, error) {
	var fields map[string]json.RawMessage
	if body != "" {
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("--body must be a JSON object: %w", err)
		}
		if fields == nil {
			return nil, errors.New("missing JSON body")
		}
	} else {
		fields = map[string]json.RawMessage{}
	}

	if id == "" {
		if _, ok := fields["id"]; !ok {
			id = models.NewID("msg")
		}
	}
	if id != "" {
		encoded, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		fields["id"] = encoded
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return models.MessageFromJSON(raw)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("msgboard v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
	case "memory":
		log.Warn().Msg("using in-memory storage, messages will not survive a restart")
	}
	return storage.Open(cfg.Driver, cfg.SQLite.Path)
}

func storeFromConfig(configPath string) (storage.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
