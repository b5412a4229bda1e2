package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/api"
	"github.com/papercomputeco/parley/cmd/parley/sqlitepath"
	"github.com/papercomputeco/parley/pkg/backend"
	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/storage/sqlite"
)

const serveLongDesc string = `Run the parley API server.

Serves conversation management and streaming chat over HTTP, backed by a
local SQLite database and the configured model backend. Settings come from
~/.parley/config.toml; flags override the file.

Examples:
  parley serve
  parley serve --listen :9090 --sqlite ./parley.db
  parley serve --config ./parley.toml --debug`

const serveShortDesc string = "Run the parley API server"

type serveCommander struct {
	configPath string
	listen     string
	sqlitePath string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmder.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to config file (default ~/.parley/config.toml)")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

// config loads the config file and applies flag overrides.
func (c *serveCommander) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = c.listen
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.Database = c.sqlitePath
	}
	if c.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.Debug)
	defer func() { _ = log.Sync() }()

	dbPath, err := sqlitepath.ResolveSQLitePath(cfg.Database)
	if err != nil {
		return fmt.Errorf("could not resolve database: %w", err)
	}

	store, err := sqlite.NewDriver(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("could not open database %s: %w", dbPath, err)
	}
	defer store.Close()

	model, err := backend.New(cfg.Backend, log)
	if err != nil {
		return err
	}

	svc := chat.NewService(store, model, chat.Config{
		SystemPrompt: cfg.SystemPrompt,
		Options:      cfg.Options,
	}, log)

	srv, err := api.NewServer(api.Config{
		ListenAddr: cfg.Listen,
		Models:     cfg.Catalog(),
	}, svc, store, log)
	if err != nil {
		return err
	}

	log.Info("parley server starting",
		zap.String("listen", cfg.Listen),
		zap.String("database", dbPath),
		zap.String("backend", cfg.Backend.Kind),
		zap.Strings("models", cfg.Models),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("server exited", zap.Error(err))
	}
	return nil
}
