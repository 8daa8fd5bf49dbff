// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolbridge/pkg/api"
	v1 "github.com/stacklok/toolbridge/pkg/api/v1"
	"github.com/stacklok/toolbridge/pkg/apikeys"
	"github.com/stacklok/toolbridge/pkg/auth/discovery"
	"github.com/stacklok/toolbridge/pkg/auth/oauth"
	"github.com/stacklok/toolbridge/pkg/auth/state"
	"github.com/stacklok/toolbridge/pkg/config"
	"github.com/stacklok/toolbridge/pkg/connections"
	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/mcptools"
	"github.com/stacklok/toolbridge/pkg/networking"
	"github.com/stacklok/toolbridge/pkg/storage"
	"github.com/stacklok/toolbridge/pkg/storage/memory"
	"github.com/stacklok/toolbridge/pkg/storage/sqlite"
	"github.com/stacklok/toolbridge/pkg/telemetry"
)

var serveConfigFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ToolBridge API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "Path to a config file (environment variables take precedence)")
}

func serve(cmd *cobra.Command) error {
	cfg, err := config.Load(serveConfigFile)
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	logger.Initialize(cfg.Debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()

	codec, err := state.NewCodec([]byte(cfg.StateSigningKey), state.WithTTL(cfg.StateTTL))
	if err != nil {
		return fmt.Errorf("state codec: %w", err)
	}
	issuer, err := apikeys.NewIssuer(store.APIKeys(), cfg.APIKeyPrefix, cfg.APIKeyBytes)
	if err != nil {
		return fmt.Errorf("API key issuer: %w", err)
	}

	httpClient := networking.NewHTTPClient(cfg.HTTPTimeout)
	metrics := telemetry.New()

	manager, err := connections.NewManager(store, codec, issuer, cfg.RedirectURI(),
		connections.WithDiscoverer(discovery.NewDiscoverer(httpClient)),
		connections.WithRegistrar(oauth.NewRegistrar(httpClient)),
		connections.WithExchanger(oauth.NewExchanger(httpClient)),
		connections.WithIntrospector(mcptools.NewIntrospector(cfg.IntrospectionTimeout)),
		connections.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("connection manager: %w", err)
	}

	router := api.NewRouter(v1.NewHandler(manager), metrics)
	server := api.NewServer(cfg.ListenAddress, router)
	return server.Serve(ctx)
}

// openStore selects the storage backend. The literal path "memory" runs the
// server on the in-process store, for development and tests; anything else is
// a SQLite database file.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabasePath == "memory" {
		logger.Info("Using in-memory storage; state is lost on exit")
		return memory.NewStore(), nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := sqlite.Open(openCtx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Infof("Using SQLite storage at %s", cfg.DatabasePath)
	return sqlite.NewStore(db), nil
}
