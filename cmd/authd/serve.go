// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	authmongo "github.com/holomush/authd/internal/auth/mongo"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/logging"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/store"
	"github.com/holomush/authd/internal/web"
)

// shutdownTimeout bounds graceful shutdown of both servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API and observability servers",
		Long: `Start the auth API (login, registration, session checks, logout)
and the observability server (metrics and health probes).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":7000", "API listen address")
	f.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	f.String("env", "development", "environment name; production enables Secure cookies")
	f.StringSlice("allowed-origins", nil, "CORS origin glob patterns")
	f.Duration("token-ttl", auth.DefaultTokenTTL, "session token lifetime")
	f.String("hash-scheme", auth.SchemeArgon2id, "password hash scheme (argon2id or bcrypt)")
	f.String("store", config.DriverPostgres, "credential store (postgres, mongo or memory)")
	f.String("database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	f.String("mongo-uri", "", "MongoDB URI (default: MONGODB_URI)")
	f.Bool("auto-migrate", false, "apply pending migrations before serving")
	f.String("log-format", "json", "log format (json or text)")
	f.String("log-level", "info", "log level (debug, info, warn or error)")

	return cmd
}

// runServeWithDeps runs the servers until ctx is cancelled, a shutdown
// signal arrives, or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("authd", version, cfg.Log.Format, level)

	logger.Info("starting authd",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"store", cfg.Store.Driver,
		"hash_scheme", cfg.Auth.HashScheme,
	)

	repo, closeStore, err := deps.StoreOpener(ctx, cfg)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	defer closeStore()

	svc, validator, err := buildAuth(cfg, repo, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, svc.Ready)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Server.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	router, err := buildRouter(cfg, svc, validator, metrics, logger)
	if err != nil {
		stopServers(nil, obsServer)
		return err
	}

	apiServer := deps.APIServerFactory(cfg.Server.Addr, router)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServers(nil, obsServer)
		return oops.Code("API_START_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	cmd.Println("authd started")
	logger.Info("authd ready", "addr", apiServer.Addr(), "metrics_addr", metricsAddr)
	deps.OnReady(apiServer.Addr(), metricsAddr)

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	<-sigCtx.Done()

	logger.Info("shutting down")
	stopServers(apiServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// buildAuth wires the hasher, token issuer, session validator and service.
func buildAuth(cfg *config.Config, repo auth.CredentialRepository, logger *slog.Logger) (*auth.Service, *auth.SessionValidator, error) {
	hasher, err := auth.NewSchemeHasher(cfg.Auth.HashScheme)
	if err != nil {
		return nil, nil, err
	}
	secret := []byte(cfg.Auth.JWTSecret)
	issuer, err := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	validator, err := auth.NewSessionValidator(secret)
	if err != nil {
		return nil, nil, err
	}
	svc, err := auth.NewServiceWithLogger(repo, hasher, issuer, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, validator, nil
}

// buildRouter wires the HTTP handlers, cookie transport and CORS policy.
func buildRouter(cfg *config.Config, svc *auth.Service, validator *auth.SessionValidator, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	cookies := web.NewCookieTransport(cfg.Auth.CookieName, cfg.IsProduction())
	handlers, err := web.NewHandlers(svc, validator, cookies, metrics, logger)
	if err != nil {
		return nil, err
	}
	cors, err := web.NewCORS(cfg.Server.AllowedOrigins)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "server.allowed_origins").Wrap(err)
	}
	return web.NewRouter(handlers, cors), nil
}

// openStore opens the credential store selected by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config) (auth.CredentialRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory credential store; credentials are lost on restart")
		return memory.NewCredentialRepository(), func() {}, nil

	case config.DriverPostgres:
		pool, err := store.Connect(ctx, cfg.Store.DatabaseURL, store.DefaultConnectOptions())
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := applyMigrations(cfg.Store.DatabaseURL); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewCredentialRepository(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := authmongo.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		disconnect := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := client.Disconnect(shutdownCtx); err != nil {
				slog.Warn("error disconnecting from mongo", "error", err)
			}
		}
		repo := authmongo.NewCredentialRepository(client.Database(cfg.Store.MongoDatabase), "")
		if err := repo.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		return repo, disconnect, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("key", "store.driver").
			Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// applyMigrations brings the schema up to date.
func applyMigrations(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	slog.Info("database schema up to date", "version", version)
	return nil
}

// stopServers shuts down whichever servers are non-nil.
func stopServers(api APIServer, obs ObservabilityServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping api server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
