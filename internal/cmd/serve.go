package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
	"github.com/roomgate/roomgate/internal/core/ratelimit"
	errwrap "github.com/roomgate/roomgate/internal/errors"
	"github.com/roomgate/roomgate/internal/identity"
	"github.com/roomgate/roomgate/internal/metrics"
	"github.com/roomgate/roomgate/internal/observability"
	"github.com/roomgate/roomgate/internal/server"
	"github.com/roomgate/roomgate/internal/server/handlers"
	servermw "github.com/roomgate/roomgate/internal/server/middleware"
)

// adminTokenEnv enables POST /admin/signal when set.
const adminTokenEnv = config.EnvPrefix + "ADMIN_TOKEN"

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the admission API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the config file and apply the new log level

The server stops accepting requests, closes the counter and profile stores,
and flushes logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx, serveOverrides(cmd))
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config load failed")
		}

		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:   config.AppName,
			Level:     cfg.Logging.Level,
			Profile:   cfg.Logging.Profile,
			Namespace: config.AppName,
		})

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()),
			zap.String("rate_limit_backend", cfg.RateLimits.Backend),
			zap.String("rate_limit_failure_mode", cfg.RateLimits.Policy().String()))

		deps, err := buildComponents(ctx, cfg)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "component initialization failed")
		}

		handlers.InitHealthManager(versionInfo.Version)
		registerHealthCheckers(handlers.GetHealthManager(), cfg, deps)

		srv := server.NewFromConfig(cfg, serverDeps(cfg, deps))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: HTTP server, stores, metrics, logger.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			return observability.StopMetrics()
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := deps.Close(); err != nil {
				observability.ServerLogger.Warn("Closing stores returned error", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			reloaded, err := config.Load(ctx, serveOverrides(cmd))
			if err != nil {
				observability.ServerLogger.Error("Failed to reload config",
					zap.String("file", config.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			if !strings.EqualFold(reloaded.Logging.Level, cfg.Logging.Level) || !strings.EqualFold(reloaded.Logging.Profile, cfg.Logging.Profile) {
				observability.InitServerLogger(observability.ServerLoggerOptions{
					Service:   config.AppName,
					Level:     reloaded.Logging.Level,
					Profile:   reloaded.Logging.Profile,
					Namespace: config.AppName,
				})
			}

			// TODO: rebuild the limiter and room catalog from reloaded config;
			// today only logging follows a reload.
			observability.ServerLogger.Info("Configuration reloaded",
				zap.String("file", config.ConfigFileUsed()),
				zap.String("log_level", reloaded.Logging.Level))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			_ = deps.Close()
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

// serveOverrides maps explicitly set flags onto config keys.
func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		overrides["server"] = map[string]any{"host": serverHost}
	}
	if cmd.Flags().Changed("port") {
		section, _ := overrides["server"].(map[string]any)
		if section == nil {
			section = map[string]any{}
		}
		section["port"] = serverPort
		overrides["server"] = section
	}
	return overrides
}

func serverDeps(cfg *config.Config, c *components) server.Deps {
	auth := &servermw.Auth{ParseBearer: identity.ParseBearer}
	if c.identity != nil {
		auth.Authenticator = c.identity
	}

	return server.Deps{
		API: &handlers.API{
			Status:    c.status,
			Rooms:     c.rooms,
			ServerURL: cfg.Provider.ServerURL,
		},
		Admission:  newAdmission(cfg, c),
		Auth:       auth,
		AdminToken: strings.TrimSpace(os.Getenv(adminTokenEnv)),
	}
}

// newAdmission resolves client identities through the configured number of
// trusted proxies.
func newAdmission(cfg *config.Config, c *components) *servermw.Admission {
	admission := servermw.NewAdmission(c.limiter, nil, 10*time.Second)
	admission.Clients = ratelimit.Resolver{TrustedHops: cfg.RateLimits.TrustedProxyHops}
	return admission
}

func registerHealthCheckers(hm *handlers.HealthManager, cfg *config.Config, c *components) {
	if !cfg.Health.Enabled {
		return
	}

	hm.RegisterChecker("store", handlers.CheckFunc(func(ctx context.Context) error {
		if err := c.store.DB.PingContext(ctx); err != nil {
			return errwrap.NewServiceUnavailableError("profile store unreachable")
		}
		return nil
	}))

	counters := handlers.HealthChecker(handlers.CheckFunc(func(ctx context.Context) error {
		return pingCounters(ctx, c.counters)
	}))
	if cfg.RateLimits.Policy() == core.FailOpen {
		counters = handlers.Optional(counters)
	}
	hm.RegisterChecker("counter_store", counters)

	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", handlers.CheckFunc(func(context.Context) error {
			if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
				return errwrap.NewInternalError("telemetry system not initialized")
			}
			return nil
		}))
	}
}

// pingCounters probes the counter store with a read.
func pingCounters(ctx context.Context, counters counter.Store) error {
	if p, ok := counters.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := counters.Get(ctx, "health:probe")
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
