package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the service could start: configuration loads and validates, the
profile store opens and migrates, and the counter store answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			return &core.ConfigError{Component: "version information"}
		}
		log.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Error("❌ FAIL: configuration", zap.Error(err))
			return err
		}
		log.Info("✅ Configuration valid", zap.String("file", config.ConfigFileUsed()))

		c, err := buildComponents(cmd.Context(), cfg)
		if err != nil {
			log.Error("❌ FAIL: store", zap.Error(err))
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup
		log.Info("✅ Profile store ready", zap.String("driver", c.store.Driver()))

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if err := pingCounters(ctx, c.counters); err != nil {
			if cfg.RateLimits.Policy() == core.FailClosed {
				log.Error("❌ FAIL: counter store", zap.String("backend", cfg.RateLimits.Backend), zap.Error(err))
				return fmt.Errorf("counter store: %w", err)
			}
			log.Warn("⚠️  Counter store unreachable; requests would be admitted degraded",
				zap.String("backend", cfg.RateLimits.Backend), zap.Error(err))
		} else {
			log.Info("✅ Counter store ready", zap.String("backend", cfg.RateLimits.Backend))
		}

		if c.rooms.Configured() {
			log.Info("✅ Realtime provider configured")
		} else {
			log.Warn("⚠️  Realtime provider not configured; rooms are synthetic")
		}
		if c.identity == nil {
			log.Warn("⚠️  identity.jwt_secret not set; authenticated routes answer 503")
		}

		log.Info("✅ All health checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
