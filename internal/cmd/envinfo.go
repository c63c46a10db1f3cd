package cmd

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/output"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, effective configuration and version information. Secrets are reported as set or unset only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		version := crucible.GetVersion()
		rows := [][]any{
			{"app.version", versionInfo.Version},
			{"app.commit", versionInfo.Commit},
			{"app.built", versionInfo.BuildDate},
			{"ssot.gofulmen", version.Gofulmen},
			{"ssot.crucible", version.Crucible},
			{"runtime.go", runtime.Version()},
			{"runtime.platform", runtime.GOOS + "/" + runtime.GOARCH},
			{"runtime.num_cpu", runtime.NumCPU()},
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			rows = append(rows, []any{"config.error", err.Error()})
		} else {
			rows = append(rows, configRows(cfg)...)
		}

		return writeOutput(cmd, "envinfo", output.Table{
			Title:  config.AppName + " environment",
			Header: []string{"setting", "value"},
			Rows:   rows,
		})
	},
}

func configRows(cfg *config.Config) [][]any {
	store := cfg.Store.Path
	if strings.TrimSpace(cfg.Store.URL) != "" {
		store = cfg.Store.URL
	}
	rows := [][]any{
		{"config.file", orNone(config.ConfigFileUsed())},
		{"server.addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)},
		{"logging", cfg.Logging.Level + " / " + cfg.Logging.Profile},
		{"store", cfg.Store.Driver + " " + store},
		{"metrics", fmt.Sprintf("enabled=%t port=%d", cfg.Metrics.Enabled, cfg.Metrics.Port)},
		{"rate_limits.backend", cfg.RateLimits.Backend},
		{"rate_limits.failure_mode", cfg.RateLimits.Policy().String()},
	}
	table := cfg.RateLimits.Table()
	for _, category := range sortedCategories(table) {
		limit := table[category]
		rows = append(rows, []any{"rate_limits." + string(category), fmt.Sprintf("%d per %s", limit.Limit, limit.Window)})
	}
	for _, kind := range sortedKinds(cfg) {
		rows = append(rows, []any{"status." + kind, cfg.Status.Kinds[kind].String()})
	}
	rows = append(rows,
		[]any{"provider.url", orNone(cfg.Provider.URL)},
		[]any{"provider.api_key", setOrUnset(cfg.Provider.APIKey)},
		[]any{"provider.api_secret", setOrUnset(cfg.Provider.APISecret)},
		[]any{"rooms.default_type", cfg.Rooms.DefaultType},
		[]any{"rooms.catalog", len(cfg.Rooms.Catalog)},
		[]any{"identity.jwt_secret", setOrUnset(cfg.Identity.JWTSecret)},
		[]any{"identity.roles", len(cfg.Identity.Roles)},
	)
	return rows
}

func sortedKinds(cfg *config.Config) []string {
	kinds := make([]string, 0, len(cfg.Status.Kinds))
	for kind := range cfg.Status.Kinds {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

func setOrUnset(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "(not set)"
	}
	return "(set)"
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(none)"
	}
	return value
}

func init() {
	addOutputFlags(envInfoCmd)
	rootCmd.AddCommand(envInfoCmd)
}
