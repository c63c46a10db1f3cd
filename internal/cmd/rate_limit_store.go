package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core/store"
	"github.com/roomgate/roomgate/internal/output"
)

var (
	counterListAll    bool
	counterListPrefix string

	counterClearAll    bool
	counterClearKey    string
	counterClearPrefix string
	counterClearYes    bool
	counterClearDryRun bool
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate counters (libsql backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		if err := requireLibsqlCounters(c); err != nil {
			return err
		}

		query := store.CounterQuery{All: counterListAll, Prefix: strings.TrimSpace(counterListPrefix)}
		if query.Prefix == "" {
			query.All = true
		}

		entries, err := c.store.ListCounters(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeOutput(cmd, "rate-limit.list", output.Table{
			Title:  "Rate counters",
			Header: []string{"key", "count", "expires_at", "expired"},
			Rows: lo.Map(entries, func(e store.CounterEntry, _ int) []any {
				return []any{e.Key, e.Count, e.ExpiresAt.Format(time.RFC3339), e.Expired}
			}),
			Empty:   "(no stored rate counters)",
			Records: entries,
		})
	},
}

var rateLimitClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored rate counters (libsql backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := store.CounterQuery{
			All:    counterClearAll,
			Key:    strings.TrimSpace(counterClearKey),
			Prefix: strings.TrimSpace(counterClearPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !counterClearYes && !counterClearDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		if err := requireLibsqlCounters(c); err != nil {
			return err
		}

		matched, err := c.store.CountCounters(cmd.Context(), query)
		if err != nil {
			return err
		}
		if counterClearDryRun {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Would delete %d rate counter(s)\n", matched)
			return err
		}

		deleted, err := c.store.ResetCounters(cmd.Context(), query)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d/%d rate counter(s)\n", deleted, matched)
		return err
	},
}

var rateLimitPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired rate counters (libsql backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		if err := requireLibsqlCounters(c); err != nil {
			return err
		}

		deleted, err := c.store.PruneExpiredCounters(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired rate counter(s)\n", deleted)
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().BoolVar(&counterListAll, "all", false, "List all counters")
	rateLimitListCmd.Flags().StringVar(&counterListPrefix, "prefix", "", "List counters whose key has this prefix (e.g. rl:auth:)")
	addOutputFlags(rateLimitListCmd)

	rateLimitClearCmd.Flags().BoolVar(&counterClearAll, "all", false, "Delete all counters")
	rateLimitClearCmd.Flags().StringVar(&counterClearKey, "key", "", "Delete a single counter (exact key)")
	rateLimitClearCmd.Flags().StringVar(&counterClearPrefix, "prefix", "", "Delete counters whose key has this prefix")
	rateLimitClearCmd.Flags().BoolVar(&counterClearYes, "yes", false, "Confirm destructive clear")
	rateLimitClearCmd.Flags().BoolVar(&counterClearDryRun, "dry-run", false, "Show what would be deleted")
}
