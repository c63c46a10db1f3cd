package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
	"github.com/roomgate/roomgate/internal/core/ratelimit"
	"github.com/roomgate/roomgate/internal/output"
)

var (
	rateLimitClient   string
	rateLimitCategory string
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset rate limit counters",
}

var rateLimitInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a client's usage in the current window",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		categories, err := selectedCategories(c.limiter)
		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(categories))
		for _, category := range categories {
			count, decision, err := c.limiter.Inspect(cmd.Context(), rateLimitClient, category)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", category, err)
			}
			rows = append(rows, []any{
				string(category),
				count,
				decision.Limit,
				decision.Remaining,
				decision.ResetAt.UTC().Format(time.RFC3339),
			})
		}

		return writeOutput(cmd, "rate-limit.inspect", output.Table{
			Title:  "Rate limits for " + rateLimitClient,
			Header: []string{"category", "count", "limit", "remaining", "reset_at"},
			Rows:   rows,
		})
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a client's counter in the current window",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		categories, err := selectedCategories(c.limiter)
		if err != nil {
			return err
		}
		for _, category := range categories {
			if err := c.limiter.Reset(cmd.Context(), rateLimitClient, category); err != nil {
				return fmt.Errorf("reset %s: %w", category, err)
			}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Reset %d categor(ies) for %s\n", len(categories), rateLimitClient)
		return err
	},
}

// selectedCategories returns the --category value, or every configured
// category when it is empty.
func selectedCategories(limiter *ratelimit.Limiter) ([]core.Category, error) {
	if strings.TrimSpace(rateLimitClient) == "" {
		return nil, fmt.Errorf("--client is required")
	}
	if raw := strings.ToLower(strings.TrimSpace(rateLimitCategory)); raw != "" {
		category := core.Category(raw)
		if _, ok := limiter.Categories[category]; !ok {
			return nil, fmt.Errorf("unknown category %q", rateLimitCategory)
		}
		return []core.Category{category}, nil
	}
	return sortedCategories(limiter.Categories), nil
}

// requireLibsqlCounters rejects store-level counter commands on backends
// that cannot enumerate keys.
func requireLibsqlCounters(c *components) error {
	if backend := strings.ToLower(c.cfg.RateLimits.Backend); backend != counter.BackendLibsql {
		return fmt.Errorf("counter listing requires the %s backend (configured: %s)", counter.BackendLibsql, backend)
	}
	return nil
}

func init() {
	for _, sub := range []*cobra.Command{rateLimitInspectCmd, rateLimitResetCmd} {
		sub.Flags().StringVar(&rateLimitClient, "client", "", "Client id (the caller IP address)")
		sub.Flags().StringVar(&rateLimitCategory, "category", "", "Category: auth|read|token|status (default all)")
	}
	addOutputFlags(rateLimitInspectCmd)

	rateLimitCmd.AddCommand(rateLimitInspectCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitClearCmd)
	rateLimitCmd.AddCommand(rateLimitPruneCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
