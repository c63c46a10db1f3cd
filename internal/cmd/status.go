package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core/status"
	"github.com/roomgate/roomgate/internal/output"
)

var statusTTL time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and change subjects' presence flags",
}

var statusShowCmd = &cobra.Command{
	Use:   "show <subject>",
	Short: "Show every presence flag of a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		snapshots, err := c.status.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("read status of %s: %w", args[0], err)
		}
		return writeStatus(cmd, args[0], snapshots)
	},
}

var statusSetCmd = &cobra.Command{
	Use:   "set <subject> <kind>",
	Short: "Activate a flag for --ttl (default: the kind's TTL)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		kind, err := c.status.ParseKind(args[1])
		if err != nil {
			return err
		}
		until, err := c.status.Activate(cmd.Context(), args[0], kind, statusTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is %s until %s\n", args[0], kind, until.Format(time.RFC3339))
		return err
	},
}

var statusClearCmd = &cobra.Command{
	Use:   "clear <subject> <kind>",
	Short: "Deactivate a flag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		kind, err := c.status.ParseKind(args[1])
		if err != nil {
			return err
		}
		if err := c.status.Deactivate(cmd.Context(), args[0], kind); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer %s\n", args[0], kind)
		return err
	},
}

var statusToggleCmd = &cobra.Command{
	Use:   "toggle <subject> <kind>",
	Short: "Flip a flag the way the API does",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		kind, err := c.status.ParseKind(args[1])
		if err != nil {
			return err
		}
		snap, err := c.status.Toggle(cmd.Context(), args[0], kind)
		if err != nil {
			return err
		}
		return writeStatus(cmd, args[0], []status.Snapshot{snap})
	},
}

func writeStatus(cmd *cobra.Command, subject string, snapshots []status.Snapshot) error {
	return writeOutput(cmd, "status."+subject, output.Table{
		Title:  "Status of " + subject,
		Header: []string{"kind", "active", "active_until", "remaining"},
		Rows: lo.Map(snapshots, func(s status.Snapshot, _ int) []any {
			until, remaining := "-", "-"
			if s.ActiveUntil != nil {
				until = s.ActiveUntil.Format(time.RFC3339)
			}
			if s.Remaining != nil {
				remaining = time.Duration(math.Ceil(s.Remaining.Seconds()) * float64(time.Second)).String()
			}
			return []any{string(s.Kind), s.Active, until, remaining}
		}),
		Records: snapshots,
	})
}

func init() {
	statusSetCmd.Flags().DurationVar(&statusTTL, "ttl", 0, "How long the flag stays active")
	addOutputFlags(statusShowCmd)
	addOutputFlags(statusToggleCmd)

	statusCmd.AddCommand(statusShowCmd, statusSetCmd, statusClearCmd, statusToggleCmd)
	rootCmd.AddCommand(statusCmd)
}
