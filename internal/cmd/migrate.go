package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the profile and counter tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		location := cfg.Store.Path
		if cfg.Store.URL != "" {
			location = cfg.Store.URL
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Store %s (%s) is up to date\n", location, db.Driver())
		return err
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
