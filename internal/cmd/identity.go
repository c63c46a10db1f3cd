package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/identity"
)

var (
	identitySubject string
	identityEmail   string
	identityName    string
	identityPicture string
	identityTTL     time.Duration
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Work with session bearer tokens",
}

var identityIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a session token signed with identity.jwt_secret (development use)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(identitySubject) == "" {
			return fmt.Errorf("--subject is required")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		authority, err := identity.NewAuthority(cfg.Identity.JWTSecret, cfg.Identity.Issuer, cfg.Identity.Audience)
		if err != nil {
			return err
		}

		token, err := authority.Issue(identitySubject, identity.ProfileClaims{
			Email:   identityEmail,
			Name:    identityName,
			Picture: identityPicture,
		}, identityTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

var identityVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a session token and print the resolved principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		if c.identity == nil {
			return &core.ConfigError{Component: "identity"}
		}
		principal, err := c.identity.Authenticate(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "subject: %s\n", principal.SubjectID)
		_, _ = fmt.Fprintf(out, "name:    %s\n", principal.DisplayName)
		_, _ = fmt.Fprintf(out, "email:   %s\n", principal.Email)
		_, err = fmt.Fprintf(out, "role:    %s\n", principal.Role)
		return err
	},
}

func init() {
	identityIssueCmd.Flags().StringVar(&identitySubject, "subject", "", "Subject id")
	identityIssueCmd.Flags().StringVar(&identityEmail, "email", "", "Email claim")
	identityIssueCmd.Flags().StringVar(&identityName, "name", "", "Name claim")
	identityIssueCmd.Flags().StringVar(&identityPicture, "picture", "", "Picture URL claim")
	identityIssueCmd.Flags().DurationVar(&identityTTL, "ttl", time.Hour, "Token lifetime")

	identityCmd.AddCommand(identityIssueCmd, identityVerifyCmd)
	rootCmd.AddCommand(identityCmd)
}
