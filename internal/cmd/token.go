package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core"
)

var (
	tokenRoom    string
	tokenSubject string
	tokenName    string
	tokenRole    string
	tokenJSON    bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint room capability tokens",
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Admit a subject into a room and print the capability token",
	Long: `Admit a subject into a room exactly as POST /rooms/token does: the room
is created on the provider when missing and the grants follow the room type
and the subject's role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tokenSubject) == "" {
			return fmt.Errorf("--subject is required")
		}
		role, err := core.ParseRole(tokenRole)
		if err != nil {
			return err
		}

		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		name := tokenName
		if name == "" {
			name = tokenSubject
		}
		admission, err := c.rooms.Admit(cmd.Context(), core.Principal{
			SubjectID:   tokenSubject,
			DisplayName: name,
			Role:        role,
		}, tokenRoom)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if tokenJSON {
			payload, err := json.MarshalIndent(map[string]any{
				"token":     admission.Token.JWT,
				"room":      admission.Room,
				"grants":    admission.Token.Grants,
				"expiresAt": admission.Token.ExpiresAt,
				"serverUrl": c.cfg.Provider.ServerURL,
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(payload))
			return err
		}

		_, _ = fmt.Fprintf(out, "room:       %s (sid %s)\n", admission.Room.Name, admission.Room.SID)
		_, _ = fmt.Fprintf(out, "identity:   %s\n", admission.Token.ParticipantIdentity)
		_, _ = fmt.Fprintf(out, "publish:    %t\n", admission.Token.Grants.CanPublish)
		_, _ = fmt.Fprintf(out, "expires:    %s\n", admission.Token.ExpiresAt.Format(time.RFC3339))
		_, err = fmt.Fprintln(out, admission.Token.JWT)
		return err
	},
}

func init() {
	tokenMintCmd.Flags().StringVar(&tokenRoom, "room", "", "Room name")
	tokenMintCmd.Flags().StringVar(&tokenSubject, "subject", "", "Participant identity (subject id)")
	tokenMintCmd.Flags().StringVar(&tokenName, "name", "", "Display name (default: subject)")
	tokenMintCmd.Flags().StringVar(&tokenRole, "role", "member", "Role: member|moderator|host|admin")
	tokenMintCmd.Flags().BoolVar(&tokenJSON, "json", false, "Print the admission as JSON")
	_ = tokenMintCmd.MarkFlagRequired("room")

	tokenCmd.AddCommand(tokenMintCmd)
	rootCmd.AddCommand(tokenCmd)
}
