package cmd

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/output"
)

var (
	subjectName   string
	subjectAvatar string
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage stored subject profiles",
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		subjects, err := c.store.ListSubjects(cmd.Context())
		if err != nil {
			return err
		}
		return writeOutput(cmd, "subjects", output.Table{
			Title:  "Subjects",
			Header: []string{"id", "display_name", "avatar_url", "created_at"},
			Rows: lo.Map(subjects, func(s core.Subject, _ int) []any {
				return []any{s.ID, s.DisplayName, s.AvatarURL, s.CreatedAt.Format(time.RFC3339)}
			}),
			Empty:   "(no subjects)",
			Records: subjects,
		})
	},
}

var subjectsRegisterCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register or update a subject profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		subject, err := c.store.UpsertSubject(cmd.Context(), core.Subject{
			ID:          args[0],
			DisplayName: subjectName,
			AvatarURL:   subjectAvatar,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", subject.ID, subject.DisplayName)
		return err
	},
}

func init() {
	subjectsRegisterCmd.Flags().StringVar(&subjectName, "name", "", "Display name")
	subjectsRegisterCmd.Flags().StringVar(&subjectAvatar, "avatar", "", "Avatar URL")
	addOutputFlags(subjectsListCmd)

	subjectsCmd.AddCommand(subjectsListCmd, subjectsRegisterCmd)
	rootCmd.AddCommand(subjectsCmd)
}
