package cmd

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/output"
)

var roomType string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Inspect and provision realtime rooms",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog rooms with their occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		summaries, err := c.rooms.ListRooms(cmd.Context())
		if err != nil {
			return err
		}

		title := "Rooms"
		if !c.rooms.Configured() {
			title += " (synthetic)"
		}
		return writeOutput(cmd, "rooms", output.Table{
			Title:  title,
			Header: []string{"name", "display_name", "type", "participants", "max", "live"},
			Rows: lo.Map(summaries, func(r core.RoomSummary, _ int) []any {
				return []any{r.Name, r.DisplayName, r.Type, r.ParticipantCount, r.MaxParticipants, r.IsLive}
			}),
			Empty:   "(no rooms)",
			Records: summaries,
		})
	},
}

var roomsDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show a room and its participants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		detail, err := c.rooms.Describe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("room %q not found", args[0])
		}

		title := fmt.Sprintf("%s: %d/%d participants", detail.Room.DisplayName, detail.Room.ParticipantCount, detail.Room.MaxParticipants)
		if detail.Synthetic {
			title += " (synthetic)"
		}
		return writeOutput(cmd, "room."+args[0], output.Table{
			Title:  title,
			Header: []string{"identity", "display_name"},
			Rows: lo.Map(detail.Participants, func(p core.Participant, _ int) []any {
				return []any{p.Identity, p.DisplayName}
			}),
			Empty:   "(no participants)",
			Records: detail,
		})
	},
}

var roomsEnsureCmd = &cobra.Command{
	Use:   "ensure <name>",
	Short: "Create the room on the provider unless it already exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close() // nolint:errcheck // best-effort cleanup

		if !c.rooms.Configured() {
			return &core.ConfigError{Component: "realtime provider"}
		}
		typ := roomType
		if typ == "" {
			if entry, ok := c.rooms.Entry(args[0]); ok {
				typ = entry.Type
			}
		}

		room, err := c.rooms.EnsureRoom(cmd.Context(), args[0], typ)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Room %s (sid %s, type %s, max %d) created %s\n",
			room.Name, room.SID, room.Type, room.MaxParticipants, room.CreatedAt.Format(time.RFC3339))
		return err
	},
}

func init() {
	roomsEnsureCmd.Flags().StringVar(&roomType, "type", "", "Room type (default: catalog type or rooms.default_type)")
	addOutputFlags(roomsListCmd)
	addOutputFlags(roomsDescribeCmd)

	roomsCmd.AddCommand(roomsListCmd, roomsDescribeCmd, roomsEnsureCmd)
	rootCmd.AddCommand(roomsCmd)
}
