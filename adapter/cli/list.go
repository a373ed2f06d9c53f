package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List anniversary events",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.ListEventsHandler == nil {
			return errors.New("list requires database connection")
		}

		events, err := app.ListEventsHandler.Handle(cmd.Context(), queries.ListEventsQuery{
			UserID: app.CurrentUserID,
		})
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No events found.")
			fmt.Println("Create one with: calbrew create \"Title\" --day 10 --month 5 --year 5750")
			return nil
		}

		fmt.Printf("Events (%d):\n", len(events))
		fmt.Println(strings.Repeat("-", 60))

		for _, ev := range events {
			fmt.Printf("%s\n", ev.Title)
			fmt.Printf("   ID: %s\n", ev.ID.String()[:8])
			fmt.Printf("   Hebrew date: %s\n", ev.HebrewDate)
			if ev.LastSyncedYear > 0 {
				fmt.Printf("   Synced through: %d\n", ev.LastSyncedYear)
			} else {
				fmt.Printf("   Synced through: never\n")
			}
			fmt.Println()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
