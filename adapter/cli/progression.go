package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

var progressionCmd = &cobra.Command{
	Use:   "progression <event-id>",
	Short: "Check whether an event needs new years synced",
	Long: `Check an event's rolling window against its sync high-water mark.

The window follows the current Hebrew year, so an event that was fully
synced last Elul starts needing an update the moment Tishrei arrives.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.CheckProgressionHandler == nil {
			return errors.New("progression requires database connection")
		}

		eventID, err := resolveEventID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}

		status, err := app.CheckProgressionHandler.Handle(cmd.Context(), queries.CheckProgressionQuery{
			EventID: eventID,
			UserID:  app.CurrentUserID,
		})
		if err != nil {
			return fmt.Errorf("progression check failed: %w", err)
		}
		if status == nil {
			return fmt.Errorf("event %s not found", eventID)
		}

		fmt.Printf("Current Hebrew year: %d\n", status.CurrentYear)
		fmt.Printf("Window:              %d-%d\n", status.WindowStart, status.WindowEnd)
		if status.LastSyncedYear > 0 {
			fmt.Printf("Synced through:      %d\n", status.LastSyncedYear)
		} else {
			fmt.Println("Synced through:      never")
		}
		if !status.NeedsUpdate {
			fmt.Println("Up to date.")
			return nil
		}
		fmt.Printf("Needs sync: %s\n", formatYears(status.YearsNeedingSync))
		fmt.Println("Run 'calbrew sync' to materialize them.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressionCmd)
}
