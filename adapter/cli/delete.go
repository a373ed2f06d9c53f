package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
)

var deleteProvider string

var deleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an event and its calendar entries",
	Long: `Delete an event together with all of its materialized occurrences.

Synced calendar entries are removed from the provider on a best-effort
basis. The local event is gone either way; leftover remote entries are
reported as a warning.`,
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.DeleteEventHandler == nil {
			return errors.New("delete requires database connection")
		}

		eventID, err := resolveEventID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}

		result, err := app.DeleteEventHandler.Handle(cmd.Context(), commands.DeleteEventCommand{
			UserID:   app.CurrentUserID,
			EventID:  eventID,
			Provider: deleteProvider,
		})
		if err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}

		fmt.Println("Event deleted.")
		if result.OccurrencesDeleted > 0 {
			fmt.Printf("Occurrences removed: %d\n", result.OccurrencesDeleted)
		}
		if result.RemoteDeleted > 0 {
			fmt.Printf("Calendar entries removed: %d\n", result.RemoteDeleted)
		}
		if result.Warning != "" {
			fmt.Printf("Warning: %s\n", result.Warning)
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteProvider, "provider", "", "Calendar provider holding the synced entries (default google)")
	rootCmd.AddCommand(deleteCmd)
}
