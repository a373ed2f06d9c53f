package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

var (
	updateTitle       string
	updateDescription string
	updateProvider    string
)

var updateCmd = &cobra.Command{
	Use:   "update <event-id>",
	Short: "Update an event's title or description",
	Long: `Update the title or description of an existing event.

Every occurrence already synced to the connected calendar is patched to
match. The anchor Hebrew date is immutable; delete and recreate the
event to change it.

Examples:
  calbrew update abc123 --title "Grandma's yahrzeit"
  calbrew update abc123 --description "Chapter of Tehillim"`,
	Aliases: []string{"edit"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.UpdateEventHandler == nil {
			return errors.New("update requires database connection")
		}

		eventID, err := resolveEventID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("description") {
			return errors.New("no updates provided - use --title or --description")
		}

		// The handler replaces both fields, so start from the current values
		// and overlay only the flags that were set.
		current, err := app.GetEventHandler.Handle(cmd.Context(), queries.GetEventQuery{
			EventID: eventID,
			UserID:  app.CurrentUserID,
		})
		if err != nil {
			return fmt.Errorf("failed to load event: %w", err)
		}

		updateEventCmd := commands.UpdateEventCommand{
			UserID:      app.CurrentUserID,
			EventID:     eventID,
			Title:       current.Title,
			Description: current.Description,
			Provider:    updateProvider,
		}
		if cmd.Flags().Changed("title") {
			updateEventCmd.Title = updateTitle
		}
		if cmd.Flags().Changed("description") {
			updateEventCmd.Description = updateDescription
		}

		result, err := app.UpdateEventHandler.Handle(cmd.Context(), updateEventCmd)
		if err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}

		fmt.Printf("Event updated: %s\n", updateEventCmd.Title)
		if result.OccurrencesUpdated > 0 {
			fmt.Printf("Calendar entries patched: %d\n", result.OccurrencesUpdated)
		}
		if result.OccurrencesFailed > 0 {
			fmt.Printf("Calendar entries failed: %d\n", result.OccurrencesFailed)
			for _, msg := range result.Errors {
				fmt.Printf("  - %s\n", msg)
			}
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "New title for the event")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "New description for the event")
	updateCmd.Flags().StringVar(&updateProvider, "provider", "", "Calendar provider holding the synced entries (default google)")
	rootCmd.AddCommand(updateCmd)
}
