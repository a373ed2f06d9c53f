package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
)

var (
	syncAll      bool
	syncProvider string
)

var syncCmd = &cobra.Command{
	Use:   "sync [event-id]",
	Short: "Materialize pending Hebrew years onto the calendar",
	Long: `Sync an event's pending Hebrew years to the connected calendar.

With an event ID, only that event is synced. With --all (or no
argument), every event in the account is checked and advanced, and the
run is recorded in the sync history.

Examples:
  calbrew sync abc123
  calbrew sync --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.SyncNewYearsHandler == nil {
			return errors.New("sync requires database connection")
		}

		if len(args) == 0 || syncAll {
			return runFullSync(cmd, app)
		}
		return runEventSync(cmd, app, args[0])
	},
}

func runEventSync(cmd *cobra.Command, app *App, rawID string) error {
	eventID, err := resolveEventID(cmd.Context(), app, rawID)
	if err != nil {
		return err
	}

	result, err := app.SyncNewYearsHandler.Handle(cmd.Context(), commands.SyncNewYearsCommand{
		UserID:   app.CurrentUserID,
		EventID:  eventID,
		Provider: syncProvider,
	})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if len(result.YearsSynced) == 0 && len(result.FailedYears) == 0 {
		fmt.Println("Already up to date.")
		return nil
	}
	fmt.Printf("Synced years: %s\n", formatYears(result.YearsSynced))
	if len(result.FailedYears) > 0 {
		fmt.Printf("Failed years: %s\n", formatYears(result.FailedYears))
		for _, msg := range result.Errors {
			fmt.Printf("  - %s\n", msg)
		}
	}
	return nil
}

func runFullSync(cmd *cobra.Command, app *App) error {
	if app.ProcessUserProgressionHandler == nil {
		return errors.New("sync requires database connection")
	}

	result, err := app.ProcessUserProgressionHandler.Handle(cmd.Context(), commands.ProcessUserProgressionCommand{
		UserID:   app.CurrentUserID,
		Provider: syncProvider,
		Trigger:  string(domain.TriggerCLI),
	})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Checked %d events in %s: %d needed sync, %d updated, %d failed\n",
		result.Processed, result.Duration.Round(time.Millisecond), result.NeedingUpdate, result.Updated, result.Failed)
	if len(result.SyncedYears) > 0 {
		fmt.Printf("Synced years: %s\n", formatYears(result.SyncedYears))
	}
	if len(result.Errors) > 0 {
		fmt.Println("Errors:")
		for _, msg := range result.Errors {
			fmt.Printf("  - %s\n", msg)
		}
	}
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every event in the account")
	syncCmd.Flags().StringVar(&syncProvider, "provider", "", "calendar provider to sync to (default google)")
	rootCmd.AddCommand(syncCmd)
}
