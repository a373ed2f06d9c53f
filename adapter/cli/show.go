package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

var showCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show an event and its materialized occurrences",
	Long: `Show one event with every Gregorian occurrence synced so far.

The event ID may be the full UUID or a unique prefix of it, as printed
by 'calbrew list'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.GetEventHandler == nil {
			return errors.New("show requires database connection")
		}

		eventID, err := resolveEventID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}

		detail, err := app.GetEventHandler.Handle(cmd.Context(), queries.GetEventQuery{
			EventID: eventID,
			UserID:  app.CurrentUserID,
		})
		if err != nil {
			return fmt.Errorf("failed to load event: %w", err)
		}

		fmt.Printf("%s\n", detail.Title)
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("ID:           %s\n", detail.ID)
		if detail.Description != "" {
			fmt.Printf("Description:  %s\n", detail.Description)
		}
		fmt.Printf("Hebrew date:  %s\n", detail.HebrewDate)
		fmt.Printf("Recurrence:   %s\n", detail.Recurrence)
		if detail.LastSyncedYear > 0 {
			fmt.Printf("Synced through: %d\n", detail.LastSyncedYear)
		} else {
			fmt.Println("Synced through: never")
		}
		fmt.Printf("Created:      %s\n", detail.CreatedAt.Format("2006-01-02"))

		if len(detail.Occurrences) == 0 {
			fmt.Println("\nNo occurrences materialized yet. Run 'calbrew sync'.")
			return nil
		}

		fmt.Printf("\nOccurrences (%d):\n", len(detail.Occurrences))
		for _, occ := range detail.Occurrences {
			fmt.Printf("  %d  %s", occ.HebrewYear, occ.GregorianDate.Format("Mon, Jan 2 2006"))
			if occ.ExternalEventID != "" {
				fmt.Printf("  [synced]")
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// resolveEventID accepts a full event UUID or a unique prefix of one. The
// prefix form matches what list and create print.
func resolveEventID(ctx context.Context, app *App, raw string) (uuid.UUID, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	if app.ListEventsHandler == nil {
		return uuid.Nil, fmt.Errorf("invalid event ID %q", raw)
	}

	events, err := app.ListEventsHandler.Handle(ctx, queries.ListEventsQuery{UserID: app.CurrentUserID})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve event ID: %w", err)
	}

	var matches []uuid.UUID
	for _, ev := range events {
		if strings.HasPrefix(ev.ID.String(), strings.ToLower(raw)) {
			matches = append(matches, ev.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("no event matches %q", raw)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("event ID %q is ambiguous (%d matches)", raw, len(matches))
	}
}
