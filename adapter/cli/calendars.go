package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
)

var calendarsProvider string

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List calendars on the connected provider account",
	Long: `List the calendars visible on the provider account and mark the one
occurrences are written to. The bound calendar is named "` + calendarApp.WellKnownCalendarName + `"
and is created on first sync when missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.ProviderRegistry == nil {
			return errors.New("calendars requires database connection")
		}

		providerType := calendarDomain.ProviderGoogle
		if calendarsProvider != "" {
			providerType = calendarDomain.ProviderType(strings.ToLower(calendarsProvider))
			if !providerType.IsValid() {
				return fmt.Errorf("unsupported calendar provider %q", calendarsProvider)
			}
		}

		provider, err := app.ProviderRegistry.Get(providerType)
		if err != nil {
			return fmt.Errorf("%s is not configured: %w", providerType.DisplayName(), err)
		}

		calendars, err := provider.ListCalendars(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return fmt.Errorf("failed to list calendars: %w", err)
		}
		if len(calendars) == 0 {
			fmt.Println("No calendars found on the account.")
			return nil
		}

		var boundID string
		if app.BindingResolver != nil {
			if id, ok, err := app.BindingResolver.Lookup(cmd.Context(), app.CurrentUserID, providerType); err == nil && ok {
				boundID = id
			}
		}

		fmt.Printf("Calendars on %s (%d):\n", providerType.DisplayName(), len(calendars))
		fmt.Println(strings.Repeat("-", 60))
		for _, cal := range calendars {
			marker := " "
			if cal.ID == boundID {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, cal.Name)
			fmt.Printf("    ID: %s", cal.ID)
			if cal.Primary {
				fmt.Printf("  (primary)")
			}
			fmt.Println()
		}
		if boundID != "" {
			fmt.Println("\n* occurrences are synced to this calendar")
		}
		return nil
	},
}

func init() {
	calendarsCmd.Flags().StringVar(&calendarsProvider, "provider", "", "calendar provider to query (default google)")
	rootCmd.AddCommand(calendarsCmd)
}
