package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
)

var (
	createDescription string
	createDay         int
	createMonth       int
	createYear        int
	createProvider    string
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new anniversary event",
	Long: `Create an anniversary anchored to a Hebrew calendar date.

The anchor month uses the Hebrew calendar numbering where Nisan is 1,
Tishrei is 7, and Adar II of a leap year is 13. After the event is
stored, its Gregorian occurrences for the current window are synced to
the configured calendar provider; a sync failure leaves the event in
place and is reported as a warning.

Examples:
  calbrew create "Grandmother's yahrzeit" --day 10 --month 5 --year 5750
  calbrew create "Wedding anniversary" -d "Dinner reservation" --day 15 --month 1 --year 5778
  calbrew create "Bar mitzvah" --day 3 --month 7 --year 5760 --provider caldav`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.CreateEventHandler == nil {
			return errors.New("create requires database connection")
		}

		title := strings.Join(args, " ")

		result, err := app.CreateEventHandler.Handle(cmd.Context(), commands.CreateEventCommand{
			UserID:      app.CurrentUserID,
			Title:       title,
			Description: createDescription,
			AnchorDay:   createDay,
			AnchorMonth: createMonth,
			AnchorYear:  createYear,
			Provider:    createProvider,
		})
		if err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}

		fmt.Println("Event created!")
		fmt.Printf("  Title: %s\n", title)
		fmt.Printf("  ID: %s\n", result.EventID.String()[:8])

		if result.SyncWarning != "" {
			fmt.Printf("  Warning: %s\n", result.SyncWarning)
			fmt.Println("  Run 'calbrew sync' once a calendar is connected.")
			return nil
		}
		fmt.Printf("  Synced years: %s\n", formatYears(result.YearsSynced))
		if len(result.FailedYears) > 0 {
			fmt.Printf("  Failed years: %s\n", formatYears(result.FailedYears))
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "event description")
	createCmd.Flags().IntVar(&createDay, "day", 0, "Hebrew day of month (1-30)")
	createCmd.Flags().IntVar(&createMonth, "month", 0, "Hebrew month (Nisan=1 .. Adar II=13)")
	createCmd.Flags().IntVar(&createYear, "year", 0, "Hebrew year (e.g. 5750)")
	createCmd.Flags().StringVar(&createProvider, "provider", "", "calendar provider (google, caldav)")
	_ = createCmd.MarkFlagRequired("day")
	_ = createCmd.MarkFlagRequired("month")
	_ = createCmd.MarkFlagRequired("year")

	rootCmd.AddCommand(createCmd)
}

func formatYears(years []int) string {
	if len(years) == 0 {
		return "none"
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, ", ")
}
