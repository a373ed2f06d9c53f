package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/security"
)

var (
	exportOutput string
	exportDays   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export upcoming occurrences as an iCalendar file",
	Long: `Export the materialized occurrences falling in the next N days to ICS
(iCalendar) format for import into Google Calendar, Outlook, Apple
Calendar, and other calendar apps.

Only occurrences already materialized by sync are exported; run
'calbrew sync --all' first to cover the full window.

Examples:
  calbrew export                      # next 365 days to stdout
  calbrew export --days 30 -o cal.ics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.ListEventsHandler == nil {
			return errors.New("export requires database connection")
		}
		if exportDays <= 0 {
			return errors.New("--days must be positive")
		}

		occurrences, err := gatherOccurrences(cmd, app, exportDays)
		if err != nil {
			return err
		}
		if len(occurrences) == 0 {
			fmt.Fprintf(os.Stderr, "No occurrences found in the next %d days.\n", exportDays)
			return nil
		}

		ics := buildICS(occurrences)

		if exportOutput != "" {
			if err := security.SafeWriteFile(exportOutput, []byte(ics)); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Exported %d occurrences to %s\n", len(occurrences), exportOutput)
			return nil
		}
		fmt.Print(ics)
		return nil
	},
}

// exportEntry pairs an occurrence with its owning event's details.
type exportEntry struct {
	EventID     string
	Title       string
	Description string
	HebrewDate  string
	HebrewYear  int
	Date        time.Time
}

func gatherOccurrences(cmd *cobra.Command, app *App, days int) ([]exportEntry, error) {
	events, err := app.ListEventsHandler.Handle(cmd.Context(), queries.ListEventsQuery{UserID: app.CurrentUserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	today := time.Now().Truncate(24 * time.Hour)
	until := today.AddDate(0, 0, days)

	var entries []exportEntry
	for _, ev := range events {
		detail, err := app.GetEventHandler.Handle(cmd.Context(), queries.GetEventQuery{
			EventID: ev.ID,
			UserID:  app.CurrentUserID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load event %s: %w", ev.ID, err)
		}
		for _, occ := range detail.Occurrences {
			if occ.GregorianDate.Before(today) || !occ.GregorianDate.Before(until) {
				continue
			}
			entries = append(entries, exportEntry{
				EventID:     ev.ID.String(),
				Title:       ev.Title,
				Description: ev.Description,
				HebrewDate:  ev.HebrewDate,
				HebrewYear:  occ.HebrewYear,
				Date:        occ.GregorianDate,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries, nil
}

func buildICS(entries []exportEntry) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Calbrew//Calbrew CLI//EN")
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName("Calbrew")

	now := time.Now()
	for _, entry := range entries {
		uid := fmt.Sprintf("calbrew-%s-%d@calbrew", entry.EventID, entry.HebrewYear)
		event := cal.AddEvent(uid)
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(entry.Date)
		event.SetAllDayEndAt(entry.Date.AddDate(0, 0, 1))
		event.SetSummary(entry.Title)

		desc := entry.HebrewDate
		if entry.Description != "" {
			desc = entry.Description + "\n" + desc
		}
		event.SetDescription(desc)
		event.SetStatus(ical.ObjectStatusConfirmed)
		event.SetTimeTransparency(ical.TransparencyTransparent)
	}

	return cal.Serialize()
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().IntVarP(&exportDays, "days", "d", 365, "number of days to export")
	rootCmd.AddCommand(exportCmd)
}
