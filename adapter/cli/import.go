package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/security"
)

// importFile is the document shape accepted by 'calbrew import'.
type importFile struct {
	Provider string        `yaml:"provider,omitempty"`
	Events   []importEvent `yaml:"events"`
}

type importEvent struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	AnchorDay   int    `yaml:"anchor_day"`
	AnchorMonth int    `yaml:"anchor_month"`
	AnchorYear  int    `yaml:"anchor_year"`
}

var importProvider string

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import events from a YAML file",
	Long: `Import anniversary events in bulk from a YAML file.

File format:
  provider: google   # optional, applies to every event
  events:
    - title: "Grandpa's yahrzeit"
      description: "Kaddish"
      anchor_day: 12
      anchor_month: 9
      anchor_year: 5752

Each event is created and synced independently; one bad entry does not
stop the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.CreateEventHandler == nil {
			return errors.New("import requires database connection")
		}

		data, err := security.SafeReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		var doc importFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse import file: %w", err)
		}
		if len(doc.Events) == 0 {
			return errors.New("import file contains no events")
		}

		provider := doc.Provider
		if cmd.Flags().Changed("provider") {
			provider = importProvider
		}

		created, failed := 0, 0
		for i, entry := range doc.Events {
			result, err := app.CreateEventHandler.Handle(cmd.Context(), commands.CreateEventCommand{
				UserID:      app.CurrentUserID,
				Title:       entry.Title,
				Description: entry.Description,
				AnchorDay:   entry.AnchorDay,
				AnchorMonth: entry.AnchorMonth,
				AnchorYear:  entry.AnchorYear,
				Provider:    provider,
			})
			if err != nil {
				failed++
				fmt.Printf("  %d. FAILED %q: %v\n", i+1, entry.Title, err)
				continue
			}
			created++
			fmt.Printf("  %d. %s (%s)\n", i+1, entry.Title, result.EventID.String()[:8])
			if result.SyncWarning != "" {
				fmt.Printf("     Warning: %s\n", result.SyncWarning)
			}
		}

		fmt.Printf("\nImported %d of %d events", created, len(doc.Events))
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println()
		if failed > 0 {
			return fmt.Errorf("%d events failed to import", failed)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importProvider, "provider", "", "calendar provider for the initial sync (overrides the file)")
	rootCmd.AddCommand(importCmd)
}
