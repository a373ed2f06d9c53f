// Package auth holds the OAuth2 helper commands for connecting a Google
// Calendar account.
package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/cli"
	identityOAuth "github.com/raziel-gershoni/calbrew-sub001/internal/identity/application/oauth"
)

var service *identityOAuth.Service

// SetService wires the OAuth service for CLI commands.
func SetService(s *identityOAuth.Service) {
	service = s
}

var Cmd = &cobra.Command{
	Use:   "auth",
	Short: "Connect a Google Calendar account",
	Long: `Authorize calbrew against Google Calendar.

Run 'calbrew auth url', open the printed URL in a browser, approve
access, then paste the code back with 'calbrew auth exchange --code'.`,
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Generate the OAuth2 authorization URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if service == nil {
			return errors.New("auth service not configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}
		state := uuid.New().String()
		url := service.AuthURL(state)
		fmt.Println(url)
		fmt.Printf("State: %s\n", state)
		return nil
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Exchange an OAuth2 code for tokens and store them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if service == nil {
			return errors.New("auth service not configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}
		if authCode == "" {
			return errors.New("missing --code")
		}

		app := cli.GetApp()
		if app == nil || app.CurrentUserID == uuid.Nil {
			return errors.New("current user not configured")
		}

		if _, err := service.Exchange(cmd.Context(), app.CurrentUserID, authCode); err != nil {
			return err
		}

		fmt.Println("Tokens stored. Run 'calbrew sync --all' to materialize your events.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the account is connected",
	RunE: func(cmd *cobra.Command, args []string) error {
		if service == nil {
			return errors.New("auth service not configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}

		app := cli.GetApp()
		if app == nil || app.CurrentUserID == uuid.Nil {
			return errors.New("current user not configured")
		}

		connected, err := service.HasToken(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}
		if connected {
			fmt.Printf("Connected to %s.\n", service.Provider())
		} else {
			fmt.Println("Not connected. Run 'calbrew auth url' to start.")
		}
		return nil
	},
}

var authCode string

func init() {
	authExchangeCmd.Flags().StringVar(&authCode, "code", "", "authorization code")

	Cmd.AddCommand(authURLCmd)
	Cmd.AddCommand(authExchangeCmd)
	Cmd.AddCommand(authStatusCmd)
}
