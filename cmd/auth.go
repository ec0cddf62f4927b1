package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/calagent/internal/google"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: `Run the Google OAuth flow and cache the resulting token.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment. The
token is cached in the user cache directory and refreshed automatically, so
this only needs to run once per machine.

Deployments using a service account (GOOGLE_SERVICE_ACCOUNT_FILE) do not
need this step.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if google.HasToken() {
				fmt.Println("A cached Google token already exists; re-authorizing will replace it.")
			}

			fmt.Println("Visit this URL in your browser and grant access to Google Calendar:")
			fmt.Println()
			fmt.Printf("  %s\n", google.GetAuthURL())
			fmt.Println()
			fmt.Print("Enter the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("no authorization code provided")
			}

			if err := google.SaveToken(cmd.Context(), code); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Println("Authorization complete. Token cached.")
			return nil
		},
	}
}
