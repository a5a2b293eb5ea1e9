package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsd-hamsa/powerset/internal/auth"
	"github.com/dsd-hamsa/powerset/pkg/logger"
	"github.com/dsd-hamsa/powerset/pkg/utils"
)

var authSource *string

func init() {
	authSource = authRefreshCmd.Flags().String("source", "", "capture file to parse (defaults to the configured capture path)")
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage session credentials.",
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh [--source <capture.js>]",
	Short: "Parse a captured browser fetch export and update stored credentials.",
	RunE: func(cmd *cobra.Command, args []string) error {
		source := *authSource
		if source == "" {
			source = cfg.CaptureFile
		}

		refresher := auth.NewRefresher(logger.L())
		creds, err := refresher.RefreshEnv(source, cfg.CredentialsFile)
		if err != nil {
			return err
		}

		fmt.Printf("credentials updated: token=%s base_url=%s\n",
			utils.MaskToken(creds.Token), creds.BaseURL)
		if !creds.ExpiresAt.IsZero() {
			fmt.Printf("token expires at %s\n", creds.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}
