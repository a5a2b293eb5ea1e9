package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	getMethod  *string
	getPayload *string
)

func init() {
	getMethod = getCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	getPayload = getCmd.Flags().StringP("data", "d", "", "JSON request payload for POST/PUT")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <endpoint>",
	Short: "Issue a single authenticated API request and print the JSON response.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var payload any
		if *getPayload != "" {
			if err := json.Unmarshal([]byte(*getPayload), &payload); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
		}

		raw, err := client.Send(cmd.Context(), args[0], *getMethod, payload)
		if err != nil {
			return err
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			// Not JSON after all; print as-is.
			fmt.Println(string(raw))
			return nil
		}
		fmt.Fprintln(os.Stdout, pretty.String())
		return nil
	},
}
