package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsd-hamsa/powerset/internal/store"
	"github.com/dsd-hamsa/powerset/pkg/logger"
)

var statsDBPath *string

func init() {
	statsDBPath = statsCmd.Flags().String("db-path", "", "database file path (overrides config)")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts from the local database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.DBPath
		if *statsDBPath != "" {
			dbPath = *statsDBPath
		}

		st, err := store.NewSQLite(dbPath, logger.L())
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("sites:     %d\n", stats.SiteCount)
		fmt.Printf("hardware:  %d\n", stats.HardwareCount)
		fmt.Printf("alerts:    %d\n", stats.AlertCount)
		fmt.Printf("requests:  %d\n", stats.RequestCount)
		return nil
	},
}
