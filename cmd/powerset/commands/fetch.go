package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dsd-hamsa/powerset/internal/api"
	"github.com/dsd-hamsa/powerset/internal/extract"
	"github.com/dsd-hamsa/powerset/internal/output"
	"github.com/dsd-hamsa/powerset/internal/powertrack"
	"github.com/dsd-hamsa/powerset/internal/store"
	"github.com/dsd-hamsa/powerset/pkg/logger"
)

var (
	fetchSiteID    *string
	fetchSiteList  *string
	fetchMaxSites  *int
	fetchOutputDir *string
	fetchSkipDB    *bool
	fetchDBPath    *string
)

func init() {
	fetchSiteID = fetchCmd.Flags().String("site-id", "", "fetch a single site by key")
	fetchSiteList = fetchCmd.Flags().String("site-list", "", "JSON file listing sites to fetch")
	fetchMaxSites = fetchCmd.Flags().Int("max-sites", 0, "cap the number of sites processed (0 = no cap)")
	fetchOutputDir = fetchCmd.Flags().String("output-dir", "", "base directory for JSON output (overrides config)")
	fetchSkipDB = fetchCmd.Flags().Bool("skip-db", false, "skip database persistence")
	fetchDBPath = fetchCmd.Flags().String("db-path", "", "database file path (overrides config)")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch (--site-id <key> | --site-list <file>)",
	Short: "Fetch hardware, alerts and modeling for sites; save JSON and persist to the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := resolveSites()
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		var st store.Store
		if !*fetchSkipDB {
			dbPath := cfg.DBPath
			if *fetchDBPath != "" {
				dbPath = *fetchDBPath
			}
			sqlite, err := store.NewSQLite(dbPath, logger.L())
			if err != nil {
				return err
			}
			defer sqlite.Close()
			st = sqlite
			client.AttachStore(st)
		}

		if cfg.MetricsPort > 0 {
			api.Serve(api.NewApp(st), cfg.MetricsPort)
		}

		outputBase := cfg.OutputDir
		if *fetchOutputDir != "" {
			outputBase = *fetchOutputDir
		}

		svc := powertrack.NewService(logger.L(), client, cfg.SitePause)
		summary, err := svc.Run(cmd.Context(), sites, func(data *powertrack.SiteData) error {
			if problems := extract.ValidateSiteData(data); len(problems) > 0 {
				logger.L().Warn("fetch.validation_problems",
					zap.String("site", data.SiteInfo.Key),
					zap.Strings("problems", problems))
			}

			path, err := output.SaveSiteData(output.SiteDir(outputBase, data.SiteInfo), data)
			if err != nil {
				return err
			}
			logger.L().Info("fetch.site_saved",
				zap.String("site", data.SiteInfo.Key),
				zap.String("path", path))

			if st != nil {
				hardware, alerts, modeling := extract.SiteRecords(data)
				if err := st.SaveSite(cmd.Context(), data.SiteInfo.Key, hardware, alerts, modeling); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("processed %d sites: %d succeeded, %d failed\n",
			summary.Processed, summary.Succeeded, summary.Failed)

		if st != nil {
			stats, err := st.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("database now holds %d sites, %d hardware records, %d alerts, %d logged requests\n",
				stats.SiteCount, stats.HardwareCount, stats.AlertCount, stats.RequestCount)
		}
		return nil
	},
}

// resolveSites builds the site roster from --site-id or --site-list,
// applying the --max-sites cap.
func resolveSites() ([]powertrack.SiteInfo, error) {
	if *fetchSiteID == "" && *fetchSiteList == "" {
		return nil, fmt.Errorf("either --site-id or --site-list is required")
	}
	if *fetchSiteID != "" && *fetchSiteList != "" {
		return nil, fmt.Errorf("--site-id and --site-list are mutually exclusive")
	}

	if *fetchSiteID != "" {
		return []powertrack.SiteInfo{{Key: *fetchSiteID}}, nil
	}

	sites, err := powertrack.LoadSiteList(*fetchSiteList)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("site list %s is empty", *fetchSiteList)
	}
	if *fetchMaxSites > 0 && len(sites) > *fetchMaxSites {
		sites = sites[:*fetchMaxSites]
	}
	return sites, nil
}
