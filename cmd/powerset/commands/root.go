package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsd-hamsa/powerset/internal/auth"
	"github.com/dsd-hamsa/powerset/internal/config"
	"github.com/dsd-hamsa/powerset/internal/powertrack"
	"github.com/dsd-hamsa/powerset/internal/rate"
	"github.com/dsd-hamsa/powerset/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "powerset",
	Short: "powerset fetches and persists PowerTrack solar monitoring data.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	},
}

func ExecuteContext(ctx context.Context) {
	defer logger.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCredentials reads env storage, falling back to a fresh parse of the
// capture file when storage is missing or stale.
func loadCredentials() (*auth.Credentials, error) {
	creds, err := auth.Load(cfg.CredentialsFile)
	if err == nil && creds.Valid() {
		return creds, nil
	}

	refresher := auth.NewRefresher(logger.L())
	fresh, refreshErr := refresher.RefreshEnv(cfg.CaptureFile, cfg.CredentialsFile)
	if refreshErr != nil {
		if err != nil {
			return nil, fmt.Errorf("no usable credentials: %v (refresh also failed: %w)", err, refreshErr)
		}
		return nil, fmt.Errorf("credentials expired and refresh failed: %w", refreshErr)
	}
	return fresh, nil
}

// newClient wires a PowerTrack client from config and stored credentials.
func newClient() (*powertrack.Client, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	rateMgr := rate.NewManager(rate.FromInterval(cfg.MinRequestInterval))
	client := powertrack.NewClient(logger.L(), rateMgr, creds, powertrack.Options{
		RetryMax:    cfg.RetryMax,
		Timeout:     cfg.RequestTimeout,
		CaptureFile: cfg.CaptureFile,
		EnvPath:     cfg.CredentialsFile,
	})
	return client, nil
}
