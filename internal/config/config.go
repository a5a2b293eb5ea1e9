package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/dsd-hamsa/powerset/pkg/config"
)

// Config holds the runtime configuration for the fetcher. It supports
// environment-based initialization with sensible defaults.
type Config struct {
	ServiceName string // e.g. "powerset"
	Env         string // e.g. "dev", "prod"
	LogLevel    string // "debug", "info", etc.

	// Credential storage and refresh source. CredentialsFile is the env
	// storage the refresher writes; CaptureFile is the browser fetch export
	// it reads.
	CredentialsFile string
	CaptureFile     string

	// Persistence and output.
	DBPath    string
	OutputDir string

	// Request client tuning.
	RetryMax           int
	RequestTimeout     time.Duration
	MinRequestInterval time.Duration
	SitePause          time.Duration

	// Operational surface; 0 disables the listener.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName:        pkgconfig.GetEnv("SERVICE_NAME", "powerset"),
		Env:                pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:           pkgconfig.GetEnv("LOG_LEVEL", "info"),
		CredentialsFile:    pkgconfig.GetEnv("POWERTRACK_CREDENTIALS_FILE", "auth/credentials.env"),
		CaptureFile:        pkgconfig.GetEnv("POWERTRACK_CAPTURE_FILE", "auth/mostRecentFetch.js"),
		DBPath:             pkgconfig.GetEnv("POWERSET_DB_PATH", "portfolio/powertrack_data.db"),
		OutputDir:          pkgconfig.GetEnv("POWERSET_OUTPUT_DIR", "Sites"),
		RetryMax:           pkgconfig.GetEnvInt("POWERSET_RETRY_MAX", 4),
		RequestTimeout:     pkgconfig.GetEnvDuration("POWERSET_REQUEST_TIMEOUT", 30*time.Second),
		MinRequestInterval: pkgconfig.GetEnvDuration("POWERSET_MIN_REQUEST_INTERVAL", 200*time.Millisecond),
		SitePause:          pkgconfig.GetEnvDuration("POWERSET_SITE_PAUSE", 500*time.Millisecond),
		MetricsPort:        pkgconfig.GetEnvInt("POWERSET_METRICS_PORT", 0),
	}
}
