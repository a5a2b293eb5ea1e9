package store

import (
	"context"
	"time"
)

// StorageError wraps a persistence failure. The enclosing transaction has
// been rolled back by the time it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// HardwareRecord is one device row for a site.
type HardwareRecord struct {
	SiteKey      string
	HardwareKey  string
	Name         string
	TypeCode     int
	Manufacturer string
	Model        string
	SerialNumber string
	Status       string
	LastUpdated  string
}

// AlertRecord is one alert row for a site.
type AlertRecord struct {
	SiteKey     string
	AlertKey    string
	Name        string
	Type        string
	Severity    string
	Status      string
	LastUpdated string
}

// ModelingRecord holds the system modeling parameters of a site.
type ModelingRecord struct {
	SiteKey       string
	SystemSizeKW  float64
	ModuleCount   int
	InverterCount int
	TiltAngle     float64
	AzimuthAngle  float64
	LastUpdated   string
}

// RequestRecord is one entry of the append-only API request log.
type RequestRecord struct {
	ID        string
	Endpoint  string
	Method    string
	Payload   string
	Response  string
	Status    int
	LatencyMS int64
	CreatedAt time.Time
}

// Stats summarizes store contents.
type Stats struct {
	HardwareCount int
	AlertCount    int
	SiteCount     int
	RequestCount  int
}

// Store defines the contract for persisting fetched site data and the
// request audit log.
type Store interface {
	UpsertHardware(ctx context.Context, rec HardwareRecord) error
	UpsertAlert(ctx context.Context, rec AlertRecord) error
	UpsertModeling(ctx context.Context, rec ModelingRecord) error
	// SaveSite persists all records of one site in a single transaction.
	SaveSite(ctx context.Context, siteKey string, hardware []HardwareRecord, alerts []AlertRecord, modeling *ModelingRecord) error

	AppendRequest(ctx context.Context, rec RequestRecord) error

	GetSiteHardware(ctx context.Context, siteKey string) ([]HardwareRecord, error)
	GetSiteAlerts(ctx context.Context, siteKey string) ([]AlertRecord, error)
	GetModeling(ctx context.Context, siteKey string) (*ModelingRecord, error)
	RequestLog(ctx context.Context, limit int) ([]RequestRecord, error)
	GetStats(ctx context.Context) (*Stats, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
