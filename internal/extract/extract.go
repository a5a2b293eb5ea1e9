// Package extract maps raw PowerTrack API payloads onto store records and
// computes per-site summaries.
package extract

import (
	"fmt"
	"strings"

	"github.com/dsd-hamsa/powerset/internal/powertrack"
	"github.com/dsd-hamsa/powerset/internal/store"
)

// HardwareRecords converts API devices into store rows for a site.
func HardwareRecords(siteKey string, devices []powertrack.Device) []store.HardwareRecord {
	records := make([]store.HardwareRecord, 0, len(devices))
	for _, d := range devices {
		records = append(records, store.HardwareRecord{
			SiteKey:      siteKey,
			HardwareKey:  d.Key,
			Name:         d.Name,
			TypeCode:     d.FunctionCode,
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			SerialNumber: d.SerialNumber,
			Status:       d.Status,
			LastUpdated:  d.LastChanged,
		})
	}
	return records
}

// AlertRecords converts API alerts into store rows for a site.
func AlertRecords(siteKey string, alerts []powertrack.Alert) []store.AlertRecord {
	records := make([]store.AlertRecord, 0, len(alerts))
	for _, a := range alerts {
		records = append(records, store.AlertRecord{
			SiteKey:     siteKey,
			AlertKey:    a.Key,
			Name:        a.Name,
			Type:        a.Type,
			Severity:    a.Severity,
			Status:      a.Status,
			LastUpdated: a.LastChanged,
		})
	}
	return records
}

// ModelingRecord converts API modeling parameters into a store row.
// Returns nil when the site has none.
func ModelingRecord(siteKey string, m *powertrack.Modeling) *store.ModelingRecord {
	if m == nil {
		return nil
	}
	return &store.ModelingRecord{
		SiteKey:       siteKey,
		SystemSizeKW:  m.SystemSize,
		ModuleCount:   m.ModuleCount,
		InverterCount: m.InverterCount,
		TiltAngle:     m.TiltAngle,
		AzimuthAngle:  m.AzimuthAngle,
		LastUpdated:   m.LastChanged,
	}
}

// SiteRecords converts a full site bundle into store rows.
func SiteRecords(data *powertrack.SiteData) ([]store.HardwareRecord, []store.AlertRecord, *store.ModelingRecord) {
	key := data.SiteInfo.Key
	return HardwareRecords(key, data.Hardware),
		AlertRecords(key, data.Alerts),
		ModelingRecord(key, data.Modeling)
}

// HardwareSummary breaks a site's device inventory down by device class.
type HardwareSummary struct {
	TotalDevices    int `json:"total_devices"`
	Inverters       int `json:"inverters"`
	Meters          int `json:"meters"`
	WeatherStations int `json:"weather_stations"`
	Gateways        int `json:"gateways"`
	OtherDevices    int `json:"other_devices"`
}

func SummarizeHardware(devices []powertrack.Device) HardwareSummary {
	summary := HardwareSummary{TotalDevices: len(devices)}
	for _, d := range devices {
		switch {
		case d.FunctionCode == powertrack.FunctionInverter:
			summary.Inverters++
		case powertrack.IsMeter(d.FunctionCode):
			summary.Meters++
		case d.FunctionCode == powertrack.FunctionWeatherStation:
			summary.WeatherStations++
		case d.FunctionCode == powertrack.FunctionGateway:
			summary.Gateways++
		default:
			summary.OtherDevices++
		}
	}
	return summary
}

// AlertSummary breaks a site's alerts down by status and severity.
type AlertSummary struct {
	TotalAlerts    int `json:"total_alerts"`
	ActiveAlerts   int `json:"active_alerts"`
	InactiveAlerts int `json:"inactive_alerts"`
	CriticalAlerts int `json:"critical_alerts"`
	WarningAlerts  int `json:"warning_alerts"`
}

func SummarizeAlerts(alerts []powertrack.Alert) AlertSummary {
	summary := AlertSummary{TotalAlerts: len(alerts)}
	for _, a := range alerts {
		if strings.EqualFold(a.Status, "active") {
			summary.ActiveAlerts++
		} else {
			summary.InactiveAlerts++
		}
		switch strings.ToLower(a.Severity) {
		case "critical":
			summary.CriticalAlerts++
		case "warning":
			summary.WarningAlerts++
		}
	}
	return summary
}

// ValidateSiteData checks the structure of a fetched site bundle and returns
// any problems found. An empty slice means the bundle is usable.
func ValidateSiteData(data *powertrack.SiteData) []string {
	var problems []string

	if data == nil {
		return []string{"site data is nil"}
	}
	if data.SiteInfo.Key == "" {
		problems = append(problems, "missing site key")
	}
	for i, d := range data.Hardware {
		if d.Key == "" {
			problems = append(problems, fmt.Sprintf("hardware device %d missing key", i))
		}
		if d.FunctionCode == 0 {
			problems = append(problems, fmt.Sprintf("hardware device %d missing functionCode", i))
		}
	}
	for i, a := range data.Alerts {
		if a.Key == "" {
			problems = append(problems, fmt.Sprintf("alert %d missing key", i))
		}
	}
	return problems
}
