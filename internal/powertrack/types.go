package powertrack

import "time"

// Device is one hardware entry returned by the site hardware view.
type Device struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	FunctionCode int    `json:"functionCode"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	Status       string `json:"status"`
	LastChanged  string `json:"lastChanged"`
}

// Device function codes used by the platform.
const (
	FunctionInverter       = 1
	FunctionWeatherStation = 5
	FunctionGateway        = 10
)

// meterFunctionCodes are the codes the platform uses for the various meter
// flavors.
var meterFunctionCodes = map[int]bool{2: true, 3: true, 4: true, 20: true, 37: true}

// IsMeter reports whether a function code denotes a meter device.
func IsMeter(functionCode int) bool {
	return meterFunctionCodes[functionCode]
}

// Alert is one alert entry returned by the site alerts view.
type Alert struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	LastChanged string `json:"lastChanged"`
}

// Modeling holds the system modeling parameters of a site.
type Modeling struct {
	SystemSize    float64 `json:"systemSize"`
	ModuleCount   int     `json:"moduleCount"`
	InverterCount int     `json:"inverterCount"`
	TiltAngle     float64 `json:"tiltAngle"`
	AzimuthAngle  float64 `json:"azimuthAngle"`
	LastChanged   string  `json:"lastChanged"`
}

// SiteInfo identifies a site, optionally carrying metadata from a site list
// file.
type SiteInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name,omitempty"`
	OutputDir string `json:"outputDir,omitempty"`
}

// SiteData bundles everything fetched for one site.
type SiteData struct {
	SiteInfo  SiteInfo  `json:"site_info"`
	Hardware  []Device  `json:"hardware"`
	Alerts    []Alert   `json:"alerts"`
	Modeling  *Modeling `json:"modeling,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
