// Package output manages per-site output directories and JSON artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dsd-hamsa/powerset/internal/powertrack"
)

// SiteDir resolves the output directory for a site: the site list's outputDir
// override wins, otherwise <base>/<siteKey>.
func SiteDir(base string, info powertrack.SiteInfo) string {
	if info.OutputDir != "" {
		return info.OutputDir
	}
	return filepath.Join(base, info.Key)
}

// SaveSiteData writes the complete site bundle as <siteKey>_complete.json
// under dir, creating the directory as needed. Returns the file path.
func SaveSiteData(dir string, data *powertrack.SiteData) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, data.SiteInfo.Key+"_complete.json")
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode site data: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// LoadSiteData reads a previously saved site bundle.
func LoadSiteData(path string) (*powertrack.SiteData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data powertrack.SiteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &data, nil
}
