package powertrack

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dsd-hamsa/powerset/internal/metrics"
)

// Service orchestrates full-site fetches over the client.
type Service struct {
	logger    *zap.Logger
	client    *Client
	sitePause time.Duration // spacing between sites in bulk runs
}

func NewService(logger *zap.Logger, client *Client, sitePause time.Duration) *Service {
	return &Service{
		logger:    logger,
		client:    client,
		sitePause: sitePause,
	}
}

// Client returns the underlying API client.
func (s *Service) Client() *Client { return s.client }

// FetchSite gathers hardware, alerts and modeling for one site. Individual
// endpoint failures are tolerated; only a fully empty result is an error.
func (s *Service) FetchSite(ctx context.Context, info SiteInfo) (*SiteData, error) {
	s.logger.Info("powertrack.fetch_site", zap.String("site", info.Key))

	data := &SiteData{
		SiteInfo:  info,
		Hardware:  []Device{},
		Alerts:    []Alert{},
		FetchedAt: time.Now().UTC(),
	}

	hardware, err := s.client.SiteHardware(ctx, info.Key)
	if err != nil {
		s.logger.Warn("powertrack.hardware_fetch_failed",
			zap.String("site", info.Key), zap.Error(err))
	} else {
		data.Hardware = hardware
	}

	alerts, err := s.client.SiteAlerts(ctx, info.Key)
	if err != nil {
		s.logger.Warn("powertrack.alerts_fetch_failed",
			zap.String("site", info.Key), zap.Error(err))
	} else {
		data.Alerts = alerts
	}

	modeling, err := s.client.SiteModeling(ctx, info.Key)
	if err != nil {
		s.logger.Warn("powertrack.modeling_fetch_failed",
			zap.String("site", info.Key), zap.Error(err))
	} else {
		data.Modeling = modeling
	}

	if len(data.Hardware) == 0 && len(data.Alerts) == 0 && data.Modeling == nil {
		return nil, fmt.Errorf("no data retrieved for site %s", info.Key)
	}

	metrics.SetLastFetch(info.Key, data.FetchedAt)
	return data, nil
}

// RunSummary reports the outcome of a bulk fetch.
type RunSummary struct {
	Processed int
	Succeeded int
	Failed    int
}

// Run fetches every site sequentially, invoking handle with each result.
// Handler errors count the site as failed but do not stop the run.
func (s *Service) Run(ctx context.Context, sites []SiteInfo, handle func(*SiteData) error) (*RunSummary, error) {
	summary := &RunSummary{}

	for i, info := range sites {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		s.logger.Info("powertrack.processing_site",
			zap.Int("index", i+1),
			zap.Int("total", len(sites)),
			zap.String("site", info.Key))

		data, err := s.FetchSite(ctx, info)
		if err != nil {
			s.logger.Warn("powertrack.site_skipped",
				zap.String("site", info.Key), zap.Error(err))
			summary.Failed++
			continue
		}

		if err := handle(data); err != nil {
			s.logger.Error("powertrack.site_handler_failed",
				zap.String("site", info.Key), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Succeeded++

		// Brief pause between sites to be respectful to the platform.
		if s.sitePause > 0 && i < len(sites)-1 {
			time.Sleep(s.sitePause)
		}
	}

	s.logger.Info("powertrack.run_complete",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// LoadSiteList reads a site list JSON file: either a bare array of sites or
// an object with a "sites" array.
func LoadSiteList(path string) ([]SiteInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site list %s: %w", path, err)
	}

	var list []SiteInfo
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapper struct {
		Sites []SiteInfo `json:"sites"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Sites != nil {
		return wrapper.Sites, nil
	}

	return nil, fmt.Errorf("unexpected site list format in %s", path)
}
