package service

import (
	"context"
	"fmt"
	"time"

	"github.com/blatik/shortlink/internal/model"
)

// timelineDays is the trailing window for the daily click timeline
const timelineDays = 30

// ClickLog exposes the grouped queries over recorded clicks. The catalog
// implements it; summaries never touch the link store.
type ClickLog interface {
	CountClicks(ctx context.Context, shortCode string) (int64, error)
	ClicksByCountry(ctx context.Context, shortCode string) ([]model.CountryCount, error)
	ClicksByDevice(ctx context.Context, shortCode string) ([]model.DeviceCount, error)
	ClicksByBrowser(ctx context.Context, shortCode string) ([]model.BrowserCount, error)
	ClicksByReferrer(ctx context.Context, shortCode string) ([]model.ReferrerCount, error)
	ClicksPerDay(ctx context.Context, shortCode string, since time.Time) ([]model.DateCount, error)
}

// AnalyticsService aggregates a link's click history on demand. There is no
// caching; every call re-scans the click log filtered by code.
type AnalyticsService struct {
	clicks ClickLog
}

// NewAnalyticsService creates a new analytics service instance
func NewAnalyticsService(clicks ClickLog) *AnalyticsService {
	return &AnalyticsService{clicks: clicks}
}

// Summarize computes the full analytics summary for a short code. A code with
// no recorded clicks yields a zero summary with empty groups, not an error.
func (s *AnalyticsService) Summarize(ctx context.Context, shortCode string) (*model.AnalyticsSummary, error) {
	total, err := s.clicks.CountClicks(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	countries, err := s.clicks.ClicksByCountry(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	devices, err := s.clicks.ClicksByDevice(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	browsers, err := s.clicks.ClicksByBrowser(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	referrers, err := s.clicks.ClicksByReferrer(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	since := time.Now().UTC().AddDate(0, 0, -timelineDays).Truncate(24 * time.Hour)
	timeline, err := s.clicks.ClicksPerDay(ctx, shortCode, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	summary := &model.AnalyticsSummary{
		TotalClicks: total,
		Countries:   countries,
		Devices:     devices,
		Browsers:    browsers,
		Referrers:   referrers,
		Timeline:    timeline,
	}
	ensureNonNil(summary)
	return summary, nil
}

// ensureNonNil keeps JSON group fields as empty arrays rather than null
func ensureNonNil(s *model.AnalyticsSummary) {
	if s.Countries == nil {
		s.Countries = []model.CountryCount{}
	}
	if s.Devices == nil {
		s.Devices = []model.DeviceCount{}
	}
	if s.Browsers == nil {
		s.Browsers = []model.BrowserCount{}
	}
	if s.Referrers == nil {
		s.Referrers = []model.ReferrerCount{}
	}
	if s.Timeline == nil {
		s.Timeline = []model.DateCount{}
	}
}
