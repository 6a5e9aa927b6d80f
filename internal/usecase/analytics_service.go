package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/analytics"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/utils"
)

// detailDays is how many daily stats a flight details view shows
const detailDays = 7

// AnalyticsService answers the read-side questions about tracked flights
type AnalyticsService struct {
	flightRepo       repository.FlightRepository
	tracker          *PriceHistoryTracker
	defaultThreshold float64
	logger           logger.Logger
	now              func() time.Time
}

// NewAnalyticsService creates the service. defaultThreshold applies when a
// price drop query does not name one.
func NewAnalyticsService(flightRepo repository.FlightRepository, tracker *PriceHistoryTracker, defaultThreshold float64, logger logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		flightRepo:       flightRepo,
		tracker:          tracker,
		defaultThreshold: defaultThreshold,
		logger:           logger,
		now:              time.Now,
	}
}

// FlightDetails gathers everything known about one flight
func (s *AnalyticsService) FlightDetails(ctx context.Context, baseFlightID string) (*entity.FlightDetails, error) {
	flight, err := s.flightRepo.GetTrackedFlight(ctx, baseFlightID)
	if err != nil {
		return nil, err
	}

	details := &entity.FlightDetails{Flight: flight}

	latest, err := s.flightRepo.LatestSnapshot(ctx, flight.ID, "")
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	details.LatestSnapshot = latest

	if details.Comparison, err = s.tracker.GetProviderComparison(ctx, baseFlightID); err != nil {
		return nil, err
	}
	if details.DailyStats, err = s.tracker.GetDailyStats(ctx, baseFlightID); err != nil {
		return nil, err
	}
	details.Insights = analytics.Insights(details.DailyStats)
	if n := len(details.DailyStats); n > detailDays {
		details.DailyStats = details.DailyStats[n-detailDays:]
	}
	return details, nil
}

// Insights returns trend and recommendation for a flight
func (s *AnalyticsService) Insights(ctx context.Context, baseFlightID string) (entity.PriceInsights, error) {
	stats, err := s.tracker.GetDailyStats(ctx, baseFlightID)
	if err != nil {
		return entity.PriceInsights{}, err
	}
	return analytics.Insights(stats), nil
}

// PriceDrops lists flights on the route whose latest change is a drop of at
// least threshold percent. A threshold <= 0 uses the default.
func (s *AnalyticsService) PriceDrops(ctx context.Context, origin, destination string, dates []time.Time, threshold float64) (entity.PriceDropReport, error) {
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	report := entity.PriceDropReport{
		Route:            origin + " → " + destination,
		Dates:            make([]string, 0, len(dates)),
		ThresholdPercent: threshold,
		PriceDrops:       []entity.PriceDrop{},
	}
	for _, d := range dates {
		report.Dates = append(report.Dates, d.Format(utils.DATE_LAYOUT))
	}
	if len(dates) == 0 {
		return report, nil
	}

	latest, err := s.flightRepo.RecentRouteSnapshots(ctx, origin, destination, dates)
	if err != nil {
		return report, fmt.Errorf("failed to load route snapshots: %w", err)
	}

	report.PriceDrops = analytics.DetectPriceDrops(latest, threshold, s.now())
	report.TotalAlerts = len(report.PriceDrops)
	s.logger.Debug("Price drops computed", "route", report.Route, "dates", len(dates), "alerts", report.TotalAlerts)
	return report, nil
}

// ScrapingStats summarizes provider activity over the last hours
func (s *AnalyticsService) ScrapingStats(ctx context.Context, hours int) (entity.ScrapingStatsReport, error) {
	if hours <= 0 {
		hours = 24
	}
	counts, err := s.flightRepo.ScrapeCounts(ctx, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return entity.ScrapingStatsReport{}, fmt.Errorf("failed to load scrape counts: %w", err)
	}
	return analytics.SummarizeScrapingStats(counts, hours), nil
}
