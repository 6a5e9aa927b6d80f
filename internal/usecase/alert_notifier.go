package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/metrics"
	"flightprice-service/templates"
)

// AlertNotifier publishes price drop alerts for freshly recorded snapshots
type AlertNotifier struct {
	publisher repository.AlertPublisher
	dedupe    repository.AlertDeduplicator
	directory *FlightDirectory
	threshold float64
	dedupeTTL time.Duration
	location  *time.Location
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewAlertNotifier creates a notifier. dedupe and directory may be nil.
func NewAlertNotifier(
	publisher repository.AlertPublisher,
	dedupe repository.AlertDeduplicator,
	directory *FlightDirectory,
	threshold float64,
	dedupeTTL time.Duration,
	location *time.Location,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *AlertNotifier {
	if location == nil {
		location = time.UTC
	}
	return &AlertNotifier{
		publisher: publisher,
		dedupe:    dedupe,
		directory: directory,
		threshold: threshold,
		dedupeTTL: dedupeTTL,
		location:  location,
		logger:    logger,
		metrics:   metrics,
	}
}

// NotifyDrops publishes one alert per snapshot whose drop reaches the
// threshold and returns how many were sent. Failures are only logged.
func (n *AlertNotifier) NotifyDrops(ctx context.Context, cycles []CycleResult) int {
	sent := 0
	for _, cycle := range cycles {
		for _, res := range cycle.Snapshots {
			alert := n.buildAlert(res)
			if alert == nil {
				continue
			}

			if n.dedupe != nil {
				fresh, err := n.dedupe.MarkSent(ctx, alert.DedupeKey(), n.dedupeTTL)
				if err != nil {
					n.logger.Warn("Alert dedupe unavailable, sending anyway", "key", alert.DedupeKey(), "error", err)
				} else if !fresh {
					continue
				}
			}

			if err := n.publisher.Publish(ctx, alert); err != nil {
				n.logger.Error("Failed to publish price drop alert",
					"baseFlightId", alert.BaseFlightID,
					"provider", alert.Provider,
					"error", err)
				if n.metrics != nil {
					n.metrics.ErrorsCount.WithLabelValues("publish_alert").Inc()
				}
				continue
			}

			sent++
			if n.metrics != nil {
				n.metrics.PriceDropAlerts.Inc()
			}
		}
	}

	if sent > 0 {
		n.logger.Info("Price drop alerts published", "count", sent)
	}
	return sent
}

func (n *AlertNotifier) buildAlert(res SnapshotResult) *entity.PriceDropAlert {
	snap, flight := res.Snapshot, res.Flight
	if snap == nil || flight == nil || snap.PriceChangePercentage == nil || snap.PriceChangeAmount == nil {
		return nil
	}
	if *snap.PriceChangePercentage > -n.threshold {
		return nil
	}

	alert := &entity.PriceDropAlert{
		ID:             uuid.NewString(),
		Type:           entity.PriceDropAlertType,
		TrackedFlight:  flight.ID,
		BaseFlightID:   flight.BaseFlightID,
		Provider:       snap.Provider,
		Origin:         flight.Origin,
		Destination:    flight.Destination,
		FlightNumber:   flight.FlightNumber,
		Departure:      flight.DepartureTime,
		PreviousPrice:  snap.AdultPrice - *snap.PriceChangeAmount,
		CurrentPrice:   snap.AdultPrice,
		DropPercentage: -*snap.PriceChangePercentage,
		ScrapedAt:      snap.ScrapedAt,
		CreatedAt:      time.Now().UTC(),
		Metadata: map[string]interface{}{
			"available_seats": snap.AvailableSeats,
			"threshold":       n.threshold,
		},
	}

	details := templates.PriceDropDetails{AirlineName: flight.AirlineNameFa, Location: n.location}
	if n.directory != nil {
		if a, ok := n.directory.Airline(flight.AirlineCode, flight.AirlineNameFa); ok && a.NameFa != "" {
			details.AirlineName = a.NameFa
		}
		if a, ok := n.directory.Airport(flight.Origin); ok {
			details.OriginCity = a.CityFa
		}
		if a, ok := n.directory.Airport(flight.Destination); ok {
			details.DestinationCity = a.CityFa
		}
	}
	alert.Text = templates.RenderPriceDrop(alert, details)
	return alert
}
