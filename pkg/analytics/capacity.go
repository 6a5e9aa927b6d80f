package analytics

import (
	"math"
	"sort"
	"time"

	"flightprice-service/internal/domain/entity"
)

// BuildCapacityTrend turns snapshots into capacity points ordered oldest
// first. Change and velocity are measured against the previous point of the
// same provider.
func BuildCapacityTrend(snapshots []entity.PriceSnapshot, departure time.Time) []entity.CapacityPoint {
	ordered := make([]entity.PriceSnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ScrapedAt.Before(ordered[j].ScrapedAt)
	})

	last := make(map[string]entity.PriceSnapshot)
	points := make([]entity.CapacityPoint, 0, len(ordered))
	for _, s := range ordered {
		p := entity.CapacityPoint{
			ScrapedAt: s.ScrapedAt,
			Provider:  s.Provider,
			Capacity:  s.AvailableSeats,
		}
		if !departure.IsZero() {
			p.HoursUntilDeparture = round2(departure.Sub(s.ScrapedAt).Hours())
		}
		if prev, ok := last[s.Provider]; ok {
			p.CapacityChange = s.AvailableSeats - prev.AvailableSeats
			if hours := s.ScrapedAt.Sub(prev.ScrapedAt).Hours(); hours > 0 {
				p.BookingVelocity = round2(float64(-p.CapacityChange) / hours)
			}
		}
		last[s.Provider] = s
		points = append(points, p)
	}
	return points
}

// BookingRate is seats changed per hour over the window of points
func BookingRate(points []entity.CapacityPoint) float64 {
	if len(points) < 2 {
		return 0
	}

	hours := math.Abs(points[len(points)-1].ScrapedAt.Sub(points[0].ScrapedAt).Hours())
	if hours == 0 {
		return 0
	}

	var moved float64
	for _, p := range points[1:] {
		moved += math.Abs(float64(p.CapacityChange))
	}
	return round2(moved / hours)
}

// AssessUrgency grades how quickly seats are going, from the newest point
func AssessUrgency(points []entity.CapacityPoint, bookingRate float64) entity.BookingUrgency {
	if len(points) == 0 {
		return entity.UrgencyUnknown
	}

	latest := points[len(points)-1].Capacity
	switch {
	case latest < 5:
		return entity.UrgencyCritical
	case bookingRate > 2 && latest < 20:
		return entity.UrgencyHigh
	case bookingRate > 1:
		return entity.UrgencyModerate
	default:
		return entity.UrgencyLow
	}
}

// AnalyzeCapacity bundles the trend with rate and urgency
func AnalyzeCapacity(baseFlightID string, snapshots []entity.PriceSnapshot, departure time.Time) entity.CapacityAnalysis {
	points := BuildCapacityTrend(snapshots, departure)
	rate := BookingRate(points)
	analysis := entity.CapacityAnalysis{
		BaseFlightID: baseFlightID,
		Trend:        points,
		BookingRate:  rate,
		Urgency:      AssessUrgency(points, rate),
	}
	if len(points) > 0 {
		analysis.CurrentCapacity = points[len(points)-1].Capacity
	}
	return analysis
}
