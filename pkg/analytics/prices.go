package analytics

import (
	"sort"
	"time"

	"flightprice-service/internal/domain/entity"
)

// PriceChange returns current-previous and its percentage of previous.
// ok is false when there is no usable previous price.
func PriceChange(previous, current int64) (amount int64, percent float64, ok bool) {
	if previous <= 0 {
		return 0, 0, false
	}
	amount = current - previous
	return amount, float64(amount) / float64(previous) * 100, true
}

// HistoryPoints projects snapshots for the history endpoints
func HistoryPoints(snapshots []entity.PriceSnapshot) []entity.PriceHistoryPoint {
	points := make([]entity.PriceHistoryPoint, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, entity.PriceHistoryPoint{
			Provider:              s.Provider,
			Price:                 s.AdultPrice,
			Capacity:              s.AvailableSeats,
			ScrapedAt:             s.ScrapedAt,
			PriceChangeAmount:     s.PriceChangeAmount,
			PriceChangePercentage: s.PriceChangePercentage,
		})
	}
	return points
}

// FilterChanges keeps the points where the price actually moved
func FilterChanges(points []entity.PriceHistoryPoint) []entity.PriceHistoryPoint {
	changes := make([]entity.PriceHistoryPoint, 0)
	for _, p := range points {
		if (p.PriceChangeAmount != nil && *p.PriceChangeAmount != 0) ||
			(p.PriceChangePercentage != nil && *p.PriceChangePercentage != 0) {
			changes = append(changes, p)
		}
	}
	return changes
}

// CompareProviders ranks the latest snapshot of each provider by price
func CompareProviders(baseFlightID string, latest []entity.PriceSnapshot) entity.ProviderComparison {
	cmp := entity.ProviderComparison{BaseFlightID: baseFlightID, Providers: make([]entity.ProviderPrice, 0, len(latest))}
	for _, s := range latest {
		if s.AdultPrice <= 0 {
			continue
		}
		cmp.Providers = append(cmp.Providers, entity.ProviderPrice{
			Provider:  s.Provider,
			Price:     s.AdultPrice,
			Capacity:  s.AvailableSeats,
			ScrapedAt: s.ScrapedAt,
		})
	}
	if len(cmp.Providers) == 0 {
		return cmp
	}

	sort.SliceStable(cmp.Providers, func(i, j int) bool {
		if cmp.Providers[i].Price != cmp.Providers[j].Price {
			return cmp.Providers[i].Price < cmp.Providers[j].Price
		}
		return cmp.Providers[i].Provider < cmp.Providers[j].Provider
	})

	best := cmp.Providers[0]
	cmp.BestDeal = &best
	cmp.PriceDifference = cmp.Providers[len(cmp.Providers)-1].Price - best.Price
	return cmp
}

// DetectPriceDrops returns offers whose latest change is a drop of at least
// thresholdPercent, biggest drop first.
func DetectPriceDrops(latest []entity.CachedOffer, thresholdPercent float64, now time.Time) []entity.PriceDrop {
	drops := make([]entity.PriceDrop, 0)
	for _, o := range latest {
		pct := o.Snapshot.PriceChangePercentage
		amount := o.Snapshot.PriceChangeAmount
		if pct == nil || amount == nil || *pct > -thresholdPercent {
			continue
		}

		drops = append(drops, entity.PriceDrop{
			BaseFlightID:      o.Flight.BaseFlightID,
			FlightNumber:      o.Flight.FlightNumber,
			AirlineCode:       o.Flight.AirlineCode,
			Origin:            o.Flight.Origin,
			Destination:       o.Flight.Destination,
			DepartureDateTime: o.Flight.DepartureTime,
			CurrentPrice:      o.Snapshot.AdultPrice,
			PreviousPrice:     o.Snapshot.AdultPrice - *amount,
			PriceDrop:         -*amount,
			DropPercentage:    round2(-*pct),
			ProviderSource:    o.Snapshot.Provider,
			HoursAgo:          round2(now.Sub(o.Snapshot.ScrapedAt).Hours()),
		})
	}

	sort.SliceStable(drops, func(i, j int) bool {
		return drops[i].DropPercentage > drops[j].DropPercentage
	})
	return drops
}
