package analytics

import (
	"math"
	"sort"
	"time"

	"flightprice-service/internal/domain/entity"
)

// ComputeDailyStats buckets snapshots by calendar day in loc (UTC when nil)
// and returns the days oldest first. Unavailable or unpriced snapshots are skipped.
func ComputeDailyStats(snapshots []entity.PriceSnapshot, loc *time.Location) []entity.DailyStats {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[string][]entity.PriceSnapshot)
	for _, s := range snapshots {
		if s.AdultPrice <= 0 {
			continue
		}
		day := s.ScrapedAt.In(loc).Format("2006-01-02")
		byDay[day] = append(byDay[day], s)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	stats := make([]entity.DailyStats, 0, len(days))
	for _, day := range days {
		stats = append(stats, dayStats(day, byDay[day]))
	}
	return stats
}

func dayStats(day string, snaps []entity.PriceSnapshot) entity.DailyStats {
	st := entity.DailyStats{
		Date:             day,
		MinPrice:         snaps[0].AdultPrice,
		MaxPrice:         snaps[0].AdultPrice,
		MinCapacity:      snaps[0].AvailableSeats,
		MaxCapacity:      snaps[0].AvailableSeats,
		ScrapeCount:      len(snaps),
		CheapestProvider: snaps[0].Provider,
	}

	var sum float64
	for _, s := range snaps {
		sum += float64(s.AdultPrice)
		if s.AdultPrice < st.MinPrice {
			st.MinPrice = s.AdultPrice
			st.CheapestProvider = s.Provider
		}
		if s.AdultPrice > st.MaxPrice {
			st.MaxPrice = s.AdultPrice
		}
		if s.AvailableSeats < st.MinCapacity {
			st.MinCapacity = s.AvailableSeats
		}
		if s.AvailableSeats > st.MaxCapacity {
			st.MaxCapacity = s.AvailableSeats
		}
	}

	mean := sum / float64(len(snaps))
	var sq float64
	for _, s := range snaps {
		d := float64(s.AdultPrice) - mean
		sq += d * d
	}

	st.AvgPrice = round2(mean)
	st.PriceVolatility = round2(math.Sqrt(sq / float64(len(snaps))))
	return st
}
