// Package analytics turns price snapshot sequences into statistics, trends
// and booking advice. Every function is pure.
package analytics

import (
	"math"

	"flightprice-service/internal/domain/entity"
)

const (
	trendThresholdPercent = 5.0
	recentDays            = 3
)

const (
	RecommendExcellent    = "Excellent time to book! Prices are dropping and seats are available."
	RecommendBookSoon     = "Book soon! Prices are rising and seats are filling up."
	RecommendBookNow      = "Book now! Seats are filling up quickly."
	RecommendGood         = "Good time to book. Prices are lower than before."
	RecommendMonitor      = "Monitor prices. No significant changes detected."
	RecommendInsufficient = "Insufficient data for recommendation"
)

// ClassifyTrend compares the mean daily average of the most recent days with
// the mean of the days before them. Stats are ordered oldest to newest.
func ClassifyTrend(stats []entity.DailyStats) (entity.PriceTrend, float64) {
	n := len(stats)
	if n < 2 {
		return entity.TrendInsufficient, 0
	}

	// keep at least one older day to compare against
	recent := recentDays
	if recent > n-1 {
		recent = n - 1
	}

	olderAvg := meanAvgPrice(stats[:n-recent])
	recentAvg := meanAvgPrice(stats[n-recent:])
	if olderAvg == 0 {
		return entity.TrendStable, 0
	}

	change := (recentAvg - olderAvg) / olderAvg * 100
	switch {
	case change > trendThresholdPercent:
		return entity.TrendIncreasing, change
	case change < -trendThresholdPercent:
		return entity.TrendDecreasing, change
	default:
		return entity.TrendStable, change
	}
}

func meanAvgPrice(stats []entity.DailyStats) float64 {
	if len(stats) == 0 {
		return 0
	}
	var sum float64
	for _, s := range stats {
		sum += s.AvgPrice
	}
	return sum / float64(len(stats))
}

// Recommend picks booking advice from the oldest and newest daily stat
func Recommend(stats []entity.DailyStats) string {
	if len(stats) < 2 {
		return RecommendInsufficient
	}

	oldest, latest := stats[0], stats[len(stats)-1]
	var priceChangePct float64
	if oldest.AvgPrice > 0 {
		priceChangePct = (latest.AvgPrice - oldest.AvgPrice) / oldest.AvgPrice * 100
	}
	capacityChange := latest.MaxCapacity - oldest.MaxCapacity

	switch {
	case priceChangePct < -10 && capacityChange > 0:
		return RecommendExcellent
	case priceChangePct > 10 && capacityChange < -5:
		return RecommendBookSoon
	case capacityChange < -10:
		return RecommendBookNow
	case priceChangePct < 0:
		return RecommendGood
	default:
		return RecommendMonitor
	}
}

// Insights summarizes daily stats ordered oldest to newest
func Insights(stats []entity.DailyStats) entity.PriceInsights {
	trend, change := ClassifyTrend(stats)
	insights := entity.PriceInsights{
		Trend:          trend,
		ChangePercent:  round2(change),
		Recommendation: Recommend(stats),
	}
	if len(stats) == 0 {
		return insights
	}

	insights.MinPrice = math.Inf(1)
	insights.MaxPrice = math.Inf(-1)
	var volatility float64
	for _, s := range stats {
		insights.MinPrice = math.Min(insights.MinPrice, s.AvgPrice)
		insights.MaxPrice = math.Max(insights.MaxPrice, s.AvgPrice)
		volatility += s.PriceVolatility
	}
	insights.AvgPrice = round2(meanAvgPrice(stats))
	insights.AvgVolatility = round2(volatility / float64(len(stats)))
	return insights
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
