package analytics

import (
	"sort"

	"flightprice-service/internal/domain/entity"
)

// SummarizeScrapingStats derives per-provider averages and frequency
func SummarizeScrapingStats(counts []entity.ProviderScrapeCounts, periodHours int) entity.ScrapingStatsReport {
	report := entity.ScrapingStatsReport{PeriodHours: periodHours, Providers: make([]entity.ScrapingStats, 0, len(counts))}

	for _, c := range counts {
		st := entity.ScrapingStats{
			Provider:     c.Provider,
			ScrapeCount:  c.ScrapeCount,
			FlightsFound: c.FlightsFound,
			FirstScrape:  c.FirstScrape,
			LastScrape:   c.LastScrape,
		}
		if c.ScrapeCount > 0 {
			st.AvgFlightsPerScrape = round2(float64(c.FlightsFound) / float64(c.ScrapeCount))
		}
		if c.ScrapeCount > 1 {
			st.ScrapeFrequencyMinutes = round2(c.LastScrape.Sub(c.FirstScrape).Minutes() / float64(c.ScrapeCount-1))
		}

		report.TotalScrapes += c.ScrapeCount
		report.TotalFlights += c.FlightsFound
		report.Providers = append(report.Providers, st)
	}

	sort.Slice(report.Providers, func(i, j int) bool {
		return report.Providers[i].Provider < report.Providers[j].Provider
	})
	return report
}
