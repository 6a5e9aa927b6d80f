package usecase

import (
	"sort"
	"strings"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/utils"
)

// ApplyFilters narrows flights by price, airline and departure window, then sorts them
func ApplyFilters(flights []entity.GroupedFlight, f entity.SearchFilters) []entity.GroupedFlight {
	airline := utils.NormalizeAirlineName(f.Airline)
	airlineCode := utils.NormalizeAirlineCode(f.Airline)

	out := make([]entity.GroupedFlight, 0, len(flights))
	for _, fl := range flights {
		if f.MinPrice > 0 && fl.LowestPrice < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && fl.LowestPrice > f.MaxPrice {
			continue
		}
		if f.Airline != "" && fl.Airline.Code != airlineCode && utils.NormalizeAirlineName(fl.Airline.NameFa) != airline &&
			!strings.EqualFold(utils.NormalizeAirlineName(fl.Airline.NameEn), airline) {
			continue
		}
		if !inDepartureWindow(fl, f.DepartureFrom, f.DepartureTo) {
			continue
		}
		out = append(out, fl)
	}

	if f.SortBy != "" || f.SortOrder != "" {
		SortFlights(out, f.SortBy, f.SortOrder)
	}
	return out
}

// inDepartureWindow compares the HH:MM clock of the departure with the bounds
func inDepartureWindow(fl entity.GroupedFlight, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	if fl.Schedule.DepartureDateTime.IsZero() {
		return false
	}
	clock := fl.Schedule.DepartureDateTime.Format(utils.CLOCK_LAYOUT)
	if from != "" && clock < from {
		return false
	}
	if to != "" && clock > to {
		return false
	}
	return true
}

// SortFlights orders flights in place. Ties fall back to departure time then key.
func SortFlights(flights []entity.GroupedFlight, by, order string) {
	desc := strings.EqualFold(order, "desc")

	sort.SliceStable(flights, func(i, j int) bool {
		a, b := flights[i], flights[j]
		var cmp int
		switch by {
		case "departure":
			cmp = a.Schedule.DepartureDateTime.Compare(b.Schedule.DepartureDateTime)
		case "duration":
			cmp = compareInt(int64(a.Schedule.DurationMinutes), int64(b.Schedule.DurationMinutes))
		case "providers":
			cmp = compareInt(int64(a.AvailableProviders), int64(b.AvailableProviders))
		default:
			cmp = compareInt(a.LowestPrice, b.LowestPrice)
		}
		if cmp != 0 {
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		if c := a.Schedule.DepartureDateTime.Compare(b.Schedule.DepartureDateTime); c != 0 {
			return c < 0
		}
		return a.BaseFlightID < b.BaseFlightID
	})
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
