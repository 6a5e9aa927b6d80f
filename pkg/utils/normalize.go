package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	letterRe     = regexp.MustCompile(`[A-Za-z]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Variant letters collapsed to one canonical codepoint
	letterVariants = strings.NewReplacer(
		"ي", "ی", // Arabic Ya
		"ك", "ک", // Arabic Kaf
		"آ", "ا",
		"أ", "ا",
		"إ", "ا",
		"ٱ", "ا",
		"ة", "ه",
		"ؤ", "و",
		"ئ", "ی",
		"\u200c", " ", // zero width non-joiner
	)

	// Longest suffix first so "ایرلاینز" is never cut down to "ایرلاین"
	airlineSuffixes = []string{
		" ایرلاینز",
		" ایرلاین",
		" ایر",
		" airlines",
		" airways",
		" airline",
		" air",
	}

	airlinePrefixes = []string{
		"هواپیمایی ",
		"شرکت هواپیمایی ",
	}

	// Codes some providers report that differ from the IATA designator
	airlineCodeAliases = map[string]string{
		"TKN": "FK",
		"K0":  "FK",
		"ATS": "AT",
		"NSM": "NA",
		"ISP": "JS",
		"IS":  "JS",
		"J3":  "JS",
	}

	cabinCodes = map[string]string{
		"economy":         "E",
		"اکونومی":         "E",
		"business":        "B",
		"بیزینس":          "B",
		"first":           "F",
		"premium_economy": "P",
	}
)

// NormalizeAirlineName folds cosmetic spelling differences so the same airline
// reported by different providers compares equal.
func NormalizeAirlineName(name string) string {
	n := letterVariants.Replace(strings.TrimSpace(name))
	n = whitespaceRe.ReplaceAllString(strings.TrimSpace(n), " ")

	for _, prefix := range airlinePrefixes {
		if strings.HasPrefix(n, prefix) {
			n = strings.TrimSpace(strings.TrimPrefix(n, prefix))
			break
		}
	}

	for _, suffix := range airlineSuffixes {
		if len(n) > len(suffix) && strings.EqualFold(n[len(n)-len(suffix):], suffix) {
			n = strings.TrimSpace(n[:len(n)-len(suffix)])
			break
		}
	}

	return n
}

// NormalizeFlightNumber reduces a flight number to its significant digits.
//
// Some providers prefix a route digit onto five digit numbers and others put a
// leading 9 on four digit ones; both are removed so the same physical flight
// gets the same number everywhere.
func NormalizeFlightNumber(number string) string {
	digits := stripLeadingZeros(letterRe.ReplaceAllString(strings.TrimSpace(number), ""))

	switch {
	case len(digits) == 5 && digits[0] >= '1' && digits[0] <= '9':
		return stripLeadingZeros(digits[1:])
	case len(digits) == 4 && digits[0] == '9':
		if rest := stripLeadingZeros(digits[1:]); len(rest) == 3 {
			return rest
		}
	}

	return digits
}

func stripLeadingZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// NormalizeAirlineCode upper-cases a carrier code and resolves known aliases
func NormalizeAirlineCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if alias, ok := airlineCodeAliases[c]; ok {
		return alias
	}
	return c
}

// FlightKey identifies one physical flight independent of the provider selling it
type FlightKey struct {
	Airline      string
	FlightNumber string
	Date         time.Time
	Origin       string
	Destination  string
}

// NewFlightKey normalizes every component of the key. The departure is moved
// to loc before its date is taken, so one instant always yields one key
// whatever zone the provider reported it in. A nil loc means UTC.
func NewFlightKey(airline, flightNumber string, departure time.Time, origin, destination string, loc *time.Location) FlightKey {
	if loc == nil {
		loc = time.UTC
	}
	return FlightKey{
		Airline:      NormalizeAirlineName(airline),
		FlightNumber: NormalizeFlightNumber(flightNumber),
		Date:         departure.In(loc),
		Origin:       strings.ToUpper(strings.TrimSpace(origin)),
		Destination:  strings.ToUpper(strings.TrimSpace(destination)),
	}
}

// BaseFlightID renders the key as airline_number_YYYYMMDD_ORIGIN_DESTINATION
func (k FlightKey) BaseFlightID() string {
	return strings.Join([]string{
		k.Airline,
		k.FlightNumber,
		k.Date.Format("20060102"),
		k.Origin,
		k.Destination,
	}, "_")
}

// CabinCode maps a cabin class label to its single letter code, E when unknown
func CabinCode(class string) string {
	if code, ok := cabinCodes[strings.ToLower(strings.TrimSpace(class))]; ok {
		return code
	}
	return "E"
}

// OfferID builds a deterministic id for an offer the provider sent without one
func OfferID(origin, destination string, departure time.Time, charter bool, airlineCode, flightNumber, bookingClass, cabinClass string) string {
	ticket := "R"
	if charter {
		ticket = "H"
	}
	return strings.ToUpper(origin) + strings.ToUpper(destination) + departure.Format("20060102") + ticket +
		NormalizeAirlineCode(airlineCode) + NormalizeFlightNumber(flightNumber) +
		strings.ToUpper(bookingClass) + CabinCode(cabinClass)
}
