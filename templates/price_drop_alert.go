package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
)

// MSG_PRICE_DROP is the bilingual alert text
const MSG_PRICE_DROP = `✈️ کاهش قیمت پرواز | Price drop
%s %s
%s (%s) → %s (%s)
%s
%s → %s ریال (-%.1f%%)
%s`

// PriceDropDetails are the display names resolved for an alert
type PriceDropDetails struct {
	AirlineName     string
	OriginCity      string
	DestinationCity string
	Location        *time.Location
}

// RenderPriceDrop builds the message text for a price drop alert
func RenderPriceDrop(alert *entity.PriceDropAlert, d PriceDropDetails) string {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	airline := d.AirlineName
	if airline == "" {
		airline = alert.BaseFlightID
	}

	return fmt.Sprintf(MSG_PRICE_DROP,
		airline,
		alert.FlightNumber,
		fallback(d.OriginCity, alert.Origin), alert.Origin,
		fallback(d.DestinationCity, alert.Destination), alert.Destination,
		alert.Departure.In(loc).Format("2006-01-02 15:04"),
		formatRial(alert.PreviousPrice),
		formatRial(alert.CurrentPrice),
		alert.DropPercentage,
		alert.Provider,
	)
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// formatRial groups digits by thousands
func formatRial(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
