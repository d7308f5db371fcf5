// Package display converts forecast values into presentation units.
// Rounding happens here and nowhere upstream.
package display

import (
	"strconv"
	"strings"

	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

// Minutes returns hours*60 rounded to two decimal places.
func Minutes(hours float64) decimal.Decimal {
	return decimal.NewFromFloat(hours).Mul(sixty).Round(2)
}

// HoursMinutes splits a positive duration into whole hours and minutes.
// Any positive duration shows as at least one minute.
func HoursMinutes(hours float64) (h, m int64) {
	if !(hours > 0) {
		return 0, 0
	}
	total := decimal.NewFromFloat(hours).Mul(sixty).Round(0).IntPart()
	if total < 1 {
		total = 1
	}
	return total / 60, total % 60
}

// Text renders a duration as "X jam Y menit", dropping a zero hour part.
func Text(hours float64) string {
	h, m := HoursMinutes(hours)
	var b strings.Builder
	if h > 0 {
		b.WriteString(strconv.FormatInt(h, 10))
		b.WriteString(" jam")
		if m == 0 {
			return b.String()
		}
		b.WriteByte(' ')
	}
	b.WriteString(strconv.FormatInt(m, 10))
	b.WriteString(" menit")
	return b.String()
}

// Percent rounds a percentage to two decimal places.
func Percent(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Duration builds the presentation view of a forecast value in hours.
func Duration(hours float64) *analytics.Duration {
	minutes, _ := Minutes(hours).Float64()
	return &analytics.Duration{
		Hours:   hours,
		Minutes: minutes,
		Text:    Text(hours),
	}
}
