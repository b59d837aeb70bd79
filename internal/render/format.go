// Package render formats view values for the terminal and the web dashboard.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Placeholder shown in place of a missing value.
const Placeholder = "-"

// LastUpdatedLayout local time layout of the "last updated" caption.
const LastUpdatedLayout = "2006-01-02 15:04:05"

// CSS classes of a funding rate cell.
const (
	ClassPositive = "positive"
	ClassNegative = "negative"
)

var exchangeLabelRe = regexp.MustCompile(`^\s*(.+?)\s*\(([^()]+)\)\s*$`)

// FormatRate renders a funding rate with 4 decimals, "-" when the rate is missing.
func FormatRate(rate decimal.NullDecimal) string {
	if !rate.Valid {
		return Placeholder
	}
	return rate.Decimal.StringFixed(4) + "%"
}

// SignClass returns the CSS class of a rate cell. Missing rates get no class.
func SignClass(rate decimal.NullDecimal) string {
	if !rate.Valid {
		return ""
	}
	if rate.Decimal.IsPositive() {
		return ClassPositive
	}
	return ClassNegative
}

// FormatVolume renders a dollar volume with thousands separators.
func FormatVolume(volume decimal.NullDecimal) string {
	if !volume.Valid {
		return Placeholder
	}
	return "$" + humanize.CommafWithDigits(volume.Decimal.InexactFloat64(), 3)
}

// FormatAPR renders an annualised rate with 2 decimals.
func FormatAPR(apr decimal.Decimal) string {
	return apr.StringFixed(2) + "%"
}

// FormatLastUpdated renders t in loc, "-" before the first successful refresh.
func FormatLastUpdated(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Placeholder
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(LastUpdatedLayout)
}

// SplitExchangeLabel splits "Binance (0.0123%)" into its name and embedded rate.
// ok is false for labels without a parenthesised suffix, and name is then the label itself.
func SplitExchangeLabel(label string) (name, rate string, ok bool) {
	m := exchangeLabelRe.FindStringSubmatch(label)
	if m == nil {
		return label, "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// LineColor is the chart color of the i-th series.
func LineColor(i int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", i*72)
}
