package crawler

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	minorUnitThreshold = decimal.NewFromInt(1000)
	hundred            = decimal.NewFromInt(100)
)

// CleanPriceText keeps digits and separators, turns commas into dots and
// collapses all but the last dot as thousands separators.
func CleanPriceText(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}

	text := strings.ReplaceAll(b.String(), ",", ".")
	if strings.Count(text, ".") > 1 {
		parts := strings.Split(text, ".")
		text = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	return text
}

// NormalizePrice turns matched price text into a decimal.
//
//	"38,99"    -> 38.99
//	"1.234,56" -> 1234.56
//	"123500"   -> 1235.00 (no separator and above 1000: read as cents)
//	"45.00"    -> 45.00
//
// StringFixed(2) is the canonical text form of the result: it always carries
// a dot, so feeding it back in returns the same value. String() drops
// trailing zeros and can re-trigger the cents reading ("1235" -> 12.35).
func NormalizePrice(raw string) (decimal.Decimal, error) {
	text := CleanPriceText(raw)

	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", text, err)
	}

	if price.GreaterThan(minorUnitThreshold) && !strings.Contains(text, ".") {
		price = price.Div(hundred)
	}

	return price.Round(2), nil
}
