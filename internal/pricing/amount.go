// Package pricing turns raw vendor price representations into integer cents.
// Nothing here touches the network or the database.
package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-valuation/internal/logger"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses vendor price text ("$1,234.50", "3,50 €", "2.5") into
// cents. ok is false for empty, malformed, non-finite or non-positive values;
// callers treat every one of those as "no price".
func ParseAmount(raw string) (cents int64, ok bool) {
	cleaned := cleanAmount(raw)
	if cleaned == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		logger.Get().Debugf("Pricing: unparseable amount %q: %v", raw, err)
		return 0, false
	}

	cents = d.Mul(hundred).Round(0).IntPart()
	if cents <= 0 {
		return 0, false
	}
	return cents, true
}

// FormatAmount renders a vendor float as price text. Non-finite and
// non-positive values render as "" so they stay "no price" downstream.
func FormatAmount(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return ""
	}
	return decimal.NewFromFloat(f).String()
}

// CentsFromFloat converts a vendor float amount to cents.
func CentsFromFloat(f float64) (int64, bool) {
	return ParseAmount(FormatAmount(f))
}

// cleanAmount strips currency symbols, whitespace and thousands separators.
// A lone comma followed by one or two trailing digits is a decimal comma.
func cleanAmount(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,50
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		decimals := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && decimals > 0 && decimals <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if strings.Count(s, ".") > 1 || strings.Trim(s, ".-") == "" {
		return ""
	}
	return s
}
