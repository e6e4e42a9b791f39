package utils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reCurrencyCode = regexp.MustCompile(`(?i)\b(usd|eur|gbp|cad|aud|inr|jpy)\b`)
	reAmountJunk   = regexp.MustCompile(`[()$€£¥,\s]`)
)

// ParseAmount normalizes a money string. A leading "-" or enclosing
// parentheses make the value negative. Unparsable input yields zero.
func ParseAmount(raw string) decimal.Decimal {
	v, ok := ParseAmountOK(raw)
	if !ok {
		return decimal.Zero
	}
	return v
}

// ParseAmountOK is ParseAmount that also reports whether the input parsed.
func ParseAmountOK(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(reCurrencyCode.ReplaceAllString(raw, ""))
	negative := strings.HasPrefix(s, "(") || strings.HasPrefix(s, "-")
	cleaned := reAmountJunk.ReplaceAllString(s, "")
	cleaned = strings.TrimLeft(cleaned, "+-")
	if cleaned == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		return v.Abs().Neg(), true
	}
	return v, true
}

// Money rounds to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
