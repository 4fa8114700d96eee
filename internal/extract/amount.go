package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a locale-formatted amount string into a
// canonical non-negative decimal. Rules, in this exact precedence:
//
//  1. strip everything that is not a digit, '.', ',' or '-'
//  2. both '.' and ',' present: '.' is a thousands separator, ',' the
//     decimal separator
//  3. only ',' present: it is the decimal separator
//  4. '.' present more than once and no ',': all '.' are thousands
//     separators
//  5. parse and return the absolute value
//
// A non-numeric or empty result yields Valid=false, never zero. The
// function is idempotent on its own canonical output.
func NormalizeAmount(raw string) decimal.NullDecimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, raw)

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Abs(), Valid: true}
}
