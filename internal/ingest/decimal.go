package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// FactorPrecision is the fractional-digit precision of the ledger's factor
// columns (NUMERIC(5,4)).
const FactorPrecision = 4

var numericRe = regexp.MustCompile(`[-+]?[0-9]+(?:\.[0-9]+)?`)

// ToDecimal converts a heterogeneous textual amount into an exact decimal.
//
// Convention: es-CL locale. When both '.' and ',' appear, the rightmost of the
// two is the decimal mark and the other is a thousands separator; a lone comma
// is a decimal mark; repeated dots are thousands separators. A trailing '%' is
// ignored. Blank input yields ok=false with no error; input with no numeric
// content yields ErrInvalidDecimal citing the raw value.
func ToDecimal(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidDecimal, raw)
	}

	s = normalizeSeparators(s)

	if d, err := decimal.NewFromString(s); err == nil {
		return d, true, nil
	}

	// Salvage a numeric substring (sign included) from noisy input such as
	// "CLP 1.234,56" or "0,35 aprox".
	if m := numericRe.FindString(s); m != "" {
		if d, err := decimal.NewFromString(m); err == nil {
			return d, true, nil
		}
	}
	return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidDecimal, raw)
}

// QuantizeFactor rounds a factor value to the ledger precision using
// banker's rounding.
func QuantizeFactor(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(FactorPrecision)
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56 -> comma is the decimal mark
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56 -> dot is the decimal mark
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// 1,234,567 -> thousands separators only
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		// 1.234.567 -> thousands separators only
		s = strings.ReplaceAll(s, ".", "")
	}
	return s
}
