package ingest

import "github.com/shopspring/decimal"

// montoTolerance is the band above 1.0 tolerated before a factor vector is
// reinterpreted as raw amounts (import noise from float exports).
var montoTolerance = decimal.RequireFromString("1.0001")

// ClassifyAndNormalize decides whether the 12 factor values express
// proportions or raw monetary amounts, and rescales the latter.
//
// Monto mode triggers when any single value exceeds 1 or the total exceeds
// 1.0001. In monto mode every value is divided by the total so the vector
// sums to 1 and factor_actualizacion is 1; a zero total yields an all-zero
// vector. In factor mode values pass through unchanged and
// factor_actualizacion is their raw sum.
func ClassifyAndNormalize(vals [NumFactors]decimal.Decimal) ([NumFactors]decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	total := decimal.Zero
	monto := false
	for _, v := range vals {
		total = total.Add(v)
		if v.GreaterThan(one) {
			monto = true
		}
	}
	if total.GreaterThan(montoTolerance) {
		monto = true
	}

	if !monto {
		return vals, total
	}
	if total.IsZero() {
		var zeros [NumFactors]decimal.Decimal
		return zeros, one
	}
	var out [NumFactors]decimal.Decimal
	for i, v := range vals {
		out[i] = v.Div(total)
	}
	return out, one
}

// NormalizeVector rescales an existing factor vector to sum 1 on demand
// (user-triggered action, not part of ingestion). Unlike monto-mode
// classification it refuses a zero vector, and it quantizes the result to the
// ledger precision so the caller can re-validate and persist directly.
func NormalizeVector(vals [NumFactors]decimal.Decimal) ([NumFactors]decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range vals {
		total = total.Add(v)
	}
	if total.IsZero() {
		var zeros [NumFactors]decimal.Decimal
		return zeros, ErrZeroTotal
	}
	var out [NumFactors]decimal.Decimal
	for i, v := range vals {
		out[i] = QuantizeFactor(v.Div(total))
	}
	return out, nil
}
