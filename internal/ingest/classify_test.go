package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factoresDesde(vals map[int]string) [NumFactors]decimal.Decimal {
	var out [NumFactors]decimal.Decimal
	for n, v := range vals {
		out[n-FirstFactor] = decimal.RequireFromString(v)
	}
	return out
}

func sumaDe(vals [NumFactors]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vals {
		total = total.Add(v)
	}
	return total
}

func TestClassifyModoFactor(t *testing.T) {
	// Proporciones que no suman 1: pasan sin cambios y el factor de
	// actualizacion conserva la suma original.
	vals := factoresDesde(map[int]string{8: "0.2", 9: "0.3"})
	out, factorAct := ClassifyAndNormalize(vals)

	assert.Equal(t, vals, out)
	assert.Equal(t, "0.5", factorAct.String())
}

func TestClassifyModoMontoPorValorMayorAUno(t *testing.T) {
	vals := factoresDesde(map[int]string{8: "100", 9: "300"})
	out, factorAct := ClassifyAndNormalize(vals)

	assert.Equal(t, "0.25", out[0].String())
	assert.Equal(t, "0.75", out[1].String())
	assert.Equal(t, "1", factorAct.String())
	assert.True(t, sumaDe(out).Equal(decimal.NewFromInt(1)))
}

func TestClassifyModoMontoPorSumaSobreTolerancia(t *testing.T) {
	// Ningun valor individual supera 1, pero la suma 1.3 excede 1.0001.
	vals := factoresDesde(map[int]string{8: "0.8", 9: "0.5"})
	out, factorAct := ClassifyAndNormalize(vals)

	assert.Equal(t, "1", factorAct.String())
	assert.True(t, sumaDe(out).Sub(decimal.NewFromInt(1)).Abs().
		LessThanOrEqual(decimal.RequireFromString("0.0001")),
		"la suma reescalada debe quedar en 1 con tolerancia 0.0001, fue %s", sumaDe(out))
}

func TestClassifySumaDentroDeTolerancia(t *testing.T) {
	// La suma 1.00005 queda dentro de la banda: se mantiene modo factor.
	vals := factoresDesde(map[int]string{8: "0.5", 9: "0.50005"})
	_, factorAct := ClassifyAndNormalize(vals)
	assert.Equal(t, "1.00005", factorAct.String())
}

func TestClassifyVectorCero(t *testing.T) {
	var vals [NumFactors]decimal.Decimal
	out, factorAct := ClassifyAndNormalize(vals)
	assert.True(t, sumaDe(out).IsZero())
	assert.True(t, factorAct.IsZero())
}

func TestNormalizeVector(t *testing.T) {
	vals := factoresDesde(map[int]string{8: "0.2", 9: "0.2"})
	out, err := NormalizeVector(vals)
	require.NoError(t, err)
	assert.Equal(t, "0.5", out[0].String())
	assert.Equal(t, "0.5", out[1].String())
}

func TestNormalizeVectorTotalCero(t *testing.T) {
	var vals [NumFactors]decimal.Decimal
	_, err := NormalizeVector(vals)
	assert.ErrorIs(t, err, ErrZeroTotal)
}
