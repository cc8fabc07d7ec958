package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"RUT", FieldIdentificadorCliente},
		{"  Rut Cliente ", FieldIdentificadorCliente},
		{"NIT", FieldIdentificadorCliente},
		{"Identificador_Cliente", FieldIdentificadorCliente},
		{"Instrumento", FieldInstrumento},
		{"NEMOTECNICO", FieldInstrumento},
		{"Año", FieldEjercicioFiscal},
		{"ANIO", FieldEjercicioFiscal},
		{"Ejercicio Fiscal", FieldEjercicioFiscal},
		{"Mercado de Valores", FieldMercado},
		{"País", FieldPais},
		{"codigo pais", FieldPais},
		{"Observación", FieldObservaciones},
		{"Glosa", FieldObservaciones},
		{"Secuencia Evento", FieldSecuenciaEvento},
		{"Folio", FieldSecuenciaEvento},
		{"Moneda", FieldMoneda},
		{"factor_8", "factor_8"},
		{"Factor 9", "factor_9"},
		{"FAC-10", "factor_10"},
		{"f11", "factor_11"},
		{"factor.19", "factor_19"},
		// fuera del rango 8-19: queda como slug
		{"factor 7", "factor_7"},
		{"factor 20", "factor_20"},
		// columnas desconocidas degradan a slug
		{"Columna Rara!", "columna_rara"},
		{"  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeHeader(tc.in), "entrada %q", tc.in)
	}
}

func TestNormalizeHeaderIdempotente(t *testing.T) {
	for _, in := range []string{"RUT", "Factor 12", "Columna Rara", "mercado"} {
		once := NormalizeHeader(in)
		assert.Equal(t, once, NormalizeHeader(once))
	}
}

func TestFactorField(t *testing.T) {
	assert.Equal(t, "factor_8", FactorField(8))
	assert.Equal(t, "factor_19", FactorField(19))
	assert.Equal(t, 12, NumFactors)
}
