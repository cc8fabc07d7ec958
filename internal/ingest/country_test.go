package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPorRegexDeIdentificador(t *testing.T) {
	resolver := NewCountryResolver(newFakeStore(), DefaultCountryPatterns())

	code, score := resolver.Detect(Row{
		FieldIdentificadorCliente: "12.345.678-9",
		FieldInstrumento:          "FONDO A",
	})
	assert.Equal(t, "CHL", code)
	assert.GreaterOrEqual(t, score, 0.7)
}

func TestDetectPorPalabrasClave(t *testing.T) {
	resolver := NewCountryResolver(newFakeStore(), DefaultCountryPatterns())

	code, score := resolver.Detect(Row{
		FieldObservaciones: "operacion en BOGOTA, factura con NIT, pago en COP",
	})
	assert.Equal(t, "COL", code)
	assert.GreaterOrEqual(t, score, MinCountryConfidence)
}

func TestDetectSinSenalSuficiente(t *testing.T) {
	resolver := NewCountryResolver(newFakeStore(), DefaultCountryPatterns())

	// Una sola palabra clave (0.15) no alcanza la confianza minima.
	code, score := resolver.Detect(Row{FieldObservaciones: "pago en CLP"})
	assert.Equal(t, "", code)
	assert.Equal(t, 0.0, score)

	code, _ = resolver.Detect(Row{})
	assert.Equal(t, "", code)
}

func TestDetectEmpateAlfabetico(t *testing.T) {
	resolver := NewCountryResolver(newFakeStore(), DefaultCountryPatterns())

	// Dos palabras clave por pais para ambos: empate en 0.3; gana el codigo
	// alfabeticamente menor.
	code, score := resolver.Detect(Row{
		FieldObservaciones: "custodia SANTIAGO CHILE y BOGOTA COLOMBIA",
	})
	assert.Equal(t, "CHL", code)
	assert.InDelta(t, 0.3, score, 1e-9)
}

func TestResolveExplicitoTienePrioridad(t *testing.T) {
	store := newFakeStore()
	resolver := NewCountryResolver(store, DefaultCountryPatterns())

	explicit, detectado, err := resolver.Resolve(context.Background(), Row{
		FieldPais:                 "PER",
		FieldIdentificadorCliente: "12.345.678-9",
	})
	require.NoError(t, err)
	require.NotNil(t, explicit)
	assert.Equal(t, "PER", explicit.CodigoISO3)
	// La heuristica sigue corriendo y reporta lo detectado por separado.
	require.NotNil(t, detectado)
	assert.Equal(t, "CHL", detectado.CodigoISO3)
}

func TestResolveSinPais(t *testing.T) {
	resolver := NewCountryResolver(newFakeStore(), DefaultCountryPatterns())

	explicit, detectado, err := resolver.Resolve(context.Background(), Row{
		FieldIdentificadorCliente: "ABC123",
		FieldInstrumento:          "FONDO A",
	})
	require.NoError(t, err)
	assert.Nil(t, explicit)
	assert.Nil(t, detectado)
}

func TestResolveNoduplicaPaises(t *testing.T) {
	store := newFakeStore()
	resolver := NewCountryResolver(store, DefaultCountryPatterns())

	row := Row{FieldPais: "CHL"}
	primero, _, err := resolver.Resolve(context.Background(), row)
	require.NoError(t, err)
	segundo, _, err := resolver.Resolve(context.Background(), row)
	require.NoError(t, err)

	assert.Equal(t, primero.ID, segundo.ID)
	assert.Len(t, store.paises, 1)
}
