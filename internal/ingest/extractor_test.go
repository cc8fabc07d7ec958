package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCSVConEncabezadosVariantes(t *testing.T) {
	csv := "RUT;Nemotecnico;Año;Factor 8\n" +
		"12.345.678-9;FONDO A;2025;0,2\n" +
		"\n" +
		"98.765.432-1;FONDO B;2025;0,3\n"

	rows, err := NewExtractor().Extract([]byte(csv), "carga.csv", ";")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "12.345.678-9", rows[0].Get(FieldIdentificadorCliente))
	assert.Equal(t, "FONDO A", rows[0].Get(FieldInstrumento))
	assert.Equal(t, "2025", rows[0].Get(FieldEjercicioFiscal))
	assert.Equal(t, "0,2", rows[0].Factor(8))
}

func TestExtractCSVDelimitadorInvalidoUsaComa(t *testing.T) {
	csv := "rut,instrumento\n1-9,FONDO A\n"
	rows, err := NewExtractor().Extract([]byte(csv), "carga.csv", ";;")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FONDO A", rows[0].Get(FieldInstrumento))
}

func TestExtractCSVSoloEncabezado(t *testing.T) {
	rows, err := NewExtractor().Extract([]byte("rut,instrumento\n"), "carga.csv", ",")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExtractFormatoNoSoportado(t *testing.T) {
	_, err := NewExtractor().Extract([]byte("datos"), "carga.txt", ",")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractPDFConEncabezado(t *testing.T) {
	texto := "RUT | Instrumento | Factor 8\n" +
		"12.345.678-9 | FONDO A | 0,2\n" +
		"98.765.432-1 | FONDO B | 0,3\n"
	extractor := NewExtractorWithPDF(&MockPDFExtractor{Text: texto})

	rows, err := extractor.Extract([]byte("%PDF"), "carga.pdf", ",")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "12.345.678-9", rows[0].Get(FieldIdentificadorCliente))
	assert.Equal(t, "0,2", rows[0].Factor(8))
}

func TestExtractPDFEspaciosMultiples(t *testing.T) {
	texto := "RUT          Instrumento     Factor 8\n" +
		"12.345.678-9     FONDO A       0,2\n"
	extractor := NewExtractorWithPDF(&MockPDFExtractor{Text: texto})

	rows, err := extractor.Extract([]byte("%PDF"), "carga.pdf", ",")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FONDO A", rows[0].Get(FieldInstrumento))
}

func TestExtractPDFSinEncabezadoSintetizaColumnas(t *testing.T) {
	texto := "aaa | bbb\nccc | ddd\n"
	extractor := NewExtractorWithPDF(&MockPDFExtractor{Text: texto})

	rows, err := extractor.Extract([]byte("%PDF"), "carga.pdf", ",")
	require.NoError(t, err)
	// Sin encabezado reconocible todas las lineas son datos.
	require.Len(t, rows, 2)
	assert.Equal(t, "aaa", rows[0].Get("col_0"))
	assert.Equal(t, "ddd", rows[1].Get("col_1"))
}

func TestExtractPDFVacio(t *testing.T) {
	extractor := NewExtractorWithPDF(&MockPDFExtractor{Text: "   \n\n"})
	rows, err := extractor.Extract([]byte("%PDF"), "carga.pdf", ",")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowsFromTableFilasCortas(t *testing.T) {
	table := [][]string{
		{"rut", "instrumento", "moneda"},
		{"1-9", "FONDO A"},
	}
	rows := rowsFromTable(table)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Has(FieldMoneda))
	assert.Equal(t, "FONDO A", rows[0].Get(FieldInstrumento))
}
