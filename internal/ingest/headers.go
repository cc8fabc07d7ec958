package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Canonical field names of the classification ledger.
const (
	FieldIdentificadorCliente = "identificador_cliente"
	FieldInstrumento          = "instrumento"
	FieldMoneda               = "moneda"
	FieldMercado              = "mercado"
	FieldEjercicioFiscal      = "ejercicio_fiscal"
	FieldPais                 = "pais"
	FieldObservaciones        = "observaciones"
	FieldSecuenciaEvento      = "secuencia_evento"
)

// FirstFactor and LastFactor bound the factor columns of the ledger.
const (
	FirstFactor = 8
	LastFactor  = 19
	NumFactors  = LastFactor - FirstFactor + 1
)

// FactorField returns the canonical name of the n-th factor column.
func FactorField(n int) string {
	return fmt.Sprintf("factor_%d", n)
}

// headerSynonyms maps localized/variant column names onto the canonical
// vocabulary. Keys are already lowercased and transliterated.
var headerSynonyms = map[string]string{
	"rut":                   FieldIdentificadorCliente,
	"nit":                   FieldIdentificadorCliente,
	"ruc":                   FieldIdentificadorCliente,
	"cliente":               FieldIdentificadorCliente,
	"id_cliente":            FieldIdentificadorCliente,
	"rut_cliente":           FieldIdentificadorCliente,
	"identificador":         FieldIdentificadorCliente,
	"identificador_cliente": FieldIdentificadorCliente,
	"documento":             FieldIdentificadorCliente,

	"instrumento":        FieldInstrumento,
	"nemo":               FieldInstrumento,
	"nemotecnico":        FieldInstrumento,
	"ticker":             FieldInstrumento,
	"codigo_instrumento": FieldInstrumento,

	"moneda":   FieldMoneda,
	"divisa":   FieldMoneda,
	"currency": FieldMoneda,

	"mercado":            FieldMercado,
	"mercado_de_valores": FieldMercado,
	"bolsa":              FieldMercado,
	"market":             FieldMercado,

	"anio":             FieldEjercicioFiscal,
	"ano":              FieldEjercicioFiscal,
	"year":             FieldEjercicioFiscal,
	"ejercicio":        FieldEjercicioFiscal,
	"ejercicio_fiscal": FieldEjercicioFiscal,
	"periodo_fiscal":   FieldEjercicioFiscal,

	"pais":        FieldPais,
	"country":     FieldPais,
	"codigo_pais": FieldPais,
	"pais_codigo": FieldPais,

	"observaciones": FieldObservaciones,
	"observacion":   FieldObservaciones,
	"comentario":    FieldObservaciones,
	"comentarios":   FieldObservaciones,
	"glosa":         FieldObservaciones,

	"secuencia":        FieldSecuenciaEvento,
	"secuencia_evento": FieldSecuenciaEvento,
	"numero_evento":    FieldSecuenciaEvento,
	"evento":           FieldSecuenciaEvento,
	"folio":            FieldSecuenciaEvento,
}

// factor_9, f9, fac_10, factor 11, factor_12 ...
var factorHeaderRe = regexp.MustCompile(`^(?:factor|fac|f)[\s_.-]*([0-9]{1,2})$`)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"ä", "a", "ë", "e", "ï", "i", "ö", "o", "ü", "u",
	"ñ", "n",
)

// NormalizeHeader maps an arbitrary column name onto the canonical field
// vocabulary. Pure and idempotent: canonical names map to themselves and the
// slug fallback is a fixed point.
func NormalizeHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = accentReplacer.Replace(s)

	slug := strings.Trim(slugRe.ReplaceAllString(s, "_"), "_")

	if canonical, ok := headerSynonyms[slug]; ok {
		return canonical
	}
	if m := factorHeaderRe.FindStringSubmatch(slug); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= FirstFactor && n <= LastFactor {
			return FactorField(n)
		}
	}
	return slug
}
