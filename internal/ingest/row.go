package ingest

import "strings"

// Row is one extracted file row keyed by canonical field name (see
// NormalizeHeader). Values are kept as raw strings; typed interpretation
// happens downstream.
type Row map[string]string

// Get returns the trimmed value for a canonical field, or "" when absent.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// GetDefault returns the trimmed value for field, or def when absent/blank.
func (r Row) GetDefault(field, def string) string {
	if v := r.Get(field); v != "" {
		return v
	}
	return def
}

// Has reports whether the row carries a non-blank value for field.
func (r Row) Has(field string) bool {
	return r.Get(field) != ""
}

// Factor returns the raw value of factor_<n>.
func (r Row) Factor(n int) string {
	return r.Get(FactorField(n))
}
