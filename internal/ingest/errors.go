package ingest

import "errors"

// Sentinel errors for the ingestion pipeline. Row-level errors are caught by
// the orchestrator and recorded on the job; structural errors finalize the
// whole job as "error".
var (
	ErrUnsupportedFormat    = errors.New("formato de archivo no soportado")
	ErrInvalidDecimal       = errors.New("valor decimal invalido")
	ErrZeroTotal            = errors.New("la suma de los factores es cero, no se puede normalizar")
	ErrMissingRequiredField = errors.New("campo obligatorio faltante")
	ErrNoUsableRows         = errors.New("el archivo no contiene filas utilizables")
)
