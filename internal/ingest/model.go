package ingest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Estados de proceso de un archivo de carga.
const (
	EstadoPendiente  = "pendiente"
	EstadoProcesando = "procesando"
	EstadoOK         = "ok"
	EstadoError      = "error"
)

// Modos de carga declarados por el usuario.
const (
	ModoFactor = "FACTOR"
	ModoMonto  = "MONTO"
)

// Estados de una calificacion.
const (
	CalifPendiente = "pendiente"
	CalifAprobada  = "aprobada"
	CalifRechazada = "rechazada"
)

// Pais is a country reference record.
type Pais struct {
	ID         int64
	Nombre     string
	CodigoISO3 string
}

// ArchivoCarga is one uploaded file and its processing lifecycle.
type ArchivoCarga struct {
	ID                     int64
	CorredorID             int64
	SubmittedBy            *int64
	NombreOriginal         string
	RutaAlmacenamiento     string
	TipoMime               string
	TamanoBytes            int64
	ChecksumSHA256         string
	ModoCarga              string
	PeriodoHint            string
	MercadoHint            string
	Delimitador            string
	EstadoProceso          string
	DetalleProceso         string
	Resumen                *ResumenProceso
	ErroresPorFila         []ErrorFila
	StartedAt              *time.Time
	FinishedAt             *time.Time
	TiempoProcesamientoSeg float64
}

// ResumenProceso is the aggregated job summary persisted on finalize.
type ResumenProceso struct {
	TotalRegistros int `json:"total_registros"`
	Nuevos         int `json:"nuevos"`
	Actualizados   int `json:"actualizados"`
	Rechazados     int `json:"rechazados"`
}

// ErrorFila captures one rejected row with its original raw values for
// operator review.
type ErrorFila struct {
	Fila  int               `json:"fila"`
	Error string            `json:"error"`
	Data  map[string]string `json:"data"`
}

// Calificacion is the ledger entity (calificacion tributaria).
type Calificacion struct {
	ID                   int64
	CorredorID           int64
	PaisID               *int64
	PaisDetectadoID      *int64
	ArchivoOrigenID      *int64
	IdentificadorCliente string
	Instrumento          string
	Moneda               string
	Mercado              string
	EjercicioFiscal      *int
	SecuenciaEvento      *int64
	Factores             [NumFactors]decimal.Decimal
	FactorActualizacion  decimal.Decimal
	Observaciones        string
	Estado               string
	CreadoPor            *int64
	ActualizadoPor       *int64
}

// Factor returns the value of factor_<n>.
func (c *Calificacion) Factor(n int) decimal.Decimal {
	return c.Factores[n-FirstFactor]
}

// SetFactor sets factor_<n>.
func (c *Calificacion) SetFactor(n int, v decimal.Decimal) {
	c.Factores[n-FirstFactor] = v
}

// SumaFactores returns the sum of factor_8..factor_19.
func (c *Calificacion) SumaFactores() decimal.Decimal {
	total := decimal.Zero
	for _, f := range c.Factores {
		total = total.Add(f)
	}
	return total
}

// Validate enforces the entity invariants checked on every save. A violation
// converts to a rejected-row outcome during ingestion, never a pipeline
// failure.
func (c *Calificacion) Validate() error {
	if c.IdentificadorCliente == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequiredField, FieldIdentificadorCliente)
	}
	if c.Instrumento == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequiredField, FieldInstrumento)
	}
	if suma := c.SumaFactores(); suma.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("la suma de los factores %d-%d no puede ser mayor a 1 (suma=%s)",
			FirstFactor, LastFactor, suma.String())
	}
	return nil
}

// HistorialEntry is an append-only audit record for a calificacion.
type HistorialEntry struct {
	CalificacionID int64
	UsuarioID      *int64
	Accion         string
	Descripcion    string
	DatosPrevios   map[string]interface{}
	DatosNuevos    map[string]interface{}
}
