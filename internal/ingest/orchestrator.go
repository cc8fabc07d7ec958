package ingest

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Notifier is the fire-and-forget notification collaborator invoked after a
// job finalizes. No delivery guarantee.
type Notifier interface {
	NotificarResumen(archivo *ArchivoCarga, resumen ResumenProceso, errores []ErrorFila)
}

// Orchestrator drives the ingestion pipeline for one uploaded job:
// pendiente -> procesando -> {ok, error}.
type Orchestrator struct {
	store     Store
	extractor *Extractor
	resolver  *CountryResolver
	notifier  Notifier
}

func NewOrchestrator(store Store, extractor *Extractor, resolver *CountryResolver, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		resolver:  resolver,
		notifier:  notifier,
	}
}

var numericSeqRe = regexp.MustCompile(`^[0-9]+$`)

// Procesar runs the whole pipeline for one job synchronously. Row-level
// failures are accumulated on the job; only storage-layer failures (the one
// irrecoverable condition) propagate as errors, possibly leaving the job
// observable in "procesando".
func (o *Orchestrator) Procesar(ctx context.Context, archivo *ArchivoCarga, data []byte) error {
	startedAt := time.Now()
	if err := o.store.MarcarProcesando(ctx, archivo.ID, startedAt); err != nil {
		return err
	}

	rows, err := o.extractor.Extract(data, archivo.NombreOriginal, archivo.Delimitador)
	if err != nil {
		// Structural failure: the whole job failed before any row was
		// attempted. No row-level errors are recorded.
		log.Printf("[carga] archivo %d: fallo estructural: %v", archivo.ID, err)
		return o.finalizar(ctx, archivo, EstadoError, err.Error(), ResumenProceso{}, nil, startedAt)
	}
	if len(rows) == 0 {
		return o.finalizar(ctx, archivo, EstadoError, ErrNoUsableRows.Error(), ResumenProceso{}, nil, startedAt)
	}

	resumen := ResumenProceso{}
	var errores []ErrorFila

	for i, row := range rows {
		fila := i + 2 // row 1 is the header
		resumen.TotalRegistros++

		created, rowErr := o.procesarFila(ctx, archivo, row)
		if rowErr != nil {
			resumen.Rechazados++
			errores = append(errores, ErrorFila{Fila: fila, Error: rowErr.Error(), Data: row})
			continue
		}
		if created {
			resumen.Nuevos++
		} else {
			resumen.Actualizados++
		}
	}

	estado := EstadoOK
	if resumen.Rechazados > 0 {
		estado = EstadoError
	}
	return o.finalizar(ctx, archivo, estado, "", resumen, errores, startedAt)
}

// procesarFila builds and upserts one calificacion. Each invocation runs in
// its own transaction boundary inside the store; one row's failure never
// rolls back another row's commit.
func (o *Orchestrator) procesarFila(ctx context.Context, archivo *ArchivoCarga, row Row) (bool, error) {
	calif := &Calificacion{
		CorredorID:           archivo.CorredorID,
		ArchivoOrigenID:      &archivo.ID,
		IdentificadorCliente: row.Get(FieldIdentificadorCliente),
		Instrumento:          row.Get(FieldInstrumento),
		Moneda:               row.GetDefault(FieldMoneda, "CLP"),
		Mercado:              row.GetDefault(FieldMercado, archivo.MercadoHint),
		Observaciones:        row.Get(FieldObservaciones),
		Estado:               CalifPendiente,
		CreadoPor:            archivo.SubmittedBy,
		ActualizadoPor:       archivo.SubmittedBy,
	}
	if calif.IdentificadorCliente == "" {
		return false, fmt.Errorf("%w: %s", ErrMissingRequiredField, FieldIdentificadorCliente)
	}
	if calif.Instrumento == "" {
		return false, fmt.Errorf("%w: %s", ErrMissingRequiredField, FieldInstrumento)
	}

	if raw := row.Get(FieldEjercicioFiscal); raw != "" {
		if anio, err := strconv.Atoi(raw); err == nil {
			calif.EjercicioFiscal = &anio
		}
	}
	if raw := row.Get(FieldSecuenciaEvento); numericSeqRe.MatchString(raw) {
		if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
			calif.SecuenciaEvento = &seq
		}
	}

	explicit, detectado, err := o.resolver.Resolve(ctx, row)
	if err != nil {
		return false, err
	}
	if explicit != nil {
		calif.PaisID = &explicit.ID
	} else if detectado != nil {
		calif.PaisID = &detectado.ID
	}
	if detectado != nil {
		calif.PaisDetectadoID = &detectado.ID
	}

	var factores [NumFactors]decimal.Decimal
	for n := FirstFactor; n <= LastFactor; n++ {
		d, ok, err := ToDecimal(row.Factor(n))
		if err != nil {
			return false, err
		}
		if ok {
			factores[n-FirstFactor] = d
		}
	}
	normalized, factorAct := ClassifyAndNormalize(factores)
	for i, v := range normalized {
		calif.Factores[i] = QuantizeFactor(v)
	}
	calif.FactorActualizacion = QuantizeFactor(factorAct)

	return o.store.UpsertCalificacion(ctx, calif)
}

func (o *Orchestrator) finalizar(ctx context.Context, archivo *ArchivoCarga, estado, detalle string,
	resumen ResumenProceso, errores []ErrorFila, startedAt time.Time) error {

	finishedAt := time.Now()
	if err := o.store.FinalizarArchivo(ctx, archivo.ID, estado, detalle, resumen, errores, startedAt, finishedAt); err != nil {
		return err
	}

	archivo.EstadoProceso = estado
	archivo.DetalleProceso = detalle
	archivo.Resumen = &resumen
	archivo.ErroresPorFila = errores
	archivo.StartedAt = &startedAt
	archivo.FinishedAt = &finishedAt
	archivo.TiempoProcesamientoSeg = finishedAt.Sub(startedAt).Seconds()

	if o.notifier != nil {
		go o.notifier.NotificarResumen(archivo, resumen, errores)
	}
	return nil
}
