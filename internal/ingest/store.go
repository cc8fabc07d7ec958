package ingest

import (
	"context"
	"time"
)

// Store is the persistence boundary of the ingestion pipeline. The ledger is
// a relational store; the production implementation lives in pgstore.go and
// tests use an in-memory fake.
type Store interface {
	// GetOrCreatePais finds a country by ISO3-like code, creating a
	// placeholder record (name = code) when the code is unknown. Never
	// duplicates on the unique code.
	GetOrCreatePais(ctx context.Context, codigoISO3 string) (*Pais, error)

	// MarcarProcesando stamps the job start and moves it to "procesando"
	// before any row is read.
	MarcarProcesando(ctx context.Context, archivoID int64, startedAt time.Time) error

	// FinalizarArchivo persists the terminal state, summary, per-row errors
	// and elapsed time of a job.
	FinalizarArchivo(ctx context.Context, archivoID int64, estado, detalle string,
		resumen ResumenProceso, errores []ErrorFila, startedAt, finishedAt time.Time) error

	// UpsertCalificacion finds-or-creates/updates a calificacion keyed by
	// (corredor, identificador_cliente, instrumento, ejercicio_fiscal,
	// mercado) inside one atomic transaction, assigning the event sequence
	// from the global counter when unset. Returns whether a new record was
	// created.
	UpsertCalificacion(ctx context.Context, calif *Calificacion) (bool, error)

	// AppendHistorial writes one audit-trail entry.
	AppendHistorial(ctx context.Context, entry *HistorialEntry) error
}
