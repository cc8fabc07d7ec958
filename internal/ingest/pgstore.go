package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgStore is the production Store over Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetOrCreatePais(ctx context.Context, codigoISO3 string) (*Pais, error) {
	// The no-op DO UPDATE makes RETURNING work for both branches without
	// ever duplicating on the unique code.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO paises (nombre, codigo_iso3)
		VALUES ($1, $1)
		ON CONFLICT (codigo_iso3) DO UPDATE SET codigo_iso3 = EXCLUDED.codigo_iso3
		RETURNING id, nombre, codigo_iso3
	`, codigoISO3)
	p := &Pais{}
	if err := row.Scan(&p.ID, &p.Nombre, &p.CodigoISO3); err != nil {
		return nil, fmt.Errorf("get-or-create pais %s: %w", codigoISO3, err)
	}
	return p, nil
}

func (s *PgStore) MarcarProcesando(ctx context.Context, archivoID int64, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE archivos_carga
		SET estado_proceso = $1, started_at = $2, actualizado_en = now()
		WHERE id = $3
	`, EstadoProcesando, startedAt, archivoID)
	return err
}

func (s *PgStore) FinalizarArchivo(ctx context.Context, archivoID int64, estado, detalle string,
	resumen ResumenProceso, errores []ErrorFila, startedAt, finishedAt time.Time) error {

	resumenJSON, err := json.Marshal(resumen)
	if err != nil {
		return err
	}
	if errores == nil {
		errores = []ErrorFila{}
	}
	erroresJSON, err := json.Marshal(errores)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE archivos_carga
		SET estado_proceso = $1,
		    detalle_proceso = $2,
		    resumen_proceso = $3,
		    errores_por_fila = $4,
		    finished_at = $5,
		    tiempo_procesamiento_seg = $6,
		    actualizado_en = now()
		WHERE id = $7
	`, estado, detalle, resumenJSON, erroresJSON, finishedAt,
		finishedAt.Sub(startedAt).Seconds(), archivoID)
	return err
}

// factorColumns in ledger order, factor_8 first.
var factorColumns = func() []string {
	cols := make([]string, 0, NumFactors)
	for n := FirstFactor; n <= LastFactor; n++ {
		cols = append(cols, FactorField(n))
	}
	return cols
}()

func (s *PgStore) UpsertCalificacion(ctx context.Context, calif *Calificacion) (bool, error) {
	if err := calif.Validate(); err != nil {
		return false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("no se pudo iniciar la transaccion: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM calificaciones_tributarias
		WHERE corredor_id = $1
		  AND identificador_cliente = $2
		  AND instrumento = $3
		  AND COALESCE(ejercicio_fiscal, 0) = COALESCE($4, 0)
		  AND COALESCE(mercado, '') = COALESCE($5, '')
		FOR UPDATE
	`, calif.CorredorID, calif.IdentificadorCliente, calif.Instrumento,
		calif.EjercicioFiscal, calif.Mercado).Scan(&existingID)

	created := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = true
		if calif.SecuenciaEvento == nil {
			seq, seqErr := nextSecuencia(ctx, tx)
			if seqErr != nil {
				return false, seqErr
			}
			calif.SecuenciaEvento = &seq
		}
		if insErr := insertCalificacion(ctx, tx, calif); insErr != nil {
			return false, insErr
		}
	case err != nil:
		return false, fmt.Errorf("busqueda de calificacion: %w", err)
	default:
		calif.ID = existingID
		if updErr := updateCalificacion(ctx, tx, calif); updErr != nil {
			return false, updErr
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit de calificacion: %w", err)
	}
	return created, nil
}

// nextSecuencia atomically advances the single-row global counter. Seeded at
// 9999 so the first assigned value is 10000.
func nextSecuencia(ctx context.Context, tx pgx.Tx) (int64, error) {
	var valor int64
	err := tx.QueryRow(ctx, `
		UPDATE secuencia_eventos SET valor = valor + 1 WHERE id = 1 RETURNING valor
	`).Scan(&valor)
	if err != nil {
		return 0, fmt.Errorf("asignacion de secuencia: %w", err)
	}
	return valor, nil
}

func insertCalificacion(ctx context.Context, tx pgx.Tx, calif *Calificacion) error {
	cols := []string{
		"corredor_id", "pais_id", "pais_detectado_id", "archivo_origen_id",
		"identificador_cliente", "instrumento", "moneda", "mercado",
		"ejercicio_fiscal", "secuencia_evento", "factor_actualizacion",
		"observaciones", "estado", "creado_por", "actualizado_por",
	}
	args := []interface{}{
		calif.CorredorID, calif.PaisID, calif.PaisDetectadoID, calif.ArchivoOrigenID,
		calif.IdentificadorCliente, calif.Instrumento, calif.Moneda, calif.Mercado,
		calif.EjercicioFiscal, calif.SecuenciaEvento, calif.FactorActualizacion.String(),
		calif.Observaciones, calif.Estado, calif.CreadoPor, calif.ActualizadoPor,
	}
	for i, col := range factorColumns {
		cols = append(cols, col)
		args = append(args, calif.Factores[i].String())
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(
		"INSERT INTO calificaciones_tributarias (%s) VALUES (%s) RETURNING id",
		joinColumns(cols), joinColumns(placeholders),
	)
	return tx.QueryRow(ctx, sql, args...).Scan(&calif.ID)
}

func updateCalificacion(ctx context.Context, tx pgx.Tx, calif *Calificacion) error {
	// A freshly resolved country overrides the stored one only when non-null
	// this pass; pais_detectado follows the same rule.
	sets := []string{
		"pais_id = COALESCE($1, pais_id)",
		"pais_detectado_id = COALESCE($2, pais_detectado_id)",
		"archivo_origen_id = COALESCE($3, archivo_origen_id)",
		"moneda = $4",
		"observaciones = $5",
		"factor_actualizacion = $6",
		"actualizado_por = COALESCE($7, actualizado_por)",
		"actualizado_en = now()",
	}
	args := []interface{}{
		calif.PaisID, calif.PaisDetectadoID, calif.ArchivoOrigenID,
		calif.Moneda, calif.Observaciones, calif.FactorActualizacion.String(),
		calif.ActualizadoPor,
	}
	for i, col := range factorColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, calif.Factores[i].String())
	}
	args = append(args, calif.ID)
	sql := fmt.Sprintf("UPDATE calificaciones_tributarias SET %s WHERE id = $%d",
		joinColumns(sets), len(args))
	_, err := tx.Exec(ctx, sql, args...)
	return err
}

func (s *PgStore) AppendHistorial(ctx context.Context, entry *HistorialEntry) error {
	previos, err := json.Marshal(entry.DatosPrevios)
	if err != nil {
		return err
	}
	nuevos, err := json.Marshal(entry.DatosNuevos)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO historial_calificaciones
			(calificacion_id, usuario_id, accion, descripcion_cambio, datos_previos, datos_nuevos)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.CalificacionID, entry.UsuarioID, entry.Accion, entry.Descripcion, previos, nuevos)
	return err
}

// ScanFactores parses the textual factor values returned by a query into the
// ledger vector. Shared with the HTTP handlers that read calificaciones.
func ScanFactores(raw []string) ([NumFactors]decimal.Decimal, error) {
	var out [NumFactors]decimal.Decimal
	if len(raw) != NumFactors {
		return out, fmt.Errorf("se esperaban %d factores, llegaron %d", NumFactors, len(raw))
	}
	for i, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return out, fmt.Errorf("factor %d invalido: %w", FirstFactor+i, err)
		}
		out[i] = d
	}
	return out, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
