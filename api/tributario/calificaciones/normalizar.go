package calificaciones

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/ingest"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NormalizarCalificacion rescales the stored factors of one entry so they
// sum to 1, recording the previous values in the audit trail. Entries whose
// factors sum to zero are rejected.
func NormalizarCalificacion(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer tx.Rollback(ctx)

		previos, factores, err := lockFactores(ctx, tx, id, api.GetCorredorIDFromContext(ctx))
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		normalized, err := ingest.NormalizeVector(factores)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := saveFactores(ctx, tx, id, normalized); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		nuevos := map[string]interface{}{}
		for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
			nuevos[ingest.FactorField(n)] = normalized[n-ingest.FirstFactor].String()
		}
		if err := appendHistorial(ctx, tx, id, api.GetUserIDFromContext(ctx),
			"normalizacion", previos, nuevos); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Audit("calificacion %d normalizada por usuario %s", id, api.GetUserIDFromContext(ctx))
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"id":       id,
			"factores": nuevos,
		})
	}
}

// lockFactores loads and locks the factor vector of one entry, returning the
// previous values both as decimals and as an audit snapshot.
func lockFactores(ctx context.Context, tx pgx.Tx, id, corredorID int64) (map[string]interface{}, [ingest.NumFactors]decimal.Decimal, error) {
	var factores [ingest.NumFactors]decimal.Decimal

	cols := make([]string, 0, ingest.NumFactors)
	for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
		cols = append(cols, ingest.FactorField(n)+"::text")
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM calificaciones_tributarias WHERE id = $1"
	args := []interface{}{id}
	if corredorID != 0 {
		query += " AND corredor_id = $2"
		args = append(args, corredorID)
	}
	query += " FOR UPDATE"

	raw := make([]string, ingest.NumFactors)
	dest := make([]interface{}, ingest.NumFactors)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		return nil, factores, err
	}

	factores, err := ingest.ScanFactores(raw)
	if err != nil {
		return nil, factores, err
	}
	previos := map[string]interface{}{}
	for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
		previos[ingest.FactorField(n)] = raw[n-ingest.FirstFactor]
	}
	return previos, factores, nil
}

func saveFactores(ctx context.Context, tx pgx.Tx, id int64, factores [ingest.NumFactors]decimal.Decimal) error {
	sets := make([]string, 0, ingest.NumFactors)
	args := []interface{}{id}
	for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
		args = append(args, factores[n-ingest.FirstFactor].String())
		sets = append(sets, fmt.Sprintf("%s = $%d", ingest.FactorField(n), len(args)))
	}
	sets = append(sets, "actualizado_en = now()")
	_, err := tx.Exec(ctx,
		"UPDATE calificaciones_tributarias SET "+strings.Join(sets, ", ")+" WHERE id = $1",
		args...)
	return err
}

func appendHistorial(ctx context.Context, tx pgx.Tx, calificacionID int64, userID, accion string,
	previos, nuevos map[string]interface{}) error {

	var usuarioID interface{}
	if uid, err := strconv.ParseInt(userID, 10, 64); err == nil {
		usuarioID = uid
	}
	prevJSON, err := json.Marshal(previos)
	if err != nil {
		return err
	}
	nuevosJSON, err := json.Marshal(nuevos)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO historial_calificaciones
			(calificacion_id, usuario_id, accion, descripcion_cambio, datos_previos, datos_nuevos)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		calificacionID, usuarioID, accion, accion+" de factores", prevJSON, nuevosJSON)
	return err
}
