// Package calificaciones expone el CRUD del libro mayor de calificaciones
// tributarias con visibilidad por corredor.
package calificaciones

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/api/utils"
	"NuamTributario/internal/ingest"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var estadosValidos = map[string]bool{
	ingest.CalifPendiente: true,
	ingest.CalifAprobada:  true,
	ingest.CalifRechazada: true,
}

var factorSelect = `
	c.id, c.corredor_id, c.pais_id, c.pais_detectado_id, c.archivo_origen_id,
	c.identificador_cliente, c.instrumento, c.moneda, COALESCE(c.mercado, ''),
	c.ejercicio_fiscal, c.secuencia_evento,
	c.factor_8::text, c.factor_9::text, c.factor_10::text, c.factor_11::text,
	c.factor_12::text, c.factor_13::text, c.factor_14::text, c.factor_15::text,
	c.factor_16::text, c.factor_17::text, c.factor_18::text, c.factor_19::text,
	c.factor_actualizacion::text, COALESCE(c.observaciones, ''), c.estado,
	c.creado_en, c.actualizado_en`

func scanCalificacionRow(row pgx.Row) (map[string]interface{}, error) {
	var (
		id, corredorID             int64
		paisID, paisDetectadoID    *int64
		archivoOrigenID            *int64
		identificador, instrumento string
		moneda, mercado            string
		ejercicioFiscal            *int
		secuenciaEvento            *int64
		rawFactores                [ingest.NumFactors]string
		factorActualizacion        string
		observaciones, estado      string
		creadoEn, actualizadoEn    interface{}
	)
	dest := []interface{}{
		&id, &corredorID, &paisID, &paisDetectadoID, &archivoOrigenID,
		&identificador, &instrumento, &moneda, &mercado,
		&ejercicioFiscal, &secuenciaEvento,
	}
	for i := range rawFactores {
		dest = append(dest, &rawFactores[i])
	}
	dest = append(dest, &factorActualizacion, &observaciones, &estado, &creadoEn, &actualizadoEn)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	factores := make(map[string]string, ingest.NumFactors)
	for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
		factores[ingest.FactorField(n)] = rawFactores[n-ingest.FirstFactor]
	}
	return map[string]interface{}{
		"id":                    id,
		"corredor_id":           corredorID,
		"pais_id":               paisID,
		"pais_detectado_id":     paisDetectadoID,
		"archivo_origen_id":     archivoOrigenID,
		"identificador_cliente": identificador,
		"instrumento":           instrumento,
		"moneda":                moneda,
		"mercado":               mercado,
		"ejercicio_fiscal":      ejercicioFiscal,
		"secuencia_evento":      secuenciaEvento,
		"factores":              factores,
		"factor_actualizacion":  factorActualizacion,
		"observaciones":         observaciones,
		"estado":                estado,
		"creado_en":             creadoEn,
		"actualizado_en":        actualizadoEn,
	}, nil
}

// GetCalificaciones lists the ledger scoped to the caller's corredor, with
// optional filters and pagination.
func GetCalificaciones(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		corredorID := api.GetCorredorIDFromContext(ctx)

		pag, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		where := []string{}
		args := []interface{}{}
		arg := func(v interface{}) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}
		if corredorID != 0 {
			where = append(where, "c.corredor_id = "+arg(corredorID))
		}
		q := r.URL.Query()
		if v := strings.TrimSpace(q.Get("identificador_cliente")); v != "" {
			where = append(where, "c.identificador_cliente = "+arg(v))
		}
		if v := strings.TrimSpace(q.Get("instrumento")); v != "" {
			where = append(where, "c.instrumento ILIKE "+arg("%"+v+"%"))
		}
		if v := strings.TrimSpace(q.Get("mercado")); v != "" {
			where = append(where, "c.mercado = "+arg(v))
		}
		if v := strings.TrimSpace(q.Get("estado")); v != "" {
			where = append(where, "c.estado = "+arg(v))
		}
		if v := strings.TrimSpace(q.Get("ejercicio_fiscal")); v != "" {
			anio, convErr := strconv.Atoi(v)
			if convErr != nil {
				api.RespondWithError(w, http.StatusBadRequest, "ejercicio_fiscal invalido: "+v)
				return
			}
			where = append(where, "c.ejercicio_fiscal = "+arg(anio))
		}
		if v := strings.TrimSpace(q.Get("pais_id")); v != "" {
			id, convErr := strconv.ParseInt(v, 10, 64)
			if convErr != nil {
				api.RespondWithError(w, http.StatusBadRequest, "pais_id invalido: "+v)
				return
			}
			where = append(where, "c.pais_id = "+arg(id))
		}

		clause := ""
		if len(where) > 0 {
			clause = " WHERE " + strings.Join(where, " AND ")
		}

		total, err := utils.CountTotal(ctx, pool,
			"SELECT COUNT(*) FROM calificaciones_tributarias c"+clause, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pag.SetPaginationStats(total)

		query := "SELECT " + factorSelect + `
			FROM calificaciones_tributarias c` + clause + `
			ORDER BY c.identificador_cliente, c.instrumento
			LIMIT ` + arg(pag.Limit) + " OFFSET " + arg(pag.Offset)

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		result := make([]map[string]interface{}, 0, pag.Limit)
		for rows.Next() {
			item, err := scanCalificacionRow(rows)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			result = append(result, item)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"rows":       result,
			"pagination": pag,
		})
	}
}

// GetCalificacion returns one ledger entry by id.
func GetCalificacion(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		query := "SELECT " + factorSelect + ` FROM calificaciones_tributarias c WHERE c.id = $1`
		args := []interface{}{id}
		if corredorID := api.GetCorredorIDFromContext(ctx); corredorID != 0 {
			query += " AND c.corredor_id = $2"
			args = append(args, corredorID)
		}

		item, err := scanCalificacionRow(pool.QueryRow(ctx, query, args...))
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", item)
	}
}

type updateRequest struct {
	ID            int64             `json:"id"`
	Estado        string            `json:"estado"`
	Observaciones *string           `json:"observaciones"`
	Factores      map[string]string `json:"factores"`
}

// UpdateCalificacion edits estado, observaciones or factor values. Factor
// edits re-validate the suma <= 1 invariant and leave an audit trail.
func UpdateCalificacion(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}
		if req.Estado != "" && !estadosValidos[req.Estado] {
			api.RespondWithError(w, http.StatusBadRequest, "estado invalido: debe ser pendiente, aprobada o rechazada")
			return
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer tx.Rollback(ctx)

		previos, factores, err := lockFactores(ctx, tx, req.ID, api.GetCorredorIDFromContext(ctx))
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if len(req.Factores) > 0 {
			for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
				raw, ok := req.Factores[ingest.FactorField(n)]
				if !ok {
					continue
				}
				d, present, convErr := ingest.ToDecimal(raw)
				if convErr != nil {
					api.RespondWithError(w, http.StatusBadRequest, convErr.Error())
					return
				}
				if present {
					factores[n-ingest.FirstFactor] = ingest.QuantizeFactor(d)
				}
			}
			calif := &ingest.Calificacion{
				IdentificadorCliente: "-",
				Instrumento:          "-",
				Factores:             factores,
			}
			if err := calif.Validate(); err != nil {
				api.RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := saveFactores(ctx, tx, req.ID, factores); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		sets := []string{"actualizado_en = now()"}
		args := []interface{}{req.ID}
		if req.Estado != "" {
			args = append(args, req.Estado)
			sets = append(sets, fmt.Sprintf("estado = $%d", len(args)))
		}
		if req.Observaciones != nil {
			args = append(args, *req.Observaciones)
			sets = append(sets, fmt.Sprintf("observaciones = $%d", len(args)))
		}
		if userID := api.GetUserIDFromContext(ctx); userID != "" {
			if uid, convErr := strconv.ParseInt(userID, 10, 64); convErr == nil {
				args = append(args, uid)
				sets = append(sets, fmt.Sprintf("actualizado_por = $%d", len(args)))
			}
		}
		if _, err := tx.Exec(ctx,
			"UPDATE calificaciones_tributarias SET "+strings.Join(sets, ", ")+" WHERE id = $1",
			args...); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := appendHistorial(ctx, tx, req.ID, api.GetUserIDFromContext(ctx),
			"edicion manual", previos, map[string]interface{}{
				"estado":   req.Estado,
				"factores": req.Factores,
			}); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Audit("calificacion %d editada por usuario %s", req.ID, api.GetUserIDFromContext(ctx))
		api.RespondWithResult(w, true, "")
	}
}

func idFromRequest(r *http.Request) (int64, error) {
	if v := r.URL.Query().Get("id"); v != "" {
		return strconv.ParseInt(v, 10, 64)
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		return 0, fmt.Errorf("id requerido")
	}
	return req.ID, nil
}
