package carga

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/api/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetArchivos lists upload jobs scoped to the caller's corredor.
func GetArchivos(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

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
		if corredorID := api.GetCorredorIDFromContext(ctx); corredorID != 0 {
			where = append(where, "a.corredor_id = "+arg(corredorID))
		}
		if v := strings.TrimSpace(r.URL.Query().Get("estado")); v != "" {
			where = append(where, "a.estado_proceso = "+arg(v))
		}
		clause := ""
		if len(where) > 0 {
			clause = " WHERE " + strings.Join(where, " AND ")
		}

		total, err := utils.CountTotal(ctx, pool, "SELECT COUNT(*) FROM archivos_carga a"+clause, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pag.SetPaginationStats(total)

		query := `
			SELECT a.id, a.corredor_id, a.nombre_original, a.modo_carga,
			       a.estado_proceso, COALESCE(a.detalle_proceso, ''),
			       COALESCE(a.resumen_proceso, '{}'::jsonb),
			       COALESCE(a.tamano_bytes, 0), COALESCE(a.checksum_sha256, ''),
			       a.tiempo_procesamiento_seg, a.creado_en
			FROM archivos_carga a` + clause + `
			ORDER BY a.id DESC
			LIMIT ` + arg(pag.Limit) + " OFFSET " + arg(pag.Offset)

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		archivos := make([]map[string]interface{}, 0, pag.Limit)
		for rows.Next() {
			var (
				id, corredorID, tamano int64
				nombre, modo, estado   string
				detalle, sum           string
				resumen                json.RawMessage
				tiempoSeg              *float64
				creadoEn               interface{}
			)
			if err := rows.Scan(&id, &corredorID, &nombre, &modo, &estado, &detalle,
				&resumen, &tamano, &sum, &tiempoSeg, &creadoEn); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			archivos = append(archivos, map[string]interface{}{
				"id":              id,
				"corredor_id":     corredorID,
				"nombre_original": nombre,
				"modo_carga":      modo,
				"estado_proceso":  estado,
				"detalle_proceso": detalle,
				"resumen":         resumen,
				"tamano_bytes":    tamano,
				"checksum_sha256": sum,
				"tiempo_seg":      tiempoSeg,
				"creado_en":       creadoEn,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"rows":       archivos,
			"pagination": pag,
		})
	}
}

// GetArchivo returns one upload job with its per-row errors.
func GetArchivo(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := archivoIDFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		query := `
			SELECT a.id, a.corredor_id, a.submitted_by, a.nombre_original,
			       a.ruta_almacenamiento, COALESCE(a.tipo_mime, ''),
			       COALESCE(a.tamano_bytes, 0), COALESCE(a.checksum_sha256, ''),
			       a.modo_carga, COALESCE(a.periodo_hint, ''), COALESCE(a.mercado_hint, ''),
			       a.delimitador, a.estado_proceso, COALESCE(a.detalle_proceso, ''),
			       COALESCE(a.resumen_proceso, '{}'::jsonb),
			       COALESCE(a.errores_por_fila, '[]'::jsonb),
			       a.started_at, a.finished_at, a.tiempo_procesamiento_seg, a.creado_en
			FROM archivos_carga a
			WHERE a.id = $1`
		args := []interface{}{id}
		if corredorID := api.GetCorredorIDFromContext(ctx); corredorID != 0 {
			query += " AND a.corredor_id = $2"
			args = append(args, corredorID)
		}

		var (
			archivoID, corredorID, tamano int64
			submittedBy                   *int64
			nombre, ruta, mime, sum       string
			modo, periodo, mercado, delim string
			estado, detalle               string
			resumen, errores              json.RawMessage
			startedAt, finishedAt         interface{}
			tiempoSeg                     *float64
			creadoEn                      interface{}
		)
		err = pool.QueryRow(ctx, query, args...).Scan(
			&archivoID, &corredorID, &submittedBy, &nombre, &ruta, &mime,
			&tamano, &sum, &modo, &periodo, &mercado, &delim,
			&estado, &detalle, &resumen, &errores,
			&startedAt, &finishedAt, &tiempoSeg, &creadoEn)
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"id":               archivoID,
			"corredor_id":      corredorID,
			"submitted_by":     submittedBy,
			"nombre_original":  nombre,
			"tipo_mime":        mime,
			"tamano_bytes":     tamano,
			"checksum_sha256":  sum,
			"modo_carga":       modo,
			"periodo_hint":     periodo,
			"mercado_hint":     mercado,
			"delimitador":      delim,
			"estado_proceso":   estado,
			"detalle_proceso":  detalle,
			"resumen":          resumen,
			"errores_por_fila": errores,
			"started_at":       startedAt,
			"finished_at":      finishedAt,
			"tiempo_seg":       tiempoSeg,
			"creado_en":        creadoEn,
		})
	}
}

func archivoIDFromRequest(r *http.Request) (int64, error) {
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
