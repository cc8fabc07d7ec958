package calificaciones

import (
	"encoding/json"
	"net/http"

	"NuamTributario/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GetHistorial returns the audit trail of one calificacion, newest first.
func GetHistorial(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		query := `
			SELECT h.id, h.usuario_id, h.accion, h.descripcion_cambio,
			       COALESCE(h.datos_previos, '{}'::jsonb),
			       COALESCE(h.datos_nuevos, '{}'::jsonb),
			       h.creado_en
			FROM historial_calificaciones h
			JOIN calificaciones_tributarias c ON c.id = h.calificacion_id
			WHERE h.calificacion_id = $1`
		args := []interface{}{id}
		if corredorID := api.GetCorredorIDFromContext(ctx); corredorID != 0 {
			query += " AND c.corredor_id = $2"
			args = append(args, corredorID)
		}
		query += " ORDER BY h.creado_en DESC"

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		entries := make([]map[string]interface{}, 0)
		for rows.Next() {
			var (
				entryID             int64
				usuarioID           *int64
				accion, descripcion string
				previos, nuevos     json.RawMessage
				creadoEn            interface{}
			)
			if err := rows.Scan(&entryID, &usuarioID, &accion, &descripcion, &previos, &nuevos, &creadoEn); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			entries = append(entries, map[string]interface{}{
				"id":                 entryID,
				"usuario_id":         usuarioID,
				"accion":             accion,
				"descripcion_cambio": descripcion,
				"datos_previos":      previos,
				"datos_nuevos":       nuevos,
				"creado_en":          creadoEn,
			})
		}
		api.RespondWithPayload(w, true, "", entries)
	}
}
