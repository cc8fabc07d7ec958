package allMaster

import (
	"encoding/json"
	"net/http"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PaisRequest struct {
	ID                int64           `json:"id"`
	Nombre            string          `json:"nombre"`
	CodigoISO3        string          `json:"codigo_iso3"`
	ReglasTributarias json.RawMessage `json:"reglas_tributarias"`
	Activo            *bool           `json:"activo"`
}

// friendlyPaisError converts database errors into user-facing messages.
func friendlyPaisError(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return "Ya existe un pais con ese codigo ISO3."
	}
	if strings.Contains(msg, "foreign key") {
		return "El pais esta referenciado por otros registros."
	}
	return err.Error()
}

func GetPaises(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rows, err := pool.Query(ctx, `
			SELECT id, nombre, codigo_iso3, COALESCE(reglas_tributarias, '{}'::jsonb), activo, creado_en
			FROM paises
			ORDER BY nombre`)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		paises := make([]map[string]interface{}, 0)
		for rows.Next() {
			var (
				id     int64
				nombre string
				iso3   string
				reglas json.RawMessage
				activo bool
				creado interface{}
			)
			if err := rows.Scan(&id, &nombre, &iso3, &reglas, &activo, &creado); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			paises = append(paises, map[string]interface{}{
				"id":                 id,
				"nombre":             nombre,
				"codigo_iso3":        iso3,
				"reglas_tributarias": reglas,
				"activo":             activo,
				"creado_en":          creado,
			})
		}
		api.RespondWithPayload(w, true, "", paises)
	}
}

func CreatePais(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		req.Nombre = strings.TrimSpace(req.Nombre)
		req.CodigoISO3 = strings.ToUpper(strings.TrimSpace(req.CodigoISO3))
		if req.Nombre == "" || req.CodigoISO3 == "" {
			api.RespondWithError(w, http.StatusBadRequest, "nombre y codigo_iso3 son obligatorios")
			return
		}
		reglas := req.ReglasTributarias
		if len(reglas) == 0 {
			reglas = json.RawMessage("{}")
		}

		var id int64
		err := pool.QueryRow(r.Context(), `
			INSERT INTO paises (nombre, codigo_iso3, reglas_tributarias)
			VALUES ($1, $2, $3)
			RETURNING id`,
			req.Nombre, req.CodigoISO3, reglas).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyPaisError(err))
			return
		}
		logger.Audit("pais creado: %s (%s) por usuario %s", req.Nombre, req.CodigoISO3, api.GetUserIDFromContext(r.Context()))
		api.RespondWithPayload(w, true, "", map[string]interface{}{"id": id})
	}
}

func UpdatePais(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}

		tag, err := pool.Exec(r.Context(), `
			UPDATE paises SET
				nombre             = COALESCE(NULLIF($2, ''), nombre),
				codigo_iso3        = COALESCE(NULLIF($3, ''), codigo_iso3),
				reglas_tributarias = COALESCE($4, reglas_tributarias),
				activo             = COALESCE($5, activo),
				actualizado_en     = now()
			WHERE id = $1`,
			req.ID,
			strings.TrimSpace(req.Nombre),
			strings.ToUpper(strings.TrimSpace(req.CodigoISO3)),
			nullableJSON(req.ReglasTributarias),
			req.Activo)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyPaisError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}
		logger.Audit("pais actualizado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(r.Context()))
		api.RespondWithResult(w, true, "")
	}
}

func DeletePais(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}
		// Soft delete: los corredores y calificaciones existentes siguen
		// referenciando el pais.
		tag, err := pool.Exec(r.Context(),
			`UPDATE paises SET activo = FALSE, actualizado_en = now() WHERE id = $1`, req.ID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyPaisError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}
		logger.Audit("pais desactivado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(r.Context()))
		api.RespondWithResult(w, true, "")
	}
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
