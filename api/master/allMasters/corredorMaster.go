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

type CorredorRequest struct {
	ID            int64           `json:"id"`
	Nombre        string          `json:"nombre"`
	CodigoInterno string          `json:"codigo_interno"`
	PaisID        int64           `json:"pais_id"`
	EmailContacto string          `json:"email_contacto"`
	Config        json.RawMessage `json:"config"`
	Activo        *bool           `json:"activo"`
}

func friendlyCorredorError(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return "Ya existe un corredor con ese codigo interno."
	}
	if strings.Contains(msg, "foreign key") && strings.Contains(msg, "pais") {
		return "El pais indicado no existe."
	}
	return err.Error()
}

func GetCorredores(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := api.GetSessionFromContext(ctx)

		query := `
			SELECT c.id, c.nombre, c.codigo_interno, c.pais_id, p.nombre,
			       COALESCE(c.email_contacto, ''), c.activo, c.creado_en
			FROM corredores c
			JOIN paises p ON p.id = c.pais_id`
		args := []interface{}{}
		// Solo los administradores ven todos los corredores.
		if session != nil && !session.EsAdmin() {
			query += ` WHERE c.id = $1`
			args = append(args, session.CorredorID)
		}
		query += ` ORDER BY c.nombre`

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		corredores := make([]map[string]interface{}, 0)
		for rows.Next() {
			var (
				id, paisID           int64
				nombre, codigo, pais string
				email                string
				activo               bool
				creado               interface{}
			)
			if err := rows.Scan(&id, &nombre, &codigo, &paisID, &pais, &email, &activo, &creado); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			corredores = append(corredores, map[string]interface{}{
				"id":             id,
				"nombre":         nombre,
				"codigo_interno": codigo,
				"pais_id":        paisID,
				"pais":           pais,
				"email_contacto": email,
				"activo":         activo,
				"creado_en":      creado,
			})
		}
		api.RespondWithPayload(w, true, "", corredores)
	}
}

func CreateCorredor(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CorredorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		req.Nombre = strings.TrimSpace(req.Nombre)
		req.CodigoInterno = strings.TrimSpace(req.CodigoInterno)
		if req.Nombre == "" || req.CodigoInterno == "" || req.PaisID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "nombre, codigo_interno y pais_id son obligatorios")
			return
		}
		cfg := req.Config
		if len(cfg) == 0 {
			cfg = json.RawMessage("{}")
		}

		var id int64
		err := pool.QueryRow(r.Context(), `
			INSERT INTO corredores (nombre, codigo_interno, pais_id, email_contacto, config)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			RETURNING id`,
			req.Nombre, req.CodigoInterno, req.PaisID, strings.TrimSpace(req.EmailContacto), cfg).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyCorredorError(err))
			return
		}
		logger.Audit("corredor creado: %s (%s) por usuario %s", req.Nombre, req.CodigoInterno, api.GetUserIDFromContext(r.Context()))
		api.RespondWithPayload(w, true, "", map[string]interface{}{"id": id})
	}
}

func UpdateCorredor(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CorredorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}

		var paisID interface{}
		if req.PaisID != 0 {
			paisID = req.PaisID
		}
		tag, err := pool.Exec(r.Context(), `
			UPDATE corredores SET
				nombre         = COALESCE(NULLIF($2, ''), nombre),
				codigo_interno = COALESCE(NULLIF($3, ''), codigo_interno),
				pais_id        = COALESCE($4, pais_id),
				email_contacto = COALESCE(NULLIF($5, ''), email_contacto),
				config         = COALESCE($6, config),
				activo         = COALESCE($7, activo),
				actualizado_en = now()
			WHERE id = $1`,
			req.ID,
			strings.TrimSpace(req.Nombre),
			strings.TrimSpace(req.CodigoInterno),
			paisID,
			strings.TrimSpace(req.EmailContacto),
			nullableJSON(req.Config),
			req.Activo)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyCorredorError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}
		logger.Audit("corredor actualizado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(r.Context()))
		api.RespondWithResult(w, true, "")
	}
}

// DeleteCorredor elimina el corredor y, en cascada, sus usuarios, archivos y
// calificaciones.
func DeleteCorredor(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CorredorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}

		ctx := r.Context()
		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer tx.Rollback(ctx)

		// Los usuarios del corredor se eliminan junto con el corredor; el
		// perfil cae por la FK en cascada.
		if _, err := tx.Exec(ctx, `
			DELETE FROM usuarios
			WHERE id IN (SELECT usuario_id FROM usuarios_perfil WHERE corredor_id = $1)`, req.ID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		tag, err := tx.Exec(ctx, `DELETE FROM corredores WHERE id = $1`, req.ID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyCorredorError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Audit("corredor eliminado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(r.Context()))
		api.RespondWithResult(w, true, "")
	}
}
