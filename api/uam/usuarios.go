package uam

import (
	"encoding/json"
	"net/http"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

var rolesValidos = map[string]bool{
	"admin":    true,
	"corredor": true,
	"auditor":  true,
}

type UsuarioRequest struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Nombre     string `json:"nombre"`
	Rol        string `json:"rol"`
	CorredorID int64  `json:"corredor_id"`
	Activo     *bool  `json:"activo"`
}

func friendlyUsuarioError(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return "Ya existe un usuario con ese email."
	}
	if strings.Contains(msg, "usuarios_perfil_corredor_obligatorio") {
		return "Los roles corredor y auditor requieren un corredor asignado."
	}
	if strings.Contains(msg, "foreign key") && strings.Contains(msg, "corredor") {
		return "El corredor indicado no existe."
	}
	return err.Error()
}

func GetUsuarios(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := api.GetSessionFromContext(ctx)

		query := `
			SELECT u.id, u.email, u.activo, p.nombre, p.rol, COALESCE(p.corredor_id, 0)
			FROM usuarios u
			JOIN usuarios_perfil p ON p.usuario_id = u.id`
		args := []interface{}{}
		if session != nil && !session.EsAdmin() {
			query += ` WHERE p.corredor_id = $1`
			args = append(args, session.CorredorID)
		}
		query += ` ORDER BY u.email`

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		usuarios := make([]map[string]interface{}, 0)
		for rows.Next() {
			var (
				id, corredorID     int64
				email, nombre, rol string
				activo             bool
			)
			if err := rows.Scan(&id, &email, &activo, &nombre, &rol, &corredorID); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			usuarios = append(usuarios, map[string]interface{}{
				"id":          id,
				"email":       email,
				"nombre":      nombre,
				"rol":         rol,
				"corredor_id": corredorID,
				"activo":      activo,
			})
		}
		api.RespondWithPayload(w, true, "", usuarios)
	}
}

func CreateUsuario(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UsuarioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.Nombre = strings.TrimSpace(req.Nombre)
		req.Rol = strings.ToLower(strings.TrimSpace(req.Rol))
		if req.Email == "" || req.Password == "" || req.Nombre == "" {
			api.RespondWithError(w, http.StatusBadRequest, "email, password y nombre son obligatorios")
			return
		}
		if !rolesValidos[req.Rol] {
			api.RespondWithError(w, http.StatusBadRequest, "rol invalido: debe ser admin, corredor o auditor")
			return
		}
		if req.Rol != "admin" && req.CorredorID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "los roles corredor y auditor requieren corredor_id")
			return
		}

		ctx := r.Context()
		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer tx.Rollback(ctx)

		var userID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO usuarios (email, password) VALUES ($1, $2) RETURNING id`,
			req.Email, req.Password).Scan(&userID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyUsuarioError(err))
			return
		}

		var corredorID interface{}
		if req.CorredorID != 0 {
			corredorID = req.CorredorID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO usuarios_perfil (usuario_id, nombre, rol, corredor_id)
			VALUES ($1, $2, $3, $4)`,
			userID, req.Nombre, req.Rol, corredorID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyUsuarioError(err))
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Audit("usuario creado: %s rol=%s por usuario %s", req.Email, req.Rol, api.GetUserIDFromContext(ctx))
		api.RespondWithPayload(w, true, "", map[string]interface{}{"id": userID})
	}
}

func UpdateUsuario(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UsuarioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}
		req.Rol = strings.ToLower(strings.TrimSpace(req.Rol))
		if req.Rol != "" && !rolesValidos[req.Rol] {
			api.RespondWithError(w, http.StatusBadRequest, "rol invalido: debe ser admin, corredor o auditor")
			return
		}

		ctx := r.Context()
		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE usuarios SET
				email          = COALESCE(NULLIF($2, ''), email),
				password       = COALESCE(NULLIF($3, ''), password),
				activo         = COALESCE($4, activo),
				actualizado_en = now()
			WHERE id = $1`,
			req.ID, strings.ToLower(strings.TrimSpace(req.Email)), req.Password, req.Activo)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyUsuarioError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}

		var corredorID interface{}
		if req.CorredorID != 0 {
			corredorID = req.CorredorID
		}
		if _, err := tx.Exec(ctx, `
			UPDATE usuarios_perfil SET
				nombre         = COALESCE(NULLIF($2, ''), nombre),
				rol            = COALESCE(NULLIF($3, ''), rol),
				corredor_id    = COALESCE($4, corredor_id),
				activo         = COALESCE($5, activo),
				actualizado_en = now()
			WHERE usuario_id = $1`,
			req.ID, strings.TrimSpace(req.Nombre), req.Rol, corredorID, req.Activo); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyUsuarioError(err))
			return
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Audit("usuario actualizado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(ctx))
		api.RespondWithResult(w, true, "")
	}
}

func DeleteUsuario(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UsuarioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.ID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id requerido")
			return
		}
		tag, err := pool.Exec(r.Context(), `DELETE FROM usuarios WHERE id = $1`, req.ID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyUsuarioError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
			return
		}
		logger.Audit("usuario eliminado: id=%d por usuario %s", req.ID, api.GetUserIDFromContext(r.Context()))
		api.RespondWithResult(w, true, "")
	}
}
