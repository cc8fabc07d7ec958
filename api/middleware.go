package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"NuamTributario/api/auth"
	"NuamTributario/api/constants"
	"NuamTributario/internal/validation"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	SessionKey    contextKey = "session"
	CorredorIDKey contextKey = "corredor_id"
)

// SessionMiddleware resolves the caller's session from user_id and scopes
// the request to a corredor. Admins may address any corredor via the
// corredor_id query parameter; corredor and auditor roles are pinned to
// their own corredor.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "no se pudo leer el cuerpo de la peticion")
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		userID, err := validation.ExtractUserID(r)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, constants.ErrUserIDRequired)
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		session := auth.ValidateSession(userID)
		if session == nil {
			RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}

		corredorID := session.CorredorID
		if session.EsAdmin() {
			if v := r.URL.Query().Get("corredor_id"); v != "" {
				id, convErr := strconv.ParseInt(v, 10, 64)
				if convErr != nil {
					RespondWithError(w, http.StatusBadRequest, constants.ErrCorredorRequerido)
					return
				}
				corredorID = id
			}
		} else if v := r.URL.Query().Get("corredor_id"); v != "" {
			if id, convErr := strconv.ParseInt(v, 10, 64); convErr != nil || id != session.CorredorID {
				RespondWithError(w, http.StatusForbidden, constants.ErrSinAcceso)
				return
			}
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, UserIDKey, userID)
		ctx = context.WithValue(ctx, SessionKey, session)
		ctx = context.WithValue(ctx, CorredorIDKey, corredorID)
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

func GetSessionFromContext(ctx context.Context) *auth.UserSession {
	if session, ok := ctx.Value(SessionKey).(*auth.UserSession); ok {
		return session
	}
	return nil
}

// GetCorredorIDFromContext returns the corredor the request is scoped to.
// Zero means "all corredores" and only ever happens for admins.
func GetCorredorIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(CorredorIDKey).(int64); ok {
		return id
	}
	return 0
}

// RequireAdmin wraps a handler so only admin sessions reach it.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil || !session.EsAdmin() {
			RespondWithError(w, http.StatusForbidden, constants.ErrSinAcceso)
			return
		}
		next(w, r)
	}
}
