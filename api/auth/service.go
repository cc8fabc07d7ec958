package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"NuamTributario/internal/logger"
	"NuamTributario/internal/serviceiface"
)

// UserSession is the in-memory session the gateway hands out on login and
// the middleware resolves on every proxied request.
type UserSession struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	Nombre        string `json:"nombre"`
	Email         string `json:"email"`
	Rol           string `json:"rol"`
	CorredorID    int64  `json:"corredor_id,omitempty"`
	LastLoginTime string `json:"last_login_time"`
	ClientIP      string `json:"client_ip"`
	IsLoggedIn    bool   `json:"is_logged_in"`
}

// EsAdmin reports whether the session belongs to a platform administrator.
func (s *UserSession) EsAdmin() bool { return s.Rol == "admin" }

type AuthService struct {
	db           *sql.DB
	maxUsers     int
	sessionTTL   time.Duration
	sessions     map[string]*UserSession
	userPointers map[string]*UserSession
	lastSeen     map[string]time.Time
	mu           sync.Mutex
	stopCh       chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers int) *AuthService {
	return &AuthService{
		db:           db,
		maxUsers:     maxUsers,
		sessionTTL:   12 * time.Hour,
		sessions:     make(map[string]*UserSession),
		userPointers: make(map[string]*UserSession),
		lastSeen:     make(map[string]time.Time),
		stopCh:       make(chan struct{}),
	}
}

var _ serviceiface.Service = (*AuthService)(nil)

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

// Login validates credentials against usuarios/usuarios_perfil and returns
// a fresh session (or the existing one if the user is already logged in).
func (a *AuthService) Login(email, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, session := range a.sessions {
		if session.Email == email && session.IsLoggedIn {
			session.LastLoginTime = time.Now().Format(time.RFC3339)
			session.ClientIP = clientIP
			a.lastSeen[session.SessionID] = time.Now()
			logger.Audit("usuario %s reingreso, se devuelve la sesion existente", email)
			return session, nil
		}
	}

	if len(a.sessions) >= a.maxUsers {
		return nil, errors.New("maximo de usuarios concurrentes alcanzado")
	}

	var (
		userID     int64
		nombre     string
		rol        string
		corredorID sql.NullInt64
	)
	query := `
	SELECT u.id, p.nombre, p.rol, p.corredor_id
	FROM usuarios u
	JOIN usuarios_perfil p ON p.usuario_id = u.id
	WHERE u.email = $1 AND u.password = $2 AND u.activo AND p.activo
	`
	err := a.db.QueryRow(query, email, password).Scan(&userID, &nombre, &rol, &corredorID)
	if err != nil {
		return nil, errors.New("credenciales invalidas o usuario inexistente")
	}

	session := &UserSession{
		SessionID:     generateSessionID(),
		UserID:        fmt.Sprintf("%d", userID),
		Nombre:        nombre,
		Email:         email,
		Rol:           rol,
		CorredorID:    corredorID.Int64,
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}
	a.sessions[session.SessionID] = session
	a.userPointers[session.UserID] = session
	a.lastSeen[session.SessionID] = time.Now()

	logger.Audit("usuario ingreso: %s (rol %s)", email, rol)
	return session, nil
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.sessions[sessionID]
	if !exists {
		return errors.New("sesion no encontrada")
	}
	delete(a.sessions, sessionID)
	delete(a.userPointers, session.UserID)
	delete(a.lastSeen, sessionID)

	logger.Audit("usuario salio: %s", session.Email)
	return nil
}

// ValidateSessionByUser resolves the active session for a user_id, touching
// its last-seen timestamp. Returns nil when no session exists.
func (a *AuthService) ValidateSessionByUser(userID string) *UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.userPointers[userID]
	if !ok || !session.IsLoggedIn {
		return nil
	}
	a.lastSeen[session.SessionID] = time.Now()
	return session
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.expireStale()
		}
	}
}

func (a *AuthService) expireStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := time.Now().Add(-a.sessionTTL)
	for id, seen := range a.lastSeen {
		if seen.Before(cutoff) {
			if session, ok := a.sessions[id]; ok {
				delete(a.userPointers, session.UserID)
				logger.Audit("sesion expirada: %s", session.Email)
			}
			delete(a.sessions, id)
			delete(a.lastSeen, id)
		}
	}
}

func generateSessionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

var globalAuthService *AuthService

// SetGlobalAuthService wires the instance used by the middleware and the
// gateway handlers.
func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// ValidateSession resolves a session by user_id via the global service.
func ValidateSession(userID string) *UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.ValidateSessionByUser(userID)
}

// GetActiveSessions returns active sessions from the global AuthService.
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetActiveSessions()
}
