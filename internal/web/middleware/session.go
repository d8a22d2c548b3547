package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/biogate/internal/database"
	"github.com/kozaktomas/biogate/internal/logging"
)

const (
	sessionCookieName = "biogate_session"
	sessionDuration   = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

// Session is the explicit login state of a browser. AccountID is empty when
// no account is logged in.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasAccount reports whether the session carries a logged-in account. A nil
// session has no account.
func (s *Session) HasAccount() bool {
	return s != nil && s.AccountID != ""
}

// SessionManager handles session creation and validation. Sessions live in
// memory and, when a store is configured, are persisted so they survive a restart.
type SessionManager struct {
	secret   []byte
	secure   bool
	sessions map[string]*Session
	store    database.SessionStore
	log      *slog.Logger
	mu       sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a new session manager and starts its cleanup loop.
// store and log may be nil.
func NewSessionManager(secret string, secure bool, store database.SessionStore, log *slog.Logger) *SessionManager {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "biogate-dev-secret-change-in-production"
	}
	if log == nil {
		log = logging.Discard()
	}
	sm := &SessionManager{
		secret:   []byte(secret),
		secure:   secure,
		sessions: make(map[string]*Session),
		store:    store,
		log:      log,
		stop:     make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// CreateSession creates a new session for a logged-in account
func (sm *SessionManager) CreateSession(ctx context.Context, accountID string) (*Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}
	sessionID := base64.RawURLEncoding.EncodeToString(idBytes)

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = session
	sm.mu.Unlock()

	if sm.store != nil {
		if err := sm.store.Save(ctx, database.StoredSession{
			ID:        session.ID,
			AccountID: session.AccountID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		}); err != nil {
			sm.log.Warn("failed to persist session", "error", err)
		}
	}

	return session, nil
}

// GetSession retrieves a live session by ID, falling back to the store.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) *Session {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if ok {
		if time.Now().After(session.ExpiresAt) {
			sm.DeleteSession(ctx, sessionID)
			return nil
		}
		return session
	}

	if sm.store == nil {
		return nil
	}
	stored, err := sm.store.Get(ctx, sessionID)
	if err != nil {
		sm.log.Warn("failed to load session", "error", err)
		return nil
	}
	if stored == nil {
		return nil
	}
	session = &Session{
		ID:        stored.ID,
		AccountID: stored.AccountID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}
	sm.mu.Lock()
	sm.sessions[sessionID] = session
	sm.mu.Unlock()
	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if sm.store != nil {
		if err := sm.store.Delete(ctx, sessionID); err != nil {
			sm.log.Warn("failed to delete session", "error", err)
		}
	}
}

// Count returns the number of sessions held in memory.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// removeExpired drops expired sessions from memory and the store.
func (sm *SessionManager) removeExpired(ctx context.Context) {
	now := time.Now()
	sm.mu.Lock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	if sm.store != nil {
		n, err := sm.store.DeleteExpired(ctx)
		if err != nil {
			sm.log.Warn("failed to delete expired sessions", "error", err)
		} else if n > 0 {
			sm.log.Debug("deleted expired sessions", "count", n)
		}
	}
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.removeExpired(context.Background())
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// SetSessionCookie sets the signed session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	signature := sm.signData(session.ID)
	cookieValue := session.ID + "." + signature

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the session from the signed cookie or a
// bearer token. It returns nil when there is none.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sessionID, signature, ok := strings.Cut(cookie.Value, ".")
		if ok && sm.verifySignature(sessionID, signature) {
			if session := sm.GetSession(r.Context(), sessionID); session != nil {
				return session
			}
		}
	}

	if sessionID, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if session := sm.GetSession(r.Context(), sessionID); session != nil {
			return session
		}
	}

	return nil
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SessionData is a helper struct for JSON responses
type SessionData struct {
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
}

// ToJSON returns the session data for JSON response
func (s *Session) ToJSON() SessionData {
	return SessionData{
		SessionID: s.ID,
		AccountID: s.AccountID,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	}
}

// MarshalJSON implements json.Marshaler
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSON())
}
