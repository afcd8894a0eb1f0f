package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lakonic/taskdeck/models"
	"github.com/lakonic/taskdeck/webutil"
)

// CookieName is the session cookie issued at login.
const CookieName = "taskdeck_session"

const sessionTokenBytes = 32

// Session is the server-held record associating a request with an
// authenticated user and role. Sessions are browser-session-scoped and are
// not persisted across restarts.
type Session struct {
	ID        string
	Token     string
	UserID    int64
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
}

type sessionContextKey struct{}

// WithSession attaches the session to the context. Used by the session
// loading middleware.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFrom extracts the authenticated session from the request context.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}

// SessionStore holds live sessions keyed by opaque token. The in-memory
// implementation is process-local; a multi-instance deployment would back
// this with a shared store instead.
type SessionStore interface {
	Put(s Session)
	Get(token string) (Session, bool)
	Delete(token string)
}

// MemorySessionStore is the default mutex-guarded in-process store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (m *MemorySessionStore) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
}

func (m *MemorySessionStore) Get(token string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

func (m *MemorySessionStore) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// SessionManager issues and resolves opaque session tokens.
type SessionManager struct {
	store   SessionStore
	nowFunc func() time.Time
}

func NewSessionManager(store SessionStore) *SessionManager {
	return &SessionManager{
		store:   store,
		nowFunc: time.Now,
	}
}

// Create issues a fresh session for the authenticated user.
func (sm *SessionManager) Create(user *models.User) (Session, error) {
	token, err := webutil.GenerateRandomToken(sessionTokenBytes)
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		CreatedAt: sm.nowFunc().UTC(),
	}
	sm.store.Put(session)
	return session, nil
}

// Lookup resolves a token to its session, if one exists.
func (sm *SessionManager) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	return sm.store.Get(token)
}

// Destroy removes the session unconditionally. Destroying an unknown token
// is a no-op.
func (sm *SessionManager) Destroy(token string) {
	if token == "" {
		return
	}
	sm.store.Delete(token)
}
