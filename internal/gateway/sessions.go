package gateway

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

// ClientIDHeader distinguishes several editor windows of the same user
const ClientIDHeader = "X-Client-ID"

// Registry defaults
const (
	DefaultSessionIdleTTL     = 30 * time.Minute
	DefaultMaxSessionsPerUser = 16
)

// SessionLimits bounds the registry. Zero values select the defaults.
type SessionLimits struct {
	IdleTTL    time.Duration
	MaxPerUser int
}

type sessionEntry struct {
	session  *orchestration.Session
	user     string
	lastUsed time.Time
}

// SessionRegistry hands out one orchestration session per user and client,
// so a new generation from the same editor supersedes the previous one while
// other users are unaffected. Sessions without an attempt in flight are
// dropped once idle for longer than the TTL, and each user holds at most
// MaxPerUser sessions.
type SessionRegistry struct {
	orchestrator *orchestration.Orchestrator
	limits       SessionLimits
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(orchestrator *orchestration.Orchestrator, limits SessionLimits) *SessionRegistry {
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = DefaultSessionIdleTTL
	}
	if limits.MaxPerUser <= 0 {
		limits.MaxPerUser = DefaultMaxSessionsPerUser
	}
	return &SessionRegistry{
		orchestrator: orchestrator,
		limits:       limits,
		now:          time.Now,
		sessions:     make(map[string]*sessionEntry),
	}
}

// Get returns the session for key, creating it on first use
func (r *SessionRegistry) Get(key string) *orchestration.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	if entry, ok := r.sessions[key]; ok {
		entry.lastUsed = now
		return entry.session
	}

	user := sessionUser(key)
	if r.count(user) >= r.limits.MaxPerUser {
		r.evictOldest(user)
	}

	entry := &sessionEntry{
		session:  r.orchestrator.NewSession(),
		user:     user,
		lastUsed: now,
	}
	r.sessions[key] = entry
	return entry.session
}

// Lookup returns the session for key without creating one
func (r *SessionRegistry) Lookup(key string) (*orchestration.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	entry, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	entry.lastUsed = now
	return entry.session, true
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep drops idle sessions. Callers hold r.mu.
func (r *SessionRegistry) sweep(now time.Time) {
	for key, entry := range r.sessions {
		if now.Sub(entry.lastUsed) > r.limits.IdleTTL && !entry.session.Active() {
			delete(r.sessions, key)
		}
	}
}

func (r *SessionRegistry) count(user string) int {
	n := 0
	for _, entry := range r.sessions {
		if entry.user == user {
			n++
		}
	}
	return n
}

// evictOldest removes the user's least recently used session, preferring
// sessions without an attempt in flight. Callers hold r.mu.
func (r *SessionRegistry) evictOldest(user string) {
	var (
		victim string
		oldest *sessionEntry
	)
	for key, entry := range r.sessions {
		if entry.user != user {
			continue
		}
		if oldest == nil || older(entry, oldest) {
			victim, oldest = key, entry
		}
	}
	if oldest == nil {
		return
	}

	oldest.session.Cancel()
	delete(r.sessions, victim)
	log.Printf(`{"level":"info","message":"Evicted generation session","session":"%s"}`, victim)
}

// older orders idle sessions before active ones, then by last use
func older(a, b *sessionEntry) bool {
	aActive, bActive := a.session.Active(), b.session.Active()
	if aActive != bActive {
		return !aActive
	}
	return a.lastUsed.Before(b.lastUsed)
}

func sessionUser(key string) string {
	user, _, _ := strings.Cut(key, "/")
	return user
}

// sessionKey identifies the caller's session from the user and client id
func sessionKey(c *gin.Context, userID string) string {
	clientID := c.GetHeader(ClientIDHeader)
	if clientID == "" {
		clientID = c.Query("client_id")
	}
	if clientID == "" {
		clientID = "default"
	}
	if userID == "" {
		userID = "anonymous"
	}
	return userID + "/" + clientID
}
