// Package engine implements the auto-trading core: per-user sessions, strategy
// matching, trade sizing, two-leg execution, and the scan scheduler that ties
// them together.
package engine

import (
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// recentTradeCap bounds the per-session ring of recently executed trades.
const recentTradeCap = 20

// Session holds the live auto-trading state for a single enrolled user:
// decrypted exchange credentials, the user's active strategies, and a bounded
// history of trades executed during this enrollment.
type Session struct {
	UserID     int64
	Strategies []domain.Strategy
	Creds      map[string]domain.Credentials
	EnrolledAt time.Time

	mu     sync.Mutex
	recent []domain.Trade
}

// NewSession creates a session for userID with the given strategies and
// per-exchange credentials.
func NewSession(userID int64, strategies []domain.Strategy, creds map[string]domain.Credentials) *Session {
	return &Session{
		UserID:     userID,
		Strategies: strategies,
		Creds:      creds,
		EnrolledAt: time.Now().UTC(),
	}
}

// RecordTrade appends a trade to the session's recent history, evicting the
// oldest entry once the ring is full.
func (s *Session) RecordTrade(t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, t)
	if len(s.recent) > recentTradeCap {
		s.recent = s.recent[len(s.recent)-recentTradeCap:]
	}
}

// RecentTrades returns a copy of the session's recent trades, newest last.
func (s *Session) RecentTrades() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Trade, len(s.recent))
	copy(out, s.recent)
	return out
}

// SessionRegistry is the set of currently enrolled users. Reads take a
// snapshot so scan cycles never hold the lock while executing trades.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[int64]*Session)}
}

// Add enrolls or replaces the session for sess.UserID.
func (r *SessionRegistry) Add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.UserID] = sess
}

// Remove unenrolls userID. Returns false when the user was not enrolled.
func (r *SessionRegistry) Remove(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID]; !ok {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Get returns the session for userID, or nil when the user is not enrolled.
func (r *SessionRegistry) Get(userID int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// Snapshot returns the currently enrolled sessions. The slice is a copy; the
// sessions themselves are shared and internally synchronized.
func (r *SessionRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of enrolled users.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
