package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyrisk/internal/types"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = time.Hour

type session struct {
	state     ViewState
	lastToken uint64
	lastSeen  time.Time
}

// Store keeps dashboard sessions in memory. All state transitions run
// through Reduce while the store lock is held, so concurrent actions on one
// session serialize at the reducer and never observe a torn state.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	clock    types.Clock
}

// NewStore creates an empty store. A non-positive ttl selects
// DefaultSessionTTL.
func NewStore(ttl time.Duration, clock types.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		clock:    clock,
	}
}

// Create registers a new idle session for date and returns its state.
func (s *Store) Create(date string) ViewState {
	now := s.clock.Now()
	state := NewViewState(uuid.NewString(), date)
	state.UpdatedAt = now

	s.mu.Lock()
	s.sessions[state.SessionID] = &session{state: state, lastSeen: now}
	s.mu.Unlock()
	return state
}

// Get returns the current state of a session.
func (s *Store) Get(id string) (ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	sess.lastSeen = s.clock.Now()
	return sess.state, nil
}

// Apply reduces ev into the session and returns the resulting state.
func (s *Store) Apply(id string, ev Event) (ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	s.applyLocked(sess, ev)
	return sess.state, nil
}

// Begin issues the next lookup token for a session and moves it to Loading.
// The returned state is the one the lookup should run against.
func (s *Store) Begin(id string) (uint64, ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookup(id)
	if err != nil {
		return 0, ViewState{}, err
	}
	sess.lastToken++
	token := sess.lastToken
	s.applyLocked(sess, LookupStarted{Token: token})
	return token, sess.state, nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.clock.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) {
			fresh[id] = sess
		}
	}
	removed := len(s.sessions) - len(fresh)
	s.sessions = fresh
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("expired dashboard sessions", "removed", n, "remaining", s.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) lookup(id string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundSession, "session not found", nil,
			map[string]any{"session_id": id})
	}
	return sess, nil
}

func (s *Store) applyLocked(sess *session, ev Event) {
	now := s.clock.Now()
	next := Reduce(sess.state, ev)
	if next != sess.state {
		next.UpdatedAt = now
	}
	sess.state = next
	sess.lastSeen = now
}
