package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/titlesnap/media"
)

// ErrSuperseded is returned when a newer request in the same session replaced
// the one being served.
var ErrSuperseded = errors.New("superseded by a newer request")

// Ticket identifies one run within a session.
type Ticket struct {
	generation uint64
}

// SessionState is a point-in-time copy of a session.
type SessionState struct {
	ID        string    `json:"id"`
	Loading   bool      `json:"loading"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session holds the latest result for one client. only the most recent run
// may write to it.
type Session struct {
	ID string

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	outcome    *Outcome
	errMsg     string
	updatedAt  time.Time
}

func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, updatedAt: time.Now()}
}

// Begin starts a new run. the previous run, if still going, is cancelled and
// its ticket stops being current.
func (s *Session) Begin(parent context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.cancel = cancel
	s.loading = true
	s.updatedAt = time.Now()
	return ctx, Ticket{generation: s.generation}
}

// Commit stores outcome if t is still the current run.
func (s *Session) Commit(t Ticket, outcome Outcome) bool {
	return s.finish(t, &outcome, "")
}

// Fail records a failed run if t is still current.
func (s *Session) Fail(t Ticket, message string) bool {
	return s.finish(t, nil, message)
}

func (s *Session) finish(t Ticket, outcome *Outcome, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.generation != s.generation {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	s.outcome = outcome
	s.errMsg = errMsg
	s.updatedAt = time.Now()
	return true
}

func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := SessionState{ID: s.ID, Loading: s.loading, Error: s.errMsg, UpdatedAt: s.updatedAt}
	if s.outcome != nil {
		o := *s.outcome
		state.Outcome = &o
	}
	return state
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return 0
	}
	return now.Sub(s.updatedAt)
}

// touch marks the session as used so a concurrent Sweep keeps it.
func (s *Session) touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Sessions is a process-local registry of sessions keyed by id.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]*Session
	maxIdle time.Duration
}

func NewSessions(maxIdle time.Duration) *Sessions {
	return &Sessions{byID: make(map[string]*Session), maxIdle: maxIdle}
}

// Get returns the session for id, creating it when needed. an empty id gets a
// fresh generated one.
func (r *Sessions) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		if s, ok := r.byID[id]; ok {
			s.touch()
			return s
		}
	}
	s := NewSession(id)
	r.byID[s.ID] = s
	return s
}

// Lookup returns an existing session without creating one.
func (r *Sessions) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many went.
func (r *Sessions) Sweep(now time.Time) int {
	if r.maxIdle <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.byID {
		if s.idleSince(now) > r.maxIdle {
			delete(r.byID, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (r *Sessions) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// IdentifyInSession runs Identify as the current run of sess. when a newer run
// starts before this one finishes, the result is dropped and ErrSuperseded is
// returned instead.
func (s *IdentifyService) IdentifyInSession(ctx context.Context, sess *Session, src media.ImageSource) (Outcome, error) {
	runCtx, ticket := sess.Begin(ctx)
	outcome, err := s.Identify(runCtx, sess.ID, src)
	if err != nil {
		if !sess.Fail(ticket, userMessage(err)) {
			return Outcome{}, ErrSuperseded
		}
		return Outcome{}, err
	}
	if !sess.Commit(ticket, outcome) {
		s.log.Debug("discarding stale result", "session", sess.ID, "title", outcome.Title)
		return Outcome{}, ErrSuperseded
	}
	return outcome, nil
}
