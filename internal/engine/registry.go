package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/model"
)

// Registry holds the live session engines, keyed by session ID. Each
// session is owned by exactly one engine instance; the registry only hands
// out that single owner.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// PutIfAbsent registers s unless the candidate already has a live session
// on the same test, in which case the existing session wins. The lookup and
// the insert share one critical section, so concurrent starts for the same
// (candidate, test) pair settle on a single engine. Terminal leftovers are
// evicted in the same section; their result records have already left for
// the database.
func (r *Registry) PutIfAbsent(s *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.sessions {
		if existing.CandidateID != s.CandidateID || existing.TestID() != s.TestID() {
			continue
		}
		if existing.Phase() != model.PhaseTerminal {
			return existing, false
		}
		delete(r.sessions, id)
	}
	r.sessions[s.ID] = s
	return s, true
}

// Get returns the session for an ID, or nil.
func (r *Registry) Get(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// FindByCandidateAndTest returns a candidate's live session on a test, or
// nil. Used to make session creation idempotent across reloads.
func (r *Registry) FindByCandidateAndTest(candidateID int, testID uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CandidateID == candidateID && s.TestID() == testID {
			return s
		}
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
