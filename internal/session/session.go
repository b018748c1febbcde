// Package session owns the conversation state and the turn pipeline
// that connects routing, planning, execution and reporting.
package session

import (
	"sync"

	"github.com/google/uuid"

	"chatbi/internal/report"
)

// Session is one conversation: an append-only turn log plus the
// interrupt/draft state the user can set while a turn is in flight.
type Session struct {
	ID string

	mu          sync.Mutex
	turns       []report.Turn
	interrupted bool
	draft       string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Append adds a turn to the log.
func (s *Session) Append(t report.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// History returns a snapshot of the turn log.
func (s *Session) History() []report.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Reset clears the conversation, keeping the session identity.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.interrupted = false
	s.draft = ""
}

// Abort flags the in-flight turn for interruption and stores the draft
// the user typed while waiting. The draft becomes the next question.
func (s *Session) Abort(draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	s.draft = draft
}

// Interrupted reports whether an abort is pending.
func (s *Session) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// TakeDraft clears the interrupt state and returns the stored draft.
func (s *Session) TakeDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	s.interrupted = false
	s.draft = ""
	return d
}
