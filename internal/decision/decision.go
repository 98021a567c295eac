// Package decision implements the per-session outcome state machine.
//
// A session's decision starts Pending and moves exactly once to Normal or
// Limited. Both targets are absorbing: the first terminal write wins and
// every later write is rejected, which protects a finished run against a
// late-arriving kernel reply racing natural completion.
package decision

import (
	"sync"

	"github.com/moplabs/mopd/internal/domain"
)

// State tracks one session's outcome. Each running session owns exactly one
// State; it is passed by reference to the collaborators that need snapshots
// and is never shared across sessions.
type State struct {
	mu    sync.Mutex
	value domain.Decision
}

// New returns a State in Pending.
func New() *State {
	return &State{value: domain.DecisionPending}
}

// Value returns the current decision.
func (s *State) Value() domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Terminal reports whether a terminal decision has been asserted.
func (s *State) Terminal() bool {
	return s.Value().Terminal()
}

// Resolve attempts the single terminal transition. It returns true when this
// call performed the transition, false when the state was already terminal or
// d is not a terminal value. Losing callers must treat the existing value as
// authoritative.
func (s *State) Resolve(d domain.Decision) bool {
	if !d.Terminal() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != domain.DecisionPending {
		return false
	}
	s.value = d
	return true
}
