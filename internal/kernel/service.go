// Package kernel hosts the embedded decision oracle: a sticky stop latch
// with a bounded audit history, plus the HTTP surface used to consult or
// operate it. The pipeline's gate consults the oracle either in-process or
// through the same /kernel routes a remote deployment would expose.
package kernel

import (
	"log/slog"
	"sync"
	"time"
)

// Reply status values of the decide protocol. Anything else on the wire is a
// protocol error on the consumer side, never a decision.
const (
	StatusOK   = "ok"
	StatusStop = "stop"
)

// Action labels one history entry.
type Action string

const (
	ActionDecide Action = "decide"
	ActionStop   Action = "stop"
	ActionReset  Action = "reset"
)

// DecideRequest carries the session/stage context of one consult.
type DecideRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Stage     int    `json:"stage,omitempty"`
	Problem   string `json:"problem,omitempty"`
}

// DecideResponse is the oracle's reply: status is "ok" or "stop".
type DecideResponse struct {
	Status string `json:"status"`
}

// HistoryEntry records one latch operation or decision.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Status    string    `json:"status,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Stage     int       `json:"stage,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

const defaultHistoryLimit = 100

// Service is the oracle. Stop arms the latch; every subsequent Decide replies
// stop until Reset. The latch is an operator action shared by all sessions,
// not a per-session toggle, and it never aborts a stage already running; it
// takes effect at each run's next consult.
type Service struct {
	logger *slog.Logger
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	stopped bool
	reason  string
	history []HistoryEntry
}

// New creates a Service with the given history limit; limit <= 0 uses the
// default of 100 entries.
func New(logger *slog.Logger, historyLimit int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		logger: logger.With(slog.String("component", "kernel")),
		limit:  historyLimit,
		now:    time.Now,
	}
}

// Decide returns stop while the latch is armed, ok otherwise, and records the
// consult in the history.
func (s *Service) Decide(req DecideRequest) DecideResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusOK
	if s.stopped {
		status = StatusStop
	}
	s.append(HistoryEntry{
		Timestamp: s.now().UTC(),
		Action:    ActionDecide,
		Status:    status,
		Agent:     req.Agent,
		Stage:     req.Stage,
		SessionID: req.SessionID,
	})

	if status == StatusStop {
		s.logger.Info("kernel stop issued",
			slog.String("agent", req.Agent),
			slog.Int("stage", req.Stage),
			slog.String("session_id", req.SessionID))
	}
	return DecideResponse{Status: status}
}

// Stop arms the latch.
func (s *Service) Stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.reason = reason
	s.append(HistoryEntry{
		Timestamp: s.now().UTC(),
		Action:    ActionStop,
		Detail:    reason,
	})
	s.logger.Warn("kernel latch armed", slog.String("reason", reason))
}

// Reset disarms the latch. Sessions already halted stay halted; only future
// consults are affected.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = false
	s.reason = ""
	s.append(HistoryEntry{
		Timestamp: s.now().UTC(),
		Action:    ActionReset,
	})
	s.logger.Info("kernel latch reset")
}

// Stopped reports whether the latch is armed.
func (s *Service) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// History returns a copy of the recorded entries, oldest first.
func (s *Service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// append records an entry, trimming the oldest once past the limit. Callers
// must hold s.mu.
func (s *Service) append(e HistoryEntry) {
	s.history = append(s.history, e)
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
}
