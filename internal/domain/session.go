// Package domain provides the core types shared across the pipeline:
// sessions, stage results, streamed updates, and canonical errors.
package domain

import (
	"encoding/json"
	"time"
)

// Decision is the outcome tracker value for a session. It starts Pending and
// moves exactly once to one of the two terminal values.
type Decision string

const (
	// DecisionPending means no terminal outcome has been asserted yet.
	DecisionPending Decision = ""

	// DecisionNormal means every stage ran and the kernel never stopped the run.
	DecisionNormal Decision = "N"

	// DecisionLimited means the kernel halted the run after a stage.
	DecisionLimited Decision = "L"
)

// Terminal reports whether d is one of the two absorbing values.
func (d Decision) Terminal() bool {
	return d == DecisionNormal || d == DecisionLimited
}

// MarshalJSON encodes a pending decision as JSON null so the stream and the
// persisted record expose the same three-valued wire form.
func (d Decision) MarshalJSON() ([]byte, error) {
	if d == DecisionPending {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON accepts null for pending alongside the terminal strings.
func (d *Decision) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DecisionPending
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Decision(s)
	return nil
}

// Status is the human-readable record label kept in lockstep with Decision.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusStopped    Status = "stopped"

	// StatusFailed marks a run aborted by a stage or gate failure. Aborted
	// runs never assert a terminal decision, so kernel_decision stays null
	// on these records.
	StatusFailed Status = "failed"
)

// StatusFor maps a decision to its record label.
func StatusFor(d Decision) Status {
	switch d {
	case DecisionNormal:
		return StatusCompleted
	case DecisionLimited:
		return StatusStopped
	default:
		return StatusInProgress
	}
}

// StageResult is one stage's output. Results are append-only and keep the
// order the stages ran in.
type StageResult struct {
	Agent     string    `json:"agent"`
	Stage     int       `json:"stage"`
	Response  string    `json:"response"`
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one run of the pipeline over a single problem statement. It is
// mutated only by the running sequencer and becomes immutable once Decision
// reaches a terminal value.
type Session struct {
	ID           string        `json:"id"`
	Problem      string        `json:"problem"`
	StageResults []StageResult `json:"stage_results"`
	Status       Status        `json:"status"`
	Decision     Decision      `json:"kernel_decision"`
	StoppedAgent string        `json:"stopped_agent,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the running pipeline.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.StageResults = make([]StageResult, len(s.StageResults))
	copy(cp.StageResults, s.StageResults)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
