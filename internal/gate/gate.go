// Package gate implements the kernel consult protocol: after each stage the
// sequencer asks the decision oracle whether the run may continue. Replies
// parse into a strict tagged verdict, continue or stop; anything else
// (transport failure, timeout, unknown status) is an error, never defaulted
// to a decision.
package gate

import (
	"context"
	"fmt"
)

// Verdict is the tagged result of one consult.
type Verdict int

const (
	// VerdictContinue means the kernel replied ok; the run proceeds.
	VerdictContinue Verdict = iota

	// VerdictStop means the kernel issued a hard stop; the run halts with a
	// Limited decision.
	VerdictStop
)

// String returns the wire-level status the verdict maps from.
func (v Verdict) String() string {
	if v == VerdictStop {
		return "stop"
	}
	return "ok"
}

// Query carries the session/stage context sent to the oracle.
type Query struct {
	SessionID string `json:"session_id,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Stage     int    `json:"stage,omitempty"`
	Problem   string `json:"problem,omitempty"`
}

// Gate consults the decision oracle. Check blocks until the oracle answers or
// ctx expires; a non-nil error means the consult failed and the caller must
// not treat it as either verdict.
type Gate interface {
	Name() string
	Check(ctx context.Context, q Query) (Verdict, error)
}

// ProtocolError reports a reply that was not exactly ok or stop.
type ProtocolError struct {
	// Status is the unexpected status value, if one was decodable.
	Status string

	// Detail describes what made the reply unusable.
	Detail string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("kernel protocol error: unexpected status %q", e.Status)
	}
	return fmt.Sprintf("kernel protocol error: %s", e.Detail)
}

// parseStatus maps a decoded reply status to its verdict. The ok/stop mapping
// is the only business logic the gate owns.
func parseStatus(status string) (Verdict, error) {
	switch status {
	case "ok":
		return VerdictContinue, nil
	case "stop":
		return VerdictStop, nil
	default:
		return VerdictContinue, &ProtocolError{Status: status}
	}
}

// Open is a gate that always allows continuation. It backs kernel.mode "off",
// where runs are never halted externally.
type Open struct{}

var _ Gate = Open{}

// Name implements Gate.
func (Open) Name() string { return "open" }

// Check implements Gate.
func (Open) Check(ctx context.Context, q Query) (Verdict, error) {
	return VerdictContinue, nil
}
