package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDecisionMarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		want     string
	}{
		{"pending encodes as null", DecisionPending, "null"},
		{"normal encodes as N", DecisionNormal, `"N"`},
		{"limited encodes as L", DecisionLimited, `"L"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.decision)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecisionUnmarshalJSON(t *testing.T) {
	var d Decision
	if err := json.Unmarshal([]byte("null"), &d); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if d != DecisionPending {
		t.Errorf("Unmarshal(null) = %q, want pending", d)
	}

	if err := json.Unmarshal([]byte(`"L"`), &d); err != nil {
		t.Fatalf("Unmarshal(L) error = %v", err)
	}
	if d != DecisionLimited {
		t.Errorf("Unmarshal(L) = %q, want %q", d, DecisionLimited)
	}
}

func TestUpdateWireFormat(t *testing.T) {
	u := Update{
		Agent:  "analysis",
		Status: UpdateThinking,
		Stage:  1,
	}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	// kernel_decision must be present and null even before a terminal decision.
	kd, ok := raw["kernel_decision"]
	if !ok {
		t.Fatal("kernel_decision missing from update JSON")
	}
	if string(kd) != "null" {
		t.Errorf("kernel_decision = %s, want null", kd)
	}

	// done is omitted on non-final updates.
	if _, ok := raw["done"]; ok {
		t.Error("done should be omitted when false")
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(DecisionNormal); got != StatusCompleted {
		t.Errorf("StatusFor(Normal) = %q, want %q", got, StatusCompleted)
	}
	if got := StatusFor(DecisionLimited); got != StatusStopped {
		t.Errorf("StatusFor(Limited) = %q, want %q", got, StatusStopped)
	}
	if got := StatusFor(DecisionPending); got != StatusInProgress {
		t.Errorf("StatusFor(Pending) = %q, want %q", got, StatusInProgress)
	}
}

func TestSessionClone(t *testing.T) {
	now := time.Now().UTC()
	sess := &Session{
		ID:      "sess_1",
		Problem: "What is the capital of France?",
		StageResults: []StageResult{
			{Agent: "analysis", Stage: 1, Response: "Paris", CreatedAt: now},
		},
		Status:    StatusInProgress,
		CreatedAt: now,
	}

	cp := sess.Clone()
	cp.StageResults[0].Response = "mutated"
	cp.StageResults = append(cp.StageResults, StageResult{Agent: "research", Stage: 2})

	if sess.StageResults[0].Response != "Paris" {
		t.Error("Clone() shares stage result backing array with original")
	}
	if len(sess.StageResults) != 1 {
		t.Errorf("original stage results len = %d, want 1", len(sess.StageResults))
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")

	stageErr := ErrStageFailure("research", 2, cause)
	if !IsStageFailure(stageErr) {
		t.Error("IsStageFailure() = false for stage failure")
	}
	if IsKernelGateFailure(stageErr) {
		t.Error("IsKernelGateFailure() = true for stage failure")
	}
	if !errors.Is(stageErr, cause) {
		t.Error("stage failure does not unwrap to cause")
	}

	gateErr := ErrKernelGate(3, cause)
	if !IsKernelGateFailure(gateErr) {
		t.Error("IsKernelGateFailure() = false for gate failure")
	}
	if gateErr.Component != AgentKernel {
		t.Errorf("gate failure component = %q, want %q", gateErr.Component, AgentKernel)
	}

	wrapped := errors.Join(errors.New("outer"), ErrPersistence(cause))
	if !IsPersistenceFailure(wrapped) {
		t.Error("IsPersistenceFailure() = false through error chain")
	}
}

func TestErrorHTTPStatusCode(t *testing.T) {
	if got := ErrNotFound("no such session").HTTPStatusCode(); got != http.StatusNotFound {
		t.Errorf("not_found status = %d, want %d", got, http.StatusNotFound)
	}
	if got := ErrValidation("problem is required").HTTPStatusCode(); got != http.StatusBadRequest {
		t.Errorf("validation status = %d, want %d", got, http.StatusBadRequest)
	}
	if got := ErrKernelGate(1, errors.New("boom")).HTTPStatusCode(); got != http.StatusInternalServerError {
		t.Errorf("gate failure status = %d, want %d", got, http.StatusInternalServerError)
	}
}
