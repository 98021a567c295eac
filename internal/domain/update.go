package domain

// Synthetic agent identifiers used on updates that do not belong to a stage.
const (
	AgentSystem = "system"
	AgentKernel = "kernel"
)

// UpdateStatus labels one streamed progress event.
type UpdateStatus string

const (
	// UpdateStarting opens every stream, before the first stage runs.
	UpdateStarting UpdateStatus = "starting"

	// UpdateThinking announces that a stage has begun producing output.
	UpdateThinking UpdateStatus = "thinking"

	// UpdateComplete carries a stage's finished output.
	UpdateComplete UpdateStatus = "complete"

	// UpdateOK reports a kernel consult that allowed the run to continue.
	UpdateOK UpdateStatus = "ok"

	// UpdateStopped reports a kernel-issued hard stop.
	UpdateStopped UpdateStatus = "stopped"

	// UpdateError reports a stage or gate failure that aborted the run.
	UpdateError UpdateStatus = "error"
)

// Update is one streamed progress event. KernelDecision is always present on
// the wire: null until the session reaches a terminal decision, then the
// terminal value on the final update.
type Update struct {
	Agent          string       `json:"agent"`
	Status         UpdateStatus `json:"status"`
	Stage          int          `json:"stage,omitempty"`
	Message        string       `json:"message,omitempty"`
	Response       string       `json:"response,omitempty"`
	StoppedAgent   string       `json:"stopped_agent,omitempty"`
	Done           bool         `json:"done,omitempty"`
	KernelDecision Decision     `json:"kernel_decision"`
}
