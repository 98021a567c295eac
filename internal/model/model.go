// Package model defines the text-generation collaborator the pipeline calls
// once per stage. Stage content is opaque to the orchestration core: a stage
// hands the provider a prompt and gets text back, nothing more.
package model

import "context"

// Role identifies a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Usage reports provider-side token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider's full (non-streamed) output.
type Response struct {
	Text  string
	Model string

	// Usage is nil when the provider does not report token counts; callers
	// fall back to local estimation.
	Usage *Usage
}

// Provider produces text for a stage. Complete blocks until the provider
// answers or ctx expires.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}
