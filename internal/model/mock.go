package model

import (
	"context"
	"fmt"
)

const mockPreviewLen = 100

// Mock returns deterministic canned text without any network call. It backs
// keyless deployments and tests: the reply is a pure function of the prompt,
// so a given stage and problem always produce the same output.
type Mock struct{}

var _ Provider = (*Mock)(nil)

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Complete implements Provider.
func (m *Mock) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preview := lastUserContent(req.Messages)
	if len(preview) > mockPreviewLen {
		preview = preview[:mockPreviewLen]
	}
	return &Response{
		Text:  fmt.Sprintf("[Mock Response] Based on the context: %s...", preview),
		Model: "mock",
	}, nil
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
