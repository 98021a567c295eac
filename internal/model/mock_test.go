package model

import (
	"context"
	"strings"
	"testing"
)

func TestMockComplete(t *testing.T) {
	m := NewMock()

	resp, err := m.Complete(context.Background(), &Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a problem analysis agent."},
			{Role: RoleUser, Content: "What is the capital of France?"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	want := "[Mock Response] Based on the context: What is the capital of France?..."
	if resp.Text != want {
		t.Errorf("Complete() text = %q, want %q", resp.Text, want)
	}
	if resp.Model != "mock" {
		t.Errorf("Complete() model = %q, want %q", resp.Model, "mock")
	}
	if resp.Usage != nil {
		t.Errorf("Complete() usage = %+v, want nil", resp.Usage)
	}
}

func TestMockCompleteDeterministic(t *testing.T) {
	m := NewMock()
	req := &Request{
		Messages: []Message{
			{Role: RoleUser, Content: "Design a rate limiter."},
		},
	}

	first, err := m.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	second, err := m.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if first.Text != second.Text {
		t.Errorf("Complete() not deterministic: %q != %q", first.Text, second.Text)
	}
}

func TestMockCompleteTruncatesLongPrompts(t *testing.T) {
	m := NewMock()
	long := strings.Repeat("a", 500)

	resp, err := m.Complete(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: long}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	want := "[Mock Response] Based on the context: " + strings.Repeat("a", 100) + "..."
	if resp.Text != want {
		t.Errorf("Complete() text = %q, want %q", resp.Text, want)
	}
}

func TestMockCompleteUsesLastUserMessage(t *testing.T) {
	m := NewMock()

	resp, err := m.Complete(context.Background(), &Request{
		Messages: []Message{
			{Role: RoleUser, Content: "first question"},
			{Role: RoleAssistant, Content: "an answer"},
			{Role: RoleUser, Content: "second question"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(resp.Text, "second question") {
		t.Errorf("Complete() text = %q, want it to quote the last user message", resp.Text)
	}
	if strings.Contains(resp.Text, "first question") {
		t.Errorf("Complete() text = %q, quoted an earlier user message", resp.Text)
	}
}

func TestMockCompleteCancelledContext(t *testing.T) {
	m := NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Complete(ctx, &Request{}); err == nil {
		t.Fatal("Complete() with cancelled context returned nil error")
	}
}
