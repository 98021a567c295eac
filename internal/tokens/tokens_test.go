package tokens

import (
	"errors"
	"testing"

	"github.com/moplabs/mopd/internal/model"
)

func TestEstimatorCountText(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"Hi", 0},
		{"abcdefgh", 2},
		{"What is the capital of France?", 7},
	}

	for _, tt := range tests {
		got, err := e.CountText("any-model", tt.text)
		if err != nil {
			t.Fatalf("CountText(%q) error = %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("CountText(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimatorSupportsModel(t *testing.T) {
	e := NewEstimator()
	for _, mdl := range []string{"gpt-4o", "claude-3", "unknown-model", ""} {
		if !e.SupportsModel(mdl) {
			t.Errorf("SupportsModel(%q) = false, want true", mdl)
		}
	}
}

func TestOpenAICounterCountText(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"simple question", "Hello, how are you today?", 4, 12},
		{"code snippet", "def hello(): print('Hello, World!')", 6, 20},
		{"common words", "The quick brown fox jumps over the lazy dog.", 8, 16},
		{"empty", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CountText("gpt-4o", tt.text)
			if err != nil {
				t.Fatalf("CountText() error = %v", err)
			}
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("CountText(%q) = %d, want between %d and %d",
					tt.text, got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestOpenAICounterSupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		mdl  string
		want bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-2024-08-06", true},
		{"gpt-3.5-turbo", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"claude-3-sonnet", false},
		{"unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.mdl, func(t *testing.T) {
			if got := c.SupportsModel(tt.mdl); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.mdl, got, tt.want)
			}
		})
	}
}

func TestRegistryCountText(t *testing.T) {
	r := NewRegistry()

	// A supported model goes through tiktoken, an unknown one through the
	// estimator. Both must yield a usable count.
	for _, mdl := range []string{"gpt-4o", "made-up-model"} {
		if got := r.CountText(mdl, "What is the capital of France?"); got <= 0 {
			t.Errorf("CountText(%q) = %d, want > 0", mdl, got)
		}
	}
}

func TestRegistryCountMessages(t *testing.T) {
	r := NewRegistry()

	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "You are a problem analysis agent."},
		{Role: model.RoleUser, Content: "What is the capital of France?"},
	}

	got := r.CountMessages("gpt-4o", msgs)
	if got < 15 || got > 60 {
		t.Errorf("CountMessages() = %d, want between 15 and 60", got)
	}

	// Framing overhead alone for an empty request.
	if got := r.CountMessages("gpt-4o", nil); got != tokensPriming {
		t.Errorf("CountMessages(nil) = %d, want %d", got, tokensPriming)
	}
}

func TestRegistryCountTextFallsBack(t *testing.T) {
	r := &Registry{fallback: NewEstimator()}
	r.Register(failingCounter{})

	if got := r.CountText("gpt-4o", "abcdefgh"); got != 2 {
		t.Errorf("CountText() = %d, want estimator fallback 2", got)
	}
}

type failingCounter struct{}

func (failingCounter) CountText(mdl, text string) (int, error) {
	return 0, errors.New("counter broken")
}

func (failingCounter) SupportsModel(mdl string) bool { return true }

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher([]string{"gpt-"}, []string{"davinci"})

	tests := []struct {
		mdl  string
		want bool
	}{
		{"gpt-4", true},
		{"gpt-3.5-turbo", true},
		{"davinci", true},
		{"text-davinci-003", false},
		{"llama-2", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := m.Matches(tt.mdl); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.mdl, got, tt.want)
		}
	}
}
