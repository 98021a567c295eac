// Package tokens provides local token counting for per-stage usage
// accounting when the provider does not report usage itself.
package tokens

import (
	"strings"

	"github.com/moplabs/mopd/internal/model"
)

// Chat requests carry framing overhead on top of raw content tokens:
// a few tokens per message, one for the role, and a priming suffix.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPriming    = 3
)

// Counter counts tokens for one family of models.
type Counter interface {
	// CountText returns the token count of a plain text string.
	CountText(mdl, text string) (int, error)

	// SupportsModel reports whether this counter handles the model.
	SupportsModel(mdl string) bool
}

// Registry picks the right counter for a model and falls back to estimation
// when no exact tokenizer is available, so callers always get a usable count.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the OpenAI counter registered and a
// character-based estimator as fallback.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a counter. Counters are consulted in registration order.
func (r *Registry) Register(c Counter) {
	r.counters = append(r.counters, c)
}

// SetFallback replaces the estimator used for unsupported models.
func (r *Registry) SetFallback(c Counter) {
	r.fallback = c
}

// CountText counts tokens in text for mdl. Counting is best effort: a
// counter error degrades to the fallback estimate rather than failing.
func (r *Registry) CountText(mdl, text string) int {
	for _, c := range r.counters {
		if !c.SupportsModel(mdl) {
			continue
		}
		if n, err := c.CountText(mdl, text); err == nil {
			return n
		}
		break
	}
	n, _ := r.fallback.CountText(mdl, text)
	return n
}

// CountMessages approximates the prompt size of a chat request: content
// tokens plus per-message framing overhead plus the assistant priming suffix.
func (r *Registry) CountMessages(mdl string, msgs []model.Message) int {
	total := tokensPriming
	for _, msg := range msgs {
		total += tokensPerMessage + tokensPerRole
		total += r.CountText(mdl, msg.Content)
	}
	return total
}

// Estimator approximates token counts from character length. It answers for
// every model, which makes it the terminal fallback.
type Estimator struct {
	// CharsPerToken is the assumed average characters per token.
	CharsPerToken float64
}

var _ Counter = (*Estimator)(nil)

// NewEstimator creates an estimator with the usual four-characters-per-token
// assumption.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountText implements Counter.
func (e *Estimator) CountText(mdl, text string) (int, error) {
	return int(float64(len(text)) / e.CharsPerToken), nil
}

// SupportsModel implements Counter.
func (e *Estimator) SupportsModel(mdl string) bool { return true }

// ModelMatcher matches model names against prefix and exact-name patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a matcher from prefix and exact-name lists.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches reports whether mdl matches any pattern.
func (m *ModelMatcher) Matches(mdl string) bool {
	for _, e := range m.exact {
		if mdl == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(mdl, p) {
			return true
		}
	}
	return false
}
