package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// OpenAICounter counts tokens for OpenAI models with tiktoken.
type OpenAICounter struct {
	matcher *ModelMatcher

	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

var _ Counter = (*OpenAICounter)(nil)

// NewOpenAICounter creates a counter covering the gpt-* families and the
// o-series reasoning models.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "text-embedding", "text-davinci"},
			[]string{"davinci", "curie", "babbage", "ada"},
		),
		codecs: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// CountText implements Counter.
func (c *OpenAICounter) CountText(mdl, text string) (int, error) {
	codec, err := c.getCodec(mdl)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SupportsModel implements Counter.
func (c *OpenAICounter) SupportsModel(mdl string) bool {
	return c.matcher.Matches(mdl)
}

// getCodec resolves a tokenizer for mdl. Exact model names resolve directly;
// dated or unknown variants fall back to the family encoding, cached per
// encoding since codec construction is not cheap.
func (c *OpenAICounter) getCodec(mdl string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(mdl))); err == nil {
		return codec, nil
	}

	enc := modelEncoding(mdl)

	c.mu.RLock()
	codec, ok := c.codecs[enc]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("get tokenizer encoding %q: %w", enc, err)
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// modelEncoding maps a model name to its BPE encoding:
// gpt-4o and the o-series use o200k_base, gpt-4 and gpt-3.5 use cl100k_base,
// the legacy completion models use r50k_base.
func modelEncoding(mdl string) tokenizer.Encoding {
	mdl = strings.ToLower(mdl)
	switch {
	case strings.HasPrefix(mdl, "gpt-4o"),
		strings.HasPrefix(mdl, "gpt-4.1"),
		strings.HasPrefix(mdl, "o1"),
		strings.HasPrefix(mdl, "o3"),
		strings.HasPrefix(mdl, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(mdl, "gpt-4"),
		strings.HasPrefix(mdl, "gpt-3.5"),
		strings.HasPrefix(mdl, "text-embedding"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(mdl, "text-davinci"):
		return tokenizer.P50kBase
	case mdl == "davinci" || mdl == "curie" || mdl == "babbage" || mdl == "ada":
		return tokenizer.R50kBase
	default:
		return tokenizer.O200kBase
	}
}
