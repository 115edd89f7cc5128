package tokenizer

import (
	"strings"
	"sync"

	"github.com/BaSui01/contextfit/types"
)

// Tokenizer is the token counting contract. Implementations must be
// deterministic: the same text always yields the same count.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)

	// Name returns the tokenizer's name.
	Name() string
}

// Codec is an optional upgrade interface for tokenizers that can round-trip
// text through token IDs. Truncation uses it for exact token slicing;
// tokenizers without it fall back to word-boundary cuts.
type Codec interface {
	// Encode converts text to a list of token IDs.
	Encode(text string) ([]int, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int) (string, error)
}

// Global tokenizer registry, keyed by model name.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register registers a tokenizer for the given model name.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// Get returns the tokenizer registered for the given model. It also tries
// prefix matching, so "gpt-4o" serves "gpt-4o-mini".
func Get(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) {
			return t, nil
		}
	}
	return nil, types.NewDependencyError("no tokenizer registered for model "+model, nil)
}

// ForModel returns the registered tokenizer for the model, falling back to a
// tiktoken adapter for OpenAI-family names and to the generic estimator for
// everything else. It never fails.
func ForModel(model string) Tokenizer {
	if t, err := Get(model); err == nil {
		return t
	}
	if _, ok := encodingForModel(model); ok {
		return NewTiktoken(model)
	}
	return NewEstimator()
}
