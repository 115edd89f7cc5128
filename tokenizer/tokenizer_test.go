package tokenizer_test

import (
	"strings"
	"testing"

	"github.com/BaSui01/contextfit/tokenizer"
)

// wordCounter is a trivial deterministic tokenizer for registry tests.
type wordCounter struct{ name string }

func (w *wordCounter) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(strings.Fields(text)), nil
}

func (w *wordCounter) Name() string { return w.name }

func TestRegistry_ExactAndPrefixMatch(t *testing.T) {
	wc := &wordCounter{name: "words"}
	tokenizer.Register("acme-large", wc)

	got, err := tokenizer.Get("acme-large")
	if err != nil {
		t.Fatalf("exact match failed: %v", err)
	}
	if got != tokenizer.Tokenizer(wc) {
		t.Fatalf("expected registered tokenizer")
	}

	// Prefix match: a more specific variant resolves to the registered base.
	got, err = tokenizer.Get("acme-large-0825")
	if err != nil {
		t.Fatalf("prefix match failed: %v", err)
	}
	if got.Name() != "words" {
		t.Fatalf("expected prefix-matched tokenizer, got %s", got.Name())
	}

	if _, err := tokenizer.Get("unregistered-model"); err == nil {
		t.Fatalf("expected error for unregistered model")
	}
}

func TestForModel_Fallbacks(t *testing.T) {
	// OpenAI-family names get the tiktoken adapter even when unregistered.
	if name := tokenizer.ForModel("gpt-4o-mini").Name(); !strings.HasPrefix(name, "tiktoken[") {
		t.Fatalf("expected tiktoken adapter, got %s", name)
	}

	// Everything else gets the estimator.
	if name := tokenizer.ForModel("totally-unknown").Name(); name != "estimator" {
		t.Fatalf("expected estimator fallback, got %s", name)
	}
}

func TestTiktoken_EncodingSelection(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"gpt-4o":        "tiktoken[o200k_base]",
		"gpt-4o-mini":   "tiktoken[o200k_base]",
		"gpt-4":         "tiktoken[cl100k_base]",
		"gpt-4-0613":    "tiktoken[cl100k_base]", // prefix match
		"mystery-model": "tiktoken[cl100k_base]", // default
	}
	for model, want := range cases {
		if got := tokenizer.NewTiktoken(model).Name(); got != want {
			t.Fatalf("model %s: got %s, want %s", model, got, want)
		}
	}
}

func TestCodec_InterfaceUpgrade(t *testing.T) {
	t.Parallel()

	var tok tokenizer.Tokenizer = tokenizer.NewTiktoken("gpt-4")
	if _, ok := tok.(tokenizer.Codec); !ok {
		t.Fatalf("tiktoken adapter must implement Codec")
	}

	tok = tokenizer.NewEstimator()
	if _, ok := tok.(tokenizer.Codec); ok {
		t.Fatalf("estimator must not implement Codec")
	}
}
