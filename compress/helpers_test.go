package compress_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/contextfit/tokenizer"
)

// wordTok counts whitespace-separated words and cannot slice tokens, so it
// exercises the word-boundary fallback paths.
type wordTok struct{}

func (wordTok) CountTokens(text string) (int, error) { return len(strings.Fields(text)), nil }
func (wordTok) Name() string                         { return "words" }

// codecTok counts words and can encode/decode them, exercising the exact
// token-slicing paths.
type codecTok struct {
	mu    sync.Mutex
	words []string
	index map[string]int
}

func newCodecTok() *codecTok { return &codecTok{index: make(map[string]int)} }

func (c *codecTok) CountTokens(text string) (int, error) { return len(strings.Fields(text)), nil }
func (c *codecTok) Name() string                         { return "codec-words" }

func (c *codecTok) Encode(text string) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, w := range fields {
		id, ok := c.index[w]
		if !ok {
			id = len(c.words)
			c.index[w] = id
			c.words = append(c.words, w)
		}
		ids[i] = id
	}
	return ids, nil
}

func (c *codecTok) Decode(ids []int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(c.words) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		fields[i] = c.words[id]
	}
	return strings.Join(fields, " "), nil
}

// failTok simulates a broken tokenizer dependency.
type failTok struct{}

func (failTok) CountTokens(string) (int, error) { return 0, errors.New("tokenizer offline") }
func (failTok) Name() string                    { return "fail" }

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (s *fakeSummarizer) Summarize(ctx context.Context, text string, targetTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

var (
	_ tokenizer.Tokenizer = wordTok{}
	_ tokenizer.Tokenizer = (*codecTok)(nil)
	_ tokenizer.Codec     = (*codecTok)(nil)
)
