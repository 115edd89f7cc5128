package compress

import (
	"context"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// Result describes one compression outcome.
type Result struct {
	// Text is the reduced content.
	Text string `json:"text"`

	// Tokens counts Text; never exceeds the requested target.
	Tokens int `json:"tokens"`

	// OriginalTokens counts the input content.
	OriginalTokens int `json:"original_tokens"`

	// Ratio is Tokens / OriginalTokens (1.0 for pass-through).
	Ratio float64 `json:"ratio"`

	// Strategy that actually produced Text. Fallbacks report the fallback
	// strategy, not the one asked for.
	Strategy types.Strategy `json:"strategy"`
}

// Compressor reduces content to fit a token target.
type Compressor interface {
	// Name returns the strategy tag this compressor implements.
	Name() string

	// Compress reduces content so the result counts at most target tokens.
	Compress(ctx context.Context, content string, target int) (*Result, error)
}

func newResult(text string, tokens, original int, strategy types.Strategy) *Result {
	ratio := 1.0
	if original > 0 {
		ratio = float64(tokens) / float64(original)
	}
	return &Result{
		Text:           text,
		Tokens:         tokens,
		OriginalTokens: original,
		Ratio:          ratio,
		Strategy:       strategy,
	}
}

// None passes content through unchanged and refuses content over target.
type None struct {
	tok tokenizer.Tokenizer
}

// NewNone creates the pass-through compressor.
func NewNone(tok tokenizer.Tokenizer) *None {
	return &None{tok: tok}
}

func (c *None) Name() string { return string(types.StrategyNone) }

func (c *None) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count, err := c.tok.CountTokens(content)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if count > target {
		return nil, types.NewCompressionInfeasible("",
			"content is %d tokens but target is %d and strategy none forbids reduction", count, target)
	}
	return newResult(content, count, count, types.StrategyNone), nil
}
