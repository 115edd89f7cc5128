package compress

import (
	"context"
	"strings"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// TruncateTail drops tokens from the end until the remainder fits.
type TruncateTail struct {
	tok tokenizer.Tokenizer
}

// NewTruncateTail creates the tail-dropping truncation compressor.
func NewTruncateTail(tok tokenizer.Tokenizer) *TruncateTail {
	return &TruncateTail{tok: tok}
}

func (c *TruncateTail) Name() string { return string(types.StrategyTruncateTail) }

func (c *TruncateTail) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return truncate(c.tok, content, target, false, types.StrategyTruncateTail)
}

// TruncateHead drops tokens from the start until the remainder fits.
type TruncateHead struct {
	tok tokenizer.Tokenizer
}

// NewTruncateHead creates the head-dropping truncation compressor.
func NewTruncateHead(tok tokenizer.Tokenizer) *TruncateHead {
	return &TruncateHead{tok: tok}
}

func (c *TruncateHead) Name() string { return string(types.StrategyTruncateHead) }

func (c *TruncateHead) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return truncate(c.tok, content, target, true, types.StrategyTruncateHead)
}

func truncate(tok tokenizer.Tokenizer, content string, target int, keepEnd bool, strategy types.Strategy) (*Result, error) {
	original, err := tok.CountTokens(content)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if original <= target {
		return newResult(content, original, original, strategy), nil
	}
	text, tokens, err := cutToFit(tok, content, target, keepEnd)
	if err != nil {
		return nil, err
	}
	return newResult(text, tokens, original, strategy), nil
}

// cutToFit returns the largest prefix (or suffix when keepEnd) of content
// that counts at most target tokens. Exact token slicing when the tokenizer
// exposes a Codec, word-boundary accumulation otherwise.
func cutToFit(tok tokenizer.Tokenizer, content string, target int, keepEnd bool) (string, int, error) {
	if target <= 0 {
		return "", 0, nil
	}

	if codec, ok := tok.(tokenizer.Codec); ok {
		ids, err := codec.Encode(content)
		if err != nil {
			return "", 0, types.NewDependencyError("encode", err)
		}
		// Decoding a slice can re-tokenize across the cut, so verify the
		// count and back off if the boundary merged unfavorably.
		for keep := target; keep > 0; keep-- {
			part := ids[:keep]
			if keepEnd {
				part = ids[len(ids)-keep:]
			}
			text, err := codec.Decode(part)
			if err != nil {
				return "", 0, types.NewDependencyError("decode", err)
			}
			n, err := tok.CountTokens(text)
			if err != nil {
				return "", 0, types.NewDependencyError("count tokens", err)
			}
			if n <= target {
				return text, n, nil
			}
		}
		return "", 0, nil
	}

	words := strings.Fields(content)
	join := func(keep int) string {
		if keep <= 0 {
			return ""
		}
		if keepEnd {
			return strings.Join(words[len(words)-keep:], " ")
		}
		return strings.Join(words[:keep], " ")
	}

	// Binary search the largest word count that still fits, counting the
	// joined text rather than summing per-word counts.
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		n, err := tok.CountTokens(join(mid))
		if err != nil {
			return "", 0, types.NewDependencyError("count tokens", err)
		}
		if n <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	for ; lo >= 0; lo-- {
		text := join(lo)
		n, err := tok.CountTokens(text)
		if err != nil {
			return "", 0, types.NewDependencyError("count tokens", err)
		}
		if n <= target {
			return text, n, nil
		}
	}
	return "", 0, nil
}
