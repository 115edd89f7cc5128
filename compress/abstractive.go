package compress

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// Summarizer produces an abstractive summary of at most targetTokens
// tokens. Implementations typically call an external model; failures are
// surfaced to callers as DEPENDENCY_ERROR and never retried here.
type Summarizer interface {
	Summarize(ctx context.Context, text string, targetTokens int) (string, error)
}

// Abstractive delegates reduction to a Summarizer. A summary that still
// exceeds the target is tail-truncated so the accounting contract holds.
type Abstractive struct {
	tok        tokenizer.Tokenizer
	summarizer Summarizer
}

// NewAbstractive creates the delegating compressor. The summarizer may be
// nil; compression then fails with DEPENDENCY_ERROR.
func NewAbstractive(tok tokenizer.Tokenizer, summarizer Summarizer) *Abstractive {
	return &Abstractive{tok: tok, summarizer: summarizer}
}

func (c *Abstractive) Name() string { return string(types.StrategyAbstractive) }

func (c *Abstractive) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.summarizer == nil {
		return nil, types.NewDependencyError("no summarizer configured", nil)
	}
	original, err := c.tok.CountTokens(content)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if original <= target {
		return newResult(content, original, original, types.StrategyAbstractive), nil
	}

	summary, err := c.summarizer.Summarize(ctx, content, target)
	if err != nil {
		return nil, types.NewDependencyError("summarize", err)
	}
	tokens, err := c.tok.CountTokens(summary)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if tokens > target {
		summary, tokens, err = cutToFit(c.tok, summary, target, false)
		if err != nil {
			return nil, err
		}
	}
	return newResult(summary, tokens, original, types.StrategyAbstractive), nil
}

// RateLimitedSummarizer throttles calls to a delegate summarizer. Wait
// blocks until the limiter grants a slot or the context is done.
type RateLimitedSummarizer struct {
	inner   Summarizer
	limiter *rate.Limiter
}

// NewRateLimitedSummarizer wraps inner with a token-bucket limiter allowing
// callsPerSecond sustained calls and bursts of burst.
func NewRateLimitedSummarizer(inner Summarizer, callsPerSecond rate.Limit, burst int) *RateLimitedSummarizer {
	return &RateLimitedSummarizer{
		inner:   inner,
		limiter: rate.NewLimiter(callsPerSecond, burst),
	}
}

func (s *RateLimitedSummarizer) Summarize(ctx context.Context, text string, targetTokens int) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.inner.Summarize(ctx, text, targetTokens)
}
