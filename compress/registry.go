package compress

import (
	"context"
	"sync"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// Registry maps strategy tags to compressors. A fresh registry carries the
// full builtin set; Register swaps implementations or adds custom tags.
type Registry struct {
	mu          sync.RWMutex
	compressors map[types.Strategy]Compressor
}

// RegistryOption configures a new Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	summarizer Summarizer
	scorer     Scorer
}

// WithSummarizer installs the delegate for the abstractive strategy.
func WithSummarizer(s Summarizer) RegistryOption {
	return func(c *registryConfig) { c.summarizer = s }
}

// WithExtractiveScorer replaces the keyword heuristic used by the
// extractive strategy.
func WithExtractiveScorer(s Scorer) RegistryOption {
	return func(c *registryConfig) { c.scorer = s }
}

// NewRegistry creates a registry with every builtin strategy bound to tok.
func NewRegistry(tok tokenizer.Tokenizer, opts ...RegistryOption) *Registry {
	var cfg registryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	extractiveOpts := []ExtractiveOption{}
	if cfg.scorer != nil {
		extractiveOpts = append(extractiveOpts, WithScorer(cfg.scorer))
	}

	r := &Registry{compressors: make(map[types.Strategy]Compressor)}
	r.compressors[types.StrategyNone] = NewNone(tok)
	r.compressors[types.StrategyTruncateHead] = NewTruncateHead(tok)
	r.compressors[types.StrategyTruncateTail] = NewTruncateTail(tok)
	r.compressors[types.StrategySignatureOnly] = NewSignature(tok)
	r.compressors[types.StrategyExtractive] = NewExtractive(tok, extractiveOpts...)
	r.compressors[types.StrategyAbstractive] = NewAbstractive(tok, cfg.summarizer)
	return r
}

// Register binds a compressor to a strategy tag, replacing any previous
// binding. Aliases are canonicalized first.
func (r *Registry) Register(strategy types.Strategy, c Compressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compressors[strategy.Canonical()] = c
}

// Get resolves a strategy tag (aliases included) to its compressor.
func (r *Registry) Get(strategy types.Strategy) (Compressor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.compressors[strategy.Canonical()]
	if !ok {
		return nil, types.NewConfigError("unknown compression strategy %q", strategy)
	}
	return c, nil
}

// Reduce compresses content with the named strategy.
func (r *Registry) Reduce(ctx context.Context, strategy types.Strategy, content string, target int) (*Result, error) {
	c, err := r.Get(strategy)
	if err != nil {
		return nil, err
	}
	return c.Compress(ctx, content, target)
}

// Chain tries strategies in preference order, falling through on
// infeasibility or a failed dependency, and hard-truncates as the last
// resort. Configuration mistakes (unknown strategies) fail immediately.
type Chain struct {
	registry   *Registry
	strategies []types.Strategy
}

// NewChain creates a fallback chain over the registry.
func NewChain(r *Registry, strategies ...types.Strategy) *Chain {
	return &Chain{registry: r, strategies: strategies}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Compress(ctx context.Context, content string, target int) (*Result, error) {
	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.registry.Reduce(ctx, strategy, content, target)
		if err == nil {
			return res, nil
		}
		if types.IsCode(err, types.ErrConfig) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return c.registry.Reduce(ctx, types.StrategyTruncateTail, content, target)
}
