// Package contextfit assembles model context windows from scored content
// under a token budget: buckets are allocated by weight and relevance,
// compressed to their allocation, and laid out by placement policy.
//
// Usage:
//
//	client, err := contextfit.New(config.Default())
//	result, err := client.Assemble(ctx, contextfit.Request{
//	    Sections: []contextfit.Section{
//	        {Bucket: "system", Content: prompt},
//	        {Bucket: "rag", Content: retrieved, Score: 0.9},
//	    },
//	})
//
// The package is a thin wrapper that wires config, tokenizer, policy
// engine and assembler together; each of those packages can also be used
// directly.
package contextfit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/assemble"
	"github.com/BaSui01/contextfit/budget"
	"github.com/BaSui01/contextfit/compress"
	"github.com/BaSui01/contextfit/config"
	"github.com/BaSui01/contextfit/internal/cache"
	"github.com/BaSui01/contextfit/messages"
	"github.com/BaSui01/contextfit/policy"
	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// Request is one assembly call. See [assemble.Request].
type Request = assemble.Request

// Section is one piece of scored input content. See [types.Section].
type Section = types.Section

// AssembledContext is the assembly result. See [types.AssembledContext].
type AssembledContext = types.AssembledContext

// ResolvedPolicy is the per-request policy snapshot. See [policy.Policy].
type ResolvedPolicy = policy.Policy

// BudgetPlan is the allocation produced by [Client.Plan]. See [budget.Plan].
type BudgetPlan = budget.Plan

// Option configures the client created by [New].
type Option func(*options)

type options struct {
	logger     *zap.Logger
	tok        tokenizer.Tokenizer
	summarizer compress.Summarizer
	metricsReg prometheus.Registerer
}

// WithLogger sets the zap logger shared by all components. Defaults to a
// nop logger; use cfg.Log.BuildLogger for the configured one.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTokenizer overrides the tokenizer selected from the model name.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tok = t }
}

// WithSummarizer installs the delegate behind the abstractive strategy.
func WithSummarizer(s compress.Summarizer) Option {
	return func(o *options) { o.summarizer = s }
}

// WithMetricsRegistry sets where Prometheus instruments register when
// cfg.Metrics.Enabled is true. Defaults to the global registerer.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.metricsReg = reg }
}

// Client owns a wired assembly pipeline for one configuration.
// Safe for concurrent use.
type Client struct {
	cfg       *config.Config
	tok       tokenizer.Tokenizer
	engine    *policy.Engine
	assembler *assemble.Assembler
	cache     *cache.Manager
}

// New validates cfg and wires the pipeline: tokenizer from the model
// name, policy engine with the configured buckets and policies, and an
// assembler with metrics when enabled. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	tok := o.tok
	if tok == nil {
		tok = tokenizer.ForModel(cfg.Model.Name)
	}

	engineOpts := []policy.EngineOption{policy.WithLogger(o.logger)}
	if len(cfg.Buckets) > 0 {
		// A custom bucket set replaces the builtin policies too; the
		// builtins reference canonical bucket ids the custom set need
		// not define. The config's policy specs take over.
		engineOpts = append(engineOpts, policy.WithBuckets(cfg.Buckets), policy.WithoutBuiltins())
	}
	engine, err := policy.NewEngine(engineOpts...)
	if err != nil {
		return nil, err
	}
	for _, spec := range cfg.Policies {
		if err := engine.Register(spec); err != nil {
			return nil, err
		}
	}
	if len(cfg.Buckets) > 0 && !hasPolicy(cfg.Policies, policy.DefaultPolicy) {
		// Keep requests with an empty policy name resolvable.
		if err := engine.Register(policy.Spec{Name: policy.DefaultPolicy}); err != nil {
			return nil, err
		}
	}

	var cacheMgr *cache.Manager
	summarizer := o.summarizer
	if cfg.Cache.Enabled {
		ccfg := cache.DefaultConfig()
		ccfg.Addr = cfg.Cache.Addr
		ccfg.Password = cfg.Cache.Password
		ccfg.DB = cfg.Cache.DB
		ccfg.DefaultTTL = cfg.Cache.TTL
		cacheMgr, err = cache.NewManager(ccfg, o.logger)
		if err != nil {
			return nil, types.NewDependencyError("summary cache", err)
		}
		if summarizer != nil {
			summarizer = compress.NewCachedSummarizer(summarizer, cacheMgr, cfg.Cache.TTL)
		}
	}

	asmOpts := []assemble.Option{assemble.WithLogger(o.logger)}
	if summarizer != nil {
		asmOpts = append(asmOpts, assemble.WithSummarizer(summarizer))
	}
	if cfg.Metrics.Enabled {
		reg := o.metricsReg
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		asmOpts = append(asmOpts,
			assemble.WithMetrics(reg),
			assemble.WithMetricsNamespace(cfg.Metrics.Namespace),
		)
	}

	asm, err := assemble.New(engine, tok, asmOpts...)
	if err != nil {
		if cacheMgr != nil {
			cacheMgr.Close()
		}
		return nil, err
	}

	return &Client{cfg: cfg, tok: tok, engine: engine, assembler: asm, cache: cacheMgr}, nil
}

// Close releases resources held by the client, currently the summary
// cache connection. Safe to call on clients without one.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

func hasPolicy(specs []policy.Spec, name string) bool {
	for _, s := range specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Open loads the configuration file and creates a client from it.
func Open(path string, opts ...Option) (*Client, error) {
	cfg, err := config.NewLoader().WithPath(path).Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Assemble runs the pipeline. A request with a zero ContextLimit takes
// its whole token envelope from the configured model block.
func (c *Client) Assemble(ctx context.Context, req Request) (*AssembledContext, error) {
	return c.assembler.Assemble(ctx, c.withEnvelope(req))
}

// Plan computes the allocation a request would receive without running
// compression. Envelope defaulting matches Assemble.
func (c *Client) Plan(ctx context.Context, req Request) (*policy.Policy, *budget.Plan, error) {
	return c.assembler.Plan(ctx, c.withEnvelope(req))
}

func (c *Client) withEnvelope(req Request) Request {
	if req.ContextLimit == 0 {
		limits := c.cfg.Limits()
		req.ContextLimit = limits.ContextLimit
		req.OutputBudget = limits.OutputBudget
		req.Overhead = limits.Overhead
	}
	return req
}

// Messages assembles the context and converts it to chat messages.
func (c *Client) Messages(ctx context.Context, req Request, opts ...messages.Option) ([]messages.Message, error) {
	assembled, err := c.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}
	return messages.FromContext(assembled, opts...), nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config { return c.cfg }

// Engine returns the policy engine, for registering policies at runtime.
func (c *Client) Engine() *policy.Engine { return c.engine }

// Tokenizer returns the token counter in use.
func (c *Client) Tokenizer() tokenizer.Tokenizer { return c.tok }
