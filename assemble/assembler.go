package assemble

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/budget"
	"github.com/BaSui01/contextfit/compress"
	"github.com/BaSui01/contextfit/internal/metrics"
	"github.com/BaSui01/contextfit/policy"
	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

const (
	instrumentationName = "github.com/BaSui01/contextfit/assemble"
	metricsNamespace    = "contextfit"
)

// Assembler is the entry point of the pipeline. Safe for concurrent use;
// every call works on an immutable policy snapshot.
type Assembler struct {
	engine     *policy.Engine
	tok        tokenizer.Tokenizer
	registry   *compress.Registry
	summarizer compress.Summarizer
	collector  *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger

	chunkSize  int
	relaxed    bool
	metricsOn  bool
	metricsNS  string
	metricsReg prometheus.Registerer
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRegistry replaces the default compressor registry, for callers that
// bind custom strategies or a custom extractive scorer.
func WithRegistry(r *compress.Registry) Option {
	return func(a *Assembler) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithSummarizer installs the delegate behind the abstractive strategy.
// It rebinds abstractive on whichever registry the assembler ends up
// using, including one supplied via WithRegistry.
func WithSummarizer(s compress.Summarizer) Option {
	return func(a *Assembler) { a.summarizer = s }
}

// WithChunkSize sets the water-filling chunk of the budget allocator.
func WithChunkSize(n int) Option {
	return func(a *Assembler) { a.chunkSize = n }
}

// WithRelaxedMinimums lets the allocator scale non-sticky minimums down
// proportionally instead of failing when they exceed the budget.
func WithRelaxedMinimums() Option {
	return func(a *Assembler) { a.relaxed = true }
}

// WithMetrics records pipeline metrics on Prometheus instruments
// registered with reg. A nil reg creates unregistered instruments.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(a *Assembler) {
		a.metricsOn = true
		a.metricsReg = reg
	}
}

// WithMetricsNamespace overrides the metric name prefix. Defaults to
// contextfit.
func WithMetricsNamespace(ns string) Option {
	return func(a *Assembler) {
		if ns != "" {
			a.metricsNS = ns
		}
	}
}

// New creates an Assembler bound to a policy engine and a tokenizer.
func New(engine *policy.Engine, tok tokenizer.Tokenizer, opts ...Option) (*Assembler, error) {
	if engine == nil {
		return nil, types.NewConfigError("assembler requires a policy engine")
	}
	if tok == nil {
		return nil, types.NewConfigError("assembler requires a tokenizer")
	}

	a := &Assembler{
		engine:    engine,
		tok:       tok,
		tracer:    otel.Tracer(instrumentationName),
		logger:    zap.NewNop(),
		metricsNS: metricsNamespace,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "assemble"))

	if a.registry == nil {
		a.registry = compress.NewRegistry(tok)
	}
	if a.summarizer != nil {
		a.registry.Register(types.StrategyAbstractive, compress.NewAbstractive(tok, a.summarizer))
	}
	if a.metricsOn {
		a.collector = metrics.NewCollector(a.metricsNS, a.metricsReg, a.logger)
	}
	return a, nil
}

// Request is one assembly call: the content sections, the policy selection
// and the token envelope of the target model.
type Request struct {
	// Sections carries the raw content. Multiple sections may target the
	// same bucket; they are concatenated in input order with a blank-line
	// separator and score as the maximum. Sections with empty content are
	// ignored.
	Sections []types.Section `json:"sections"`

	// Policy names the layout profile. Empty selects the default profile.
	Policy string `json:"policy,omitempty"`

	// Overrides patches the resolved policy for this request only.
	Overrides *policy.Overrides `json:"overrides,omitempty"`

	// The token envelope: the input budget is
	// ContextLimit - OutputBudget - Overhead.
	ContextLimit int `json:"context_limit"`
	OutputBudget int `json:"output_budget"`
	Overhead     int `json:"overhead"`
}

func (r Request) limits() budget.Limits {
	return budget.Limits{
		ContextLimit: r.ContextLimit,
		OutputBudget: r.OutputBudget,
		Overhead:     r.Overhead,
	}
}
