package policy

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/types"
)

// Engine stores named policies and resolves per-request snapshots from
// them. Registration and resolution are safe to interleave from multiple
// goroutines; resolved snapshots are isolated from later registrations.
type Engine struct {
	mu       sync.RWMutex
	base     []types.Bucket
	policies map[string]*Policy

	logger       *zap.Logger
	skipBuiltins bool
}

// EngineOption configures a new Engine.
type EngineOption func(*Engine)

// WithBuckets replaces the base bucket set specs resolve against.
func WithBuckets(buckets []types.Bucket) EngineOption {
	return func(e *Engine) {
		e.base = append([]types.Bucket(nil), buckets...)
	}
}

// WithoutBuiltins starts the engine empty. Useful when loading a fully
// custom policy set whose bucket ids the builtin policies do not reference.
func WithoutBuiltins() EngineOption {
	return func(e *Engine) { e.skipBuiltins = true }
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With(zap.String("component", "policy"))
		}
	}
}

// NewEngine creates an engine preloaded with the builtin policies unless
// WithoutBuiltins is given.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		base:     DefaultBuckets(),
		policies: make(map[string]*Policy),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.skipBuiltins {
		for _, spec := range builtinSpecs() {
			if err := e.Register(spec); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// Register validates a spec against the base bucket set and stores it,
// replacing any policy with the same name.
func (e *Engine) Register(spec Spec) error {
	if spec.Name == "" {
		return types.NewConfigError("policy name required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.materialize(spec)
	if err != nil {
		return err
	}
	e.policies[spec.Name] = p
	e.logger.Debug("policy registered",
		zap.String("policy", spec.Name),
		zap.Int("buckets", len(p.Buckets)))
	return nil
}

// Resolve returns an immutable snapshot of the named policy with the given
// overrides applied. An empty name resolves the default policy. Scalar
// overrides replace individual bucket fields; list overrides replace the
// drop order or a placement group wholesale.
func (e *Engine) Resolve(name string, ov *Overrides) (*Policy, error) {
	if name == "" {
		name = DefaultPolicy
	}

	e.mu.RLock()
	stored, ok := e.policies[name]
	e.mu.RUnlock()
	if !ok {
		return nil, types.NewConfigError("unknown policy %q", name)
	}

	p := stored.clone()
	if ov == nil {
		return p, nil
	}
	if err := ov.applyTo(p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Policies returns the registered policy names in sorted order.
func (e *Engine) Policies() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// materialize builds the stored policy for a spec: base buckets (or the
// spec's own), spec overrides applied, lists copied, result validated.
// Caller holds e.mu.
func (e *Engine) materialize(spec Spec) (*Policy, error) {
	base := spec.Buckets
	if base == nil {
		base = e.base
	}
	buckets := append([]types.Bucket(nil), base...)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].ID < buckets[j].ID })

	for id, ov := range spec.Overrides {
		i, ok := bucketIndex(buckets, id)
		if !ok {
			return nil, types.NewConfigError("policy %q overrides unknown bucket %q", spec.Name, id).WithBucket(id)
		}
		ov.applyTo(&buckets[i])
	}

	p := &Policy{
		Name:      spec.Name,
		Buckets:   buckets,
		DropOrder: append([]types.BucketID(nil), spec.DropOrder...),
		Placements: types.PlacementMap{
			Head:   append([]types.BucketID(nil), spec.Head...),
			Middle: append([]types.BucketID(nil), spec.Middle...),
			Tail:   append([]types.BucketID(nil), spec.Tail...),
		},
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
