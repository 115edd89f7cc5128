package budget

import (
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/types"
)

// DefaultChunkSize is the water-filling increment. 32 tokens keeps the
// refinement loop short while staying well below the size of a typical
// paragraph, so no single step visibly distorts the distribution.
const DefaultChunkSize = 32

// Limits describes the token envelope of one request.
type Limits struct {
	ContextLimit int
	OutputBudget int
	Overhead     int
}

// Budget returns the tokens available for input content.
func (l Limits) Budget() int {
	return l.ContextLimit - l.OutputBudget - l.Overhead
}

// Allocation is the budget decision for one bucket. Immutable once produced.
type Allocation struct {
	Bucket  types.BucketID `json:"bucket"`
	Tokens  int            `json:"tokens"`
	Dropped bool           `json:"dropped,omitempty"`
}

// Plan is the result of one allocation run.
type Plan struct {
	// Budget is B, the input budget the plan was computed against.
	Budget int `json:"budget"`

	// Allocations holds one entry per participating bucket, in ascending
	// bucket id order. Dropped buckets carry zero tokens.
	Allocations []Allocation `json:"allocations"`

	// Dropped lists the buckets zeroed by drop-order fallback.
	Dropped []types.BucketID `json:"dropped,omitempty"`

	// TotalAllocated is the token sum over non-dropped buckets. Always
	// <= Budget.
	TotalAllocated int `json:"total_allocated"`
}

// Get returns the allocation for a bucket.
func (p *Plan) Get(id types.BucketID) (Allocation, bool) {
	for _, a := range p.Allocations {
		if a.Bucket == id {
			return a, true
		}
	}
	return Allocation{}, false
}

// Option configures a Manager.
type Option func(*Manager)

// WithChunkSize sets the water-filling increment in tokens.
func WithChunkSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.chunk = n
		}
	}
}

// WithRelaxedMinimums permits scaling non-sticky bucket minimums down
// proportionally when even drop-order fallback cannot satisfy them. Off by
// default: without the opt-in such requests fail with BUDGET_EXHAUSTED.
func WithRelaxedMinimums() Option {
	return func(m *Manager) { m.relaxed = true }
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With(zap.String("component", "budget"))
		}
	}
}

// Manager allocates token budgets across configured buckets. Safe for
// concurrent use once constructed; the bucket set is never mutated.
type Manager struct {
	buckets []types.Bucket // ascending bucket id
	index   map[types.BucketID]int
	chunk   int
	relaxed bool
	logger  *zap.Logger
}

// New validates the bucket set and creates a Manager. Duplicate identifiers
// or invalid bounds fail with CONFIG_ERROR.
func New(buckets []types.Bucket, opts ...Option) (*Manager, error) {
	m := &Manager{
		buckets: make([]types.Bucket, len(buckets)),
		index:   make(map[types.BucketID]int, len(buckets)),
		chunk:   DefaultChunkSize,
		logger:  zap.NewNop(),
	}
	copy(m.buckets, buckets)
	sort.Slice(m.buckets, func(i, j int) bool { return m.buckets[i].ID < m.buckets[j].ID })

	for i, b := range m.buckets {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.index[b.ID]; dup {
			return nil, types.NewConfigError("duplicate bucket %q", b.ID).WithBucket(b.ID)
		}
		m.index[b.ID] = i
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Buckets returns a copy of the configured bucket set in ascending id order.
func (m *Manager) Buckets() []types.Bucket {
	out := make([]types.Bucket, len(m.buckets))
	copy(out, m.buckets)
	return out
}

// Allocate computes the budget plan for one request. Only buckets present in
// the scores map participate; configured buckets absent from the request are
// ignored. The drop order lists the non-sticky buckets to zero first when
// minimums do not fit.
func (m *Manager) Allocate(limits Limits, scores map[types.BucketID]float64, dropOrder []types.BucketID) (*Plan, error) {
	b := limits.Budget()
	if b <= 0 {
		return nil, types.NewBudgetExhausted(
			"input budget %d not positive (context %d - output %d - overhead %d)",
			b, limits.ContextLimit, limits.OutputBudget, limits.Overhead)
	}

	for id := range scores {
		if _, ok := m.index[id]; !ok {
			return nil, types.NewConfigError("unknown bucket %q in request", id).WithBucket(id)
		}
	}

	// Participating buckets, ascending id.
	parts := make([]types.Bucket, 0, len(scores))
	for _, bk := range m.buckets {
		if _, ok := scores[bk.ID]; ok {
			parts = append(parts, bk)
		}
	}

	effMin := make([]int, len(parts))
	sumMin := 0
	for i, bk := range parts {
		effMin[i] = bk.MinTokens
		sumMin += bk.MinTokens
	}

	// Drop-order fallback: zero listed buckets until the minimums fit.
	dropped := make(map[types.BucketID]bool)
	if sumMin > b {
		for _, id := range dropOrder {
			if sumMin <= b {
				break
			}
			i, ok := partIndex(parts, id)
			if !ok || dropped[id] || parts[i].Sticky {
				continue
			}
			dropped[id] = true
			sumMin -= effMin[i]
			m.logger.Debug("bucket zeroed by drop-order fallback",
				zap.String("bucket", string(id)),
				zap.Int("freed_min", effMin[i]),
				zap.Int("sum_min", sumMin))
		}
	}
	if sumMin > b {
		if !m.relaxed {
			return nil, types.NewBudgetExhausted(
				"minimums require %d tokens but budget is %d after drop-order fallback", sumMin, b)
		}
		var err error
		if sumMin, err = m.relaxMinimums(parts, dropped, effMin, b); err != nil {
			return nil, err
		}
	}

	alloc := m.initialDistribution(parts, dropped, effMin, b-sumMin)
	m.waterFill(parts, dropped, alloc, scores, m.leftover(parts, dropped, alloc, b))

	return m.plan(parts, dropped, alloc, b), nil
}

// partIndex finds a bucket inside the participating slice.
func partIndex(parts []types.Bucket, id types.BucketID) (int, bool) {
	for i := range parts {
		if parts[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// relaxMinimums scales the non-sticky minimums down proportionally so they
// fit beside the sticky ones. Sticky minimums alone exceeding the budget is
// always fatal.
func (m *Manager) relaxMinimums(parts []types.Bucket, dropped map[types.BucketID]bool, effMin []int, b int) (int, error) {
	stickyMin, otherMin := 0, 0
	for i, bk := range parts {
		if dropped[bk.ID] {
			continue
		}
		if bk.Sticky {
			stickyMin += effMin[i]
		} else {
			otherMin += effMin[i]
		}
	}
	if stickyMin > b {
		return 0, types.NewBudgetExhausted(
			"sticky minimums require %d tokens but budget is %d", stickyMin, b)
	}

	avail := b - stickyMin
	sumMin := stickyMin
	for i, bk := range parts {
		if dropped[bk.ID] || bk.Sticky {
			continue
		}
		effMin[i] = int(int64(effMin[i]) * int64(avail) / int64(otherMin))
		sumMin += effMin[i]
	}
	m.logger.Debug("non-sticky minimums relaxed",
		zap.Int("sticky_min", stickyMin),
		zap.Int("scaled_total", sumMin-stickyMin))
	return sumMin, nil
}

// initialDistribution hands each non-dropped bucket its minimum plus a
// weight-proportional share of the remainder, capped at its maximum. Integer
// arithmetic; the floor remainder goes one token at a time to the
// highest-weight buckets still below their maximum.
func (m *Manager) initialDistribution(parts []types.Bucket, dropped map[types.BucketID]bool, effMin []int, remaining int) []int {
	alloc := make([]int, len(parts))

	var sumW float64
	for i, bk := range parts {
		if dropped[bk.ID] {
			continue
		}
		alloc[i] = effMin[i]
		sumW += bk.Weight
	}
	if remaining <= 0 {
		return alloc
	}

	// All weights zero leaves the proportional formula undefined; the whole
	// remainder then flows to the water-filling stage instead.
	if sumW > 0 {
		shares := make([]int, len(parts))
		handed := 0
		for i, bk := range parts {
			if dropped[bk.ID] {
				continue
			}
			shares[i] = int(float64(remaining) * bk.Weight / sumW)
			handed += shares[i]
		}

		// Floor remainder: one token each to the heaviest buckets below max.
		order := make([]int, 0, len(parts))
		for i, bk := range parts {
			if !dropped[bk.ID] {
				order = append(order, i)
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			wa, wb := parts[order[a]].Weight, parts[order[b]].Weight
			if wa != wb {
				return wa > wb
			}
			return parts[order[a]].ID < parts[order[b]].ID
		})
		for rem := remaining - handed; rem > 0; {
			progressed := false
			for _, i := range order {
				if rem == 0 {
					break
				}
				if effMin[i]+shares[i] >= parts[i].MaxTokens {
					continue
				}
				shares[i]++
				rem--
				progressed = true
			}
			if !progressed {
				break
			}
		}

		for i, bk := range parts {
			if dropped[bk.ID] {
				continue
			}
			alloc[i] = effMin[i] + shares[i]
			if alloc[i] > bk.MaxTokens {
				alloc[i] = bk.MaxTokens
			}
		}
	}

	return alloc
}

// leftover is the budget not yet placed after the capped distribution.
func (m *Manager) leftover(parts []types.Bucket, dropped map[types.BucketID]bool, alloc []int, b int) int {
	used := 0
	for i, bk := range parts {
		if !dropped[bk.ID] {
			used += alloc[i]
		}
	}
	return b - used
}

// waterFill assigns the leftover budget chunk by chunk to the bucket with
// the highest marginal utility score/(1+allocation), ties broken by lower
// bucket id. Allocations only ever grow here.
func (m *Manager) waterFill(parts []types.Bucket, dropped map[types.BucketID]bool, alloc []int, scores map[types.BucketID]float64, leftover int) {
	for leftover > 0 {
		best := -1
		var bestUtility float64
		for i, bk := range parts {
			if dropped[bk.ID] || alloc[i] >= bk.MaxTokens {
				continue
			}
			utility := scores[bk.ID] / float64(1+alloc[i])
			if best == -1 || utility > bestUtility {
				best, bestUtility = i, utility
			}
		}
		if best == -1 {
			return
		}

		add := m.chunk
		if add > leftover {
			add = leftover
		}
		if headroom := parts[best].MaxTokens - alloc[best]; add > headroom {
			add = headroom
		}
		alloc[best] += add
		leftover -= add
	}
}

// plan assembles the final Plan in ascending bucket id order.
func (m *Manager) plan(parts []types.Bucket, dropped map[types.BucketID]bool, alloc []int, b int) *Plan {
	p := &Plan{
		Budget:      b,
		Allocations: make([]Allocation, 0, len(parts)),
	}
	for i, bk := range parts {
		a := Allocation{Bucket: bk.ID, Tokens: alloc[i], Dropped: dropped[bk.ID]}
		if a.Dropped {
			a.Tokens = 0
			p.Dropped = append(p.Dropped, bk.ID)
		} else {
			p.TotalAllocated += a.Tokens
		}
		p.Allocations = append(p.Allocations, a)
	}

	m.logger.Debug("budget plan computed",
		zap.Int("budget", b),
		zap.Int("allocated", p.TotalAllocated),
		zap.Int("buckets", len(parts)),
		zap.Int("dropped", len(p.Dropped)))
	return p
}
