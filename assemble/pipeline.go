package assemble

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/budget"
	"github.com/BaSui01/contextfit/compress"
	"github.com/BaSui01/contextfit/policy"
	"github.com/BaSui01/contextfit/types"
)

// merged is the per-bucket view of the request sections.
type merged struct {
	content string
	score   float64
}

// Assemble runs the pipeline: resolve policy, allocate budget, compress
// per bucket, render. The returned context is complete or the error is
// final; cancellation surfaces the context error.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*types.AssembledContext, error) {
	requestID := uuid.New().String()
	logger := a.logger.With(zap.String("request_id", requestID))
	start := time.Now()

	policyName := req.Policy
	if policyName == "" {
		policyName = policy.DefaultPolicy
	}

	ctx, span := a.tracer.Start(ctx, "contextfit.assemble",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("policy", policyName),
			attribute.Int("sections", len(req.Sections)),
		))
	defer span.End()

	out, err := a.run(ctx, logger, req)
	if err != nil {
		span.SetAttributes(attribute.String("status", "error"))
		a.collector.RecordAssembly(policyName, "error", time.Since(start))
		logger.Warn("assembly failed",
			zap.String("policy", policyName),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("status", "ok"),
		attribute.Int("context.total_tokens", out.TotalTokens),
		attribute.Int("context.dropped", len(out.Dropped)),
	)
	a.collector.RecordAssembly(policyName, "ok", time.Since(start))
	a.collector.RecordAssembledTokens(policyName, out.TotalTokens)
	logger.Info("context assembled",
		zap.String("policy", policyName),
		zap.Int("total_tokens", out.TotalTokens),
		zap.Int("sections", len(out.Sections)),
		zap.Int("dropped", len(out.Dropped)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (a *Assembler) run(ctx context.Context, logger *zap.Logger, req Request) (*types.AssembledContext, error) {
	pol, err := a.resolvePolicy(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, sections, err := a.allocate(ctx, pol, req)
	if err != nil {
		return nil, err
	}
	a.recordPlan(logger, plan)

	results, infeasible, err := a.compressBuckets(ctx, logger, pol, plan, sections)
	if err != nil {
		return nil, err
	}

	return a.render(ctx, logger, pol, plan, results, infeasible)
}

// Plan resolves the policy and computes the allocation plan without
// compressing or rendering anything: a dry run of the first two pipeline
// stages, for inspecting how a request would be funded. Dry runs do not
// touch the metrics collector.
func (a *Assembler) Plan(ctx context.Context, req Request) (*policy.Policy, *budget.Plan, error) {
	ctx, span := a.tracer.Start(ctx, "contextfit.plan")
	defer span.End()

	pol, err := a.resolvePolicy(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	plan, _, err := a.allocate(ctx, pol, req)
	if err != nil {
		return nil, nil, err
	}
	return pol, plan, nil
}

func (a *Assembler) resolvePolicy(ctx context.Context, req Request) (*policy.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := a.tracer.Start(ctx, "contextfit.resolve_policy")
	defer span.End()

	pol, err := a.engine.Resolve(req.Policy, req.Overrides)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("policy", pol.Name),
		attribute.Int("buckets", len(pol.Buckets)),
	)
	return pol, nil
}

func (a *Assembler) allocate(ctx context.Context, pol *policy.Policy, req Request) (*budget.Plan, map[types.BucketID]*merged, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	_, span := a.tracer.Start(ctx, "contextfit.allocate_budget")
	defer span.End()

	sections := mergeSections(req.Sections)
	scores := make(map[types.BucketID]float64, len(sections))
	for id, m := range sections {
		scores[id] = m.score
	}

	opts := []budget.Option{budget.WithLogger(a.logger)}
	if a.chunkSize > 0 {
		opts = append(opts, budget.WithChunkSize(a.chunkSize))
	}
	if a.relaxed {
		opts = append(opts, budget.WithRelaxedMinimums())
	}
	mgr, err := budget.New(pol.Buckets, opts...)
	if err != nil {
		return nil, nil, err
	}
	plan, err := mgr.Allocate(req.limits(), scores, pol.DropOrder)
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("budget", plan.Budget),
		attribute.Int("allocated", plan.TotalAllocated),
		attribute.Int("dropped", len(plan.Dropped)),
	)
	return plan, sections, nil
}

func (a *Assembler) recordPlan(logger *zap.Logger, plan *budget.Plan) {
	for _, alloc := range plan.Allocations {
		if !alloc.Dropped {
			a.collector.RecordAllocation(string(alloc.Bucket), alloc.Tokens)
		}
	}
	for _, id := range plan.Dropped {
		a.collector.RecordDrop(string(id), "budget")
		logger.Debug("bucket dropped by budget fallback", zap.String("bucket", string(id)))
	}
}

func (a *Assembler) compressBuckets(ctx context.Context, logger *zap.Logger, pol *policy.Policy, plan *budget.Plan, sections map[types.BucketID]*merged) (map[types.BucketID]*compress.Result, []types.BucketID, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	cctx, span := a.tracer.Start(ctx, "contextfit.compress_buckets")
	defer span.End()

	results := make(map[types.BucketID]*compress.Result, len(plan.Allocations))
	var infeasible []types.BucketID

	// Allocations are in ascending bucket id order, which keeps failures
	// and drop decisions deterministic.
	for _, alloc := range plan.Allocations {
		if alloc.Dropped || alloc.Tokens == 0 {
			continue
		}
		bk, _ := pol.Bucket(alloc.Bucket)
		strategy := bk.Compress.Canonical()

		res, err := a.registry.Reduce(cctx, bk.Compress, sections[alloc.Bucket].content, alloc.Tokens)
		if err != nil {
			if types.IsCode(err, types.ErrCompressionInfeasible) && !bk.Sticky {
				infeasible = append(infeasible, alloc.Bucket)
				a.collector.RecordDrop(string(alloc.Bucket), "infeasible")
				a.collector.RecordCompression(string(strategy), "infeasible", 0, 0)
				logger.Debug("bucket dropped, content cannot fit its allocation",
					zap.String("bucket", string(alloc.Bucket)),
					zap.String("strategy", string(strategy)),
					zap.Int("target", alloc.Tokens),
				)
				continue
			}
			a.collector.RecordCompression(string(strategy), "error", 0, 0)
			return nil, nil, annotateBucket(err, alloc.Bucket)
		}

		results[alloc.Bucket] = res
		a.collector.RecordCompression(string(res.Strategy), "ok", res.OriginalTokens-res.Tokens, res.Ratio)
	}

	span.SetAttributes(
		attribute.Int("compressed", len(results)),
		attribute.Int("dropped", len(infeasible)),
	)
	return results, infeasible, nil
}

func (a *Assembler) render(ctx context.Context, logger *zap.Logger, pol *policy.Policy, plan *budget.Plan, results map[types.BucketID]*compress.Result, infeasible []types.BucketID) (*types.AssembledContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := a.tracer.Start(ctx, "contextfit.render")
	defer span.End()

	head, middle, tail := placementOrder(pol, results)

	out := &types.AssembledContext{}
	var parts []string
	appendGroup := func(ids []types.BucketID, group *[]types.BucketID) {
		for _, id := range ids {
			res := results[id]
			if res.Text == "" {
				// A tight allocation can cut content down to nothing;
				// an empty section is not worth a separator.
				logger.Debug("bucket rendered empty", zap.String("bucket", string(id)))
				continue
			}
			out.Sections = append(out.Sections, types.RenderedSection{
				Bucket: id,
				Text:   res.Text,
				Tokens: res.Tokens,
			})
			out.TotalTokens += res.Tokens
			parts = append(parts, res.Text)
			*group = append(*group, id)
		}
	}
	appendGroup(head, &out.Placements.Head)
	appendGroup(middle, &out.Placements.Middle)
	appendGroup(tail, &out.Placements.Tail)
	out.Text = strings.Join(parts, "\n\n")

	out.Dropped = append(append([]types.BucketID(nil), plan.Dropped...), infeasible...)
	sort.Slice(out.Dropped, func(i, j int) bool { return out.Dropped[i] < out.Dropped[j] })

	if out.TotalTokens > plan.Budget {
		return nil, types.NewBudgetOverflow(
			"assembled %d tokens but the input budget is %d", out.TotalTokens, plan.Budget)
	}
	return out, nil
}

// placementOrder resolves the final bucket order of each position group:
// the policy's declared lists first, then every rendered bucket missing
// from all three lists, appended to the group its placement hint names
// (middle when unset) in ascending bucket id order.
func placementOrder(pol *policy.Policy, results map[types.BucketID]*compress.Result) (head, middle, tail []types.BucketID) {
	placed := make(map[types.BucketID]bool, len(results))
	take := func(ids []types.BucketID) []types.BucketID {
		var group []types.BucketID
		for _, id := range ids {
			if _, ok := results[id]; ok {
				group = append(group, id)
				placed[id] = true
			}
		}
		return group
	}
	head = take(pol.Placements.Head)
	middle = take(pol.Placements.Middle)
	tail = take(pol.Placements.Tail)

	// pol.Buckets is sorted by id, so the appends are deterministic.
	for _, bk := range pol.Buckets {
		if _, ok := results[bk.ID]; !ok || placed[bk.ID] {
			continue
		}
		switch bk.Placement {
		case types.PlacementHead:
			head = append(head, bk.ID)
		case types.PlacementTail:
			tail = append(tail, bk.ID)
		default:
			middle = append(middle, bk.ID)
		}
	}
	return head, middle, tail
}

// mergeSections folds the request sections into one entry per bucket:
// contents concatenate in input order with a blank-line separator, the
// score is the maximum. Empty sections are skipped.
func mergeSections(sections []types.Section) map[types.BucketID]*merged {
	out := make(map[types.BucketID]*merged)
	for _, s := range sections {
		if s.Content == "" {
			continue
		}
		m, ok := out[s.Bucket]
		if !ok {
			out[s.Bucket] = &merged{content: s.Content, score: s.Score}
			continue
		}
		m.content += "\n\n" + s.Content
		if s.Score > m.score {
			m.score = s.Score
		}
	}
	return out
}

// annotateBucket stamps the failing bucket on typed errors that do not
// carry one yet.
func annotateBucket(err error, id types.BucketID) error {
	var te *types.Error
	if errors.As(err, &te) && te.Bucket == "" {
		return te.WithBucket(id)
	}
	return err
}
