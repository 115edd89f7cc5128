package assemble_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BaSui01/contextfit/assemble"
	"github.com/BaSui01/contextfit/policy"
	"github.com/BaSui01/contextfit/types"
)

// wordTok counts whitespace-separated words.
type wordTok struct{}

func (wordTok) CountTokens(text string) (int, error) { return len(strings.Fields(text)), nil }
func (wordTok) Name() string                         { return "words" }

type fakeSummarizer struct {
	out        string
	calls      int
	lastTarget int
}

func (s *fakeSummarizer) Summarize(ctx context.Context, text string, targetTokens int) (string, error) {
	s.calls++
	s.lastTarget = targetTokens
	return s.out, nil
}

func newEngine(t *testing.T, buckets []types.Bucket, specs ...policy.Spec) *policy.Engine {
	t.Helper()
	eng, err := policy.NewEngine(policy.WithBuckets(buckets), policy.WithoutBuiltins())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for _, spec := range specs {
		if err := eng.Register(spec); err != nil {
			t.Fatalf("Register(%s): %v", spec.Name, err)
		}
	}
	return eng
}

func builtinEngine(t *testing.T) *policy.Engine {
	t.Helper()
	eng, err := policy.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := assemble.New(nil, wordTok{}); types.GetCode(err) != types.ErrConfig {
		t.Fatalf("nil engine: %v", err)
	}
	if _, err := assemble.New(builtinEngine(t), nil); types.GetCode(err) != types.ErrConfig {
		t.Fatalf("nil tokenizer: %v", err)
	}
}

func TestAssemble_DefaultPolicyOrdering(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			// Deliberately out of layout order.
			{Bucket: types.BucketRAG, Content: "Incident happened at noon", Score: 0.9},
			{Bucket: types.BucketTask, Content: "Summarize the incident report", Score: 1.0},
			{Bucket: types.BucketSystem, Content: "You are terse", Score: 1.0},
		},
		ContextLimit: 1000,
		OutputBudget: 200,
		Overhead:     100,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := "You are terse\n\nSummarize the incident report\n\nIncident happened at noon"
	if out.Text != want {
		t.Fatalf("text:\n%q\nwant:\n%q", out.Text, want)
	}
	if out.TotalTokens != 11 {
		t.Fatalf("total tokens = %d", out.TotalTokens)
	}
	if len(out.Dropped) != 0 {
		t.Fatalf("dropped = %v", out.Dropped)
	}
	if !reflect.DeepEqual(out.Placements.Head, []types.BucketID{"system", "task"}) {
		t.Fatalf("head = %v", out.Placements.Head)
	}
	if !reflect.DeepEqual(out.Placements.Middle, []types.BucketID{"rag"}) {
		t.Fatalf("middle = %v", out.Placements.Middle)
	}
	if len(out.Placements.Tail) != 0 {
		t.Fatalf("tail = %v", out.Placements.Tail)
	}
	if sec := out.Section("system"); sec == nil || sec.Tokens != 3 {
		t.Fatalf("system section = %+v", sec)
	}
}

func TestAssemble_CompressionToAllocation(t *testing.T) {
	t.Parallel()

	buckets := []types.Bucket{
		{ID: "notes", MaxTokens: 10, Weight: 1.0, Compress: types.StrategyTruncateTail},
		{ID: "system", MinTokens: 2, MaxTokens: 5, Weight: 1.0, Sticky: true, Placement: types.PlacementHead},
	}
	eng := newEngine(t, buckets, policy.Spec{
		Name: "tiny",
		Head: []types.BucketID{"system"},
	})
	asm, err := assemble.New(eng, wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := assemble.Request{
		Sections: []types.Section{
			{Bucket: "system", Content: "stay focused", Score: 1.0},
			{Bucket: "notes", Content: "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu", Score: 0.5},
		},
		Policy:       "tiny",
		ContextLimit: 20,
		OutputBudget: 5,
		Overhead:     3,
	}
	out, err := asm.Assemble(context.Background(), req)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// Budget is 12: system caps at 5, water-filling tops notes up to 7, so
	// the 12-word notes content truncates to its first 7 words.
	if got := out.Section("notes"); got == nil || got.Text != "alpha beta gamma delta epsilon zeta eta" || got.Tokens != 7 {
		t.Fatalf("notes section = %+v", got)
	}
	if out.Text != "stay focused\n\nalpha beta gamma delta epsilon zeta eta" {
		t.Fatalf("text = %q", out.Text)
	}
	if out.TotalTokens != 9 {
		t.Fatalf("total tokens = %d", out.TotalTokens)
	}

	// The same request must produce the identical context every time.
	for i := 0; i < 10; i++ {
		again, err := asm.Assemble(context.Background(), req)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !reflect.DeepEqual(out, again) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, out, again)
		}
	}
}

func TestAssemble_RequestOverridesApply(t *testing.T) {
	t.Parallel()

	buckets := []types.Bucket{
		{ID: "notes", MaxTokens: 10, Weight: 1.0, Compress: types.StrategyTruncateTail},
		{ID: "system", MinTokens: 2, MaxTokens: 5, Weight: 1.0, Sticky: true},
	}
	eng := newEngine(t, buckets, policy.Spec{Name: "tiny", Head: []types.BucketID{"system"}})
	asm, err := assemble.New(eng, wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	max := 3
	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: "system", Content: "stay focused", Score: 1.0},
			{Bucket: "notes", Content: "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu", Score: 0.5},
		},
		Policy: "tiny",
		Overrides: &policy.Overrides{
			Buckets: map[types.BucketID]policy.BucketOverride{
				"notes": {MaxTokens: &max},
			},
		},
		ContextLimit: 20,
		OutputBudget: 5,
		Overhead:     3,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got := out.Section("notes"); got == nil || got.Tokens != 3 || got.Text != "alpha beta gamma" {
		t.Fatalf("notes section = %+v", got)
	}
}

func TestAssemble_DropOrderFallback(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Minimums are 300+300+120=720 against a budget of 700; the default
	// drop order zeroes fewshot (no effect) and then tools.
	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: types.BucketSystem, Content: "a b", Score: 1.0},
			{Bucket: types.BucketTask, Content: "c d", Score: 1.0},
			{Bucket: types.BucketTools, Content: "run tests", Score: 0.6},
			{Bucket: types.BucketFewshot, Content: "x", Score: 0.1},
		},
		ContextLimit: 1000,
		OutputBudget: 200,
		Overhead:     100,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if !reflect.DeepEqual(out.Dropped, []types.BucketID{"fewshot", "tools"}) {
		t.Fatalf("dropped = %v", out.Dropped)
	}
	if !out.WasDropped("tools") || out.Section("tools") != nil {
		t.Fatalf("tools still rendered: %+v", out)
	}
	if out.Text != "a b\n\nc d" {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestAssemble_InfeasibleStickyFailsCall(t *testing.T) {
	t.Parallel()

	buckets := []types.Bucket{
		{ID: "filler", MaxTokens: 10, Weight: 1.0},
		{ID: "pinned", MinTokens: 1, MaxTokens: 2, Weight: 1.0, Sticky: true, Compress: types.StrategyNone},
	}
	eng := newEngine(t, buckets, policy.Spec{Name: "strict"})
	asm, err := assemble.New(eng, wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: "pinned", Content: "one two three four five", Score: 1.0},
			{Bucket: "filler", Content: "ok", Score: 0.5},
		},
		Policy:       "strict",
		ContextLimit: 20,
		OutputBudget: 5,
		Overhead:     3,
	})
	if types.GetCode(err) != types.ErrCompressionInfeasible {
		t.Fatalf("expected COMPRESSION_INFEASIBLE, got %v", err)
	}
	var te *types.Error
	if !errors.As(err, &te) || te.Bucket != "pinned" {
		t.Fatalf("error not annotated with bucket: %v", err)
	}
}

func TestAssemble_InfeasibleDroppableDropsBucket(t *testing.T) {
	t.Parallel()

	buckets := []types.Bucket{
		{ID: "filler", MaxTokens: 10, Weight: 1.0},
		{ID: "loose", MinTokens: 1, MaxTokens: 2, Weight: 1.0, Compress: types.StrategyNone},
	}
	eng := newEngine(t, buckets, policy.Spec{Name: "lax"})
	asm, err := assemble.New(eng, wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: "loose", Content: "one two three four five", Score: 1.0},
			{Bucket: "filler", Content: "ok", Score: 0.5},
		},
		Policy:       "lax",
		ContextLimit: 20,
		OutputBudget: 5,
		Overhead:     3,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !out.WasDropped("loose") || out.Section("loose") != nil {
		t.Fatalf("loose not dropped: %+v", out)
	}
	if out.Text != "ok" || out.TotalTokens != 1 {
		t.Fatalf("text = %q, tokens = %d", out.Text, out.TotalTokens)
	}
}

func TestAssemble_BudgetExhausted(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = asm.Assemble(context.Background(), assemble.Request{
		Sections:     []types.Section{{Bucket: types.BucketSystem, Content: "hi", Score: 1.0}},
		ContextLimit: 100,
		OutputBudget: 90,
		Overhead:     20,
	})
	if types.GetCode(err) != types.ErrBudgetExhausted {
		t.Fatalf("expected BUDGET_EXHAUSTED, got %v", err)
	}
}

func TestAssemble_UnknownPolicy(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = asm.Assemble(context.Background(), assemble.Request{
		Sections:     []types.Section{{Bucket: types.BucketSystem, Content: "hi", Score: 1.0}},
		Policy:       "nope",
		ContextLimit: 1000,
		OutputBudget: 100,
	})
	if types.GetCode(err) != types.ErrConfig {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestAssemble_Cancellation(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = asm.Assemble(ctx, assemble.Request{
		Sections:     []types.Section{{Bucket: types.BucketSystem, Content: "hi", Score: 1.0}},
		ContextLimit: 1000,
		OutputBudget: 100,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAssemble_MergesDuplicateBucketSections(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: types.BucketRAG, Content: "first chunk", Score: 0.2},
			{Bucket: types.BucketRAG, Content: "second chunk", Score: 0.9},
		},
		ContextLimit: 1000,
		OutputBudget: 200,
		Overhead:     100,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got := out.Section("rag"); got == nil || got.Text != "first chunk\n\nsecond chunk" {
		t.Fatalf("rag section = %+v", got)
	}
}

func TestAssemble_SummarizerDelegation(t *testing.T) {
	t.Parallel()

	buckets := []types.Bucket{
		{ID: "digest", MaxTokens: 5, Weight: 1.0, Compress: types.StrategyAbstractive},
	}
	eng := newEngine(t, buckets, policy.Spec{Name: "summary"})
	summ := &fakeSummarizer{out: "short version here"}
	asm, err := assemble.New(eng, wordTok{}, assemble.WithSummarizer(summ))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: "digest", Content: "one two three four five six seven eight nine ten eleven twelve", Score: 1.0},
		},
		Policy:       "summary",
		ContextLimit: 20,
		OutputBudget: 5,
		Overhead:     3,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if out.Text != "short version here" {
		t.Fatalf("text = %q", out.Text)
	}
	if summ.calls != 1 || summ.lastTarget != 5 {
		t.Fatalf("summarizer calls=%d target=%d", summ.calls, summ.lastTarget)
	}
}

func TestAssemble_MetricsRecorded(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	asm, err := assemble.New(builtinEngine(t), wordTok{}, assemble.WithMetrics(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = asm.Assemble(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: types.BucketSystem, Content: "You are terse", Score: 1.0},
			{Bucket: types.BucketTask, Content: "Summarize the incident report", Score: 1.0},
		},
		ContextLimit: 1000,
		OutputBudget: 200,
		Overhead:     100,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n == 0 {
		t.Fatal("no metrics recorded")
	}
}

func TestPlan_DryRun(t *testing.T) {
	t.Parallel()

	asm, err := assemble.New(builtinEngine(t), wordTok{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pol, plan, err := asm.Plan(context.Background(), assemble.Request{
		Sections: []types.Section{
			{Bucket: types.BucketRAG, Content: "Incident happened at noon", Score: 0.9},
			{Bucket: types.BucketTask, Content: "Summarize the incident report", Score: 1.0},
			{Bucket: types.BucketSystem, Content: "You are terse", Score: 1.0},
		},
		ContextLimit: 1000,
		OutputBudget: 200,
		Overhead:     100,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if pol.Name != "default" {
		t.Fatalf("policy = %q", pol.Name)
	}
	if plan.Budget != 700 {
		t.Fatalf("budget = %d", plan.Budget)
	}

	wantAlloc := map[types.BucketID]int{"rag": 39, "system": 327, "task": 334}
	if len(plan.Allocations) != len(wantAlloc) {
		t.Fatalf("allocations = %+v", plan.Allocations)
	}
	for id, want := range wantAlloc {
		got, ok := plan.Get(id)
		if !ok || got.Tokens != want {
			t.Fatalf("alloc[%s] = %+v, want %d", id, got, want)
		}
	}
	if plan.TotalAllocated != 700 {
		t.Fatalf("total allocated = %d", plan.TotalAllocated)
	}
	if len(plan.Dropped) != 0 {
		t.Fatalf("dropped = %v", plan.Dropped)
	}
}
