package policy

import (
	"github.com/BaSui01/contextfit/types"
)

// DefaultPolicy is the policy Resolve falls back to when no name is given.
const DefaultPolicy = "default"

// DefaultBuckets returns the standard bucket set: sticky system and task
// buckets, a capped tools bucket reduced to signatures, and droppable or
// compressible context carriers around them.
func DefaultBuckets() []types.Bucket {
	return []types.Bucket{
		{ID: types.BucketSystem, MinTokens: 300, MaxTokens: 800, Weight: 2.0, Sticky: true},
		{ID: types.BucketTask, MinTokens: 300, MaxTokens: 1500, Weight: 2.5, Sticky: true},
		{ID: types.BucketTools, MinTokens: 120, MaxTokens: 400, Weight: 0.8, Compress: types.StrategySignatureOnly},
		{ID: types.BucketHistory, MinTokens: 0, MaxTokens: 3000, Weight: 1.2, Compress: types.StrategyTaskSummary},
		{ID: types.BucketMemory, MinTokens: 0, MaxTokens: 800, Weight: 0.8},
		{ID: types.BucketRAG, MinTokens: 0, MaxTokens: 5000, Weight: 2.8, Compress: types.StrategyExtractive},
		{ID: types.BucketFewshot, MinTokens: 0, MaxTokens: 1200, Weight: 0.5, Droppable: true},
		{ID: types.BucketScratchpad, MinTokens: 0, MaxTokens: 800, Weight: 0.6, Placement: types.PlacementTail},
	}
}

// builtinSpecs declares the policies every fresh engine starts with:
// a general-purpose default, a retrieval-leaning research profile, and a
// code-generation profile that protects tool signatures.
func builtinSpecs() []Spec {
	ragWeight := 3.5
	historyCompress := types.StrategyAggressiveExtract
	toolsWeight := 2.0
	toolsCompress := types.StrategySignatureOnly

	return []Spec{
		{
			Name: DefaultPolicy,
			DropOrder: []types.BucketID{
				types.BucketFewshot, types.BucketRAG, types.BucketHistory, types.BucketTools,
			},
			Head:   []types.BucketID{types.BucketSystem, types.BucketTask, types.BucketTools},
			Middle: []types.BucketID{types.BucketRAG, types.BucketHistory},
			Tail:   []types.BucketID{types.BucketScratchpad},
		},
		{
			Name: "research_heavy",
			DropOrder: []types.BucketID{
				types.BucketFewshot, types.BucketHistory, types.BucketTools,
			},
			Head:   []types.BucketID{types.BucketSystem, types.BucketTask},
			Middle: []types.BucketID{types.BucketRAG, types.BucketHistory},
			Tail:   []types.BucketID{types.BucketScratchpad, types.BucketTools},
			Overrides: map[types.BucketID]BucketOverride{
				types.BucketRAG:     {Weight: &ragWeight},
				types.BucketHistory: {Compress: &historyCompress},
			},
		},
		{
			Name: "code_generation",
			DropOrder: []types.BucketID{
				types.BucketFewshot, types.BucketHistory, types.BucketMemory,
			},
			Head:   []types.BucketID{types.BucketSystem, types.BucketTask, types.BucketTools},
			Middle: []types.BucketID{types.BucketMemory, types.BucketHistory},
			Tail:   []types.BucketID{types.BucketScratchpad},
			Overrides: map[types.BucketID]BucketOverride{
				types.BucketTools: {Weight: &toolsWeight, Compress: &toolsCompress},
			},
		},
	}
}
