package types

import "regexp"

// BucketID identifies a semantic category of context content.
type BucketID string

// Canonical bucket identifiers. Custom identifiers are allowed as long as
// they pass Validate.
const (
	BucketSystem     BucketID = "system"
	BucketTask       BucketID = "task"
	BucketTools      BucketID = "tools"
	BucketHistory    BucketID = "history"
	BucketMemory     BucketID = "memory"
	BucketRAG        BucketID = "rag"
	BucketFewshot    BucketID = "fewshot"
	BucketScratchpad BucketID = "scratchpad"
)

var canonicalBuckets = map[BucketID]struct{}{
	BucketSystem:     {},
	BucketTask:       {},
	BucketTools:      {},
	BucketHistory:    {},
	BucketMemory:     {},
	BucketRAG:        {},
	BucketFewshot:    {},
	BucketScratchpad: {},
}

// customIDPattern bounds custom bucket identifiers: lowercase, digits and
// underscores, at most 32 characters, starting with a letter.
var customIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// IsCanonical reports whether the identifier is one of the built-in buckets.
func (id BucketID) IsCanonical() bool {
	_, ok := canonicalBuckets[id]
	return ok
}

// Validate checks the identifier at configuration time.
func (id BucketID) Validate() error {
	if id == "" {
		return NewConfigError("bucket id must not be empty")
	}
	if id.IsCanonical() {
		return nil
	}
	if !customIDPattern.MatchString(string(id)) {
		return NewConfigError("invalid bucket id %q: must match %s", id, customIDPattern.String())
	}
	return nil
}

// Placement selects the position group of a bucket in the assembled output.
// Head and tail positions counter degraded model attention to mid-sequence
// content.
type Placement string

const (
	PlacementHead   Placement = "head"
	PlacementMiddle Placement = "middle"
	PlacementTail   Placement = "tail"
)

// Validate checks the placement tag. The empty value is allowed and treated
// as middle.
func (p Placement) Validate() error {
	switch p {
	case "", PlacementHead, PlacementMiddle, PlacementTail:
		return nil
	}
	return NewConfigError("invalid placement %q", p)
}

// Strategy tags the compression applied to fit a bucket's content into its
// allocation.
type Strategy string

const (
	// StrategyNone passes content through unchanged and fails when it does
	// not fit.
	StrategyNone Strategy = "none"

	// StrategyTruncateHead drops tokens from the start until the remainder
	// fits (keeps the tail).
	StrategyTruncateHead Strategy = "truncate_head"

	// StrategyTruncateTail drops tokens from the end until the remainder
	// fits (keeps the head).
	StrategyTruncateTail Strategy = "truncate_tail"

	// StrategySignatureOnly keeps structural headers and signatures,
	// discarding bodies.
	StrategySignatureOnly Strategy = "signature_only"

	// StrategyExtractive keeps the highest-scoring sub-units in their
	// original order.
	StrategyExtractive Strategy = "extractive"

	// StrategyAbstractive delegates to an external summarizer.
	StrategyAbstractive Strategy = "abstractive"
)

// Legacy strategy aliases accepted in configuration files.
const (
	StrategyTaskSummary       Strategy = "task_summary"
	StrategyAggressiveExtract Strategy = "aggressive_extract"
)

// Canonical resolves aliases and the unset value to a concrete strategy.
// The unset value defaults to tail truncation, the safest deterministic
// reduction.
func (s Strategy) Canonical() Strategy {
	switch s {
	case "":
		return StrategyTruncateTail
	case StrategyTaskSummary, StrategyAggressiveExtract:
		return StrategyExtractive
	}
	return s
}

// Validate checks the strategy tag at configuration time.
func (s Strategy) Validate() error {
	switch s.Canonical() {
	case StrategyNone, StrategyTruncateHead, StrategyTruncateTail,
		StrategySignatureOnly, StrategyExtractive, StrategyAbstractive:
		return nil
	}
	return NewConfigError("invalid compression strategy %q", s)
}

// Bucket is the configuration of one content category. Defined at
// configuration time and immutable during a request.
type Bucket struct {
	ID        BucketID  `json:"id" yaml:"id"`
	MinTokens int       `json:"min_tokens" yaml:"min_tokens"`
	MaxTokens int       `json:"max_tokens" yaml:"max_tokens"`
	Weight    float64   `json:"weight" yaml:"weight"`
	Sticky    bool      `json:"sticky,omitempty" yaml:"sticky,omitempty"`
	Droppable bool      `json:"droppable,omitempty" yaml:"droppable,omitempty"`
	Compress  Strategy  `json:"compress,omitempty" yaml:"compress,omitempty"`
	Placement Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
}

// Validate checks the bucket invariants: 0 <= min <= max, weight >= 0,
// valid identifier, strategy and placement, and that a bucket is not both
// sticky and droppable.
func (b Bucket) Validate() error {
	if err := b.ID.Validate(); err != nil {
		return err
	}
	if b.MinTokens < 0 {
		return NewConfigError("bucket %s: min_tokens %d must be >= 0", b.ID, b.MinTokens).WithBucket(b.ID)
	}
	if b.MaxTokens < b.MinTokens {
		return NewConfigError("bucket %s: max_tokens %d must be >= min_tokens %d",
			b.ID, b.MaxTokens, b.MinTokens).WithBucket(b.ID)
	}
	if b.Weight < 0 {
		return NewConfigError("bucket %s: weight %g must be >= 0", b.ID, b.Weight).WithBucket(b.ID)
	}
	if b.Sticky && b.Droppable {
		return NewConfigError("bucket %s: sticky and droppable are mutually exclusive", b.ID).WithBucket(b.ID)
	}
	if err := b.Compress.Validate(); err != nil {
		return err
	}
	return b.Placement.Validate()
}
