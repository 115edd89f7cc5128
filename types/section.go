package types

// Section is one input fragment: raw content for a bucket plus its
// caller-supplied relevance score. The library performs no scoring of its
// own.
type Section struct {
	Bucket  BucketID `json:"bucket" yaml:"bucket"`
	Content string   `json:"content" yaml:"content"`
	Score   float64  `json:"score" yaml:"score"`
}

// RenderedSection is one compressed, rendered output section.
type RenderedSection struct {
	Bucket BucketID `json:"bucket"`
	Text   string   `json:"text"`
	Tokens int      `json:"tokens"`
}

// PlacementMap records which buckets ended up in each position group, in
// rendering order.
type PlacementMap struct {
	Head   []BucketID `json:"head"`
	Middle []BucketID `json:"middle"`
	Tail   []BucketID `json:"tail"`
}

// AssembledContext is the stable output contract a prompt-construction layer
// consumes.
type AssembledContext struct {
	// Text is the final assembled input, sections joined by blank lines in
	// head, middle, tail order.
	Text string `json:"text"`

	// Sections lists the rendered sections in their final order.
	Sections []RenderedSection `json:"sections"`

	// TotalTokens is the sum of the section token counts.
	TotalTokens int `json:"total_tokens"`

	// Dropped lists buckets removed by drop-order fallback or infeasible
	// compression. Sticky buckets never appear here.
	Dropped []BucketID `json:"dropped"`

	// Placements records the position group of every rendered bucket.
	Placements PlacementMap `json:"placements"`
}

// Section returns the rendered section for a bucket, or nil when the bucket
// was dropped or absent.
func (a *AssembledContext) Section(id BucketID) *RenderedSection {
	for i := range a.Sections {
		if a.Sections[i].Bucket == id {
			return &a.Sections[i]
		}
	}
	return nil
}

// WasDropped reports whether the bucket appears in the dropped list.
func (a *AssembledContext) WasDropped(id BucketID) bool {
	for _, d := range a.Dropped {
		if d == id {
			return true
		}
	}
	return false
}
