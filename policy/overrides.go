package policy

import (
	"github.com/BaSui01/contextfit/types"
)

// BucketOverride adjusts single fields of one bucket. Nil pointers leave the
// field unchanged.
type BucketOverride struct {
	MinTokens *int             `json:"min_tokens,omitempty" yaml:"min_tokens,omitempty"`
	MaxTokens *int             `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Weight    *float64         `json:"weight,omitempty" yaml:"weight,omitempty"`
	Sticky    *bool            `json:"sticky,omitempty" yaml:"sticky,omitempty"`
	Droppable *bool            `json:"droppable,omitempty" yaml:"droppable,omitempty"`
	Compress  *types.Strategy  `json:"compress,omitempty" yaml:"compress,omitempty"`
	Placement *types.Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
}

func (o BucketOverride) applyTo(b *types.Bucket) {
	if o.MinTokens != nil {
		b.MinTokens = *o.MinTokens
	}
	if o.MaxTokens != nil {
		b.MaxTokens = *o.MaxTokens
	}
	if o.Weight != nil {
		b.Weight = *o.Weight
	}
	if o.Sticky != nil {
		b.Sticky = *o.Sticky
	}
	if o.Droppable != nil {
		b.Droppable = *o.Droppable
	}
	if o.Compress != nil {
		b.Compress = *o.Compress
	}
	if o.Placement != nil {
		b.Placement = *o.Placement
	}
}

// Overrides is the request-time adjustment applied to a resolved policy
// copy. Scalar fields replace their counterpart; list fields replace the
// whole list when non-nil (an empty non-nil slice clears it), never merging
// element-wise.
type Overrides struct {
	// Buckets maps bucket id to the scalar adjustments for that bucket.
	// Referencing a bucket the policy does not configure is a CONFIG_ERROR.
	Buckets map[types.BucketID]BucketOverride `json:"buckets,omitempty" yaml:"buckets,omitempty"`

	DropOrder []types.BucketID `json:"drop_order,omitempty" yaml:"drop_order,omitempty"`

	Head   []types.BucketID `json:"head,omitempty" yaml:"head,omitempty"`
	Middle []types.BucketID `json:"middle,omitempty" yaml:"middle,omitempty"`
	Tail   []types.BucketID `json:"tail,omitempty" yaml:"tail,omitempty"`
}

func (o *Overrides) applyTo(p *Policy) error {
	for id, bo := range o.Buckets {
		i, ok := bucketIndex(p.Buckets, id)
		if !ok {
			return types.NewConfigError("override references unknown bucket %q", id).WithBucket(id)
		}
		bo.applyTo(&p.Buckets[i])
	}
	if o.DropOrder != nil {
		p.DropOrder = append([]types.BucketID(nil), o.DropOrder...)
	}
	if o.Head != nil {
		p.Placements.Head = append([]types.BucketID(nil), o.Head...)
	}
	if o.Middle != nil {
		p.Placements.Middle = append([]types.BucketID(nil), o.Middle...)
	}
	if o.Tail != nil {
		p.Placements.Tail = append([]types.BucketID(nil), o.Tail...)
	}
	return nil
}
