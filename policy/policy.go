package policy

import (
	"github.com/BaSui01/contextfit/types"
)

// Policy is a resolved, self-contained snapshot of one assembly strategy.
// Resolve hands out a fresh copy per call, so callers may mutate their copy
// without affecting the engine or requests already in flight.
type Policy struct {
	// Name of the registered policy this snapshot was resolved from.
	Name string `json:"name"`

	// Buckets is the effective bucket configuration in ascending id order.
	Buckets []types.Bucket `json:"buckets"`

	// DropOrder lists non-sticky buckets to zero first when the bucket
	// minimums exceed the input budget, least valuable first.
	DropOrder []types.BucketID `json:"drop_order,omitempty"`

	// Placements holds the declared head/middle/tail groups. Buckets absent
	// from every group are placed by their own Placement hint at render
	// time.
	Placements types.PlacementMap `json:"placements"`
}

// Bucket returns the effective configuration for one bucket.
func (p *Policy) Bucket(id types.BucketID) (types.Bucket, bool) {
	i, ok := bucketIndex(p.Buckets, id)
	if !ok {
		return types.Bucket{}, false
	}
	return p.Buckets[i], true
}

func (p *Policy) clone() *Policy {
	out := &Policy{
		Name:      p.Name,
		Buckets:   append([]types.Bucket(nil), p.Buckets...),
		DropOrder: append([]types.BucketID(nil), p.DropOrder...),
		Placements: types.PlacementMap{
			Head:   append([]types.BucketID(nil), p.Placements.Head...),
			Middle: append([]types.BucketID(nil), p.Placements.Middle...),
			Tail:   append([]types.BucketID(nil), p.Placements.Tail...),
		},
	}
	return out
}

// validate checks internal consistency: bucket invariants, unique ids, a
// drop order of known non-sticky buckets, and placement groups that mention
// each known bucket at most once.
func (p *Policy) validate() error {
	if len(p.Buckets) == 0 {
		return types.NewConfigError("policy %q has no buckets", p.Name)
	}
	seen := make(map[types.BucketID]bool, len(p.Buckets))
	for _, b := range p.Buckets {
		if err := b.Validate(); err != nil {
			return err
		}
		if seen[b.ID] {
			return types.NewConfigError("policy %q has duplicate bucket %q", p.Name, b.ID).WithBucket(b.ID)
		}
		seen[b.ID] = true
	}

	inDrop := make(map[types.BucketID]bool, len(p.DropOrder))
	for _, id := range p.DropOrder {
		b, ok := p.Bucket(id)
		if !ok {
			return types.NewConfigError("policy %q drop order references unknown bucket %q", p.Name, id).WithBucket(id)
		}
		if b.Sticky {
			return types.NewConfigError("policy %q drop order lists sticky bucket %q", p.Name, id).WithBucket(id)
		}
		if inDrop[id] {
			return types.NewConfigError("policy %q drop order repeats bucket %q", p.Name, id).WithBucket(id)
		}
		inDrop[id] = true
	}

	groups := []struct {
		name string
		ids  []types.BucketID
	}{
		{"head", p.Placements.Head},
		{"middle", p.Placements.Middle},
		{"tail", p.Placements.Tail},
	}
	placed := make(map[types.BucketID]string)
	for _, g := range groups {
		for _, id := range g.ids {
			if _, ok := p.Bucket(id); !ok {
				return types.NewConfigError("policy %q places unknown bucket %q in %s", p.Name, id, g.name).WithBucket(id)
			}
			if prev, dup := placed[id]; dup {
				return types.NewConfigError("policy %q places bucket %q in both %s and %s", p.Name, id, prev, g.name).WithBucket(id)
			}
			placed[id] = g.name
		}
	}
	return nil
}

func bucketIndex(buckets []types.Bucket, id types.BucketID) (int, bool) {
	for i := range buckets {
		if buckets[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Spec declares a named policy for registration.
type Spec struct {
	Name string `json:"name" yaml:"name"`

	// Buckets replaces the engine's base bucket set when non-nil.
	Buckets []types.Bucket `json:"buckets,omitempty" yaml:"buckets,omitempty"`

	DropOrder []types.BucketID `json:"drop_order,omitempty" yaml:"drop_order,omitempty"`

	Head   []types.BucketID `json:"head,omitempty" yaml:"head,omitempty"`
	Middle []types.BucketID `json:"middle,omitempty" yaml:"middle,omitempty"`
	Tail   []types.BucketID `json:"tail,omitempty" yaml:"tail,omitempty"`

	// Overrides adjusts individual buckets relative to the base set.
	Overrides map[types.BucketID]BucketOverride `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}
