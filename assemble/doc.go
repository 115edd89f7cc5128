// Package assemble turns scored content sections into a model-ready
// context window. The pipeline resolves the bucket layout policy,
// allocates the input token budget across buckets, compresses each bucket
// down to its allocation and renders the survivors in placement order.
// Any stage failure aborts the call; there is never a partial result.
package assemble
