/*
Package types provides the shared type definitions for contextfit.

types is the lowest-level public package. It depends on no other package in
the module and gives budget, policy, compress, and assemble a common contract,
avoiding circular dependencies.

Core types:

  - BucketID / Bucket: a semantic content category with token bounds and weight
  - Placement: head / middle / tail position group
  - Strategy: compression strategy tag (plus legacy aliases)
  - Section: one input fragment with its caller-supplied score
  - RenderedSection: one compressed, rendered output section
  - AssembledContext: the final output contract consumed by prompt builders
  - Error / ErrorCode: structured error taxonomy with cause chaining
*/
package types
