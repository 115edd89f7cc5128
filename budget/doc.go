/*
Package budget computes per-bucket token allocations for a context window.

The Manager distributes an available budget B = context_limit - output_budget
- overhead across the buckets participating in a request:

 1. Minimums first. If the minimums alone exceed B, buckets are zeroed in
    drop order (never sticky ones) until they fit; if they still do not fit
    the request fails with BUDGET_EXHAUSTED.
 2. The remainder is distributed proportionally to bucket weights, capped at
    each bucket's maximum, using integer token arithmetic with the floor
    remainder going to the highest-weight buckets first.
 3. Budget left over from the caps is water-filled: the bucket with the
    highest marginal utility score/(1+allocation) receives the next chunk,
    until everything is placed or every bucket is at its maximum.

All steps are deterministic: identical inputs produce identical plans.
*/
package budget
