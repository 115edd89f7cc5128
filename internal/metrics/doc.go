// Package metrics collects Prometheus instruments for the assembly
// pipeline: assembly counts, latency and output size per policy,
// compression counts, saved tokens and ratios per strategy, dropped
// buckets per reason, and allocated tokens per bucket. The Collector is
// nil-receiver safe so instrumented code paths need no guards, and
// instruments register against a caller-supplied registerer.
package metrics
