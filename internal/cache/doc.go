// Package cache is the Redis-backed store behind the summary cache.
// Abstractive compression pays a model call per oversized bucket; caching
// summaries by content hash makes repeated assemblies of slow-moving
// context cheap. Wiring happens in the root package from CacheConfig.
package cache
