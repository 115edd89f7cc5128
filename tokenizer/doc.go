// Package tokenizer provides the token counting interface consumed by the
// budget and compression layers, a tiktoken-backed implementation for
// OpenAI-family models, and a character-ratio estimator fallback for
// everything else.
package tokenizer
