// Package compress reduces bucket content to a token target. Deterministic
// strategies (pass-through, head/tail truncation, signature extraction,
// extractive selection) share a tokenizer-driven accounting contract: the
// returned token count never exceeds the target. Abstractive reduction is
// delegated to an external Summarizer and treated as a dependency.
package compress
