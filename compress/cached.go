package compress

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/BaSui01/contextfit/types"
)

// SummaryCache is the store behind CachedSummarizer. Get returns an error
// on a miss; any Get error is treated as a miss.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedSummarizer memoizes an inner Summarizer keyed by content hash and
// target. Identical bucket content across assemblies then costs one model
// call instead of one per request. Store failures degrade to the inner
// summarizer, never to an error.
type CachedSummarizer struct {
	inner Summarizer
	cache SummaryCache
	ttl   time.Duration
}

// NewCachedSummarizer wraps inner with cache. A zero ttl defers to the
// store's default expiry.
func NewCachedSummarizer(inner Summarizer, cache SummaryCache, ttl time.Duration) *CachedSummarizer {
	return &CachedSummarizer{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedSummarizer) Summarize(ctx context.Context, text string, targetTokens int) (string, error) {
	if c.inner == nil {
		return "", types.NewDependencyError("no summarizer configured", nil)
	}
	if c.cache == nil {
		return c.inner.Summarize(ctx, text, targetTokens)
	}

	key := summaryKey(text, targetTokens)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		return cached, nil
	}

	summary, err := c.inner.Summarize(ctx, text, targetTokens)
	if err != nil {
		return "", err
	}
	// Best effort: a failed write just means the next call pays again.
	_ = c.cache.Set(ctx, key, summary, c.ttl)
	return summary, nil
}

// summaryKey hashes the content together with the target so the same text
// summarized to different sizes occupies distinct entries.
func summaryKey(text string, targetTokens int) string {
	h := sha256.New()
	h.Write([]byte(text))
	var target [8]byte
	binary.BigEndian.PutUint64(target[:], uint64(targetTokens))
	h.Write(target[:])
	sum := h.Sum(nil)
	return "contextfit:summary:" + hex.EncodeToString(sum[:16])
}
