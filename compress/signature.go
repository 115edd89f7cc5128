package compress

import (
	"context"
	"regexp"
	"strings"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// Structural header patterns, matched per line. Grouped by language: Python
// defs, Go declarations, JS functions, HTTP routes, SQL DDL.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(?:def|class)\s+\w+\s*\([^)]*\)\s*(?:->\s*\w+)?\s*:`),
	regexp.MustCompile(`(?m)^\s*func\s+(?:\(\w+\s+\*?[\w.]+\)\s+)?\w+\s*\([^)]*\)`),
	regexp.MustCompile(`(?m)^\s*type\s+\w+\s+(?:struct|interface)\b`),
	regexp.MustCompile(`(?m)^\s*function\s+\w+\s*\([^)]*\)`),
	regexp.MustCompile(`(?m)^\s*(?:GET|POST|PUT|DELETE|PATCH)\s+\S+`),
	regexp.MustCompile(`(?mi)^\s*(?:CREATE TABLE|ALTER TABLE|DROP TABLE)\s+\w+`),
}

// Signature keeps structural headers and discards bodies. Content without
// any recognizable signature falls back to tail truncation.
type Signature struct {
	tok tokenizer.Tokenizer
}

// NewSignature creates the signature-extraction compressor.
func NewSignature(tok tokenizer.Tokenizer) *Signature {
	return &Signature{tok: tok}
}

func (c *Signature) Name() string { return string(types.StrategySignatureOnly) }

func (c *Signature) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	original, err := c.tok.CountTokens(content)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}

	sigs := extractSignatures(content)
	if len(sigs) == 0 {
		return truncate(c.tok, content, target, false, types.StrategyTruncateTail)
	}

	joined := strings.Join(sigs, "\n")
	tokens, err := c.tok.CountTokens(joined)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if tokens > target {
		return nil, types.NewCompressionInfeasible("",
			"minimal signature set needs %d tokens but target is %d", tokens, target)
	}
	return newResult(joined, tokens, original, types.StrategySignatureOnly), nil
}

func extractSignatures(content string) []string {
	var sigs []string
	for _, pattern := range signaturePatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			sigs = append(sigs, strings.TrimSpace(match))
		}
	}
	return sigs
}
