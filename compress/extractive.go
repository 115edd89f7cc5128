package compress

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/BaSui01/contextfit/tokenizer"
	"github.com/BaSui01/contextfit/types"
)

// keywordWeight scales the contribution of a repeated keyword to a unit's
// score in the default heuristic.
const keywordWeight = 2.0

var (
	unitSplit   = regexp.MustCompile(`[.!?。！？]+`)
	wordPattern = regexp.MustCompile(`\w+`)
)

// Words too common to signal relevance; excluded from keyword scoring.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "can": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "a": {}, "an": {},
}

// Scorer rates every sub-unit of a decomposed text at once, so
// implementations can use corpus-level statistics. Must return one score
// per unit.
type Scorer func(units []string) []float64

// KeywordScorer is the default heuristic: repeated non-stopword keywords
// weigh a unit up, and the first and last units get a position bonus.
func KeywordScorer(units []string) []float64 {
	freq := make(map[string]int)
	for _, u := range units {
		for _, w := range wordPattern.FindAllString(strings.ToLower(u), -1) {
			if len(w) > 3 {
				freq[w]++
			}
		}
	}
	keywords := make([]string, 0, len(freq))
	for w, f := range freq {
		if _, stop := stopwords[w]; !stop && f > 1 {
			keywords = append(keywords, w)
		}
	}
	sort.Strings(keywords)

	scores := make([]float64, len(units))
	for i, u := range units {
		lower := strings.ToLower(u)
		var s float64
		for _, w := range keywords {
			if strings.Contains(lower, w) {
				s += keywordWeight * float64(freq[w])
			}
		}
		if i == 0 || i == len(units)-1 {
			s += 1.0
		}
		scores[i] = s
	}
	return scores
}

// Extractive keeps the highest-scoring sentences within the token target,
// rendered in their original order.
type Extractive struct {
	tok    tokenizer.Tokenizer
	scorer Scorer
}

// ExtractiveOption configures the extractive compressor.
type ExtractiveOption func(*Extractive)

// WithScorer replaces the default keyword heuristic.
func WithScorer(s Scorer) ExtractiveOption {
	return func(c *Extractive) {
		if s != nil {
			c.scorer = s
		}
	}
}

// NewExtractive creates the extractive compressor.
func NewExtractive(tok tokenizer.Tokenizer, opts ...ExtractiveOption) *Extractive {
	c := &Extractive{tok: tok, scorer: KeywordScorer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Extractive) Name() string { return string(types.StrategyExtractive) }

func (c *Extractive) Compress(ctx context.Context, content string, target int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	original, err := c.tok.CountTokens(content)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	if original <= target {
		return newResult(content, original, original, types.StrategyExtractive), nil
	}

	units := splitUnits(content)
	if len(units) == 0 {
		return truncate(c.tok, content, target, false, types.StrategyTruncateTail)
	}

	scores := c.scorer(units)
	if len(scores) != len(units) {
		return nil, types.NewDependencyError("scorer returned wrong score count", nil)
	}

	// Candidates by descending score; stable keeps ties in narrative order.
	order := make([]int, len(units))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	// Greedy selection: a unit joins if the rendered result still fits.
	// Counting the render, not the unit, keeps separator tokens accounted.
	var selected []int
	for _, i := range order {
		tentative := append(append([]int(nil), selected...), i)
		sort.Ints(tentative)
		n, err := c.tok.CountTokens(renderUnits(units, tentative))
		if err != nil {
			return nil, types.NewDependencyError("count tokens", err)
		}
		if n <= target {
			selected = tentative
		}
	}

	// Not even the best unit alone fits: degrade to truncating it.
	if len(selected) == 0 {
		text, tokens, err := cutToFit(c.tok, units[order[0]], target, false)
		if err != nil {
			return nil, err
		}
		return newResult(text, tokens, original, types.StrategyExtractive), nil
	}

	text := renderUnits(units, selected)
	tokens, err := c.tok.CountTokens(text)
	if err != nil {
		return nil, types.NewDependencyError("count tokens", err)
	}
	return newResult(text, tokens, original, types.StrategyExtractive), nil
}

func splitUnits(content string) []string {
	parts := unitSplit.Split(content, -1)
	units := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			units = append(units, p)
		}
	}
	return units
}

func renderUnits(units []string, indexes []int) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = units[idx]
	}
	return strings.Join(parts, ". ") + "."
}
