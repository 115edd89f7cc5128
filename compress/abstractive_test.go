package compress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/BaSui01/contextfit/compress"
	"github.com/BaSui01/contextfit/types"
)

func TestAbstractive_NoSummarizerConfigured(t *testing.T) {
	t.Parallel()

	_, err := compress.NewAbstractive(wordTok{}, nil).
		Compress(context.Background(), "needs a summary badly", 1)
	if types.GetCode(err) != types.ErrDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func TestAbstractive_PassThroughSkipsSummarizer(t *testing.T) {
	t.Parallel()

	summ := &fakeSummarizer{out: "unused"}
	res, err := compress.NewAbstractive(wordTok{}, summ).
		Compress(context.Background(), "already fits fine", 10)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Text != "already fits fine" || res.Ratio != 1.0 {
		t.Fatalf("expected pass-through, got %+v", res)
	}
	if summ.calls != 0 {
		t.Fatalf("summarizer called %d times for content under target", summ.calls)
	}
}

func TestAbstractive_DelegatesToSummarizer(t *testing.T) {
	t.Parallel()

	summ := &fakeSummarizer{out: "short recap here"}
	res, err := compress.NewAbstractive(wordTok{}, summ).
		Compress(context.Background(), "one two three four five six", 3)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Text != "short recap here" || res.Tokens != 3 || res.OriginalTokens != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Strategy != types.StrategyAbstractive {
		t.Fatalf("strategy = %s", res.Strategy)
	}
	if summ.calls != 1 {
		t.Fatalf("summarizer calls = %d", summ.calls)
	}
}

func TestAbstractive_WrapsSummarizerFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("model overloaded")
	_, err := compress.NewAbstractive(wordTok{}, &fakeSummarizer{err: cause}).
		Compress(context.Background(), "one two three four five six", 3)
	if types.GetCode(err) != types.ErrDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestAbstractive_OversizeSummaryIsTruncated(t *testing.T) {
	t.Parallel()

	summ := &fakeSummarizer{out: "alpha beta gamma delta epsilon zeta"}
	res, err := compress.NewAbstractive(wordTok{}, summ).
		Compress(context.Background(), "one two three four five six seven eight", 4)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Text != "alpha beta gamma delta" || res.Tokens != 4 {
		t.Fatalf("oversize summary not cut: %+v", res)
	}
}

func TestRateLimitedSummarizer_Throttles(t *testing.T) {
	t.Parallel()

	limited := compress.NewRateLimitedSummarizer(&fakeSummarizer{out: "ok"}, rate.Every(time.Hour), 1)

	out, err := limited.Summarize(context.Background(), "text", 5)
	if err != nil || out != "ok" {
		t.Fatalf("first call: %q, %v", out, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.Summarize(ctx, "text", 5); err == nil {
		t.Fatal("expected the second call to fail while throttled")
	}
}
