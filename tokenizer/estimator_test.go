package tokenizer_test

import (
	"testing"

	"github.com/BaSui01/contextfit/tokenizer"
)

func TestEstimator_CountTokens(t *testing.T) {
	t.Parallel()

	e := tokenizer.NewEstimator()

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short ascii floors to one", text: "a", want: 1},
		{name: "ascii sentence", text: "hello world!", want: 3}, // 12 chars / 4
		{name: "cjk", text: "你好世界", want: 2},                    // 4 chars / 1.5 = 2.67
		{name: "mixed", text: "go语言", want: 1},                  // 2/4 + 2/1.5 = 1.83
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.CountTokens(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	t.Parallel()

	e := tokenizer.NewEstimator()
	text := "The same text must always produce the same count. 同一文本始终产生相同计数。"

	first, err := e.CountTokens(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.CountTokens(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("count changed between calls: %d then %d", first, again)
		}
	}
}
