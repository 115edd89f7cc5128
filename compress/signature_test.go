package compress_test

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/contextfit/compress"
	"github.com/BaSui01/contextfit/types"
)

const mixedSource = `def process_data(items) -> dict:
    for item in items:
        handle(item)

class Pipeline(Base):
    retries = 3

func (s *Server) Handle(w http.ResponseWriter) {
    s.mu.Lock()
}

type Config struct {
    Addr string
}

function renderPage(props) {
    return div(props);
}

GET /api/users
POST /api/users/batch

create table users (id integer primary key);
`

func TestSignature_ExtractsStructuralHeaders(t *testing.T) {
	t.Parallel()

	res, err := compress.NewSignature(wordTok{}).Compress(context.Background(), mixedSource, 100)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Strategy != types.StrategySignatureOnly {
		t.Fatalf("strategy = %s", res.Strategy)
	}

	for _, want := range []string{
		"def process_data(items) -> dict:",
		"class Pipeline(Base):",
		"func (s *Server) Handle(w http.ResponseWriter)",
		"type Config struct",
		"function renderPage(props)",
		"GET /api/users",
		"POST /api/users/batch",
		"create table users",
	} {
		if !strings.Contains(res.Text, want) {
			t.Fatalf("missing signature %q in:\n%s", want, res.Text)
		}
	}
	for _, body := range []string{"handle(item)", "s.mu.Lock()", "return div", "retries"} {
		if strings.Contains(res.Text, body) {
			t.Fatalf("body leaked into signatures: %q", body)
		}
	}
	if res.Tokens > 100 || res.Tokens >= res.OriginalTokens {
		t.Fatalf("accounting off: %+v", res)
	}
}

func TestSignature_InfeasibleWhenSetExceedsTarget(t *testing.T) {
	t.Parallel()

	_, err := compress.NewSignature(wordTok{}).Compress(context.Background(), mixedSource, 2)
	if types.GetCode(err) != types.ErrCompressionInfeasible {
		t.Fatalf("expected COMPRESSION_INFEASIBLE, got %v", err)
	}
}

func TestSignature_FallsBackToTruncation(t *testing.T) {
	t.Parallel()

	prose := "plain prose without any code in it at all just words"
	res, err := compress.NewSignature(wordTok{}).Compress(context.Background(), prose, 3)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Strategy != types.StrategyTruncateTail {
		t.Fatalf("expected truncation fallback, got strategy %s", res.Strategy)
	}
	if res.Text != "plain prose without" {
		t.Fatalf("fallback cut got %q", res.Text)
	}
}
