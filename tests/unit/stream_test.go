package unit_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/parser"
)

func drainStream(t *testing.T, ch <-chan evaluator.StreamResult) []evaluator.StreamResult {
	t.Helper()
	var out []evaluator.StreamResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestEvalStreamOverNDJSON(t *testing.T) {
	tests := []struct {
		name  string
		query string
		input string
		want  []interface{}
	}{
		{
			name:  "project a field across documents",
			query: "$.name",
			input: "{\"name\":\"Alice\",\"age\":30}\n{\"name\":\"Bob\",\"age\":25}\n{\"name\":\"Charlie\",\"age\":35}",
			want:  []interface{}{"Alice", "Bob", "Charlie"},
		},
		{
			name:  "empty input yields no results",
			query: "$.x",
			input: "",
			want:  nil,
		},
		{
			name:  "single document",
			query: "$.x * 2",
			input: `{"x":21}`,
			want:  []interface{}{42.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.Compile(tt.query)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.query, err)
			}
			ev := evaluator.New()
			ch, err := ev.EvalStream(context.Background(), expr, strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("EvalStream: %v", err)
			}
			results := drainStream(t, ch)
			if len(results) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.want))
			}
			for i, want := range tt.want {
				if results[i].Err != nil {
					t.Errorf("result[%d]: unexpected error: %v", i, results[i].Err)
					continue
				}
				if results[i].Value != want {
					t.Errorf("result[%d] = %v, want %v", i, results[i].Value, want)
				}
			}
		})
	}
}

func TestEvalStreamNilExpressionErrors(t *testing.T) {
	ev := evaluator.New()
	if _, err := ev.EvalStream(context.Background(), nil, strings.NewReader("{}")); err == nil {
		t.Fatal("EvalStream(nil expr, ...) returned nil error")
	}
}

func TestEvalStreamCancellationClosesChannel(t *testing.T) {
	var ndjson strings.Builder
	for i := 0; i < 500; i++ {
		ndjson.WriteString("{\"n\":1}\n")
	}
	expr, err := parser.Compile("$.n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ev := evaluator.New()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := ev.EvalStream(ctx, expr, strings.NewReader(ndjson.String()))
	if err != nil {
		t.Fatalf("EvalStream: %v", err)
	}

	<-ch // consume one result before cancelling mid-stream
	cancel()
	for range ch {
		// draining to EOF must not hang once the context is cancelled
	}
}

func TestEvalStreamPerDocumentErrorsDoNotStopTheStream(t *testing.T) {
	ndjson := "{\"v\":42}\n{\"v\":\"not-a-number\"}\n{\"v\":7}"
	expr, err := parser.Compile("$number($.v)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ev := evaluator.New()
	ch, err := ev.EvalStream(context.Background(), expr, strings.NewReader(ndjson))
	if err != nil {
		t.Fatalf("EvalStream: %v", err)
	}

	results := drainStream(t, ch)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (one per line, errors included)", len(results))
	}
	wantFailure := []bool{false, true, false}
	for i, shouldFail := range wantFailure {
		if (results[i].Err != nil) != shouldFail {
			t.Errorf("result[%d]: err=%v, want failure=%v", i, results[i].Err, shouldFail)
		}
	}
}
