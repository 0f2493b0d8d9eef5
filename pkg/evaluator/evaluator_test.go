package evaluator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/parser"
)

func eval(t *testing.T, ev *evaluator.Evaluator, query string, data interface{}) interface{} {
	t.Helper()
	expr, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	result, err := ev.Eval(context.Background(), expr, data)
	if err != nil {
		t.Fatalf("eval %q: %v", query, err)
	}
	return result
}

func TestEvalLiteralsAndArithmetic(t *testing.T) {
	ev := evaluator.New()

	tests := []struct {
		query string
		want  interface{}
	}{
		{"1 + 2", 3.0},
		{"10 / 4", 2.5},
		{"2 * (3 + 4)", 14.0},
		{`"a" & "b"`, "ab"},
		{"1 < 2 and 2 < 3", true},
		{"1 = 1.0", true},
		{`"x" in ["x", "y"]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := eval(t, ev, tt.query, nil)
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEvalPathNavigation(t *testing.T) {
	ev := evaluator.New()
	data := map[string]interface{}{
		"order": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"sku": "A1", "qty": 2.0},
				map[string]interface{}{"sku": "B2", "qty": 5.0},
			},
		},
	}

	got := eval(t, ev, "order.items.sku", data)
	want := []interface{}{"A1", "B2"}
	if len(got.([]interface{})) != len(want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	for i, v := range want {
		if got.([]interface{})[i] != v {
			t.Errorf("element %d = %#v, want %#v", i, got.([]interface{})[i], v)
		}
	}
}

func TestEvalFilterAndAggregate(t *testing.T) {
	ev := evaluator.New()
	data := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"qty": 1.0},
			map[string]interface{}{"qty": 2.0},
			map[string]interface{}{"qty": 3.0},
		},
	}

	if got := eval(t, ev, "$sum(items[qty > 1].qty)", data); got != 5.0 {
		t.Errorf("$sum(items[qty > 1].qty) = %#v, want 5", got)
	}
	if got := eval(t, ev, "$count(items)", data); got != 3.0 {
		t.Errorf("$count(items) = %#v, want 3", got)
	}
}

func TestEvalLambdaAndHOF(t *testing.T) {
	ev := evaluator.New()
	got := eval(t, ev, "$map([1, 2, 3], function($x) { $x * $x })", nil)
	want := []interface{}{1.0, 4.0, 9.0}
	arr, ok := got.([]interface{})
	if !ok || len(arr) != len(want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	for i := range want {
		if arr[i] != want[i] {
			t.Errorf("element %d = %#v, want %#v", i, arr[i], want[i])
		}
	}
}

func TestEvalCustomFunction(t *testing.T) {
	ev := evaluator.New(evaluator.WithCustomFunction("double", "<n:n>", func(_ context.Context, args ...interface{}) (interface{}, error) {
		n, ok := args[0].(float64)
		if !ok {
			return nil, errors.New("expected a number")
		}
		return n * 2, nil
	}))

	if got := eval(t, ev, "$double(21)", nil); got != 42.0 {
		t.Errorf("$double(21) = %#v, want 42", got)
	}
}

func TestEvalNilExpressionIsError(t *testing.T) {
	ev := evaluator.New()
	if _, err := ev.Eval(context.Background(), nil, nil); err == nil {
		t.Error("Eval(nil, ...) = nil error, want error")
	}
}

func TestEvalRuntimeErrorPropagates(t *testing.T) {
	ev := evaluator.New()
	expr, err := parser.Parse(`1 + "a"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ev.Eval(context.Background(), expr, nil); err == nil {
		t.Error("1 + \"a\" should fail to evaluate, got nil error")
	}
}

func TestEvalRespectsTimeout(t *testing.T) {
	ev := evaluator.New(evaluator.WithTimeout(time.Nanosecond))
	expr, err := parser.Parse("$reduce([1..100000], function($a, $b) { $a + $b })")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ev.Eval(context.Background(), expr, nil); err == nil {
		t.Error("expected a timeout error, got nil")
	}
}

func TestEvalWithBindings(t *testing.T) {
	ev := evaluator.New()
	expr, err := parser.Parse("$x + $y")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := ev.EvalWithBindings(context.Background(), expr, nil, map[string]interface{}{
		"x": 10.0,
		"y": 32.0,
	})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 42.0 {
		t.Errorf("got %#v, want 42", got)
	}
}

func TestEvalConvertsNullToNil(t *testing.T) {
	ev := evaluator.New()
	data := map[string]interface{}{"v": nil}
	got := eval(t, ev, "v", data)
	if got != nil {
		t.Errorf("got %#v, want nil", got)
	}
}

func TestEvaluatorCacheDisabledByDefault(t *testing.T) {
	ev := evaluator.New()
	if ev.Cache() != nil {
		t.Error("Cache() should be nil when caching is not enabled")
	}
}

func TestEvaluatorCacheEnabled(t *testing.T) {
	ev := evaluator.New(evaluator.WithCaching(true))
	if ev.Cache() == nil {
		t.Error("Cache() should be non-nil when caching is enabled")
	}
}

func TestObjectConstructorRoundTrips(t *testing.T) {
	ev := evaluator.New()
	got := eval(t, ev, `{"a": 1, "b": 2}`, nil)
	obj, ok := got.(*evaluator.OrderedObject)
	if !ok {
		t.Fatalf("got %T, want *evaluator.OrderedObject", got)
	}
	if obj.Values["a"] != 1.0 || obj.Values["b"] != 2.0 {
		t.Errorf("got %#v", obj.Values)
	}
}
