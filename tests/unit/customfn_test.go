package unit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/functions"
	"github.com/nilforge/jsonquery/pkg/parser"
)

func runWithCustomFns(t *testing.T, query string, data interface{}, fns ...functions.CustomFunctionDef) (interface{}, error) {
	t.Helper()
	expr, err := parser.Compile(query)
	if err != nil {
		t.Fatalf("compile %q: %v", query, err)
	}
	opts := make([]evaluator.EvalOption, len(fns))
	for i, fd := range fns {
		opts[i] = evaluator.WithCustomFunction(fd.Name, fd.Signature, fd.Fn)
	}
	ev := evaluator.New(opts...)
	return ev.Eval(context.Background(), expr, data)
}

func customFn(name string, fn functions.CustomFunc) functions.CustomFunctionDef {
	return functions.CustomFunctionDef{Name: name, Fn: fn}
}

func TestCustomFunctionsAreCallableByName(t *testing.T) {
	greet := customFn("greet", func(_ context.Context, args ...interface{}) (interface{}, error) {
		name, _ := args[0].(string)
		return "Hello, " + name + "!", nil
	})
	add := customFn("add", func(_ context.Context, args ...interface{}) (interface{}, error) {
		a, _ := args[0].(float64)
		b, _ := args[1].(float64)
		return a + b, nil
	})

	tests := []struct {
		name  string
		query string
		data  interface{}
		fns   []functions.CustomFunctionDef
		want  interface{}
	}{
		{"single arg from data", `$greet($.name)`, map[string]interface{}{"name": "World"}, []functions.CustomFunctionDef{greet}, "Hello, World!"},
		{"two literal args", `$add(3, 4)`, nil, []functions.CustomFunctionDef{add}, 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runWithCustomFns(t, tt.query, tt.data, tt.fns...)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCustomFunctionErrorPropagates(t *testing.T) {
	fail := customFn("fail", func(_ context.Context, _ ...interface{}) (interface{}, error) {
		return nil, errors.New("intentional error")
	})
	if _, err := runWithCustomFns(t, `$fail()`, nil, fail); err == nil {
		t.Fatal("expected the custom function's error to propagate, got nil")
	}
}

func TestCustomFunctionsComposeWithEachOther(t *testing.T) {
	double := customFn("double", func(_ context.Context, args ...interface{}) (interface{}, error) {
		n, _ := args[0].(float64)
		return n * 2, nil
	})
	square := customFn("square", func(_ context.Context, args ...interface{}) (interface{}, error) {
		n, _ := args[0].(float64)
		return n * n, nil
	})

	got, err := runWithCustomFns(t, `$double($square(3))`, nil, double, square)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if want := 18.0; got != want {
		t.Errorf("double(square(3)) = %v, want %v", got, want)
	}
}

func TestUnregisteredCustomFunctionErrors(t *testing.T) {
	if _, err := runWithCustomFns(t, `$unregistered()`, nil); err == nil {
		t.Fatal("calling an unregistered custom function should error")
	}
}

func TestCustomFunctionReceivesCallerContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "testval"

	peek := customFn("peek", func(ctx context.Context, _ ...interface{}) (interface{}, error) {
		if v, ok := ctx.Value(key).(string); ok {
			return v, nil
		}
		return "missing", nil
	})

	expr, err := parser.Compile(`$peek()`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := context.WithValue(context.Background(), key, "injected")
	ev := evaluator.New(evaluator.WithCustomFunction(peek.Name, peek.Signature, peek.Fn))

	got, err := ev.Eval(ctx, expr, nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != "injected" {
		t.Errorf("got %v, want the value carried on the calling context", got)
	}
}
