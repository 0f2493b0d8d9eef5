package unit_test

import (
	"math"
	"testing"
)

// wantTyped evaluates query and asserts the result is of type T, returning it
// for further comparison. Centralizes the type-assertion boilerplate that
// every built-in function test otherwise repeats.
func wantTyped[T any](t *testing.T, query string, data interface{}) (T, bool) {
	t.Helper()
	result := eval(t, query, data)
	v, ok := result.(T)
	if !ok {
		var zero T
		t.Errorf("%q: got %T (%v), want %T", query, result, result, zero)
		return zero, false
	}
	return v, true
}

func wantFloat(t *testing.T, query string, data interface{}, want float64) {
	t.Helper()
	if got, ok := wantTyped[float64](t, query, data); ok {
		compareFloat(t, got, want)
	}
}

func wantString(t *testing.T, query string, data interface{}, want string) {
	t.Helper()
	if got, ok := wantTyped[string](t, query, data); ok && got != want {
		t.Errorf("%q: got %q, want %q", query, got, want)
	}
}

func wantBool(t *testing.T, query string, data interface{}, want bool) {
	t.Helper()
	if got, ok := wantTyped[bool](t, query, data); ok && got != want {
		t.Errorf("%q: got %v, want %v", query, got, want)
	}
}

func wantFloatArray(t *testing.T, query string, data interface{}, want []float64) {
	t.Helper()
	arr, ok := wantTyped[[]interface{}](t, query, data)
	if !ok {
		return
	}
	if len(arr) != len(want) {
		t.Fatalf("%q: got length %d, want %d (%v)", query, len(arr), len(want), arr)
	}
	for i, w := range want {
		if arr[i] != w {
			t.Errorf("%q: element %d = %v, want %v", query, i, arr[i], w)
		}
	}
}

func TestAggregateFunctions(t *testing.T) {
	numbers := map[string]interface{}{"numbers": []interface{}{10.0, 20.0, 30.0}}

	tests := []struct {
		name  string
		query string
		data  interface{}
		want  float64
	}{
		{"sum of a literal array", "$sum([1, 2, 3, 4, 5])", nil, 15.0},
		{"sum of an empty array", "$sum([])", nil, 0.0},
		{"sum from bound data", "$sum(numbers)", numbers, 60.0},
		{"count of a literal array", "$count([1, 2, 3])", nil, 3.0},
		{"count of an empty array", "$count([])", nil, 0.0},
		{"average of a literal array", "$average([10, 20, 30])", nil, 20.0},
		{"average from bound data", "$average(values)", map[string]interface{}{"values": []interface{}{5.0, 10.0, 15.0}}, 10.0},
		{"min", "$min([5, 2, 8, 1, 9])", nil, 1.0},
		{"max", "$max([5, 2, 8, 1, 9])", nil, 9.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantFloat(t, tt.query, tt.data, tt.want)
		})
	}
}

func TestStringFunctions(t *testing.T) {
	t.Run("conversions", func(t *testing.T) {
		wantString(t, "$string(42)", nil, "42")
		wantString(t, "$string(true)", nil, "true")
	})

	t.Run("length counts runes, not elements", func(t *testing.T) {
		wantFloat(t, `$length("hello")`, nil, 5.0)
		// $length() only accepts strings; $count() is the array counterpart.
		wantFloat(t, "$count([1, 2, 3])", nil, 3.0)
	})

	t.Run("substring", func(t *testing.T) {
		wantString(t, `$substring("hello", 1)`, nil, "ello")
		wantString(t, `$substring("hello", 1, 3)`, nil, "ell")
		wantString(t, `$substring("hello", 0, 2)`, nil, "he")
	})

	t.Run("case conversion", func(t *testing.T) {
		wantString(t, `$uppercase("hello")`, nil, "HELLO")
		wantString(t, `$lowercase("WORLD")`, nil, "world")
	})

	t.Run("trim", func(t *testing.T) {
		wantString(t, `$trim("  hello  ")`, nil, "hello")
	})

	t.Run("contains", func(t *testing.T) {
		wantBool(t, `$contains("hello world", "world")`, nil, true)
		wantBool(t, `$contains("hello world", "foo")`, nil, false)
	})

	t.Run("split", func(t *testing.T) {
		arr, ok := wantTyped[[]interface{}](t, `$split("a,b,c", ",")`, nil)
		if !ok {
			return
		}
		if len(arr) != 3 || arr[0] != "a" || arr[1] != "b" || arr[2] != "c" {
			t.Errorf("got %v, want [a b c]", arr)
		}
	})

	t.Run("join", func(t *testing.T) {
		wantString(t, `$join(["a", "b", "c"], ",")`, nil, "a,b,c")
		wantString(t, `$join(["a", "b", "c"])`, nil, "abc")
	})
}

func TestTypeIntrospectionFunctions(t *testing.T) {
	t.Run("type", func(t *testing.T) {
		tests := []struct {
			query string
			want  string
		}{
			{`$type("hello")`, "string"},
			{"$type(42)", "number"},
			{"$type(true)", "boolean"},
			{"$type([1,2,3])", "array"},
			{`$type({"key": "value"})`, "object"},
			{"$type(null)", "null"},
		}
		for _, tt := range tests {
			t.Run(tt.want, func(t *testing.T) {
				wantString(t, tt.query, nil, tt.want)
			})
		}
	})

	t.Run("exists", func(t *testing.T) {
		data := map[string]interface{}{"name": "John"}
		wantBool(t, "$exists(name)", data, true)
		wantBool(t, "$exists(missing)", data, false)
	})

	t.Run("number", func(t *testing.T) {
		wantFloat(t, `$number("42")`, nil, 42.0)
		wantFloat(t, `$number("3.14")`, nil, 3.14)
	})

	t.Run("boolean", func(t *testing.T) {
		wantBool(t, "$boolean(1)", nil, true)
		wantBool(t, "$boolean(0)", nil, false)
		wantBool(t, `$boolean("hello")`, nil, true)
		wantBool(t, `$boolean("")`, nil, false)
	})
}

func TestMathFunctions(t *testing.T) {
	t.Run("abs", func(t *testing.T) {
		wantFloat(t, "$abs(5)", nil, 5.0)
		wantFloat(t, "$abs(-5)", nil, 5.0)
	})

	t.Run("floor and ceil", func(t *testing.T) {
		wantFloat(t, "$floor(3.7)", nil, 3.0)
		wantFloat(t, "$ceil(3.2)", nil, 4.0)
	})

	t.Run("round", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
			want  float64
		}{
			{"no precision", "$round(3.5)", 4.0},
			{"with precision", "$round(3.14159, 2)", 3.14},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, ok := wantTyped[float64](t, tt.query, nil)
				if ok && math.Abs(got-tt.want) > 0.0001 {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("sqrt and power", func(t *testing.T) {
		wantFloat(t, "$sqrt(16)", nil, 4.0)
		wantFloat(t, "$power(2, 3)", nil, 8.0)
	})
}

func TestArrayFunctions(t *testing.T) {
	t.Run("map", func(t *testing.T) {
		wantFloatArray(t, "$map([1, 2, 3], function($x) { $x * 2 })", nil, []float64{2, 4, 6})
	})
	t.Run("filter", func(t *testing.T) {
		wantFloatArray(t, "$filter([1, 2, 3, 4, 5], function($x) { $x > 2 })", nil, []float64{3, 4, 5})
	})
	t.Run("reduce", func(t *testing.T) {
		wantFloat(t, "$reduce([1, 2, 3, 4], function($acc, $x) { $acc + $x }, 0)", nil, 10.0)
		wantFloat(t, "$reduce([2, 3, 4], function($acc, $x) { $acc * $x }, 1)", nil, 24.0)
	})
	t.Run("sort", func(t *testing.T) {
		wantFloatArray(t, "$sort([3, 1, 4, 1, 5])", nil, []float64{1, 1, 3, 4, 5})
	})
	t.Run("append", func(t *testing.T) {
		wantFloatArray(t, "$append([1, 2], [3, 4])", nil, []float64{1, 2, 3, 4})
	})
	t.Run("reverse", func(t *testing.T) {
		wantFloatArray(t, "$reverse([1, 2, 3])", nil, []float64{3, 2, 1})
	})
}

func TestLambdasAndApplyOperator(t *testing.T) {
	t.Run("lambda via map", func(t *testing.T) {
		wantFloatArray(t, "$map([10, 20, 30], function($x) { $x / 10 })", nil, []float64{1, 2, 3})
	})

	t.Run("apply operator threads value into a lambda", func(t *testing.T) {
		wantFloat(t, "5 ~> function($x) { $x * 2 }", nil, 10.0)
	})

	t.Run("map and filter compose", func(t *testing.T) {
		data := map[string]interface{}{"numbers": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0}}
		wantFloatArray(t,
			"$filter($map(numbers, function($x) { $x * 2 }), function($x) { $x > 5 })",
			data, []float64{6, 8, 10})
	})
}
