package unit_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/parser"
)

// eval parses and evaluates query against data with a fresh default
// Evaluator, failing the test immediately on either error. Shared by every
// test file in this package.
func eval(t *testing.T, query string, data interface{}) interface{} {
	t.Helper()
	expr, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	result, err := evaluator.New().Eval(context.Background(), expr, data)
	if err != nil {
		t.Fatalf("eval %q: %v", query, err)
	}
	return result
}

func evalExpectError(t *testing.T, query string, data interface{}) error {
	t.Helper()
	expr, err := parser.Parse(query)
	if err != nil {
		return err
	}
	_, err = evaluator.New().Eval(context.Background(), expr, data)
	return err
}

func compareFloat(t *testing.T, got, want float64) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func compareValue(t *testing.T, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func objectField(t *testing.T, result interface{}, key string) interface{} {
	t.Helper()
	obj, ok := result.(*evaluator.OrderedObject)
	if !ok {
		t.Fatalf("got %T, want *evaluator.OrderedObject", result)
	}
	v, _ := obj.Get(key)
	return v
}

func TestEvalLiterals(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{"string", `"hello"`, "hello"},
		{"integer", "42", 42.0},
		{"float", "3.14", 3.14},
		{"true", "true", true},
		{"false", "false", false},
		{"null", "null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.query, nil); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalVariablesAndFields(t *testing.T) {
	data := map[string]interface{}{
		"name":   "John",
		"age":    30.0,
		"active": true,
	}
	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{"context variable returns the whole input", "$", data},
		{"string field", "name", "John"},
		{"number field", "age", 30.0},
		{"boolean field", "active", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, data), tt.want)
		})
	}
}

func TestEvalArithmeticOperators(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"addition", "2 + 3", 5.0},
		{"subtraction", "10 - 7", 3.0},
		{"multiplication", "4 * 5", 20.0},
		{"division", "20 / 4", 5.0},
		{"modulo", "10 % 3", 1.0},
		{"unary minus", "-5", -5.0},
		{"precedence: * before +", "2 + 3 * 4", 14.0},
		{"parens override precedence", "(2 + 3) * 4", 20.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantFloat(t, tt.query, nil, tt.want)
		})
	}
}

func TestEvalArithmeticErrorCases(t *testing.T) {
	// Division/modulo by zero are evaluation errors in this engine (D1001),
	// unlike JSONata JS which returns +Infinity for "/" — a deliberate
	// divergence, not an oversight.
	tests := []string{"10 / 0", "10 % 0"}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			if err := evalExpectError(t, query, nil); err == nil {
				t.Errorf("%q: expected an error, got nil", query)
			}
		})
	}
}

func TestEvalComparisonOperators(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"5 = 5", true}, {"5 = 3", false},
		{"5 != 3", true}, {"5 != 5", false},
		{"3 < 5", true}, {"5 < 3", false},
		{"5 <= 5", true}, {"6 <= 5", false},
		{"5 > 3", true}, {"3 > 5", false},
		{"5 >= 5", true}, {"4 >= 5", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			wantBool(t, tt.query, nil, tt.want)
		})
	}
}

func TestEvalLogicalOperators(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"true and true", true}, {"false and true", false},
		{"true and false", false}, {"false and false", false},
		{"true or false", true}, {"false or true", true},
		{"true or true", true}, {"false or false", false},
		{"true and false or true", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			wantBool(t, tt.query, nil, tt.want)
		})
	}
}

func TestEvalStringConcatenation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"two literals joined by a space", `"hello" & " " & "world"`, "hello world"},
		{"number coerced to string", `"value: " & 42`, "value: 42"},
		{"empty operand", `"" & "test"`, "test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantString(t, tt.query, nil, tt.want)
		})
	}
}

func TestEvalPathNavigation(t *testing.T) {
	data := map[string]interface{}{
		"user": map[string]interface{}{
			"name": "Alice",
			"address": map[string]interface{}{
				"city": "NYC",
				"zip":  "10001",
			},
		},
	}
	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{"one step", "user.name", "Alice"},
		{"two steps", "user.address.city", "NYC"},
		{"three steps", "user.address.zip", "10001"},
		{"explicit context prefix", "$.user.name", "Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.query, data); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing steps evaluate to nil, not an error", func(t *testing.T) {
		data := map[string]interface{}{"name": "test"}
		for _, query := range []string{"missing", "name.missing"} {
			if got := eval(t, query, data); got != nil {
				t.Errorf("%q: got %v, want nil", query, got)
			}
		}
	})
}

func TestEvalArrayConstructor(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []interface{}
	}{
		{"empty", "[]", []interface{}{}},
		{"numbers", "[1, 2, 3]", []interface{}{1.0, 2.0, 3.0}},
		{"mixed types", `[1, "two", true]`, []interface{}{1.0, "two", true}},
		{"elements are expressions", "[1 + 1, 2 * 2]", []interface{}{2.0, 4.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, ok := eval(t, tt.query, nil).([]interface{})
			if !ok {
				t.Fatalf("got non-array result")
			}
			if len(arr) != len(tt.want) {
				t.Fatalf("got length %d, want %d", len(arr), len(tt.want))
			}
			for i := range arr {
				if arr[i] != tt.want[i] {
					t.Errorf("element %d = %v, want %v", i, arr[i], tt.want[i])
				}
			}
		})
	}
}

func TestEvalObjectConstructor(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		obj, ok := eval(t, "{}", nil).(*evaluator.OrderedObject)
		if !ok {
			t.Fatalf("got non-OrderedObject result")
		}
		if len(obj.Keys) != 0 {
			t.Errorf("got %d keys, want 0", len(obj.Keys))
		}
	})

	t.Run("literal values", func(t *testing.T) {
		result := eval(t, `{"name": "Alice", "age": 30}`, nil)
		if got := objectField(t, result, "name"); got != "Alice" {
			t.Errorf("name = %v, want Alice", got)
		}
		if got := objectField(t, result, "age"); got != 30.0 {
			t.Errorf("age = %v, want 30", got)
		}
	})

	t.Run("values are expressions", func(t *testing.T) {
		result := eval(t, `{"sum": 2 + 3, "product": 4 * 5}`, nil)
		if got := objectField(t, result, "sum"); got != 5.0 {
			t.Errorf("sum = %v, want 5", got)
		}
		if got := objectField(t, result, "product"); got != 20.0 {
			t.Errorf("product = %v, want 20", got)
		}
	})
}

func TestEvalFilterPredicate(t *testing.T) {
	people := []interface{}{
		map[string]interface{}{"name": "Alice", "age": 25.0},
		map[string]interface{}{"name": "Bob", "age": 30.0},
		map[string]interface{}{"name": "Charlie", "age": 35.0},
	}

	t.Run("numeric comparison keeps multiple matches as an array", func(t *testing.T) {
		arr, ok := eval(t, "$[age > 28]", people).([]interface{})
		if !ok {
			t.Fatalf("got non-array result")
		}
		if len(arr) != 2 {
			t.Errorf("got %d matches, want 2", len(arr))
		}
	})

	t.Run("a single match may unwrap to a bare value", func(t *testing.T) {
		result := eval(t, `$[name = "Bob"]`, people)
		switch v := result.(type) {
		case []interface{}:
			if len(v) != 1 {
				t.Errorf("got array length %d, want 1", len(v))
			}
		case map[string]interface{}:
			if v["name"] != "Bob" {
				t.Errorf("got name %v, want Bob", v["name"])
			}
		default:
			t.Fatalf("got %T, want []interface{} or map", result)
		}
	})
}

func TestEvalTernaryConditional(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{"true branch", "true ? 'yes' : 'no'", "yes"},
		{"false branch", "false ? 'yes' : 'no'", "no"},
		{"condition is an expression", "5 > 3 ? 'greater' : 'lesser'", "greater"},
		{"nested ternary", "true ? (false ? 'a' : 'b') : 'c'", "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.query, nil); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalRangeOperator(t *testing.T) {
	t.Run("ascending range expands to a sequence", func(t *testing.T) {
		wantFloatArray(t, "[1..5]", nil, []float64{1, 2, 3, 4, 5})
	})

	t.Run("descending range yields empty, not an error", func(t *testing.T) {
		// ".." is only parsed inside an array constructor; a range with
		// lo > hi contributes no elements to it.
		arr, ok := eval(t, "[5..1]", nil).([]interface{})
		if !ok {
			t.Fatalf("got non-array result")
		}
		if len(arr) != 0 {
			t.Errorf("got %v, want an empty slice", arr)
		}
	})
}

func TestEvalVariableAssignment(t *testing.T) {
	if got := eval(t, "$x := 42", nil); got != 42.0 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestEvalInOperator(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"member present", "2 in [1, 2, 3]", true},
		{"member absent", "4 in [1, 2, 3]", false},
		{"string member", `"b" in ["a", "b", "c"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantBool(t, tt.query, nil, tt.want)
		})
	}
}

func TestEvalCombinedPathFilterAndConditional(t *testing.T) {
	data := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "Item1", "price": 100.0, "quantity": 2.0},
			map[string]interface{}{"name": "Item2", "price": 50.0, "quantity": 5.0},
			map[string]interface{}{"name": "Item3", "price": 200.0, "quantity": 1.0},
		},
	}

	t.Run("filter projected through a path step", func(t *testing.T) {
		if got := eval(t, "items[price > 75].name", data); got == nil {
			t.Error("got nil, want the names of items priced above 75")
		}
	})

	t.Run("conditional driven by an indexed path", func(t *testing.T) {
		if got := eval(t, "items[0].price > 50 ? 'expensive' : 'cheap'", data); got != "expensive" {
			t.Errorf("got %v, want expensive", got)
		}
	})

	t.Run("array constructor of indexed values", func(t *testing.T) {
		arr, ok := eval(t, "[items[0].price, items[1].price, items[2].price]", data).([]interface{})
		if !ok {
			t.Fatalf("got non-array result")
		}
		if len(arr) != 3 {
			t.Errorf("got length %d, want 3", len(arr))
		}
	})
}
