// Package exttypes provides type predicate and control functions for the evaluator
// beyond the official JSONata spec.
package exttypes

import (
	"context"
	"fmt"

	"github.com/nilforge/jsonquery/pkg/ext/extutil"
	"github.com/nilforge/jsonquery/pkg/functions"
	"github.com/nilforge/jsonquery/pkg/types"
)

// All returns all extended type/control function definitions.
func All() []functions.CustomFunctionDef {
	return []functions.CustomFunctionDef{
		IsString(),
		IsNumber(),
		IsBoolean(),
		IsArray(),
		IsObject(),
		IsNull(),
		IsFunction(),
		IsUndefined(),
		IsEmpty(),
		Default(),
		Identity(),
	}
}

// AllEntries returns all type-predicate function definitions as [functions.FunctionEntry],
// suitable for spreading into [gosonata.WithFunctions].
func AllEntries() []functions.FunctionEntry {
	all := All()
	out := make([]functions.FunctionEntry, len(all))
	for i, f := range all {
		out[i] = f
	}
	return out
}

// boolPredicate builds a single-argument $isXxx(v) predicate from a plain
// Go test function, sharing the arity-one "<x:b>" signature every predicate
// below uses.
func boolPredicate(name string, pred func(interface{}) bool) functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      name,
		Signature: "<x:b>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			return pred(args[0]), nil
		},
	}
}

// IsString returns the definition for $isString(v).
func IsString() functions.CustomFunctionDef {
	return boolPredicate("isString", func(v interface{}) bool {
		_, ok := v.(string)
		return ok
	})
}

// IsNumber returns the definition for $isNumber(v).
func IsNumber() functions.CustomFunctionDef {
	return boolPredicate("isNumber", func(v interface{}) bool {
		switch v.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	})
}

// IsBoolean returns the definition for $isBoolean(v).
func IsBoolean() functions.CustomFunctionDef {
	return boolPredicate("isBoolean", func(v interface{}) bool {
		_, ok := v.(bool)
		return ok
	})
}

// IsArray returns the definition for $isArray(v).
func IsArray() functions.CustomFunctionDef {
	return boolPredicate("isArray", func(v interface{}) bool {
		_, ok := v.([]interface{})
		return ok
	})
}

// IsObject returns the definition for $isObject(v).
func IsObject() functions.CustomFunctionDef {
	return boolPredicate("isObject", extutil.IsObject)
}

// IsNull returns the definition for $isNull(v).
// Returns true for JSON null (nil in Go).
func IsNull() functions.CustomFunctionDef {
	return boolPredicate("isNull", func(v interface{}) bool {
		if v == nil {
			return true
		}
		_, isNull := v.(types.Null)
		return isNull
	})
}

// IsFunction returns the definition for $isFunction(v).
// Returns true if the value is a callable (lambda or built-in).
func IsFunction() functions.CustomFunctionDef {
	return boolPredicate("isFunction", func(v interface{}) bool {
		if v == nil {
			return false
		}
		// Functions are represented by internal types not visible here.
		// Use a type-name based check as approximation.
		typeName := fmt.Sprintf("%T", v)
		return typeName == "*evaluator.Lambda" ||
			typeName == "*evaluator.FunctionDef" ||
			typeName == "*evaluator.Composition"
	})
}

// IsUndefined returns the definition for $isUndefined(v).
// Returns true if the value is nil / undefined.
func IsUndefined() functions.CustomFunctionDef {
	return boolPredicate("isUndefined", func(v interface{}) bool {
		return v == nil
	})
}

// IsEmpty returns the definition for $isEmpty(v).
// Returns true for "", nil, [], and {}.
func IsEmpty() functions.CustomFunctionDef {
	return boolPredicate("isEmpty", func(v interface{}) bool {
		switch vv := v.(type) {
		case nil:
			return true
		case string:
			return vv == ""
		case []interface{}:
			return len(vv) == 0
		case map[string]interface{}:
			return len(vv) == 0
		default:
			if n := extutil.ObjectLen(v); n >= 0 {
				return n == 0
			}
			return false
		}
	})
}

// Default returns the definition for $default(value, defaultValue).
// Returns value if it is not nil/undefined, otherwise defaultValue.
func Default() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "default",
		Signature: "<x-x:x>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			if args[0] != nil {
				return args[0], nil
			}
			if len(args) >= 2 {
				return args[1], nil
			}
			return nil, nil
		},
	}
}

// Identity returns the definition for $identity(x).
// Returns its argument unchanged.
func Identity() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "identity",
		Signature: "<x:x>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		},
	}
}
