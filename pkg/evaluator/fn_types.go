package evaluator

import (
	"context"
	"strconv"

	"github.com/nilforge/jsonquery/pkg/types"
)

func fnType(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	value := args[0]
	if value == nil {
		return nil, nil // undefined stays undefined
	}
	if _, ok := value.(types.Null); ok {
		return "null", nil
	}

	switch value.(type) {
	case string:
		return "string", nil
	case float64:
		return "number", nil
	case bool:
		return "boolean", nil
	case []interface{}:
		return "array", nil
	case map[string]interface{}, *OrderedObject:
		return "object", nil
	case *Lambda:
		return "function", nil
	default:
		return "unknown", nil
	}
}

func fnExists(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return args[0] != nil, nil
}

// radixPrefixes maps a string's "0x"/"0o"/"0b" prefix to the base $number
// parses the remainder under, tried before falling back to decimal parsing.
var radixPrefixes = map[string]int{
	"0x": 16, "0X": 16,
	"0o": 8, "0O": 8,
	"0b": 2, "0B": 2,
}

func fnNumber(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	if str, ok := args[0].(string); ok {
		if num, err := strconv.ParseFloat(str, 64); err == nil {
			return num, nil
		}
		if len(str) >= 2 {
			if base, ok := radixPrefixes[str[:2]]; ok {
				if num, err := strconv.ParseInt(str[2:], base, 64); err == nil {
					return float64(num), nil
				}
			}
		}
	}
	return e.toNumber(args[0])
}

// fnBoolean implements $boolean(): undefined stays undefined, functions are
// false, and an array is true iff at least one element is truthy (checked
// recursively by isTruthyBoolean).
func fnBoolean(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return e.isTruthyBoolean(args[0]), nil
}

func fnNot(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil // $not(undefined) → undefined
	}
	return !e.isTruthy(args[0]), nil
}
