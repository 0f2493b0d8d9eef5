// Package extobject provides extended object functions for the evaluator beyond the
// official JSONata spec.
package extobject

import (
	"context"
	"fmt"

	"github.com/nilforge/jsonquery/pkg/ext/extutil"
	"github.com/nilforge/jsonquery/pkg/functions"
)

// All returns all extended object function definitions (simple, no HOF).
func All() []functions.CustomFunctionDef {
	return []functions.CustomFunctionDef{
		Values(),
		Pairs(),
		FromPairs(),
		Pick(),
		Omit(),
		DeepMerge(),
		Invert(),
		Size(),
		Rename(),
	}
}

// AllAdvanced returns advanced (HOF) extended object function definitions.
func AllAdvanced() []functions.AdvancedCustomFunctionDef {
	return []functions.AdvancedCustomFunctionDef{
		MapValues(),
		MapKeys(),
	}
}

// AllEntries returns all object function definitions (simple + advanced) as
// [functions.FunctionEntry], suitable for spreading into [gosonata.WithFunctions].
func AllEntries() []functions.FunctionEntry {
	simple := All()
	adv := AllAdvanced()
	out := make([]functions.FunctionEntry, 0, len(simple)+len(adv))
	for _, f := range simple {
		out = append(out, f)
	}
	for _, f := range adv {
		out = append(out, f)
	}
	return out
}

// Values returns the definition for $values(object).
// Returns the values of the object as an array.
func Values() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "values",
		Signature: "<o:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			keys, vals, err := extutil.AsObjectOrdered(args[0])
			if err != nil {
				return nil, fmt.Errorf("$values: %w", err)
			}
			if len(keys) == 0 {
				return nil, nil
			}
			result := make([]interface{}, 0, len(keys))
			for _, k := range keys {
				result = append(result, vals[k])
			}
			return result, nil
		},
	}
}

// Pairs returns the definition for $pairs(object).
// Returns [[key, value], ...] for each key in the object.
func Pairs() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "pairs",
		Signature: "<o:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			keys, vals, err := extutil.AsObjectOrdered(args[0])
			if err != nil {
				return nil, fmt.Errorf("$pairs: %w", err)
			}
			if len(keys) == 0 {
				return nil, nil
			}
			result := make([]interface{}, 0, len(keys))
			for _, k := range keys {
				result = append(result, []interface{}{k, vals[k]})
			}
			return result, nil
		},
	}
}

// FromPairs returns the definition for $fromPairs(array).
// Converts [[key, value], ...] into an object.
func FromPairs() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "fromPairs",
		Signature: "<a:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, ok := args[0].([]interface{})
			if !ok {
				return nil, fmt.Errorf("$fromPairs: argument must be an array")
			}
			result := make(map[string]interface{}, len(arr))
			for i, item := range arr {
				pair, ok := item.([]interface{})
				if !ok || len(pair) < 2 {
					return nil, fmt.Errorf("$fromPairs: element %d must be a [key, value] pair", i)
				}
				key, ok := pair[0].(string)
				if !ok {
					return nil, fmt.Errorf("$fromPairs: key at element %d must be a string", i)
				}
				result[key] = pair[1]
			}
			return result, nil
		},
	}
}

// stringKeySet converts a JSONata array argument into a set of the strings
// it contains, silently skipping non-string elements. Shared by Pick/Omit,
// whose "which keys" argument only ever matters as a membership test.
func stringKeySet(v interface{}, fnName string) (map[string]bool, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("$%s: second argument must be an array of strings", fnName)
	}
	set := make(map[string]bool, len(arr))
	for _, kr := range arr {
		if k, ok := kr.(string); ok {
			set[k] = true
		}
	}
	return set, nil
}

// orNilIfEmpty mirrors JSONata's "empty object/array collapses to nil"
// convention for the plain (non-ordered) object builders in this file.
func orNilIfEmpty(result map[string]interface{}) interface{} {
	if len(result) == 0 {
		return nil
	}
	return result
}

// Pick returns the definition for $pick(object, keys).
// Returns a new object containing only the specified keys.
func Pick() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "pick",
		Signature: "<o-a<s>:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$pick: %w", err)
			}
			keep, err := stringKeySet(args[1], "pick")
			if err != nil {
				return nil, err
			}
			result := make(map[string]interface{})
			for k := range keep {
				if v, exists := obj[k]; exists {
					result[k] = v
				}
			}
			return orNilIfEmpty(result), nil
		},
	}
}

// Omit returns the definition for $omit(object, keys).
// Returns a new object excluding the specified keys.
func Omit() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "omit",
		Signature: "<o-a<s>:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$omit: %w", err)
			}
			skip, err := stringKeySet(args[1], "omit")
			if err != nil {
				return nil, err
			}
			result := make(map[string]interface{})
			for k, v := range obj {
				if !skip[k] {
					result[k] = v
				}
			}
			return orNilIfEmpty(result), nil
		},
	}
}

// DeepMerge returns the definition for $deepMerge(array<object>).
// Recursively merges objects; later objects override earlier ones.
func DeepMerge() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "deepMerge",
		Signature: "<a<o>:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, ok := args[0].([]interface{})
			if !ok {
				return nil, fmt.Errorf("$deepMerge: argument must be an array of objects")
			}
			result := make(map[string]interface{})
			for _, item := range arr {
				obj, err := extutil.AsObjectMap(item)
				if err != nil {
					return nil, fmt.Errorf("$deepMerge: all elements must be objects")
				}
				deepMergeInto(result, obj)
			}
			return result, nil
		},
	}
}

// deepMergeInto merges src into dst in place, recursing into keys that are
// plain objects on both sides and overwriting everything else.
func deepMergeInto(dst, src map[string]interface{}) {
	for k, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]interface{})
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			merged := make(map[string]interface{}, len(dstMap))
			for dk, dv := range dstMap {
				merged[dk] = dv
			}
			deepMergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		dst[k] = srcVal
	}
}

// Invert returns the definition for $invert(object).
// Swaps keys and values; values are converted to strings.
func Invert() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "invert",
		Signature: "<o:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$invert: %w", err)
			}
			result := make(map[string]interface{}, len(obj))
			for k, v := range obj {
				result[fmt.Sprint(v)] = k
			}
			return result, nil
		},
	}
}

// Size returns the definition for $size(object).
// Returns the number of keys in the object.
func Size() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "size",
		Signature: "<o:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$size: %w", err)
			}
			return float64(len(obj)), nil
		},
	}
}

// Rename returns the definition for $rename(object, mapping).
// Renames keys according to the mapping object.
func Rename() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "rename",
		Signature: "<o-o:o>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$rename: %w", err)
			}
			mapping, err := extutil.AsObjectMap(args[1])
			if err != nil {
				return nil, fmt.Errorf("$rename: second argument must be an object")
			}
			result := make(map[string]interface{}, len(obj))
			for k, v := range obj {
				newKey := k
				if mapped, ok := mapping[k]; ok {
					if s, ok := mapped.(string); ok {
						newKey = s
					}
				}
				result[newKey] = v
			}
			return result, nil
		},
	}
}

// ── Advanced (HOF) functions ────────────────────────────────────────────────

// requireTwoArgs checks the arity shared by MapValues/MapKeys, both of
// which take (object, fn).
func requireTwoArgs(args []interface{}, fnName string) error {
	if len(args) < 2 {
		return fmt.Errorf("$%s: requires 2 arguments", fnName)
	}
	return nil
}

// MapValues returns the AdvancedCustomFunctionDef for $mapValues(object, fn).
// fn(value, key) is called for each value; returns a new object with transformed values.
func MapValues() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name:      "mapValues",
		Signature: "",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			if err := requireTwoArgs(args, "mapValues"); err != nil {
				return nil, err
			}
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$mapValues: %w", err)
			}
			fn := args[1]
			result := make(map[string]interface{}, len(obj))
			for k, v := range obj {
				newVal, err := caller.Call(ctx, fn, v, k)
				if err != nil {
					return nil, fmt.Errorf("$mapValues: %w", err)
				}
				result[k] = newVal
			}
			return result, nil
		},
	}
}

// MapKeys returns the AdvancedCustomFunctionDef for $mapKeys(object, fn).
// fn(key, value) is called for each key; returns a new object with transformed keys.
func MapKeys() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name:      "mapKeys",
		Signature: "",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			if err := requireTwoArgs(args, "mapKeys"); err != nil {
				return nil, err
			}
			obj, err := extutil.AsObjectMap(args[0])
			if err != nil {
				return nil, fmt.Errorf("$mapKeys: %w", err)
			}
			fn := args[1]
			result := make(map[string]interface{}, len(obj))
			for k, v := range obj {
				newKeyRaw, err := caller.Call(ctx, fn, k, v)
				if err != nil {
					return nil, fmt.Errorf("$mapKeys: %w", err)
				}
				newKey, ok := newKeyRaw.(string)
				if !ok {
					newKey = fmt.Sprint(newKeyRaw)
				}
				result[newKey] = v
			}
			return result, nil
		},
	}
}
