// Package extarray provides extended array functions for the evaluator
// beyond the official JSONata spec: slicing/windowing, set algebra, and
// lambda-driven grouping/aggregation.
package extarray

import (
	"context"
	"fmt"
	"math"

	"github.com/nilforge/jsonquery/pkg/functions"
)

// All returns the simple (non-HOF) extended array function definitions.
func All() []functions.CustomFunctionDef {
	return []functions.CustomFunctionDef{
		First(), Last(), Take(), Skip(), Slice(), Flatten(), Chunk(),
		Union(), Intersection(), Difference(), SymmetricDifference(),
		Range(), ZipLongest(), Window(),
	}
}

// AllAdvanced returns the HOF extended array function definitions; each
// needs a functions.Caller to invoke its lambda argument.
func AllAdvanced() []functions.AdvancedCustomFunctionDef {
	return []functions.AdvancedCustomFunctionDef{
		GroupBy(), CountBy(), SumBy(), MinBy(), MaxBy(), Accumulate(),
	}
}

// AllEntries returns every array function definition (simple + advanced)
// as [functions.FunctionEntry], suitable for spreading into
// [gosonata.WithFunctions]:
//
//	gosonata.WithFunctions(extarray.AllEntries()...)
func AllEntries() []functions.FunctionEntry {
	simple, adv := All(), AllAdvanced()
	out := make([]functions.FunctionEntry, 0, len(simple)+len(adv))
	for _, f := range simple {
		out = append(out, f)
	}
	for _, f := range adv {
		out = append(out, f)
	}
	return out
}

// arrayArg coerces args[0] to a []interface{}, prefixing any error with
// fnName for a consistent "$fn: ..." message shape.
func arrayArg(args []interface{}, fnName string) ([]interface{}, error) {
	arr, err := toArray(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnName, err)
	}
	return arr, nil
}

// twoArrayArgs coerces args[0] and args[1] to arrays, for the set-algebra
// functions below.
func twoArrayArgs(args []interface{}, fnName string) (a1, a2 []interface{}, err error) {
	a1, err = arrayArg(args, fnName)
	if err != nil {
		return nil, nil, err
	}
	a2, err = toArray(args[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fnName, err)
	}
	return a1, a2, nil
}

// orNilIfEmpty returns nil (JSONata undefined) for a zero-length result
// instead of an empty array — the convention every function below follows.
func orNilIfEmpty(result []interface{}) interface{} {
	if len(result) == 0 {
		return nil
	}
	return result
}

// First returns the definition for $first(array): its first element, or
// undefined for an empty array.
func First() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "first", Signature: "<a:x>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$first")
			if err != nil {
				return nil, err
			}
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[0], nil
		},
	}
}

// Last returns the definition for $last(array): its final element, or
// undefined for an empty array.
func Last() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "last", Signature: "<a:x>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$last")
			if err != nil {
				return nil, err
			}
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[len(arr)-1], nil
		},
	}
}

// Take returns the definition for $take(array, n): the first n elements
// (clamped to the array bounds).
func Take() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "take", Signature: "<a-n:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$take")
			if err != nil {
				return nil, err
			}
			n, ok := toInt(args[1])
			if !ok {
				return nil, fmt.Errorf("$take: second argument must be a number")
			}
			n = clamp(n, 0, len(arr))
			return orNilIfEmpty(arr[:n]), nil
		},
	}
}

// Skip returns the definition for $skip(array, n): every element after the
// first n (clamped to the array bounds).
func Skip() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "skip", Signature: "<a-n:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$skip")
			if err != nil {
				return nil, err
			}
			n, ok := toInt(args[1])
			if !ok {
				return nil, fmt.Errorf("$skip: second argument must be a number")
			}
			n = clamp(n, 0, len(arr))
			return orNilIfEmpty(arr[n:]), nil
		},
	}
}

// Slice returns the definition for $slice(array, start [, end]): a 0-based
// half-open range, where negative start/end count from the array's end.
func Slice() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "slice", Signature: "<a-n<n>?:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$slice")
			if err != nil {
				return nil, err
			}
			n := len(arr)
			start, ok := toInt(args[1])
			if !ok {
				return nil, fmt.Errorf("$slice: start must be a number")
			}
			start = normaliseIndex(start, n)

			end := n
			if len(args) >= 3 && args[2] != nil {
				e, ok := toInt(args[2])
				if !ok {
					return nil, fmt.Errorf("$slice: end must be a number")
				}
				end = normaliseIndex(e, n)
			}
			if start >= end {
				return nil, nil
			}
			return orNilIfEmpty(arr[start:end]), nil
		},
	}
}

// Flatten returns the definition for $flatten(array [, depth]): array with
// nested arrays flattened depth levels (default/−1: fully flattened).
func Flatten() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "flatten", Signature: "<a<n>?:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$flatten")
			if err != nil {
				return nil, err
			}
			depth := -1
			if len(args) >= 2 && args[1] != nil {
				d, ok := toInt(args[1])
				if !ok {
					return nil, fmt.Errorf("$flatten: depth must be a number")
				}
				depth = d
			}
			return orNilIfEmpty(flattenArray(arr, depth)), nil
		},
	}
}

func flattenArray(arr []interface{}, depth int) []interface{} {
	var result []interface{}
	for _, item := range arr {
		inner, isArr := item.([]interface{})
		if !isArr || depth == 0 {
			result = append(result, item)
			continue
		}
		nextDepth := depth - 1
		if depth < 0 {
			nextDepth = depth // negative depth means "unlimited"; never decrements to 0
		}
		result = append(result, flattenArray(inner, nextDepth)...)
	}
	return result
}

// Chunk returns the definition for $chunk(array, size): array split into
// consecutive sub-arrays of size elements (the last one may be shorter).
func Chunk() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "chunk", Signature: "<a-n:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$chunk")
			if err != nil {
				return nil, err
			}
			size, ok := toInt(args[1])
			if !ok || size <= 0 {
				return nil, fmt.Errorf("$chunk: size must be a positive integer")
			}
			var chunks []interface{}
			for i := 0; i < len(arr); i += size {
				chunks = append(chunks, arr[i:clamp(i+size, 0, len(arr))])
			}
			return orNilIfEmpty(chunks), nil
		},
	}
}

// setKind selects which membership rule a set-algebra function applies,
// given whether an element is present in the first (inA) and/or second
// (inB) operand array.
type setKind int

const (
	setUnion setKind = iota
	setIntersection
	setDifference
	setSymmetricDifference
)

func (k setKind) include(inA, inB bool) bool {
	switch k {
	case setIntersection:
		return inA && inB
	case setDifference:
		return inA && !inB
	case setSymmetricDifference:
		return inA != inB
	default: // setUnion
		return inA || inB
	}
}

// setOp implements $union/$intersection/$difference/$symmetricDifference:
// all four walk a1 followed by a2 once, each element keyed by its
// fmt.Sprint representation, keeping the first occurrence of every element
// the membership rule admits.
func setOp(kind setKind, a1, a2 []interface{}) []interface{} {
	inA := make(map[string]bool, len(a1))
	for _, item := range a1 {
		inA[fmt.Sprint(item)] = true
	}
	inB := make(map[string]bool, len(a2))
	for _, item := range a2 {
		inB[fmt.Sprint(item)] = true
	}

	seen := make(map[string]bool, len(a1)+len(a2))
	var result []interface{}
	combined := make([]interface{}, 0, len(a1)+len(a2))
	combined = append(append(combined, a1...), a2...)
	for _, item := range combined {
		key := fmt.Sprint(item)
		if seen[key] {
			continue
		}
		if kind.include(inA[key], inB[key]) {
			seen[key] = true
			result = append(result, item)
		}
	}
	return result
}

// Union returns the definition for $union(arr1, arr2): the deduplicated
// elements present in either array.
func Union() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "union", Signature: "<a-a:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			a1, a2, err := twoArrayArgs(args, "$union")
			if err != nil {
				return nil, err
			}
			return orNilIfEmpty(setOp(setUnion, a1, a2)), nil
		},
	}
}

// Intersection returns the definition for $intersection(arr1, arr2): the
// deduplicated elements present in both arrays.
func Intersection() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "intersection", Signature: "<a-a:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			a1, a2, err := twoArrayArgs(args, "$intersection")
			if err != nil {
				return nil, err
			}
			return orNilIfEmpty(setOp(setIntersection, a1, a2)), nil
		},
	}
}

// Difference returns the definition for $difference(arr1, arr2): elements
// of arr1 that are absent from arr2.
func Difference() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "difference", Signature: "<a-a:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			a1, a2, err := twoArrayArgs(args, "$difference")
			if err != nil {
				return nil, err
			}
			return orNilIfEmpty(setOp(setDifference, a1, a2)), nil
		},
	}
}

// SymmetricDifference returns the definition for
// $symmetricDifference(arr1, arr2): elements in exactly one of the arrays.
func SymmetricDifference() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "symmetricDifference", Signature: "<a-a:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			a1, a2, err := twoArrayArgs(args, "$symmetricDifference")
			if err != nil {
				return nil, err
			}
			return orNilIfEmpty(setOp(setSymmetricDifference, a1, a2)), nil
		},
	}
}

// Range returns the definition for $range(start, end [, step]): the
// arithmetic sequence from start up to (exclusive of) end, stepping by
// step (default 1; may be negative or fractional).
func Range() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "range", Signature: "<n-n<n>?:a<n>>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			start, err1 := toFloat(args[0])
			end, err2 := toFloat(args[1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("$range: start and end must be numbers")
			}
			step := 1.0
			if len(args) >= 3 && args[2] != nil {
				s, err := toFloat(args[2])
				if err != nil {
					return nil, fmt.Errorf("$range: step must be a number")
				}
				if s == 0 {
					return nil, fmt.Errorf("$range: step must not be zero")
				}
				step = s
			}

			const maxItems = 100000
			var result []interface{}
			for i := 0; ; i++ {
				v := start + float64(i)*step
				if (step > 0 && v > end) || (step < 0 && v < end) {
					break
				}
				if i >= maxItems {
					return nil, fmt.Errorf("$range: would produce more than %d items", maxItems)
				}
				// Round off floating-point accumulation error from repeated addition.
				result = append(result, math.Round(v*1e10)/1e10)
			}
			return orNilIfEmpty(result), nil
		},
	}
}

// ZipLongest returns the definition for $zipLongest(arr1, arr2 [, fill]):
// pairs of (arr1[i], arr2[i]) up to the longer array's length, the shorter
// array padded with fill (default undefined).
func ZipLongest() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "zipLongest", Signature: "<a-a<x>?:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			a1, a2, err := twoArrayArgs(args, "$zipLongest")
			if err != nil {
				return nil, err
			}
			var fill interface{}
			if len(args) >= 3 {
				fill = args[2]
			}

			length := len(a1)
			if len(a2) > length {
				length = len(a2)
			}
			result := make([]interface{}, length)
			for i := 0; i < length; i++ {
				v1, v2 := fill, fill
				if i < len(a1) {
					v1 = a1[i]
				}
				if i < len(a2) {
					v2 = a2[i]
				}
				result[i] = []interface{}{v1, v2}
			}
			return orNilIfEmpty(result), nil
		},
	}
}

// Window returns the definition for $window(array, size, step): successive
// size-element sub-arrays starting step elements apart (a sliding window).
func Window() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name: "window", Signature: "<a-n-n:a>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, err := arrayArg(args, "$window")
			if err != nil {
				return nil, err
			}
			size, ok1 := toInt(args[1])
			step, ok2 := toInt(args[2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("$window: size and step must be numbers")
			}
			if size <= 0 || step <= 0 {
				return nil, fmt.Errorf("$window: size and step must be positive")
			}
			var result []interface{}
			for i := 0; i+size <= len(arr); i += step {
				result = append(result, arr[i:i+size])
			}
			return orNilIfEmpty(result), nil
		},
	}
}

// advancedArrayArg validates the shared (array, fn, ...) argument shape
// used by every *By/accumulate HOF below and coerces args[0] to an array.
func advancedArrayArg(args []interface{}, fnName string, minArgs int) ([]interface{}, error) {
	if len(args) < minArgs {
		return nil, fmt.Errorf("%s: requires %d arguments", fnName, minArgs)
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnName, err)
	}
	return arr, nil
}

// GroupBy returns the AdvancedCustomFunctionDef for $groupBy(array, fn):
// fn(item) computes each element's group key; the result is an object
// mapping each distinct key (via fmt.Sprint) to its group's elements.
func GroupBy() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "groupBy",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$groupBy", 2)
			if err != nil {
				return nil, err
			}
			fn := args[1]

			groups := make(map[string][]interface{})
			for _, item := range arr {
				keyRaw, err := caller.Call(ctx, fn, item)
				if err != nil {
					return nil, fmt.Errorf("$groupBy: %w", err)
				}
				key := fmt.Sprint(keyRaw)
				groups[key] = append(groups[key], item)
			}
			result := make(map[string]interface{}, len(groups))
			for k, v := range groups {
				result[k] = v
			}
			return result, nil
		},
	}
}

// CountBy returns the AdvancedCustomFunctionDef for $countBy(array, fn):
// an object mapping each distinct fn(item) key to its occurrence count.
func CountBy() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "countBy",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$countBy", 2)
			if err != nil {
				return nil, err
			}
			fn := args[1]

			result := make(map[string]interface{})
			for _, item := range arr {
				keyRaw, err := caller.Call(ctx, fn, item)
				if err != nil {
					return nil, fmt.Errorf("$countBy: %w", err)
				}
				key := fmt.Sprint(keyRaw)
				if cur, ok := result[key]; ok {
					result[key] = cur.(float64) + 1
				} else {
					result[key] = float64(1)
				}
			}
			return result, nil
		},
	}
}

// numericFold drives the shared control flow behind $sumBy/$minBy/$maxBy:
// call fn(item) for every element, require a numeric result, and fold it
// via combine(accumulated, next) starting from the array's first element.
func numericFold(ctx context.Context, caller functions.Caller, arr []interface{}, fn interface{}, fnName string, init float64, combine func(acc, next float64) float64) (float64, error) {
	acc := init
	for _, item := range arr {
		v, err := caller.Call(ctx, fn, item)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", fnName, err)
		}
		n, err := toFloat(v)
		if err != nil {
			return 0, fmt.Errorf("%s: fn must return a number: %w", fnName, err)
		}
		acc = combine(acc, n)
	}
	return acc, nil
}

// SumBy returns the AdvancedCustomFunctionDef for $sumBy(array, fn): the
// sum of fn(item) over every element.
func SumBy() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "sumBy",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$sumBy", 2)
			if err != nil {
				return nil, err
			}
			return numericFold(ctx, caller, arr, args[1], "$sumBy", 0, func(acc, n float64) float64 { return acc + n })
		},
	}
}

// itemByExtremum runs the shared control flow behind $minBy/$maxBy: call
// fn(item) for every element, require a numeric result, and keep whichever
// item's result is preferred by better(candidate, bestSoFar).
func itemByExtremum(ctx context.Context, caller functions.Caller, arr []interface{}, fn interface{}, fnName string, initBest float64, better func(candidate, best float64) bool) (interface{}, error) {
	if len(arr) == 0 {
		return nil, nil
	}
	best := initBest
	var bestItem interface{}
	for _, item := range arr {
		v, err := caller.Call(ctx, fn, item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fnName, err)
		}
		n, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%s: fn must return a number: %w", fnName, err)
		}
		if better(n, best) {
			best = n
			bestItem = item
		}
	}
	return bestItem, nil
}

// MinBy returns the AdvancedCustomFunctionDef for $minBy(array, fn): the
// element whose fn(item) result is smallest.
func MinBy() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "minBy",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$minBy", 2)
			if err != nil {
				return nil, err
			}
			return itemByExtremum(ctx, caller, arr, args[1], "$minBy", math.Inf(1), func(n, best float64) bool { return n < best })
		},
	}
}

// MaxBy returns the AdvancedCustomFunctionDef for $maxBy(array, fn): the
// element whose fn(item) result is largest.
func MaxBy() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "maxBy",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$maxBy", 2)
			if err != nil {
				return nil, err
			}
			return itemByExtremum(ctx, caller, arr, args[1], "$maxBy", math.Inf(-1), func(n, best float64) bool { return n > best })
		},
	}
}

// Accumulate returns the AdvancedCustomFunctionDef for
// $accumulate(array, fn, init): like $reduce, but returns every
// intermediate accumulator value (a running-total/scan/prefix-sum array)
// instead of only the final one.
func Accumulate() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name: "accumulate",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			arr, err := advancedArrayArg(args, "$accumulate", 3)
			if err != nil {
				return nil, err
			}
			fn, acc := args[1], args[2]

			result := []interface{}{acc}
			for _, item := range arr {
				next, err := caller.Call(ctx, fn, acc, item)
				if err != nil {
					return nil, fmt.Errorf("$accumulate: %w", err)
				}
				acc = next
				result = append(result, acc)
			}
			return result, nil
		},
	}
}

func toArray(v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if a, ok := v.([]interface{}); ok {
		return a, nil
	}
	return []interface{}{v}, nil // wrap a scalar as a single-element array
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// normaliseIndex resolves a possibly-negative $slice bound against length,
// clamped into [0, length].
func normaliseIndex(idx, length int) int {
	if idx < 0 {
		idx = length + idx
	}
	return clamp(idx, 0, length)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
