// Package extnumeric provides extended numeric functions for the evaluator
// beyond the official JSONata spec: trig/log helpers and array statistics
// (median, variance, percentile, mode).
package extnumeric

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/nilforge/jsonquery/pkg/functions"
)

// All returns all extended numeric function definitions.
func All() []functions.CustomFunctionDef {
	return []functions.CustomFunctionDef{
		Log(),
		Sign(),
		Trunc(),
		Clamp(),
		Sin(),
		Cos(),
		Tan(),
		Asin(),
		Acos(),
		Atan(),
		Atan2(),
		Pi(),
		E(),
		Median(),
		Variance(),
		Stddev(),
		Percentile(),
		Mode(),
	}
}

// AllEntries returns all numeric function definitions as [functions.FunctionEntry],
// suitable for spreading into [gosonata.WithFunctions].
func AllEntries() []functions.FunctionEntry {
	all := All()
	out := make([]functions.FunctionEntry, len(all))
	for i, f := range all {
		out[i] = f
	}
	return out
}

// Log returns the definition for $log(n [, base]). Without base, returns the
// natural logarithm.
func Log() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "log",
		Signature: "<n<n>?:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			n, err := floatArg("log", args, 0)
			if err != nil {
				return nil, err
			}
			if n <= 0 {
				return nil, fmt.Errorf("$log: argument must be positive")
			}
			if len(args) < 2 || args[1] == nil {
				return math.Log(n), nil
			}
			base, err := floatArg("log", args, 1)
			if err != nil {
				return nil, err
			}
			if base <= 0 || base == 1 {
				return nil, fmt.Errorf("$log: base must be positive and not 1")
			}
			return math.Log(n) / math.Log(base), nil
		},
	}
}

// Sign returns the definition for $sign(n): -1, 0, or 1.
func Sign() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "sign",
		Signature: "<n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			n, err := floatArg("sign", args, 0)
			if err != nil {
				return nil, err
			}
			switch {
			case n < 0:
				return float64(-1), nil
			case n > 0:
				return float64(1), nil
			default:
				return float64(0), nil
			}
		},
	}
}

// Trunc returns the definition for $trunc(n), truncating toward zero.
func Trunc() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "trunc",
		Signature: "<n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			n, err := floatArg("trunc", args, 0)
			if err != nil {
				return nil, err
			}
			return math.Trunc(n), nil
		},
	}
}

// Clamp returns the definition for $clamp(n, min, max).
func Clamp() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "clamp",
		Signature: "<n-n-n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			n, err := floatArg("clamp", args, 0)
			if err != nil {
				return nil, err
			}
			min, err := floatArg("clamp", args, 1)
			if err != nil {
				return nil, err
			}
			max, err := floatArg("clamp", args, 2)
			if err != nil {
				return nil, err
			}
			switch {
			case n < min:
				return min, nil
			case n > max:
				return max, nil
			default:
				return n, nil
			}
		},
	}
}

// Sin returns the definition for $sin(n).
func Sin() functions.CustomFunctionDef { return mathFunc1("sin", math.Sin) }

// Cos returns the definition for $cos(n).
func Cos() functions.CustomFunctionDef { return mathFunc1("cos", math.Cos) }

// Tan returns the definition for $tan(n).
func Tan() functions.CustomFunctionDef { return mathFunc1("tan", math.Tan) }

// Asin returns the definition for $asin(n).
func Asin() functions.CustomFunctionDef { return mathFunc1("asin", math.Asin) }

// Acos returns the definition for $acos(n).
func Acos() functions.CustomFunctionDef { return mathFunc1("acos", math.Acos) }

// Atan returns the definition for $atan(n).
func Atan() functions.CustomFunctionDef { return mathFunc1("atan", math.Atan) }

// Atan2 returns the definition for $atan2(y, x).
func Atan2() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "atan2",
		Signature: "<n-n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			y, err := floatArg("atan2", args, 0)
			if err != nil {
				return nil, err
			}
			x, err := floatArg("atan2", args, 1)
			if err != nil {
				return nil, err
			}
			return math.Atan2(y, x), nil
		},
	}
}

// Pi returns the definition for $pi().
func Pi() functions.CustomFunctionDef { return constFunc("pi", math.Pi) }

// E returns the definition for $e().
func E() functions.CustomFunctionDef { return constFunc("e", math.E) }

// Median returns the definition for $median(array).
func Median() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "median",
		Signature: "<a<n>:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			nums, err := arrayArg("median", args, 0)
			if err != nil {
				return nil, err
			}
			if len(nums) == 0 {
				return nil, nil
			}
			sorted := sortedCopy(nums)
			mid := len(sorted) / 2
			if len(sorted)%2 == 0 {
				return (sorted[mid-1] + sorted[mid]) / 2, nil
			}
			return sorted[mid], nil
		},
	}
}

// Variance returns the definition for $variance(array).
func Variance() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "variance",
		Signature: "<a<n>:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			nums, err := arrayArg("variance", args, 0)
			if err != nil {
				return nil, err
			}
			return calcVariance(nums), nil
		},
	}
}

// Stddev returns the definition for $stddev(array).
func Stddev() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "stddev",
		Signature: "<a<n>:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			nums, err := arrayArg("stddev", args, 0)
			if err != nil {
				return nil, err
			}
			v := calcVariance(nums)
			if v == nil {
				return nil, nil
			}
			return math.Sqrt(v.(float64)), nil
		},
	}
}

// Percentile returns the definition for $percentile(array, p), p in [0, 100],
// linearly interpolating between the two nearest ranked values.
func Percentile() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "percentile",
		Signature: "<a<n>-n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			nums, err := arrayArg("percentile", args, 0)
			if err != nil {
				return nil, err
			}
			p, err := floatArg("percentile", args, 1)
			if err != nil {
				return nil, err
			}
			if p < 0 || p > 100 {
				return nil, fmt.Errorf("$percentile: p must be between 0 and 100")
			}
			if len(nums) == 0 {
				return nil, nil
			}
			sorted := sortedCopy(nums)
			idx := p / 100 * float64(len(sorted)-1)
			lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
			if lo == hi {
				return sorted[lo], nil
			}
			frac := idx - float64(lo)
			return sorted[lo]*(1-frac) + sorted[hi]*frac, nil
		},
	}
}

// Mode returns the definition for $mode(array): the most frequent value, or
// an array of all values tied for most frequent.
func Mode() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "mode",
		Signature: "<a<n>:x>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			nums, err := arrayArg("mode", args, 0)
			if err != nil {
				return nil, err
			}
			if len(nums) == 0 {
				return nil, nil
			}

			counts := make(map[float64]int, len(nums))
			maxCount := 0
			for _, n := range nums {
				counts[n]++
				if counts[n] > maxCount {
					maxCount = counts[n]
				}
			}

			seen := make(map[float64]bool, len(counts))
			var modes []interface{}
			for _, n := range nums {
				if counts[n] == maxCount && !seen[n] {
					seen[n] = true
					modes = append(modes, n)
				}
			}
			if len(modes) == 1 {
				return modes[0], nil
			}
			return modes, nil
		},
	}
}

// ── helpers ────────────────────────────────────────────────────────────────

func mathFunc1(name string, fn func(float64) float64) functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      name,
		Signature: "<n:n>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			n, err := floatArg(name, args, 0)
			if err != nil {
				return nil, err
			}
			return fn(n), nil
		},
	}
}

func constFunc(name string, value float64) functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      name,
		Signature: "<:n>",
		Fn: func(_ context.Context, _ ...interface{}) (interface{}, error) {
			return value, nil
		},
	}
}

// floatArg converts args[i] to a float64, prefixing any error with the
// calling function's $name for a JSONata-style error message.
func floatArg(name string, args []interface{}, i int) (float64, error) {
	n, err := toFloat(args[i])
	if err != nil {
		return 0, fmt.Errorf("$%s: %w", name, err)
	}
	return n, nil
}

// arrayArg converts args[i], a JSON array, to a []float64.
func arrayArg(name string, args []interface{}, i int) ([]float64, error) {
	nums, err := toFloatSlice(args[i])
	if err != nil {
		return nil, fmt.Errorf("$%s: %w", name, err)
	}
	return nums, nil
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

func toFloatSlice(v interface{}) ([]float64, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	nums := make([]float64, len(arr))
	for i, item := range arr {
		n, err := toFloat(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		nums[i] = n
	}
	return nums, nil
}

// sortedCopy returns a sorted copy of nums, leaving the input untouched.
func sortedCopy(nums []float64) []float64 {
	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)
	return sorted
}

// calcVariance computes the population variance, or nil for an empty slice.
func calcVariance(nums []float64) interface{} {
	if len(nums) == 0 {
		return nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	mean := sum / float64(len(nums))

	variance := 0.0
	for _, n := range nums {
		diff := n - mean
		variance += diff * diff
	}
	return variance / float64(len(nums))
}
