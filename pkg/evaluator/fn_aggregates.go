package evaluator

import (
	"context"

	"github.com/nilforge/jsonquery/pkg/types"
)

func fnSum(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	sum := 0.0
	for _, v := range arr {
		num, err := e.toNumber(v)
		if err != nil {
			return nil, err
		}
		sum += num
	}
	return sum, nil
}

func fnCount(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return 0.0, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	return float64(len(arr)), nil
}

func fnAverage(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return numericAggregate(e, args[0], "average", func(nums []float64) float64 {
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums))
	})
}

func fnMin(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return numericAggregate(e, args[0], "min", func(nums []float64) float64 {
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min
	})
}

func fnMax(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return numericAggregate(e, args[0], "max", func(nums []float64) float64 {
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max
	})
}

// numericAggregate converts value to an array, requires every element be a
// number (per JSONata's T0412 for $average/$min/$max), and folds it with
// reduce; an empty array yields undefined rather than an error.
func numericAggregate(e *Evaluator, value interface{}, fnName string, reduce func([]float64) float64) (interface{}, error) {
	arr, err := e.toArray(value)
	if err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		return nil, nil
	}

	nums := make([]float64, len(arr))
	for i, v := range arr {
		if _, ok := v.(float64); !ok {
			return nil, types.NewError("T0412", "Argument of function '"+fnName+"' must be an array of numbers", -1)
		}
		num, err := e.toNumber(v)
		if err != nil {
			return nil, err
		}
		nums[i] = num
	}
	return reduce(nums), nil
}
