package evaluator

import (
	"context"
	"fmt"
	"sort"

	"github.com/nilforge/jsonquery/pkg/types"
)

// callHOFFn invokes fn (a Lambda or FunctionDef passed as a higher-order
// function argument) with args, trimming trailing positional args the
// callee doesn't declare — JSONata's reference implementation passes
// (item, index, array) to every HOF callback but a callback is free to
// only declare a prefix of them.
func (e *Evaluator) callHOFFn(ctx context.Context, evalCtx *EvalContext, fn interface{}, args []interface{}) (interface{}, error) {
	switch f := fn.(type) {
	case *Lambda:
		callArgs := args
		if len(f.Params) > 0 && len(f.Params) < len(args) {
			callArgs = args[:len(f.Params)]
		}
		return e.callLambda(ctx, f, callArgs)
	case *FunctionDef:
		callArgs := args
		if f.MaxArgs > 0 && len(callArgs) > f.MaxArgs {
			callArgs = callArgs[:f.MaxArgs]
		}
		// Context-accepting builtins with no required args (e.g. $string,
		// $trim) only expect the item value, not the (index, array) tail.
		if f.AcceptsContext && f.MinArgs == 0 && len(callArgs) > 1 {
			callArgs = callArgs[:1]
		}
		return f.Impl(ctx, e, evalCtx, callArgs)
	default:
		return nil, fmt.Errorf("expected a function, got %T", fn)
	}
}

// toHOFArray validates args[0] (nil passes through as "no input") and
// args[1] (the callback, required) for $map/$filter-shaped builtins.
func toHOFArray(e *Evaluator, args []interface{}, fnName string) ([]interface{}, bool, error) {
	if args[0] == nil {
		return nil, false, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, false, err
	}
	if args[1] == nil {
		return nil, false, fmt.Errorf("second argument to %s must be a function", fnName)
	}
	return arr, true, nil
}

// collapseSequence applies JSONata's sequence-flattening rule to a
// builder result: empty becomes undefined, a single element unwraps.
func collapseSequence(result []interface{}) interface{} {
	switch len(result) {
	case 0:
		return nil
	case 1:
		return result[0]
	default:
		return result
	}
}

func fnMap(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	arr, ok, err := toHOFArray(e, args, "$map")
	if !ok || err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(arr))
	for i, item := range arr {
		// Pooled HOF-args frame avoids a []interface{}{...} allocation per
		// iteration; safe because callHOFFn only reads it, never stores it.
		f, hofArgs := acquireHOFArgs3(item, float64(i), arr)
		value, err := e.callHOFFn(ctx, evalCtx, args[1], hofArgs)
		releaseHOFArgs(f)
		if err != nil {
			return nil, err
		}
		if value != nil { // undefined results drop out of the sequence
			result = append(result, value)
		}
	}
	return collapseSequence(result), nil
}

func fnFilter(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	arr, ok, err := toHOFArray(e, args, "$filter")
	if !ok || err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(arr))
	for i, item := range arr {
		f, hofArgs := acquireHOFArgs3(item, float64(i), arr)
		value, err := e.callHOFFn(ctx, evalCtx, args[1], hofArgs)
		releaseHOFArgs(f)
		if err != nil {
			return nil, err
		}
		if e.isTruthy(value) {
			result = append(result, item)
		}
	}
	return collapseSequence(result), nil
}

// requireReduceArity enforces D3050: $reduce's callback must declare at
// least two parameters (accumulator, current).
func requireReduceArity(fn interface{}) error {
	var arity int
	switch f := fn.(type) {
	case *Lambda:
		arity = len(f.Params)
	case *FunctionDef:
		arity = f.MinArgs
	default:
		return nil
	}
	if arity < 2 {
		return types.NewError(types.ErrReduceInsufficientArgs,
			"The second argument of reduce function must be a function with at least two arguments", -1)
	}
	return nil
}

func fnReduce(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	seed := func() (interface{}, bool) {
		if len(args) >= 3 {
			return args[2], true
		}
		return nil, false
	}

	if args[0] == nil {
		v, _ := seed()
		return v, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	if args[1] == nil {
		return nil, fmt.Errorf("second argument to $reduce must be a function")
	}
	if err := requireReduceArity(args[1]); err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		v, _ := seed()
		return v, nil
	}

	accumulator, startIdx := arr[0], 1
	if v, hasSeed := seed(); hasSeed {
		accumulator, startIdx = v, 0
	}

	for i := startIdx; i < len(arr); i++ {
		// Pooled 4-element frame: accumulator, current, index, array.
		f, hofArgs := acquireHOFArgs4(accumulator, arr[i], float64(i), arr)
		value, err := e.callHOFFn(ctx, evalCtx, args[1], hofArgs)
		releaseHOFArgs(f)
		if err != nil {
			return nil, err
		}
		accumulator = value
	}
	return accumulator, nil
}

// fnSingle implements $single(array, predicate?): the sole element
// satisfying predicate (or the sole element of array when predicate is
// omitted). Errors D3138 on more than one match, D3139 on zero.
func fnSingle(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	var predicate interface{}
	if len(args) >= 2 {
		predicate = args[1]
	}

	var result interface{}
	matched := false
	for i, entry := range arr {
		isMatch := true
		if predicate != nil {
			hf, hofArgs := acquireHOFArgs3(entry, float64(i), arr)
			res, err := e.callHOFFn(ctx, evalCtx, predicate, hofArgs)
			releaseHOFArgs(hf)
			if err != nil {
				return nil, err
			}
			isMatch = e.isTruthy(res)
		}
		if !isMatch {
			continue
		}
		if matched {
			return nil, types.NewError(types.ErrSingleMultipleMatches,
				"The $single() function expected exactly 1 matching result. Instead it matched more.", -1)
		}
		result, matched = entry, true
	}

	if !matched {
		return nil, types.NewError(types.ErrSingleNoMatch,
			"The $single() function expected exactly 1 matching result. Instead it matched 0.", -1)
	}
	return result, nil
}

func fnSort(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		return nil, nil
	}

	result := make([]interface{}, len(arr))
	copy(result, arr)

	if len(args) == 1 || args[1] == nil {
		err = sortDefault(result)
	} else {
		err = sortWithComparator(ctx, e, evalCtx, result, args[1])
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sortDefault implements $sort's no-comparator case: every element must
// be uniformly numeric or uniformly string (D3070 otherwise).
func sortDefault(result []interface{}) error {
	var sortErr error
	sort.SliceStable(result, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		ni, isNi := result[i].(float64)
		nj, isNj := result[j].(float64)
		if isNi && isNj {
			return ni < nj
		}
		si, isSi := result[i].(string)
		sj, isSj := result[j].(string)
		if isSi && isSj {
			return si < sj
		}
		sortErr = types.NewError(types.ErrTypeMismatch, "D3070 $sort: mixed types in array", -1)
		return false
	})
	return sortErr
}

// sortWithComparator implements $sort(array, fn) where fn($a, $b) returns
// true when $a should sort after $b. Go's less(i,j) means "i before j",
// so less = !fn(a,b) && fn(b,a): fn(a,b) true means a stays after b
// (less=false); otherwise fn(b,a) settles whether b is strictly after a.
func sortWithComparator(ctx context.Context, e *Evaluator, evalCtx *EvalContext, result []interface{}, comparator interface{}) error {
	callComparator := func(a, b interface{}) (bool, error) {
		var value interface{}
		var err error
		switch fn := comparator.(type) {
		case *Lambda:
			value, err = e.callLambda(ctx, fn, []interface{}{a, b})
		case *FunctionDef:
			value, err = fn.Impl(ctx, e, evalCtx, []interface{}{a, b})
		default:
			return false, fmt.Errorf("second argument to $sort must be a function")
		}
		if err != nil {
			return false, err
		}
		return e.isTruthy(value), nil
	}

	var sortErr error
	sort.SliceStable(result, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		aAfterB, err := callComparator(result[i], result[j])
		if err != nil {
			sortErr = err
			return false
		}
		if aAfterB {
			return false
		}
		bAfterA, err := callComparator(result[j], result[i])
		if err != nil {
			sortErr = err
			return false
		}
		return bAfterA
	})
	return sortErr
}
