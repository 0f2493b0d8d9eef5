package evaluator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// toNumberOrUndefined converts args[0] to float64, returning (0, false, nil)
// unchanged when the argument is undefined so callers can pass that through
// without repeating the nil check.
func toNumberOrUndefined(e *Evaluator, args []interface{}) (float64, bool, error) {
	if args[0] == nil {
		return 0, false, nil
	}
	num, err := e.toNumber(args[0])
	return num, err == nil, err
}

func fnAbs(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	num, ok, err := toNumberOrUndefined(e, args)
	if err != nil || !ok {
		return nil, err
	}
	return math.Abs(num), nil
}

func fnFloor(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	num, ok, err := toNumberOrUndefined(e, args)
	if err != nil || !ok {
		return nil, err
	}
	return math.Floor(num), nil
}

func fnCeil(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	num, ok, err := toNumberOrUndefined(e, args)
	if err != nil || !ok {
		return nil, err
	}
	return math.Ceil(num), nil
}

// roundBankers rounds num to the given number of decimals using round-half-
// to-even, matching JSONata's $round semantics (distinct from Go's
// math.Round, which always rounds halves away from zero).
func roundBankers(num float64, decimals int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}

	shift := math.Pow(10, float64(decimals))
	shifted := num * shift
	floor := math.Floor(shifted)
	frac := shifted - floor

	const halfEpsilon = 1e-10
	if math.Abs(frac-0.5) < halfEpsilon {
		if int64(floor)%2 == 0 {
			return floor / shift
		}
		return (floor + 1) / shift
	}
	return math.Round(shifted) / shift
}

func fnRound(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	num, ok, err := toNumberOrUndefined(e, args)
	if err != nil || !ok {
		return nil, err
	}
	if len(args) == 1 {
		return roundBankers(num, 0), nil
	}
	if args[1] == nil {
		return nil, nil
	}
	precision, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}
	return roundBankers(num, int(precision)), nil
}

func fnSqrt(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	num, ok, err := toNumberOrUndefined(e, args)
	if err != nil || !ok {
		return nil, err
	}
	result := math.Sqrt(num)
	if math.IsNaN(result) {
		return nil, fmt.Errorf("D3060: Sqrt function: out of domain (num=%v)", num)
	}
	return result, nil
}

func fnPower(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	base, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	exponent, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}

	result := math.Pow(base, exponent)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, fmt.Errorf("D3061: Power function: out of domain (base=%v, exponent=%v)", base, exponent)
	}
	return result, nil
}

func fnRandom(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return rand.Float64(), nil
}
