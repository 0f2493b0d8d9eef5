package evaluator

import (
	"context"
	"fmt"
)

// lambdaArity reports a lambda's minimum (non-optional) and maximum
// parameter counts, from its declared signature if present, otherwise
// from its plain parameter list (without a signature every parameter is
// optional: min is 0 and max is the parameter count).
func lambdaArity(lambda *Lambda) (min, max int) {
	if lambda.Signature == nil {
		return 0, len(lambda.Params)
	}
	for _, param := range lambda.Signature.Params {
		if !param.Optional {
			min++
		}
	}
	return min, len(lambda.Signature.Params)
}

// checkLambdaArgCount validates len(args) against lambda's arity.
func checkLambdaArgCount(lambda *Lambda, args []interface{}) error {
	min, max := lambdaArity(lambda)
	if len(args) >= min && len(args) <= max {
		return nil
	}
	if min == max {
		return fmt.Errorf("lambda expects %d arguments, got %d", max, len(args))
	}
	return fmt.Errorf("lambda expects %d-%d arguments, got %d", min, max, len(args))
}

// validateAndAdaptLambdaArgs checks argument count against lambda's
// signature (or, absent a signature, against its plain parameter list),
// then auto-wraps scalar arguments destined for an array parameter and
// validates each argument's type. args is adapted in place.
func (e *Evaluator) validateAndAdaptLambdaArgs(lambda *Lambda, args []interface{}) error {
	if err := checkLambdaArgCount(lambda, args); err != nil {
		return err
	}
	if lambda.Signature == nil {
		return nil
	}
	for i := range args {
		if i >= len(lambda.Signature.Params) {
			break
		}
		param := lambda.Signature.Params[i]
		if param.Type == TypeArray {
			if _, isArray := args[i].([]interface{}); !isArray {
				args[i] = []interface{}{args[i]}
			}
		}
		if err := param.ValidateArgument(args[i]); err != nil {
			return err
		}
	}
	return nil
}

// bindLambdaParams clones lambda's closure context and binds each
// parameter name to its corresponding argument; trailing optional
// parameters with no argument are left unbound.
func bindLambdaParams(lambda *Lambda, args []interface{}) *EvalContext {
	lambdaCtx := lambda.Ctx.Clone()
	for i, param := range lambda.Params {
		if i < len(args) {
			lambdaCtx.SetBinding(param, args[i])
		}
	}
	return lambdaCtx
}

// callLambda invokes lambda with args, validating/adapting arguments
// against its signature, then evaluates its body under tail-call-aware
// trampolining: a call in tail position yields a *tcoThunk instead of
// recursing, and the loop below re-binds and re-evaluates in place so
// neither the Go call stack nor the recursion-depth counter grows.
func (e *Evaluator) callLambda(ctx context.Context, lambda *Lambda, args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if arg == nil {
			return nil, nil // any undefined argument makes the whole call undefined
		}
	}
	if err := e.validateAndAdaptLambdaArgs(lambda, args); err != nil {
		return nil, err
	}

	lambdaCtx := bindLambdaParams(lambda, args)
	tcoCtx := withTCOTail(ctx)

	for {
		result, err := e.evalNode(tcoCtx, lambda.Body, lambdaCtx)
		if err != nil {
			return nil, err
		}
		thunk, isThunk := result.(*tcoThunk)
		if !isThunk {
			return result, nil
		}
		lambda = thunk.lambda
		args = thunk.args
		lambdaCtx = bindLambdaParams(lambda, args)
	}
}
