package evaluator

import (
	"context"
	"fmt"

	"github.com/nilforge/jsonquery/pkg/types"
)

// resolveCallable evaluates node.Proc (if set) to get a callable value, or
// looks up node.Name against custom then built-in functions.
func (e *Evaluator) resolveCallable(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	if node.Proc != nil {
		return e.evalNode(ctx, node.Proc, evalCtx)
	}
	if fnDef, ok := e.getCustomFunction(node.Name); ok {
		return fnDef, nil
	}
	if fnDef, ok := GetFunction(node.Name); ok {
		return fnDef, nil
	}
	return nil, types.NewError(types.ErrNotAFunction, fmt.Sprintf("unknown function: %s", node.Name), node.CharIndex)
}

// evalArgs evaluates a function call's argument nodes left to right,
// stripping internal contextBoundValue wrappers before they reach a lambda
// or built-in.
func (e *Evaluator) evalArgs(ctx context.Context, argNodes []*types.ASTNode, evalCtx *EvalContext) ([]interface{}, error) {
	args := make([]interface{}, 0, len(argNodes))
	for _, argNode := range argNodes {
		val, err := e.evalNode(ctx, argNode, evalCtx)
		if err != nil {
			return nil, err
		}
		args = append(args, unwrapCVsDeep(val))
	}
	return args, nil
}

// evalFunction evaluates a function invocation: a lambda/variable call
// (node.Proc set) or a bare-name call (node.Name set), resolved against
// custom then built-in functions. A call carrying "?" placeholders
// (node.IsPartial) produces a partial-application lambda instead of invoking
// immediately.
func (e *Evaluator) evalFunction(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	// Arguments (and the callee expression) are never themselves in tail
	// position, even when this call is.
	callCtx := withoutTCOTail(ctx)

	callable, err := e.resolveCallable(callCtx, node, evalCtx)
	if err != nil {
		return nil, err
	}

	if node.IsPartial {
		return e.evalPartialApplication(node, callable, evalCtx)
	}

	switch fn := callable.(type) {
	case *Lambda:
		args, err := e.evalArgs(callCtx, node.Args, evalCtx)
		if err != nil {
			return nil, err
		}
		for _, arg := range args {
			if arg == nil {
				return nil, nil
			}
		}

		// TCO: a tail-position lambda call returns a thunk instead of
		// recursing; callLambda's trampoline re-executes it in place.
		if isTCOTail(ctx) {
			if err := e.validateAndAdaptLambdaArgs(fn, args); err != nil {
				return nil, err
			}
			return &tcoThunk{lambda: fn, args: args}, nil
		}
		return e.callLambda(ctx, fn, args)

	case *FunctionDef:
		args, err := e.evalArgs(callCtx, node.Args, evalCtx)
		if err != nil {
			return nil, err
		}
		if fn.AcceptsContext && len(args) < fn.MinArgs {
			args = append([]interface{}{evalCtx.Data()}, args...)
		}
		if len(args) < fn.MinArgs {
			return nil, types.NewError(types.ErrArgumentCountMismatch,
				fmt.Sprintf("function requires at least %d arguments, got %d", fn.MinArgs, len(args)), node.CharIndex)
		}
		if fn.MaxArgs != -1 && len(args) > fn.MaxArgs {
			return nil, types.NewError(types.ErrArgumentCountMismatch,
				fmt.Sprintf("function accepts at most %d arguments, got %d", fn.MaxArgs, len(args)), node.CharIndex)
		}
		return fn.Impl(ctx, e, evalCtx, args)

	default:
		return nil, types.NewError(types.ErrVarNotAFunction, fmt.Sprintf("%T is not a function", callable), node.CharIndex)
	}
}

// evalLambda creates a lambda closure value from a NodeLambda, capturing
// evalCtx directly (not a clone) so that bindings added after this point in
// the same block scope remain visible — this is what lets a lambda bound by
// $f := function(...){...} see its own name for recursion.
func (e *Evaluator) evalLambda(node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	params := make([]string, len(node.Params))
	for i, p := range node.Params {
		params[i] = p.Str
	}

	var sig *Signature
	if node.Signature != "" {
		parsed, err := ParseSignature(node.Signature)
		if err != nil {
			return nil, err
		}
		sig = parsed
	}

	return &Lambda{
		Params:    params,
		Body:      node.Body,
		Ctx:       evalCtx,
		Signature: sig,
	}, nil
}

// evalPartialApplication builds a lambda of the "?" placeholders' arity that,
// when invoked, replays the original call with those positions filled in.
func (e *Evaluator) evalPartialApplication(node *types.ASTNode, callable interface{}, evalCtx *EvalContext) (interface{}, error) {
	switch callable.(type) {
	case *Lambda, *FunctionDef:
	default:
		return nil, types.NewError(types.ErrPartialNonFunction, "partial application can only be applied to a function", node.CharIndex)
	}

	params := make([]string, 0, len(node.Args))
	args := make([]*types.ASTNode, len(node.Args))
	for i, arg := range node.Args {
		if arg.Type == types.NodePartialArg {
			paramName := fmt.Sprintf("%d", len(params)+1)
			params = append(params, paramName)
			varNode := &types.ASTNode{Type: types.NodeVar, CharIndex: arg.CharIndex, Str: paramName}
			args[i] = varNode
		} else {
			args[i] = arg
		}
	}

	body := &types.ASTNode{Type: types.NodeFunction, CharIndex: node.CharIndex, Args: args}
	if node.Proc != nil {
		body.Proc = node.Proc
	} else {
		body.Name = node.Name
	}

	return &Lambda{
		Params: params,
		Body:   body,
		Ctx:    evalCtx.Clone(),
	}, nil
}
