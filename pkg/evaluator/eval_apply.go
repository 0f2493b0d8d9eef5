package evaluator

import (
	"context"
	"fmt"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalApply evaluates "lhs ~> rhs": lhs's value is threaded into rhs.
//   - rhs a direct function call ("~> $fn(args)"): data is prepended as the
//     call's first argument (grounded in the original evaluator's
//     evaluate_function(..., context: Some(&lhs)) — context is always the
//     first evaluated argument, regardless of any "?" placeholders present).
//   - rhs a transform literal ("~> |pattern|update|"): applies the transform
//     to data directly.
//   - data and rhs both resolve to functions ("f ~> g"): produces the
//     composed function λx.g(f(x)).
//   - otherwise: rhs must resolve to a callable, invoked with data as its
//     sole argument.
func (e *Evaluator) evalApply(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	data, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}

	if node.RHS.Type == types.NodeTransform {
		return e.evalTransformNode(ctx, data, node.RHS, evalCtx)
	}

	if node.RHS.Type == types.NodeFunction {
		result, err := e.evalApplyFunctionCall(ctx, node.RHS, data, evalCtx)
		if err != nil {
			return nil, err
		}
		return e.applyCallDecorations(ctx, node.RHS, result, evalCtx)
	}

	rhs, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}

	isFunction := func(v interface{}) bool {
		switch v.(type) {
		case *Lambda, *FunctionDef:
			return true
		}
		return false
	}

	if !isFunction(rhs) {
		return nil, types.NewError(types.ErrInvokeNonFunction, "right side of ~> must be a function", node.RHS.CharIndex)
	}

	if isFunction(data) {
		return e.createComposition(data, rhs, evalCtx), nil
	}

	return e.invokeCallable(ctx, rhs, []interface{}{data}, evalCtx, node.RHS.CharIndex)
}

// evalApplyFunctionCall evaluates RHS's callee and invokes it with data
// prepended to RHS's own (already-written) argument list.
func (e *Evaluator) evalApplyFunctionCall(ctx context.Context, fnNode *types.ASTNode, data interface{}, evalCtx *EvalContext) (interface{}, error) {
	callable, err := e.resolveCallable(ctx, fnNode, evalCtx)
	if err != nil {
		return nil, err
	}

	args, err := e.evalArgs(ctx, fnNode.Args, evalCtx)
	if err != nil {
		return nil, err
	}
	args = append([]interface{}{data}, args...)

	return e.invokeCallable(ctx, callable, args, evalCtx, fnNode.CharIndex)
}

// invokeCallable calls a resolved Lambda or FunctionDef with already-evaluated args.
func (e *Evaluator) invokeCallable(ctx context.Context, callable interface{}, args []interface{}, evalCtx *EvalContext, charIndex int) (interface{}, error) {
	switch fn := callable.(type) {
	case *Lambda:
		return e.callLambda(ctx, fn, args)
	case *FunctionDef:
		if len(args) < fn.MinArgs {
			return nil, types.NewError(types.ErrArgumentCountMismatch,
				fmt.Sprintf("function requires at least %d arguments, got %d", fn.MinArgs, len(args)), charIndex)
		}
		if fn.MaxArgs != -1 && len(args) > fn.MaxArgs {
			return nil, types.NewError(types.ErrArgumentCountMismatch,
				fmt.Sprintf("function accepts at most %d arguments, got %d", fn.MaxArgs, len(args)), charIndex)
		}
		return fn.Impl(ctx, e, evalCtx, args)
	default:
		return nil, types.NewError(types.ErrInvokeNonFunction, fmt.Sprintf("%T is not a function", callable), charIndex)
	}
}

// applyCallDecorations re-applies a call node's own Predicates/GroupBy
// decorations to a result computed outside of the normal evalNode dispatch
// (evalApply calls the function directly rather than through evalNode so it
// can inject the piped data as an argument).
func (e *Evaluator) applyCallDecorations(ctx context.Context, node *types.ASTNode, value interface{}, evalCtx *EvalContext) (interface{}, error) {
	if len(node.Predicates) > 0 {
		var err error
		value, err = e.applyPredicates(ctx, node.Predicates, value, evalCtx)
		if err != nil {
			return nil, err
		}
	}
	if node.GroupBy != nil {
		var sequence []interface{}
		switch v := value.(type) {
		case nil:
			sequence = nil
		case []interface{}:
			sequence = v
		default:
			sequence = []interface{}{v}
		}
		return e.evalGroupBy(ctx, node.GroupBy, sequence, evalCtx)
	}
	return value, nil
}

// createComposition creates a composed function from two functions:
// composition(f, g) returns λx.g(f(x)).
func (e *Evaluator) createComposition(leftFn, rightFn interface{}, evalCtx *EvalContext) *Lambda {
	leftCall := &types.ASTNode{
		Type: types.NodeFunction,
		Name: "",
		Proc: &types.ASTNode{Type: types.NodeVar, Str: "leftFn"},
		Args: []*types.ASTNode{{Type: types.NodeVar, Str: "1"}},
	}

	body := &types.ASTNode{
		Type: types.NodeFunction,
		Proc: &types.ASTNode{Type: types.NodeVar, Str: "rightFn"},
		Args: []*types.ASTNode{leftCall},
	}

	composedCtx := evalCtx.Clone()
	composedCtx.SetBinding("leftFn", leftFn)
	composedCtx.SetBinding("rightFn", rightFn)

	return &Lambda{
		Params: []string{"1"},
		Body:   body,
		Ctx:    composedCtx,
	}
}
