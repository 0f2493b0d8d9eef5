package evaluator

import (
	"context"
	"math"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalBind evaluates a variable assignment "$var := expr". The parser
// guarantees (S0212) that LHS is a NodeVar, so its name sits in LHS.Str.
func (e *Evaluator) evalBind(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	value, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}

	evalCtx.SetBinding(node.LHS.Str, value)
	return value, nil
}

// evalBlock evaluates "(e1; e2; ...)", returning the last expression's
// value. Each block opens its own binding scope, chained to the enclosing
// one, so declarations inside don't leak out but can see outer bindings.
func (e *Evaluator) evalBlock(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	if len(node.Items) == 0 {
		return nil, nil
	}

	blockCtx := &EvalContext{
		data:   evalCtx.Data(),
		parent: evalCtx,
		root:   evalCtx.Root(),
		depth:  evalCtx.Depth() + 1,
	}

	var result interface{}
	var err error
	for _, expr := range node.Items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		result, err = e.evalNode(ctx, expr, blockCtx)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// evalAnd evaluates logical AND (short-circuit).
func (e *Evaluator) evalAnd(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	left, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	if !e.isTruthy(left) {
		return false, nil
	}
	right, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}
	return e.isTruthy(right), nil
}

// evalOr evaluates logical OR (short-circuit).
func (e *Evaluator) evalOr(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	left, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	if e.isTruthy(left) {
		return true, nil
	}
	right, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}
	return e.isTruthy(right), nil
}

// evalRange evaluates "start..end", an ascending array of integers.
func (e *Evaluator) evalRange(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	startVal, err := e.evalNode(ctx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}
	endVal, err := e.evalNode(ctx, node.RHS, evalCtx)
	if err != nil {
		return nil, err
	}

	if startVal != nil {
		startFloat, ok := startVal.(float64)
		if !ok || startFloat != math.Trunc(startFloat) {
			return nil, types.NewError(types.ErrRangeStartNotInteger, "start of range expression must evaluate to an integer", node.CharIndex)
		}
	}
	if endVal != nil {
		endFloat, ok := endVal.(float64)
		if !ok || endFloat != math.Trunc(endFloat) {
			return nil, types.NewError(types.ErrRangeEndNotInteger, "end of range expression must evaluate to an integer", node.CharIndex)
		}
	}

	if startVal == nil || endVal == nil {
		return []interface{}{}, nil
	}

	start := int64(startVal.(float64))
	end := int64(endVal.(float64))
	if start > end {
		return []interface{}{}, nil
	}

	const maxRangeSize = 10_000_000
	if end-start >= maxRangeSize {
		return nil, types.NewError(types.ErrRangeTooLarge, "the size of the sequence allocated by the range expression exceeds the built-in limit", node.CharIndex)
	}

	size := int(end-start) + 1
	result := make([]interface{}, size)
	for i := 0; i < size; i++ {
		result[i] = float64(start) + float64(i)
	}
	return result, nil
}
