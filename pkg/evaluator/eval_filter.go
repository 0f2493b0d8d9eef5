package evaluator

import (
	"context"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalTernary evaluates a ternary conditional "cond ? then : else".
func (e *Evaluator) evalTernary(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	condCtx := withoutTCOTail(ctx)

	condition, err := e.evalNode(condCtx, node.LHS, evalCtx)
	if err != nil {
		return nil, err
	}

	if e.isTruthy(condition) {
		return e.evalNode(ctx, node.Then, evalCtx)
	}
	if node.Else != nil {
		return e.evalNode(ctx, node.Else, evalCtx)
	}
	return nil, nil
}

// applyPredicates applies a non-path node's "[pred]..." decorations
// (node.Predicates) to its already-evaluated base value. Used for
// expressions that the post-processor did not fold into a Path, e.g. a
// parenthesized block or object constructor directly followed by "[...]".
func (e *Evaluator) applyPredicates(ctx context.Context, predicates []*types.ASTNode, base interface{}, evalCtx *EvalContext) (interface{}, error) {
	if base == nil {
		return nil, nil
	}
	var sequence []interface{}
	if arr, ok := base.([]interface{}); ok {
		sequence = arr
	} else {
		sequence = []interface{}{base}
	}

	for _, stage := range predicates {
		filtered, err := e.applyFilterStage(ctx, stage, sequence, evalCtx)
		if err != nil {
			return nil, err
		}
		sequence = filtered
	}

	if len(sequence) == 0 {
		return nil, nil
	}
	if len(sequence) == 1 {
		return sequence[0], nil
	}
	return sequence, nil
}
