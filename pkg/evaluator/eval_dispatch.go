package evaluator

import (
	"context"
	"fmt"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalNode evaluates an AST node in the given context. It is the single
// dispatch point every other eval* function recurses back through.
func (e *Evaluator) evalNode(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Depth is the current nesting level of evalNode calls, tracked
	// stack-style (incremented on entry, decremented on exit) so only the
	// maximum live call depth is counted.
	if p := getRecurseDepthPtr(ctx); p != nil {
		*p++
		if *p > e.opts.MaxDepth {
			*p--
			return nil, types.NewDynamicError(types.ErrStackOverflow, "stack overflow: maximum recursion depth exceeded")
		}
		defer func() { *p-- }()
	}

	if node == nil {
		return nil, nil
	}

	if e.opts.Debug {
		e.logger.Debug("evaluating node", "type", node.Type, "charIndex", node.CharIndex, "depth", evalCtx.Depth())
	}

	value, err := e.evalNodeValue(ctx, node, evalCtx)
	if err != nil {
		return nil, err
	}

	// Path/Sort/GroupBy already fold their own Stages/Terms/GroupBy
	// decorations during evaluation; every other node type honors
	// Predicates/GroupBy generically here.
	if node.Type == types.NodePath {
		return value, nil
	}

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

// evalNodeValue dispatches on node type alone, ignoring any Predicates/GroupBy
// decoration (handled uniformly by the caller, evalNode).
func (e *Evaluator) evalNodeValue(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	switch node.Type {
	case types.NodeNull:
		return types.NullValue, nil
	case types.NodeBool:
		return e.evalBoolean(node)
	case types.NodeString:
		return e.evalString(node)
	case types.NodeNumber:
		return e.evalNumber(node)
	case types.NodeName:
		return e.evalName(node, evalCtx)
	case types.NodeVar:
		return e.evalVariable(node, evalCtx)
	case types.NodeWild:
		return e.evalWildcard(evalCtx)
	case types.NodeDescend:
		return e.evalDescendant(evalCtx)
	case types.NodeParent:
		return e.evalParent(node, evalCtx)
	case types.NodePartialArg:
		return node, nil // handled specially by the caller constructing a partial application
	case types.NodeUnary:
		return e.evalUnary(ctx, node, evalCtx)
	case types.NodeBinary:
		return e.evalBinary(ctx, node, evalCtx)
	case types.NodeBlock:
		return e.evalBlock(ctx, node, evalCtx)
	case types.NodePath:
		return e.evalPath(ctx, node, evalCtx)
	case types.NodeTernary:
		return e.evalTernary(ctx, node, evalCtx)
	case types.NodeTransform:
		return e.evalTransformNode(ctx, evalCtx.Data(), node, evalCtx)
	case types.NodeFunction:
		return e.evalFunction(ctx, node, evalCtx)
	case types.NodeLambda:
		// A post-processor thunk wraps a tail-position call: evaluate the call
		// itself (in the caller's tail context, so callLambda trampolines it)
		// rather than returning the thunk as a function value.
		if node.IsThunk {
			return e.evalNode(ctx, node.Body, evalCtx)
		}
		return e.evalLambda(node, evalCtx)
	case types.NodeArrayCtor:
		return e.evalArrayCtor(ctx, node, evalCtx)
	case types.NodeObjectCtor:
		return e.evalObjectCtor(ctx, node, evalCtx)
	case types.NodeSort:
		// A Sort node only ever appears as a Path step; evalPath applies it
		// via applySortStep. Reaching here means it decorates nothing, so
		// the running context's data is already the fully sorted sequence.
		return evalCtx.Data(), nil
	default:
		return nil, fmt.Errorf("unsupported node type: %s", node.Type)
	}
}
