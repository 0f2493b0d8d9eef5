package evaluator

import (
	"context"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalArrayCtor evaluates an array constructor "[...]". Sub-results from
// range/other sequence-producing expressions are flattened into the
// resulting array; nested array literals are kept intact.
func (e *Evaluator) evalArrayCtor(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	result := make([]interface{}, 0, len(node.Items))

	for _, item := range node.Items {
		value, err := e.evalNode(ctx, item, evalCtx)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		if subArr, isArr := value.([]interface{}); isArr && item.Type != types.NodeArrayCtor {
			result = append(result, subArr...)
		} else {
			result = append(result, value)
		}
	}

	return result, nil
}

// evalObjectCtor evaluates an object constructor "{...}" as a literal: each
// key expression is evaluated against the CURRENT context (no grouping —
// grouping only happens when "{...}" decorates a path step's GroupBy).
func (e *Evaluator) evalObjectCtor(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	result := &OrderedObject{
		Keys:   make([]string, 0, len(node.Pairs)),
		Values: make(map[string]interface{}, len(node.Pairs)),
	}

	for _, pair := range node.Pairs {
		keys, err := e.evalObjectKeys(ctx, pair.Key, evalCtx)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			continue
		}

		value, err := e.evalNode(ctx, pair.Val, evalCtx)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		value = unwrapCVsDeep(value)

		for _, key := range keys {
			if _, exists := result.Values[key]; exists {
				return nil, types.NewError(types.ErrGroupKeyConflict, "duplicate object key: "+key, pair.Key.CharIndex)
			}
			result.Keys = append(result.Keys, key)
			result.Values[key] = value
		}
	}

	return result, nil
}

// evalObjectKeys evaluates an object-constructor key expression into zero or
// more string keys. A string literal is used directly; any other expression
// (including a bare name) is evaluated, and must produce a string or array
// of strings (T1003 otherwise). A nil/undefined key silently contributes no
// entry.
func (e *Evaluator) evalObjectKeys(ctx context.Context, keyNode *types.ASTNode, evalCtx *EvalContext) ([]string, error) {
	if keyNode.Type == types.NodeString {
		return []string{keyNode.Str}, nil
	}

	keyVal, err := e.evalNode(ctx, keyNode, evalCtx)
	if err != nil {
		return nil, err
	}
	keyVal = unwrapCVsDeep(keyVal)
	if keyVal == nil {
		return nil, nil
	}
	if _, ok := keyVal.(types.Null); ok {
		return nil, types.NewError(types.ErrInvalidTypeOperation, "object key must be a string", keyNode.CharIndex)
	}

	switch v := keyVal.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			str, ok := item.(string)
			if !ok {
				return nil, types.NewError(types.ErrInvalidTypeOperation, "object key must be a string", keyNode.CharIndex)
			}
			keys = append(keys, str)
		}
		return keys, nil
	default:
		return nil, types.NewError(types.ErrInvalidTypeOperation, "object key must be a string", keyNode.CharIndex)
	}
}
