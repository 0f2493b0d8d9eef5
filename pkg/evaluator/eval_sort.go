package evaluator

import (
	"context"

	"github.com/nilforge/jsonquery/pkg/types"
)

// deepClone performs a deep copy of a JSON-like value.
// Maps and slices are cloned recursively; scalars are returned as-is (value types).
func deepClone(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		clone := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			clone[k] = deepClone(v2)
		}
		return clone
	case *OrderedObject:
		clone := &OrderedObject{
			Keys:   make([]string, len(val.Keys)),
			Values: make(map[string]interface{}, len(val.Values)),
		}
		copy(clone.Keys, val.Keys)
		for k, v2 := range val.Values {
			clone.Values[k] = deepClone(v2)
		}
		return clone
	case []interface{}:
		clone := make([]interface{}, len(val))
		for i, v2 := range val {
			clone[i] = deepClone(v2)
		}
		return clone
	default:
		return val // scalars (nil, bool, float64, string, etc.) are value types
	}
}

// applyUpdateToMap merges the update object into a map[string]interface{}.
func applyUpdateToMap(target map[string]interface{}, update interface{}) {
	switch uv := update.(type) {
	case map[string]interface{}:
		for k, v := range uv {
			target[k] = v
		}
	case *OrderedObject:
		for _, k := range uv.Keys {
			target[k] = uv.Values[k]
		}
	}
}

// applyDeleteToMap removes fields from a map[string]interface{} based on the delete expression result.
func applyDeleteToMap(target map[string]interface{}, del interface{}) {
	switch dv := del.(type) {
	case string:
		delete(target, dv)
	case []interface{}:
		for _, d := range dv {
			if s, ok := d.(string); ok {
				delete(target, s)
			}
		}
	}
}

// evalTransformNode applies a "|pattern|update,delete|" expression to data,
// used both standalone and when piped via "~>".
func (e *Evaluator) evalTransformNode(ctx context.Context, data interface{}, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	if data == nil {
		return nil, nil
	}

	// Deep clone the data to avoid mutating the original.
	cloned := deepClone(data)

	rootCtx := evalCtx.NewChildContext(cloned)
	matches, err := e.evalNode(ctx, node.Pattern, rootCtx)
	if err != nil {
		return cloned, nil
	}
	if matches == nil {
		return cloned, nil
	}

	var matchList []interface{}
	switch mv := matches.(type) {
	case []interface{}:
		matchList = mv
	default:
		matchList = []interface{}{mv}
	}

	for _, matchedNode := range matchList {
		matchedNode = unwrapCVsDeep(matchedNode)
		matchCtx := evalCtx.NewChildContext(matchedNode)
		updateVal, err := e.evalNode(ctx, node.Update, matchCtx)
		if err != nil {
			return nil, err
		}
		if updateVal != nil {
			switch updateVal.(type) {
			case map[string]interface{}, *OrderedObject:
			default:
				return nil, types.NewError(types.ErrTransformUpdateNotObj, "the second argument of the transform expression must be an object", node.CharIndex)
			}
		}

		var delFields []string
		if node.Delete != nil {
			delVal, err := e.evalNode(ctx, node.Delete, matchCtx)
			if err != nil {
				return nil, err
			}
			if delVal != nil {
				switch dv := delVal.(type) {
				case string:
					delFields = []string{dv}
				case []interface{}:
					for _, d := range dv {
						if s, ok := d.(string); ok {
							delFields = append(delFields, s)
						}
					}
				default:
					return nil, types.NewError(types.ErrTransformDeleteNotArr, "the third argument of the transform expression must be an array of strings", node.CharIndex)
				}
			}
		}

		if matchedMap, ok := matchedNode.(map[string]interface{}); ok {
			if updateVal != nil {
				applyUpdateToMap(matchedMap, updateVal)
			}
			for _, f := range delFields {
				delete(matchedMap, f)
			}
			continue
		}

		if matchedObj, ok := matchedNode.(*OrderedObject); ok {
			if updateVal != nil {
				switch uv := updateVal.(type) {
				case map[string]interface{}:
					for k, v := range uv {
						if _, exists := matchedObj.Values[k]; !exists {
							matchedObj.Keys = append(matchedObj.Keys, k)
						}
						matchedObj.Values[k] = v
					}
				case *OrderedObject:
					for _, k := range uv.Keys {
						if _, exists := matchedObj.Values[k]; !exists {
							matchedObj.Keys = append(matchedObj.Keys, k)
						}
						matchedObj.Values[k] = uv.Values[k]
					}
				}
			}
			for _, f := range delFields {
				if _, exists := matchedObj.Values[f]; exists {
					delete(matchedObj.Values, f)
					newKeys := matchedObj.Keys[:0]
					for _, k := range matchedObj.Keys {
						if k != f {
							newKeys = append(newKeys, k)
						}
					}
					matchedObj.Keys = newKeys
				}
			}
		}
	}

	return cloned, nil
}
