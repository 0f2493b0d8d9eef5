package evaluator

import (
	"github.com/nilforge/jsonquery/pkg/types"
)

func (e *Evaluator) evalString(node *types.ASTNode) (interface{}, error) {
	return node.Str, nil
}

// evalNumber evaluates a number literal.

func (e *Evaluator) evalNumber(node *types.ASTNode) (interface{}, error) {
	return node.Num, nil
}

// evalBoolean evaluates a boolean literal.

func (e *Evaluator) evalBoolean(node *types.ASTNode) (interface{}, error) {
	return node.Bool, nil
}

// evalName evaluates a name (field reference) against the current context.

func (e *Evaluator) evalName(node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	return e.evalNameString(node.Str, evalCtx)
}

func (e *Evaluator) evalNameString(name string, evalCtx *EvalContext) (interface{}, error) {
	data := evalCtx.Data()

	if obj, ok := data.(map[string]interface{}); ok {
		if value, exists := obj[name]; exists {
			// JSON null (nil from encoding/json) becomes types.Null to distinguish from undefined
			if value == nil {
				return types.NullValue, nil
			}
			return value, nil
		}
		return nil, nil
	}
	if obj, ok := data.(*OrderedObject); ok {
		if value, exists := obj.Get(name); exists {
			if value == nil {
				return types.NullValue, nil
			}
			return value, nil
		}
		return nil, nil
	}
	if arr, ok := data.([]interface{}); ok {
		result := make([]interface{}, 0, len(arr))
		for _, item := range arr {
			switch v := item.(type) {
			case map[string]interface{}:
				if value, exists := v[name]; exists {
					if subArr, isArr := value.([]interface{}); isArr {
						result = append(result, subArr...)
					} else {
						result = append(result, value)
					}
				}
			case *OrderedObject:
				if value, exists := v.Get(name); exists {
					if subArr, isArr := value.([]interface{}); isArr {
						result = append(result, subArr...)
					} else {
						result = append(result, value)
					}
				}
			case []interface{}:
				subCtx := evalCtx.NewChildContext(v)
				if value, err := e.evalNameString(name, subCtx); err == nil && value != nil {
					if subArrVal, isArr := value.([]interface{}); isArr {
						result = append(result, subArrVal...)
					} else {
						result = append(result, value)
					}
				}
			}
		}
		if len(result) == 0 {
			return nil, nil
		}
		if len(result) == 1 {
			return result[0], nil
		}
		return result, nil
	}

	return nil, nil
}

// evalVariable evaluates a variable reference.

func (e *Evaluator) evalVariable(node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	varName := node.Str

	// $ refers to current context
	if varName == "" {
		return evalCtx.Data(), nil
	}

	// $$ refers to root context
	if varName == "$" {
		if evalCtx.Root() != nil {
			return evalCtx.Root().Data(), nil
		}
		return evalCtx.Data(), nil
	}

	// Named variable - check bindings
	value, found := evalCtx.GetBinding(varName)
	if !found {
		// If a custom or built-in function exists with this name (custom
		// first, as in resolveCallable), return it as a value
		if fnDef, ok := e.getCustomFunction(varName); ok {
			return fnDef, nil
		}
		if fnDef, ok := GetFunction(varName); ok {
			return fnDef, nil
		}
		// Per JSONata spec: undefined variables return nil (undefined), not error
		return nil, nil
	}

	return value, nil
}
