package evaluator

import (
	"context"
	"fmt"
	"sort"
)

// objectEntries returns obj's keys (in OrderedObject order, or sorted for a
// plain map so iteration is deterministic) and its value lookup, or ok=false
// if obj isn't an object at all.
func objectEntries(obj interface{}) (keys []string, values map[string]interface{}, ok bool) {
	switch v := obj.(type) {
	case *OrderedObject:
		return v.Keys, v.Values, true
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, v, true
	default:
		return nil, nil, false
	}
}

// callObjectCallback invokes fn with as many of (value, key, obj) as its
// declared arity accepts — the $each/$sift convention of (value, key?, obj?).
func callObjectCallback(ctx context.Context, e *Evaluator, evalCtx *EvalContext, fn interface{}, value interface{}, key string, obj interface{}, fnName string) (interface{}, error) {
	full := []interface{}{value, key, obj}
	switch f := fn.(type) {
	case *Lambda:
		n := len(f.Params)
		if n < 1 {
			n = 1
		}
		if n > 3 {
			n = 3
		}
		return e.callLambda(ctx, f, full[:n])
	case *FunctionDef:
		n := 2
		switch {
		case f.MaxArgs == 1:
			n = 1
		case f.MaxArgs < 0 || f.MaxArgs >= 3:
			n = 3
		}
		return f.Impl(ctx, e, evalCtx, full[:n])
	default:
		return nil, fmt.Errorf("second argument to %s must be a function", fnName)
	}
}

// fnEach maps fn($value, $key?, $object?) over obj's properties, returning
// the non-undefined results as an array.
func fnEach(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	obj := args[0]
	if obj == nil {
		return []interface{}{}, nil
	}
	keys, values, ok := objectEntries(obj)
	if !ok {
		return nil, fmt.Errorf("first argument to $each must be an object")
	}

	result := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		itemResult, err := callObjectCallback(ctx, e, evalCtx, args[1], values[key], key, obj, "$each")
		if err != nil {
			return nil, err
		}
		if itemResult != nil {
			result = append(result, itemResult)
		}
	}
	return result, nil
}

// fnSift filters obj's properties by predicate($value, $key?, $object?),
// returning a new object holding only the properties that matched. When obj
// is an array, sift is mapped over each element (path-context semantics).
func fnSift(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	obj := args[0]
	if obj == nil {
		return nil, nil
	}

	if arr, ok := obj.([]interface{}); ok {
		results := make([]interface{}, 0, len(arr))
		for _, elem := range arr {
			if elem == nil {
				continue
			}
			res, err := fnSift(ctx, e, evalCtx, []interface{}{elem, args[1]})
			if err != nil {
				return nil, err
			}
			if res != nil {
				results = append(results, res)
			}
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results, nil
	}

	keys, values, ok := objectEntries(obj)
	if !ok {
		// Non-object, non-array input: undefined, as in a path over mixed arrays.
		return nil, nil
	}

	resultObj := &OrderedObject{Keys: make([]string, 0), Values: make(map[string]interface{})}
	for _, key := range keys {
		value := values[key]
		include, err := callObjectCallback(ctx, e, evalCtx, args[1], value, key, obj, "$sift")
		if err != nil {
			return nil, err
		}
		if e.isTruthy(include) {
			resultObj.Keys = append(resultObj.Keys, key)
			resultObj.Values[key] = value
		}
	}
	if len(resultObj.Keys) == 0 {
		return nil, nil
	}
	return resultObj, nil
}

// fnKeys returns the distinct property names of an object, or of every
// object in an array (merged in order of first appearance).
func fnKeys(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return []interface{}{}, nil
	}
	if args[0] == nil {
		return nil, nil
	}

	var result []interface{}
	switch v := args[0].(type) {
	case []interface{}:
		seen := make(map[string]bool)
		for _, item := range v {
			itemKeys, err := fnKeys(ctx, e, evalCtx, []interface{}{item})
			if err != nil {
				return nil, err
			}
			// fnKeys unwraps a singleton result to a bare string, so both
			// the bare-string and the multi-key (array) case are merged here.
			if arr, ok := itemKeys.([]interface{}); ok {
				for _, key := range arr {
					if keyStr, ok := key.(string); ok && !seen[keyStr] {
						seen[keyStr] = true
						result = append(result, keyStr)
					}
				}
			} else if keyStr, ok := itemKeys.(string); ok && !seen[keyStr] {
				seen[keyStr] = true
				result = append(result, keyStr)
			}
		}
	case *OrderedObject:
		for _, k := range v.Keys {
			result = append(result, k)
		}
	case map[string]interface{}:
		keys, _, _ := objectEntries(v)
		for _, key := range keys {
			result = append(result, key)
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

// fnLookup returns the value of key in obj, or (for an array of objects)
// the values of key across every item that has it.
func fnLookup(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	keyStr, ok := args[1].(string)
	if !ok {
		keyStr = fmt.Sprint(args[1])
	}
	if args[0] == nil {
		return nil, nil
	}

	lookupOne := func(item interface{}) (interface{}, bool) {
		if orderedObj, ok := item.(*OrderedObject); ok {
			return orderedObj.Get(keyStr)
		}
		if mapObj, ok := item.(map[string]interface{}); ok {
			val, found := mapObj[keyStr]
			return val, found
		}
		return nil, false
	}

	if arr, ok := args[0].([]interface{}); ok {
		results := make([]interface{}, 0, len(arr))
		for _, item := range arr {
			if val, found := lookupOne(item); found {
				results = append(results, val)
			}
		}
		switch len(results) {
		case 0:
			return nil, nil
		case 1:
			return results[0], nil
		default:
			return results, nil
		}
	}

	if val, found := lookupOne(args[0]); found {
		return val, nil
	}
	return nil, nil
}

// fnMerge folds an array of objects into one, later keys overwriting
// earlier ones but key order following first appearance.
func fnMerge(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	result := &OrderedObject{Keys: make([]string, 0), Values: make(map[string]interface{})}
	setKey := func(k string, v interface{}) {
		if _, exists := result.Values[k]; !exists {
			result.Keys = append(result.Keys, k)
		}
		result.Values[k] = v
	}

	for _, item := range arr {
		switch v := item.(type) {
		case *OrderedObject:
			for _, k := range v.Keys {
				setKey(k, v.Values[k])
			}
		case map[string]interface{}:
			for k, val := range v {
				setKey(k, val)
			}
		default:
			return nil, fmt.Errorf("cannot merge non-object item")
		}
	}
	return result, nil
}

// fnSpread splits obj's (or, recursively, each array element's) properties
// into an array of single-key objects; non-object non-array values pass
// through unchanged, including function values.
func fnSpread(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	return spreadValue(args[0])
}

func spreadValue(arg interface{}) (interface{}, error) {
	var result []interface{}

	switch v := arg.(type) {
	case []interface{}:
		for _, item := range v {
			spreadItem, err := spreadValue(item)
			if err != nil {
				return nil, err
			}
			if arr, ok := spreadItem.([]interface{}); ok {
				result = append(result, arr...)
			} else if spreadItem != nil {
				result = append(result, spreadItem)
			}
		}
	case *OrderedObject:
		for _, k := range v.Keys {
			result = append(result, map[string]interface{}{k: v.Values[k]})
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			result = append(result, map[string]interface{}{k: v[k]})
		}
	default:
		return arg, nil
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}
