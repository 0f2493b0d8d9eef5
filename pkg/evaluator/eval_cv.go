package evaluator

// contextBoundValue tags a sequence item with the variable bindings and
// parent data that were live when it was produced by a path step, so a
// later step or predicate can see `$var` and `%` exactly as if it were
// still being evaluated in that step's scope.
type contextBoundValue struct {
	value     interface{}            // the item itself, used as $ if re-entered
	parent    interface{}            // preceding context data, for @ rewinding
	bindings  map[string]interface{} // $var -> value bindings in scope
	parentObj interface{}            // containing object for %, distinct from @
}

// extractBoundItem splits item into its plain value and scope bindings.
// Plain (unwrapped) items report a non-nil empty map.
func extractBoundItem(item interface{}) (value interface{}, bindings map[string]interface{}) {
	cv, ok := item.(*contextBoundValue)
	if !ok {
		return item, nil
	}
	if cv.bindings == nil {
		return cv.value, map[string]interface{}{}
	}
	return cv.value, cv.bindings
}

// copyBindings returns an independent copy of b, or nil if b is empty.
func copyBindings(b map[string]interface{}) map[string]interface{} {
	if len(b) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// mergeBoundBindings folds parentBindings into item's scope, giving item's
// own bindings priority on key collision. A plain item is wrapped fresh;
// an already-bound item has its binding map extended.
func mergeBoundBindings(item interface{}, parentBindings map[string]interface{}, parentValue interface{}) interface{} {
	if len(parentBindings) == 0 {
		return item
	}
	cv, ok := item.(*contextBoundValue)
	if !ok {
		return &contextBoundValue{value: item, parent: parentValue, bindings: copyBindings(parentBindings)}
	}
	merged := make(map[string]interface{}, len(parentBindings)+len(cv.bindings))
	for k, v := range parentBindings {
		merged[k] = v
	}
	for k, v := range cv.bindings {
		merged[k] = v
	}
	return &contextBoundValue{value: cv.value, parent: cv.parent, bindings: merged}
}

// applyBindingsToCtx copies every entry of bindings onto ctx.
func applyBindingsToCtx(ctx *EvalContext, bindings map[string]interface{}) {
	for k, v := range bindings {
		ctx.SetBinding(k, v)
	}
}

// unwrapCVsDeep strips contextBoundValue wrappers recursively, including
// inside arrays and objects. Operators, equality, and the final evaluator
// return value must never see a wrapped item.
func unwrapCVsDeep(v interface{}) interface{} {
	switch val := v.(type) {
	case *contextBoundValue:
		return unwrapCVsDeep(val.value)

	case *OrderedObject:
		for k, ov := range val.Values {
			val.Values[k] = unwrapCVsDeep(ov)
		}
		return val

	case []interface{}:
		if !sliceNeedsUnwrap(val) {
			return val
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = unwrapCVsDeep(item)
		}
		return out

	default:
		return v
	}
}

// sliceNeedsUnwrap reports whether any element of val is itself wrapped or
// nested, so unwrapCVsDeep can skip allocating a fresh slice when not needed.
func sliceNeedsUnwrap(val []interface{}) bool {
	for _, item := range val {
		switch item.(type) {
		case *contextBoundValue, []interface{}, *OrderedObject:
			return true
		}
	}
	return false
}
