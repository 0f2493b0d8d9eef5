package evaluator

import (
	"context"

	"github.com/nilforge/jsonquery/pkg/types"
)

// evalPath evaluates a normalized Path node (spec.md §4.3's Steps model):
// each step is evaluated against every item of the running sequence, its
// result is flattened into the next sequence (unless the step is a
// ConsArray array-constructor, which is kept intact), and any Filter/Sort
// stages attached to the step are applied before moving to the next step.
// @/# context bindings attached to a step travel with each produced item as
// a contextBoundValue so later steps and predicates can see them.
func (e *Evaluator) evalPath(ctx context.Context, node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	sequence := []interface{}{evalCtx.Data()}

	for _, step := range node.Steps {
		if step.Type == types.NodeSort {
			sorted, err := e.applySortStep(ctx, step, sequence, evalCtx)
			if err != nil {
				return nil, err
			}
			for _, stage := range step.Stages {
				if sorted, err = e.applyFilterStage(ctx, stage, sorted, evalCtx); err != nil {
					return nil, err
				}
			}
			sequence = sorted
			continue
		}

		next := make([]interface{}, 0, len(sequence))
		for _, item := range sequence {
			actual, bindings := extractBoundItem(item)
			itemCtx := evalCtx.NewArrayItemContext(actual)
			if len(bindings) > 0 {
				applyBindingsToCtx(itemCtx, bindings)
			}

			stepResult, err := e.evalNode(ctx, step, itemCtx)
			if err != nil {
				return nil, err
			}
			if stepResult == nil {
				continue
			}

			var subItems []interface{}
			if arr, ok := stepResult.([]interface{}); ok && !step.ConsArray {
				subItems = arr
			} else {
				subItems = []interface{}{stepResult}
			}

			for subIdx, sub := range subItems {
				if sub == nil {
					continue
				}
				if step.FocusVar == "" && step.IndexVar == "" {
					next = append(next, mergeBoundBindings(sub, bindings, actual))
					continue
				}
				merged := make(map[string]interface{}, len(bindings)+1)
				for k, v := range bindings {
					merged[k] = v
				}
				plainSub, _ := extractBoundItem(sub)
				if step.FocusVar != "" {
					merged[step.FocusVar] = plainSub
				}
				if step.IndexVar != "" {
					merged[step.IndexVar] = float64(subIdx)
				}
				next = append(next, &contextBoundValue{value: plainSub, parent: actual, bindings: merged})
			}
		}

		for _, stage := range step.Stages {
			filtered, err := e.applyFilterStage(ctx, stage, next, evalCtx)
			if err != nil {
				return nil, err
			}
			next = filtered
		}

		sequence = next
		if len(sequence) == 0 {
			break
		}
	}

	if node.GroupBy != nil {
		return e.evalGroupBy(ctx, node.GroupBy, sequence, evalCtx)
	}

	result := make([]interface{}, 0, len(sequence))
	for _, item := range sequence {
		v, _ := extractBoundItem(item)
		result = append(result, v)
	}

	if len(result) == 0 {
		return nil, nil
	}
	if len(result) == 1 && !node.KeepSingletonArray {
		return result[0], nil
	}
	return result, nil
}

// applyFilterStage applies one Filter stage (a step's "[pred]" decoration)
// to a sequence of (possibly contextBoundValue-wrapped) items.
func (e *Evaluator) applyFilterStage(ctx context.Context, stage *types.ASTNode, sequence []interface{}, evalCtx *EvalContext) ([]interface{}, error) {
	pred := stage.RHS
	if pred == nil {
		// Empty "[]": keep-array marker only, no filtering.
		return sequence, nil
	}

	// Direct numeric literal index: fast path, no per-item context needed.
	if pred.Type == types.NodeNumber {
		idx := int(pred.Num)
		if idx < 0 {
			idx = len(sequence) + idx
		}
		if idx < 0 || idx >= len(sequence) {
			return nil, nil
		}
		return []interface{}{sequence[idx]}, nil
	}

	result := make([]interface{}, 0, len(sequence))
	for i, item := range sequence {
		actual, bindings := extractBoundItem(item)
		itemCtx := evalCtx.NewChildContext(actual)
		if len(bindings) > 0 {
			applyBindingsToCtx(itemCtx, bindings)
		}

		predVal, err := e.evalNode(ctx, pred, itemCtx)
		if err != nil {
			return nil, err
		}
		predVal = unwrapCVsDeep(predVal)

		switch pv := predVal.(type) {
		case float64:
			idx := int(pv)
			if idx < 0 {
				idx += len(sequence)
			}
			if idx == i {
				result = append(result, item)
			}
		case []interface{}:
			for _, n := range pv {
				if nf, ok := n.(float64); ok {
					idx := int(nf)
					if idx < 0 {
						idx += len(sequence)
					}
					if idx == i {
						result = append(result, item)
						break
					}
				}
			}
		default:
			if e.isTruthy(predVal) {
				result = append(result, item)
			}
		}
	}
	return result, nil
}

// applySortStep applies a Sort step (Terms, each an expr + direction) to a
// full sequence, returning the sorted sequence (stable, lexicographic on
// multiple terms).
func (e *Evaluator) applySortStep(ctx context.Context, step *types.ASTNode, sequence []interface{}, evalCtx *EvalContext) ([]interface{}, error) {
	if len(sequence) < 2 {
		return sequence, nil
	}

	keys := make([][]interface{}, len(sequence))
	for i, item := range sequence {
		actual, bindings := extractBoundItem(item)
		itemCtx := evalCtx.NewChildContext(actual)
		if len(bindings) > 0 {
			applyBindingsToCtx(itemCtx, bindings)
		}
		rowKeys := make([]interface{}, len(step.Terms))
		for t, term := range step.Terms {
			k, err := e.evalNode(ctx, term.Expr, itemCtx)
			if err != nil {
				return nil, err
			}
			rowKeys[t] = unwrapCVsDeep(k)
		}
		keys[i] = rowKeys
	}

	for t := range step.Terms {
		var firstType string
		for _, rowKeys := range keys {
			k := rowKeys[t]
			if k == nil {
				continue
			}
			var kt string
			switch k.(type) {
			case float64, int:
				kt = "number"
			case string:
				kt = "string"
			default:
				return nil, types.NewError(types.ErrSortNotComparable, "argument to sort must be a string or number", -1)
			}
			if firstType == "" {
				firstType = kt
			} else if firstType != kt {
				return nil, types.NewError(types.ErrSortMixedTypes, "sort arguments must be of the same type", -1)
			}
		}
	}

	indices := make([]int, len(sequence))
	for i := range indices {
		indices[i] = i
	}
	sortStable(indices, func(a, b int) bool {
		for t, term := range step.Terms {
			ka, kb := keys[a][t], keys[b][t]
			if ka == nil && kb == nil {
				continue
			}
			if ka == nil {
				return false
			}
			if kb == nil {
				return true
			}
			cmp := compareValues(ka, kb)
			if cmp == 0 {
				continue
			}
			if term.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	result := make([]interface{}, len(sequence))
	for i, idx := range indices {
		result[i] = sequence[idx]
	}
	return result, nil
}

// evalGroupBy implements the "{}" grouping decoration attached to a Path (or,
// via evalNode's generic wrapper, to any other sequence-producing node).
// Every key/value pair is evaluated once per item in the group's key's
// context; values sharing a key are merged into one array-context
// evaluation of the pair's value expression.
func (e *Evaluator) evalGroupBy(ctx context.Context, gb *types.GroupByClause, sequence []interface{}, evalCtx *EvalContext) (interface{}, error) {
	groups := make(map[string][]int)
	pairForKey := make(map[string]int)

	for i, item := range sequence {
		actual, bindings := extractBoundItem(item)
		itemCtx := evalCtx.NewChildContext(actual)
		if len(bindings) > 0 {
			applyBindingsToCtx(itemCtx, bindings)
		}
		for pairIdx, pair := range gb.Pairs {
			keyVal, err := e.evalNode(ctx, pair.Key, itemCtx)
			if err != nil {
				return nil, err
			}
			keyVal = unwrapCVsDeep(keyVal)
			if keyVal == nil {
				continue
			}
			key, ok := keyVal.(string)
			if !ok {
				return nil, types.NewError(types.ErrInvalidTypeOperation, "the keys of an object-grouping must be strings", pair.Key.CharIndex)
			}
			if existing, exists := pairForKey[key]; exists && existing != pairIdx {
				return nil, types.NewError(types.ErrGroupKeyConflict, "multiple values assigned to the same group-by key", gb.CharIndex)
			}
			pairForKey[key] = pairIdx
			groups[key] = append(groups[key], i)
		}
	}

	result := &OrderedObject{
		Keys:   make([]string, 0, len(groups)),
		Values: make(map[string]interface{}, len(groups)),
	}
	for key := range groups {
		pairIdx := pairForKey[key]
		pair := gb.Pairs[pairIdx]
		indices := groups[key]

		var value interface{}
		var err error
		if len(indices) == 1 {
			actual, bindings := extractBoundItem(sequence[indices[0]])
			itemCtx := evalCtx.NewChildContext(actual)
			if len(bindings) > 0 {
				applyBindingsToCtx(itemCtx, bindings)
			}
			value, err = e.evalNode(ctx, pair.Val, itemCtx)
		} else {
			items := make([]interface{}, len(indices))
			for j, idx := range indices {
				v, _ := extractBoundItem(sequence[idx])
				items[j] = v
			}
			groupCtx := evalCtx.NewChildContext(items)
			value, err = e.evalNode(ctx, pair.Val, groupCtx)
		}
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		result.Keys = append(result.Keys, key)
		result.Values[key] = unwrapCVsDeep(value)
	}

	return result, nil
}

// sortStable sorts a slice of indices in place using a merge sort so that
// per-item sort keys (computed once up-front) can be reused via closures.
func sortStable(indices []int, less func(a, b int) bool) {
	n := len(indices)
	if n < 2 {
		return
	}
	buf := make([]int, n)
	var merge func(lo, hi int)
	merge = func(lo, hi int) {
		if hi-lo < 2 {
			return
		}
		mid := (lo + hi) / 2
		merge(lo, mid)
		merge(mid, hi)
		i, j, k := lo, mid, lo
		for i < mid && j < hi {
			if less(indices[j], indices[i]) {
				buf[k] = indices[j]
				j++
			} else {
				buf[k] = indices[i]
				i++
			}
			k++
		}
		for i < mid {
			buf[k] = indices[i]
			i++
			k++
		}
		for j < hi {
			buf[k] = indices[j]
			j++
			k++
		}
		copy(indices[lo:hi], buf[lo:hi])
	}
	merge(0, n)
}

// evalWildcard evaluates "*": all values of the current context (if it's an
// object) or, for an array of objects, all values across all of them.
func (e *Evaluator) evalWildcard(evalCtx *EvalContext) (interface{}, error) {
	data := evalCtx.Data()
	switch v := data.(type) {
	case map[string]interface{}:
		result := make([]interface{}, 0, len(v))
		for _, val := range v {
			if val == nil {
				result = append(result, types.NullValue)
				continue
			}
			if arr, ok := val.([]interface{}); ok {
				result = append(result, arr...)
			} else {
				result = append(result, val)
			}
		}
		if len(result) == 0 {
			return nil, nil
		}
		return result, nil
	case *OrderedObject:
		result := make([]interface{}, 0, len(v.Keys))
		for _, k := range v.Keys {
			val := v.Values[k]
			if val == nil {
				result = append(result, types.NullValue)
				continue
			}
			if arr, ok := val.([]interface{}); ok {
				result = append(result, arr...)
			} else {
				result = append(result, val)
			}
		}
		if len(result) == 0 {
			return nil, nil
		}
		return result, nil
	case []interface{}:
		var result []interface{}
		for _, item := range v {
			sub, err := e.evalWildcard(evalCtx.NewChildContext(item))
			if err != nil {
				return nil, err
			}
			if arr, ok := sub.([]interface{}); ok {
				result = append(result, arr...)
			} else if sub != nil {
				result = append(result, sub)
			}
		}
		if len(result) == 0 {
			return nil, nil
		}
		return result, nil
	default:
		return nil, nil
	}
}

// evalDescendant evaluates "**": every value reachable from the current
// context by recursively descending into objects and arrays, the context
// itself included.
func (e *Evaluator) evalDescendant(evalCtx *EvalContext) (interface{}, error) {
	var result []interface{}
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch val := v.(type) {
		case map[string]interface{}:
			result = append(result, val)
			for _, sub := range val {
				walk(sub)
			}
		case *OrderedObject:
			result = append(result, val)
			for _, k := range val.Keys {
				walk(val.Values[k])
			}
		case []interface{}:
			for _, sub := range val {
				walk(sub)
			}
		default:
			if val != nil {
				result = append(result, val)
			}
		}
	}
	walk(evalCtx.Data())
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// evalParent evaluates the parent operator (%): the data of the nearest
// enclosing array-iteration context's parent.
func (e *Evaluator) evalParent(node *types.ASTNode, evalCtx *EvalContext) (interface{}, error) {
	for c := evalCtx; c != nil; c = c.Parent() {
		if c.IsArrayItem() {
			if c.Parent() != nil {
				return c.Parent().Data(), nil
			}
			return nil, nil
		}
	}
	return nil, types.NewError(types.ErrInvalidParentUse, "the % operator can only be used within a path that is a member of an array", node.CharIndex)
}
