package parser

import (
	"github.com/nilforge/jsonquery/pkg/types"
)

// opDescendMap is the infix "**" operator's raw Op spelling: syntactically a
// Map merge like "." but, during path-merging, it also inserts a Descend
// step (spec.md §4.2's "** in prefix/infix means search all descendants").
const opDescendMap = "**"

// postprocess runs the 8-rule structural rewrite of spec.md §4.3 once over a
// freshly-parsed (raw) tree, normalizing it so the evaluator never needs to
// special-case mixed forms. It is a single recursive pass; every node is
// visited exactly once.
func postprocess(arena *types.NodeArena, node *types.ASTNode) (*types.ASTNode, error) {
	if node == nil {
		return nil, nil
	}
	keepArray := node.KeepArray
	result, err := postprocessDispatch(arena, node)
	if err != nil {
		return nil, err
	}
	if keepArray {
		result.KeepArray = true
	}
	return result, nil
}

func postprocessDispatch(arena *types.NodeArena, node *types.ASTNode) (*types.ASTNode, error) {
	switch node.Type {
	case types.NodeName:
		return processName(arena, node), nil

	case types.NodeBlock:
		for i, item := range node.Items {
			processed, err := postprocess(arena, item)
			if err != nil {
				return nil, err
			}
			node.Items[i] = processed
		}
		return node, nil

	case types.NodeUnary: // only Minus is ever parsed as NodeUnary
		return processUnaryMinus(arena, node)

	case types.NodeArrayCtor:
		for i, item := range node.Items {
			processed, err := postprocess(arena, item)
			if err != nil {
				return nil, err
			}
			node.Items[i] = processed
		}
		return node, nil

	case types.NodeObjectCtor:
		for i, pair := range node.Pairs {
			k, err := postprocess(arena, pair.Key)
			if err != nil {
				return nil, err
			}
			v, err := postprocess(arena, pair.Val)
			if err != nil {
				return nil, err
			}
			node.Pairs[i] = types.KV{Key: k, Val: v}
		}
		return node, nil

	case types.NodeBinary:
		switch node.Op {
		case types.OpMap:
			return processPath(arena, node.CharIndex, node.LHS, node.RHS, false)
		case opDescendMap:
			return processPath(arena, node.CharIndex, node.LHS, node.RHS, true)
		case types.OpPredicate:
			return processPredicate(arena, node.CharIndex, node.LHS, node.RHS)
		case types.OpFocusBind:
			return processContextBind(arena, node.CharIndex, node.LHS, node.RHS, true)
		case types.OpIndexBind:
			return processContextBind(arena, node.CharIndex, node.LHS, node.RHS, false)
		default:
			lhs, err := postprocess(arena, node.LHS)
			if err != nil {
				return nil, err
			}
			rhs, err := postprocess(arena, node.RHS)
			if err != nil {
				return nil, err
			}
			node.LHS, node.RHS = lhs, rhs
			return node, nil
		}

	case types.NodeGroupBy:
		return processGroupBy(arena, node.CharIndex, node.LHS, node.Pairs)

	case types.NodeOrderBy:
		return processOrderBy(arena, node.CharIndex, node.LHS, node.Terms)

	case types.NodeFunction:
		if node.Proc != nil {
			proc, err := postprocess(arena, node.Proc)
			if err != nil {
				return nil, err
			}
			node.Proc = proc
		}
		for i, arg := range node.Args {
			processed, err := postprocess(arena, arg)
			if err != nil {
				return nil, err
			}
			node.Args[i] = processed
		}
		return node, nil

	case types.NodeLambda:
		body, err := postprocess(arena, node.Body)
		if err != nil {
			return nil, err
		}
		node.Body = tailCallOptimize(arena, body)
		return node, nil

	case types.NodeTernary:
		cond, err := postprocess(arena, node.LHS)
		if err != nil {
			return nil, err
		}
		then, err := postprocess(arena, node.Then)
		if err != nil {
			return nil, err
		}
		node.LHS, node.Then = cond, then
		if node.Else != nil {
			elseExpr, err := postprocess(arena, node.Else)
			if err != nil {
				return nil, err
			}
			node.Else = elseExpr
		}
		return node, nil

	case types.NodeTransform:
		pattern, err := postprocess(arena, node.Pattern)
		if err != nil {
			return nil, err
		}
		update, err := postprocess(arena, node.Update)
		if err != nil {
			return nil, err
		}
		node.Pattern, node.Update = pattern, update
		if node.Delete != nil {
			del, err := postprocess(arena, node.Delete)
			if err != nil {
				return nil, err
			}
			node.Delete = del
		}
		return node, nil

	default:
		// Literals (Null/Bool/String/Number), Var, Wild, Descend (prefix),
		// PartialArg, Parent: nothing to normalize.
		return node, nil
	}
}

// processName implements rule 1: a bare Name becomes Path([Name]).
func processName(arena *types.NodeArena, node *types.ASTNode) *types.ASTNode {
	keepSingleton := node.KeepArray
	path := arena.Alloc(types.NodePath, node.CharIndex)
	path.Steps = []*types.ASTNode{node}
	path.KeepSingletonArray = keepSingleton
	return path
}

// processUnaryMinus implements rule 7: folds -Number into a negated Number
// literal; otherwise keeps the Minus wrapper around the processed operand.
func processUnaryMinus(arena *types.NodeArena, node *types.ASTNode) (*types.ASTNode, error) {
	operand, err := postprocess(arena, node.LHS)
	if err != nil {
		return nil, err
	}
	if operand.Type == types.NodeNumber {
		operand.Num = -operand.Num
		return operand, nil
	}
	node.LHS = operand
	return node, nil
}

// processPath implements rule 2: merges a Map (".") or descend ("**") binary
// into a normalized Path, validating and decorating steps as it goes.
func processPath(arena *types.NodeArena, charIndex int, lhs, rhs *types.ASTNode, descend bool) (*types.ASTNode, error) {
	leftStep, err := postprocess(arena, lhs)
	if err != nil {
		return nil, err
	}
	rest, err := postprocess(arena, rhs)
	if err != nil {
		return nil, err
	}

	var result *types.ASTNode
	if leftStep.Type == types.NodePath {
		result = leftStep
	} else {
		result = arena.Alloc(types.NodePath, charIndex)
		result.Steps = []*types.ASTNode{leftStep}
	}

	if descend {
		result.Steps = append(result.Steps, arena.Alloc(types.NodeDescend, charIndex))
	}

	if rest != nil {
		if rest.Type == types.NodePath {
			result.Steps = append(result.Steps, rest.Steps...)
		} else {
			rest.Stages = rest.Predicates
			rest.Predicates = nil
			result.Steps = append(result.Steps, rest)
		}
	}

	keepSingleton := false
	lastIndex := len(result.Steps) - 1
	for i, step := range result.Steps {
		switch step.Type {
		case types.NodeNumber, types.NodeBool, types.NodeNull:
			return nil, types.NewError(types.ErrInvalidPathStep, "Path step cannot be a literal value", step.CharIndex)
		case types.NodeString:
			step.Type = types.NodeName
		case types.NodeArrayCtor:
			if i == 0 || i == lastIndex {
				step.ConsArray = true
			}
		}
		if step.KeepArray {
			keepSingleton = true
		}
	}
	result.KeepSingletonArray = keepSingleton

	return result, nil
}

// processPredicate implements rule 3: a Predicate binary attaches a Filter
// decoration to the last step of a Path, or to the expression's own
// Predicates list when the base isn't (yet) a Path.
func processPredicate(arena *types.NodeArena, charIndex int, lhs, rhs *types.ASTNode) (*types.ASTNode, error) {
	result, err := postprocess(arena, lhs)
	if err != nil {
		return nil, err
	}

	var target *types.ASTNode
	inPath := result.Type == types.NodePath
	if inPath {
		target = result.Steps[len(result.Steps)-1]
	} else {
		target = result
	}

	if target.GroupBy != nil {
		return nil, types.NewError(types.ErrPredicateAfterGrp, "Predicate cannot follow a group-by expression", charIndex)
	}

	predExpr, err := postprocess(arena, rhs)
	if err != nil {
		return nil, err
	}

	filter := arena.Alloc(types.NodeFilter, charIndex)
	filter.RHS = predExpr

	if inPath {
		target.Stages = append(target.Stages, filter)
	} else {
		target.Predicates = append(target.Predicates, filter)
	}

	return result, nil
}

// processGroupBy implements rule 4: attaches processed pairs to the base
// expression's GroupBy decoration; two group-bys on one node is S0210.
func processGroupBy(arena *types.NodeArena, charIndex int, lhs *types.ASTNode, pairs []types.KV) (*types.ASTNode, error) {
	result, err := postprocess(arena, lhs)
	if err != nil {
		return nil, err
	}
	if result.GroupBy != nil {
		return nil, types.NewError(types.ErrDuplicateGroupBy, "Multiple group-by expressions not allowed", charIndex)
	}

	processed := make([]types.KV, len(pairs))
	for i, pair := range pairs {
		k, err := postprocess(arena, pair.Key)
		if err != nil {
			return nil, err
		}
		v, err := postprocess(arena, pair.Val)
		if err != nil {
			return nil, err
		}
		processed[i] = types.KV{Key: k, Val: v}
	}

	result.GroupBy = &types.GroupByClause{CharIndex: charIndex, Pairs: processed}
	return result, nil
}

// processOrderBy implements rule 5: folds OrderBy into a Path ending with a
// normalized Sort step.
func processOrderBy(arena *types.NodeArena, charIndex int, lhs *types.ASTNode, terms []types.SortTerm) (*types.ASTNode, error) {
	processedLHS, err := postprocess(arena, lhs)
	if err != nil {
		return nil, err
	}

	var result *types.ASTNode
	if processedLHS.Type == types.NodePath {
		result = processedLHS
	} else {
		result = arena.Alloc(types.NodePath, charIndex)
		result.Steps = []*types.ASTNode{processedLHS}
	}

	processedTerms := make([]types.SortTerm, len(terms))
	for i, term := range terms {
		expr, err := postprocess(arena, term.Expr)
		if err != nil {
			return nil, err
		}
		processedTerms[i] = types.SortTerm{Expr: expr, Descending: term.Descending}
	}

	sortStep := arena.Alloc(types.NodeSort, charIndex)
	sortStep.Terms = processedTerms
	result.Steps = append(result.Steps, sortStep)

	return result, nil
}

// processContextBind implements rule 6: attaches a focus ("@") or index
// ("#") variable to the tail step of a Path, rejecting a tail step that
// already carries stages or is itself a Sort.
func processContextBind(arena *types.NodeArena, charIndex int, lhs, rhsVar *types.ASTNode, isFocus bool) (*types.ASTNode, error) {
	processedL, err := postprocess(arena, lhs)
	if err != nil {
		return nil, err
	}

	var path *types.ASTNode
	if processedL.Type == types.NodePath {
		path = processedL
	} else {
		path = arena.Alloc(types.NodePath, charIndex)
		path.Steps = []*types.ASTNode{processedL}
	}

	last := path.Steps[len(path.Steps)-1]
	if isFocus {
		if len(last.Stages) > 0 || last.Type == types.NodeSort {
			return nil, types.NewError(types.ErrFocusAfterFilter, "@ cannot decorate a step with predicates or sort", charIndex)
		}
		last.FocusVar = rhsVar.Str
		last.Tuple = true
	} else {
		if last.Type == types.NodeSort {
			return nil, types.NewError(types.ErrIndexAfterSort, "# cannot decorate a sort step", charIndex)
		}
		last.IndexVar = rhsVar.Str
	}

	return path, nil
}

// tailCallOptimize implements rule 8: rewrites a Function call in tail
// position into a zero-argument thunk Lambda, recursing into ternary
// branches and the last statement of a block. A Function that still carries
// predicates (i.e. was itself later indexed/filtered) is not eligible: its
// result must be held, not immediately re-invoked.
func tailCallOptimize(arena *types.NodeArena, node *types.ASTNode) *types.ASTNode {
	if node == nil {
		return nil
	}
	switch node.Type {
	case types.NodeFunction:
		if len(node.Predicates) == 0 {
			thunk := arena.Alloc(types.NodeLambda, node.CharIndex)
			thunk.IsThunk = true
			thunk.Body = node
			return thunk
		}
		return node
	case types.NodeTernary:
		node.Then = tailCallOptimize(arena, node.Then)
		if node.Else != nil {
			node.Else = tailCallOptimize(arena, node.Else)
		}
		return node
	case types.NodeBlock:
		if len(node.Items) > 0 {
			last := len(node.Items) - 1
			node.Items[last] = tailCallOptimize(arena, node.Items[last])
		}
		return node
	default:
		return node
	}
}
