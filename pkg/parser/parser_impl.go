package parser

import (
	"fmt"

	"github.com/nilforge/jsonquery/pkg/types"
)

// Parser implements a Pratt ("Top Down Operator Precedence") parser for
// JSONata expressions: parsePrefix is the null-denotation, parseInfix the
// left-denotation, dispatched by the current token's binding power.
type Parser struct {
	lexer   *Lexer
	current Token
	errors  []error
	opts    CompileOptions
	arena   *types.NodeArena
}

// NewParser creates a new parser for the given input string.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{MaxDepth: 100}
	for _, opt := range opts {
		opt(&options)
	}

	p := &Parser{
		lexer: NewLexer(input),
		opts:  options,
		arena: types.NewNodeArena(),
	}
	p.advance()
	return p
}

// Parse parses the entire expression, runs the post-processor, and returns
// the compiled Expression.
func (p *Parser) Parse() (*types.Expression, error) {
	if p.current.Type == TokenError {
		return nil, p.lexer.Error()
	}
	if p.current.Type == TokenEOF {
		return nil, p.errAt(types.ErrSyntaxError, "Empty expression", p.current)
	}

	node, err := p.expression(0)
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, p.errAt(types.ErrExpectedEOF, fmt.Sprintf("Unexpected token: %s", p.current.Value), p.current)
	}

	processed, err := postprocess(p.arena, node)
	if err != nil {
		return nil, err
	}

	return types.NewExpression(processed, p.lexer.input, p.arena), nil
}

// precedence is the binding-power table (spec.md §4.2). Higher binds tighter.
var precedence = map[TokenType]int{
	TokenAssign:       10,
	TokenCondition:    20,
	TokenOr:           25,
	TokenAnd:          30,
	TokenNotEqual:     40,
	TokenGreaterEqual: 40,
	TokenLessEqual:    40,
	TokenApply:        40,
	TokenIn:           40,
	TokenEqual:        40,
	TokenGreater:      40,
	TokenLess:         40,
	TokenSort:         40,
	TokenConcat:       50,
	TokenPlus:         50,
	TokenMinus:        50,
	TokenMult:         60,
	TokenDescendent:   60,
	TokenDiv:          60,
	TokenMod:          60,
	TokenBraceOpen:    70,
	TokenDot:          75,
	TokenBracketOpen:  80,
	TokenParenOpen:    80,
	TokenAt:           80,
	TokenHash:         80,
}

func (p *Parser) bp(tt TokenType) int { return precedence[tt] }

func (p *Parser) advance() {
	p.current = p.lexer.Next()
}

func (p *Parser) alloc(nt types.NodeType, pos int) *types.ASTNode {
	return p.arena.Alloc(nt, pos)
}

func (p *Parser) expect(tt TokenType) error {
	if p.current.Type == TokenEOF {
		return p.errAt(types.ErrExpectedEOF, fmt.Sprintf("Expected %s before end of input", tt.String()), p.current)
	}
	if p.current.Type != tt {
		return p.errAt(types.ErrExpectedToken, fmt.Sprintf("Expected %s but got %s", tt.String(), p.current.Type.String()), p.current)
	}
	p.advance()
	return nil
}

func (p *Parser) errAt(code types.ErrorCode, message string, t Token) error {
	err := types.NewError(code, message, t.Position).WithToken(t.Value)
	p.errors = append(p.errors, err)
	return err
}

// expression implements the Pratt loop: parse a prefix (null-denotation),
// then keep consuming infix operators (left-denotations) whose binding
// power exceeds rbp.
func (p *Parser) expression(rbp int) (*types.ASTNode, error) {
	tok := p.current
	p.advance()

	left, err := p.nullDenotation(tok)
	if err != nil {
		return nil, err
	}

	for rbp < p.bp(p.current.Type) {
		tok = p.current
		p.advance()
		left, err = p.leftDenotation(tok, left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// nullDenotation parses tok as a prefix expression; tok has already been
// consumed (p.current is the token AFTER tok).
func (p *Parser) nullDenotation(tok Token) (*types.ASTNode, error) {
	switch tok.Type {
	case TokenNull:
		return p.alloc(types.NodeNull, tok.Position), nil
	case TokenTrue:
		n := p.alloc(types.NodeBool, tok.Position)
		n.Bool = true
		return n, nil
	case TokenFalse:
		n := p.alloc(types.NodeBool, tok.Position)
		n.Bool = false
		return n, nil
	case TokenString:
		n := p.alloc(types.NodeString, tok.Position)
		n.Str = tok.Value
		return n, nil
	case TokenNumber:
		n := p.alloc(types.NodeNumber, tok.Position)
		n.Num = tok.NumValue
		return n, nil
	case TokenName, TokenNameEsc:
		if tok.Value == "function" || tok.Value == "λ" {
			return p.parseLambda(tok.Position)
		}
		n := p.alloc(types.NodeName, tok.Position)
		n.Str = tok.Value
		return n, nil
	case TokenAnd:
		n := p.alloc(types.NodeName, tok.Position)
		n.Str = "and"
		return n, nil
	case TokenOr:
		n := p.alloc(types.NodeName, tok.Position)
		n.Str = "or"
		return n, nil
	case TokenIn:
		n := p.alloc(types.NodeName, tok.Position)
		n.Str = "in"
		return n, nil
	case TokenVariable:
		n := p.alloc(types.NodeVar, tok.Position)
		n.Str = tok.Value
		return n, nil
	case TokenMinus:
		expr, err := p.expression(70)
		if err != nil {
			return nil, err
		}
		n := p.alloc(types.NodeUnary, tok.Position)
		n.Op = types.OpMinus
		n.LHS = expr
		return n, nil
	case TokenMult:
		return p.alloc(types.NodeWild, tok.Position), nil
	case TokenDescendent:
		return p.alloc(types.NodeDescend, tok.Position), nil
	case TokenMod:
		return p.parseParent(tok.Position)
	case TokenParenOpen:
		return p.parseBlock(tok.Position)
	case TokenBracketOpen:
		return p.parseArrayConstructor(tok.Position)
	case TokenBraceOpen:
		return p.parseObjectConstructor(tok.Position, nil)
	case TokenPipe:
		return p.parseTransform(tok.Position)
	default:
		return nil, p.errAt(types.ErrInvalidUnary, fmt.Sprintf("Unexpected token: %s", tok.Type.String()), tok)
	}
}

// leftDenotation parses tok as an infix/postfix operator applied to left;
// tok has already been consumed.
func (p *Parser) leftDenotation(tok Token, left *types.ASTNode) (*types.ASTNode, error) {
	switch tok.Type {
	case TokenDot:
		return p.parseBinary(types.OpMap, tok.Position, left, p.bp(TokenDot))
	case TokenPlus:
		return p.parseBinary(types.OpAdd, tok.Position, left, p.bp(TokenPlus))
	case TokenMinus:
		return p.parseBinary(types.OpSub, tok.Position, left, p.bp(TokenMinus))
	case TokenMult:
		return p.parseBinary(types.OpMul, tok.Position, left, p.bp(TokenMult))
	case TokenDiv:
		return p.parseBinary(types.OpDiv, tok.Position, left, p.bp(TokenDiv))
	case TokenMod:
		return p.parseBinary(types.OpMod, tok.Position, left, p.bp(TokenMod))
	case TokenEqual:
		return p.parseBinary(types.OpEq, tok.Position, left, p.bp(TokenEqual))
	case TokenNotEqual:
		return p.parseBinary(types.OpNe, tok.Position, left, p.bp(TokenNotEqual))
	case TokenLess:
		return p.parseBinary(types.OpLt, tok.Position, left, p.bp(TokenLess))
	case TokenLessEqual:
		return p.parseBinary(types.OpLe, tok.Position, left, p.bp(TokenLessEqual))
	case TokenGreater:
		return p.parseBinary(types.OpGt, tok.Position, left, p.bp(TokenGreater))
	case TokenGreaterEqual:
		return p.parseBinary(types.OpGe, tok.Position, left, p.bp(TokenGreaterEqual))
	case TokenConcat:
		return p.parseBinary(types.OpConcat, tok.Position, left, p.bp(TokenConcat))
	case TokenAnd:
		return p.parseBinary(types.OpAnd, tok.Position, left, p.bp(TokenAnd))
	case TokenOr:
		return p.parseBinary(types.OpOr, tok.Position, left, p.bp(TokenOr))
	case TokenIn:
		return p.parseBinary(types.OpIn, tok.Position, left, p.bp(TokenIn))
	case TokenApply:
		return p.parseBinary(types.OpApply, tok.Position, left, p.bp(TokenApply))
	case TokenDescendent:
		return p.parseBinary(opDescendMap, tok.Position, left, p.bp(TokenDescendent))
	case TokenParenOpen:
		return p.parseFunctionOrLambda(tok.Position, left)
	case TokenAssign:
		return p.parseBind(tok.Position, left)
	case TokenSort:
		return p.parseOrderBy(tok.Position, left)
	case TokenAt:
		return p.parseContextBind(tok.Position, left, types.OpFocusBind, "@")
	case TokenHash:
		return p.parseContextBind(tok.Position, left, types.OpIndexBind, "#")
	case TokenCondition:
		return p.parseTernary(tok.Position, left)
	case TokenBraceOpen:
		return p.parseObjectConstructor(tok.Position, left)
	case TokenBracketOpen:
		return p.parsePredicate(tok.Position, left)
	default:
		return nil, p.errAt(types.ErrSyntaxError, fmt.Sprintf("Unexpected token: %s", tok.Type.String()), tok)
	}
}

func (p *Parser) parseBinary(op string, pos int, left *types.ASTNode, rbp int) (*types.ASTNode, error) {
	right, err := p.expression(rbp)
	if err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeBinary, pos)
	n.Op = op
	n.LHS = left
	n.RHS = right
	return n, nil
}

// parseBlock parses "(" expr (";" expr)* ")" as a Block.
func (p *Parser) parseBlock(pos int) (*types.ASTNode, error) {
	n := p.alloc(types.NodeBlock, pos)
	for p.current.Type != TokenParenClose {
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, expr)
		if p.current.Type != TokenSemicolon {
			break
		}
		if err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}
	return n, nil
}

// parseArrayConstructor parses "[" (expr ("," expr)*)? "]"; a ".." between
// two items at the top of one item forms a Binary(Range) (the range operator
// has no generic infix binding power, so it is recognized explicitly here,
// matching the teacher's array-literal handling).
func (p *Parser) parseArrayConstructor(pos int) (*types.ASTNode, error) {
	n := p.alloc(types.NodeArrayCtor, pos)
	if p.current.Type == TokenBracketClose {
		p.advance()
		return n, nil
	}
	for {
		item, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if p.current.Type == TokenRange {
			rangePos := p.current.Position
			p.advance()
			hi, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			rn := p.alloc(types.NodeBinary, rangePos)
			rn.Op = types.OpRange
			rn.LHS = item
			rn.RHS = hi
			item = rn
		}
		n.Items = append(n.Items, item)
		if p.current.Type == TokenBracketClose {
			p.advance()
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// parseObjectConstructor parses "{" (key ":" value ("," key ":" value)*)? "}".
// When left is non-nil this is the infix group-by form (expr{...}); otherwise
// it's a prefix object constructor.
func (p *Parser) parseObjectConstructor(pos int, left *types.ASTNode) (*types.ASTNode, error) {
	pairs, err := p.parsePairs()
	if err != nil {
		return nil, err
	}
	if left == nil {
		n := p.alloc(types.NodeObjectCtor, pos)
		n.Pairs = pairs
		return n, nil
	}
	n := p.alloc(types.NodeGroupBy, pos)
	n.LHS = left
	n.Pairs = pairs
	return n, nil
}

func (p *Parser) parsePairs() ([]types.KV, error) {
	var pairs []types.KV
	if p.current.Type == TokenBraceClose {
		p.advance()
		return pairs, nil
	}
	for {
		key, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		val, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, types.KV{Key: key, Val: val})
		if p.current.Type == TokenBraceClose {
			p.advance()
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	return pairs, nil
}

// parseTransform parses "|" pattern "|" update ("," delete)? "|".
func (p *Parser) parseTransform(pos int) (*types.ASTNode, error) {
	pattern, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPipe); err != nil {
		return nil, err
	}
	update, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeTransform, pos)
	n.Pattern = pattern
	n.Update = update
	if p.current.Type == TokenComma {
		p.advance()
		del, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		n.Delete = del
	}
	if err := p.expect(TokenPipe); err != nil {
		return nil, err
	}
	return n, nil
}

// parseParent parses "%", the parent-context operator, into a Parent node.
// The evaluator resolves it (evalParent) to the data of the nearest
// enclosing array-iteration context's parent; outside such a context it
// fails at evaluation time rather than at parse time.
func (p *Parser) parseParent(pos int) (*types.ASTNode, error) {
	return p.alloc(types.NodeParent, pos), nil
}

// parsePredicate parses "[" "]" (keep_array) or "[" expr "]" (predicate/index).
func (p *Parser) parsePredicate(pos int, left *types.ASTNode) (*types.ASTNode, error) {
	if p.current.Type == TokenBracketClose {
		p.advance()
		// Empty predicate marks the underlying step keep_array, walking back
		// through any chained predicate nodes (spec.md §4.2).
		step := left
		for step.Type == types.NodeBinary && step.Op == types.OpPredicate {
			step = step.LHS
		}
		step.KeepArray = true
		return left, nil
	}
	rhs, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenBracketClose); err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeBinary, pos)
	n.Op = types.OpPredicate
	n.LHS = left
	n.RHS = rhs
	return n, nil
}

// parseBind parses ":=" (requires a Var left-hand side).
func (p *Parser) parseBind(pos int, left *types.ASTNode) (*types.ASTNode, error) {
	if left.Type != types.NodeVar {
		return nil, p.errAt(types.ErrBindToNonVar, "Left-hand side of := must be a variable", p.current)
	}
	right, err := p.expression(p.bp(TokenAssign) - 1)
	if err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeBinary, pos)
	n.Op = types.OpBind
	n.LHS = left
	n.RHS = right
	return n, nil
}

// parseOrderBy parses "^" "(" (("<"|">")? expr ("," ...)*)? ")".
func (p *Parser) parseOrderBy(pos int, left *types.ASTNode) (*types.ASTNode, error) {
	if err := p.expect(TokenParenOpen); err != nil {
		return nil, err
	}
	var terms []types.SortTerm
	for {
		descending := false
		switch p.current.Type {
		case TokenLess:
			p.advance()
		case TokenGreater:
			descending = true
			p.advance()
		}
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		terms = append(terms, types.SortTerm{Expr: expr, Descending: descending})
		if p.current.Type != TokenComma {
			break
		}
		p.advance()
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeOrderBy, pos)
	n.LHS = left
	n.Terms = terms
	return n, nil
}

// parseContextBind parses "@"/"#" Var, requiring a Var on the right (else S0214).
func (p *Parser) parseContextBind(pos int, left *types.ASTNode, op, symbol string) (*types.ASTNode, error) {
	right, err := p.expression(p.bp(TokenAt))
	if err != nil {
		return nil, err
	}
	if right.Type != types.NodeVar {
		return nil, types.NewError(types.ErrContextVarIllegal, fmt.Sprintf("Expected a variable after %q", symbol), pos)
	}
	n := p.alloc(types.NodeBinary, pos)
	n.Op = op
	n.LHS = left
	n.RHS = right
	return n, nil
}

// parseTernary parses "?" then (":" else)?.
func (p *Parser) parseTernary(pos int, cond *types.ASTNode) (*types.ASTNode, error) {
	then, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	n := p.alloc(types.NodeTernary, pos)
	n.LHS = cond
	n.Then = then
	if p.current.Type == TokenColon {
		p.advance()
		elseExpr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		n.Else = elseExpr
	}
	return n, nil
}

// parseFunctionOrLambda parses "(" args ")" after a callee expression into a
// function call. Lambda definitions ("function" followed by "(") are parsed
// by parseLambda from nullDenotation and never reach this function.
func (p *Parser) parseFunctionOrLambda(pos int, callee *types.ASTNode) (*types.ASTNode, error) {
	var args []*types.ASTNode
	hasPlaceholder := false
	if p.current.Type != TokenParenClose {
		for {
			if p.current.Type == TokenCondition {
				args = append(args, p.alloc(types.NodePartialArg, p.current.Position))
				p.advance()
				hasPlaceholder = true
			} else {
				arg, err := p.expression(0)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
			}
			if p.current.Type != TokenComma {
				break
			}
			p.advance()
		}
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}

	n := p.alloc(types.NodeFunction, pos)
	if callee.Type == types.NodeName {
		n.Name = callee.Str
	} else {
		n.Proc = callee
	}
	n.Args = args
	n.IsPartial = hasPlaceholder
	return n, nil
}

// parseLambda parses "function" "(" $param,... ")" ("<" signature ">")? "{" body "}".
func (p *Parser) parseLambda(pos int) (*types.ASTNode, error) {
	if err := p.expect(TokenParenOpen); err != nil {
		return nil, err
	}

	n := p.alloc(types.NodeLambda, pos)
	if p.current.Type != TokenParenClose {
		for {
			if p.current.Type != TokenVariable {
				return nil, p.errAt(types.ErrInvalidFuncParam, "Expected a variable in lambda parameter list", p.current)
			}
			param := p.alloc(types.NodeVar, p.current.Position)
			param.Str = p.current.Value
			n.Params = append(n.Params, param)
			p.advance()
			if p.current.Type == TokenParenClose {
				break
			}
			if err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}

	if p.current.Type == TokenLess {
		sig, err := p.consumeSignature()
		if err != nil {
			return nil, err
		}
		n.Signature = sig
	}

	if err := p.expect(TokenBraceOpen); err != nil {
		return nil, err
	}
	body, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	n.Body = body
	if err := p.expect(TokenBraceClose); err != nil {
		return nil, err
	}
	return n, nil
}

// consumeSignature reads the raw "<...>" signature text, tracking nested
// angle brackets (function/array/alternation specifiers can themselves
// contain "<...>"). The returned string still needs pkg/signature to parse
// it into an Arg tree.
func (p *Parser) consumeSignature() (string, error) {
	sig := "<"
	p.advance() // consume the opening '<'
	depth := 1
	for depth > 0 {
		if p.current.Type == TokenEOF {
			return "", p.errAt(types.ErrExpectedToken, "Expected '>' to close function signature", p.current)
		}
		switch p.current.Type {
		case TokenLess:
			depth++
			sig += "<"
		case TokenGreater:
			depth--
			if depth > 0 {
				sig += ">"
			}
		default:
			sig += p.current.Value
		}
		if depth > 0 {
			p.advance()
		}
	}
	sig += ">"
	p.advance() // consume the closing '>'
	return sig, nil
}
