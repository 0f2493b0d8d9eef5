// Package parser turns a JSONata query string into a types.Expression via a
// hand-written lexer and recursive-descent/Pratt parser.
//
// # Pipeline
//
//   - Lexer tokenizes the source text.
//   - Parser builds an AST from the token stream, with Pratt-style
//     precedence climbing for operators.
//   - postprocess normalizes path-step and predicate nodes into the shape
//     the evaluator expects.
//
//	expr, err := parser.Parse("$.items[price > 100]")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ast := expr.AST()
package parser

import (
	"github.com/nilforge/jsonquery/pkg/types"
)

// Parse tokenizes and parses query, returning a ready-to-evaluate
// Expression or a types.Error carrying the failing source position.
func Parse(query string) (*types.Expression, error) {
	return NewParser(query).Parse()
}

// Compile is Parse with CompileOptions recorded on the parser. The parser
// does not read either option: parsing depth is not limited and there is no
// error-recovery mode, so Compile parses exactly as Parse does.
func Compile(query string, opts ...CompileOption) (*types.Expression, error) {
	return NewParser(query, opts...).Parse()
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// EnableRecovery is stored but not read by the parser; there is no
	// error-recovery mode.
	EnableRecovery bool
	// MaxDepth is stored (default 100) but not read by the parser; recursion
	// depth is not limited.
	MaxDepth int
}

// WithRecovery enables error recovery mode.
func WithRecovery(enable bool) CompileOption {
	return func(opts *CompileOptions) {
		opts.EnableRecovery = enable
	}
}

// WithMaxDepth sets the maximum parsing depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}
