// Package gosonata is a query and transformation engine for JSON documents,
// built around the JSONata expression language (2.1.0+).
//
// # Quick start
//
//	result, err := gosonata.Eval("$.name", data)
//
//	expr, err := gosonata.Compile("$.items[price > 100]")
//	ev := evaluator.New()
//	result1, _ := ev.Eval(ctx, expr, data1)
//	result2, _ := ev.Eval(ctx, expr, data2)
//
//	result, err := gosonata.Eval("$.items", data,
//	    gosonata.WithCaching(true),
//	    gosonata.WithTimeout(5*time.Second),
//	)
//
// Compile once and reuse the resulting *types.Expression across goroutines
// and documents; Eval/EvalWithContext exist for the common one-shot case
// and transparently use the evaluator's expression cache when enabled.
//
// # Packages
//
//   - Parser: github.com/nilforge/jsonquery/pkg/parser
//   - Evaluator: github.com/nilforge/jsonquery/pkg/evaluator
//   - Functions: github.com/nilforge/jsonquery/pkg/functions
//   - Types: github.com/nilforge/jsonquery/pkg/types
package gosonata

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/functions"
	"github.com/nilforge/jsonquery/pkg/parser"
	"github.com/nilforge/jsonquery/pkg/types"
)

const version = "v0.1.0-dev"

// Version reports the module's version string.
func Version() string { return version }

// Compile parses and binds query for repeated evaluation against
// different documents; the result is safe for concurrent use.
func Compile(query string, opts ...parser.CompileOption) (*types.Expression, error) {
	return parser.Compile(query, opts...)
}

// MustCompile is Compile for package-level variable initialization: it
// panics instead of returning an error.
func MustCompile(query string) *types.Expression {
	expr, err := Compile(query)
	if err != nil {
		panic(fmt.Sprintf("gosonata: Compile(%q): %v", query, err))
	}
	return expr
}

// Eval compiles and evaluates query against data in one call, under a
// default 30-second timeout. Callers running many evaluations of the same
// query should Compile once instead.
func Eval(query string, data interface{}, opts ...evaluator.EvalOption) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return EvalWithContext(ctx, query, data, opts...)
}

// EvalWithContext is Eval with a caller-supplied context in place of the
// default timeout.
func EvalWithContext(ctx context.Context, query string, data interface{}, opts ...evaluator.EvalOption) (interface{}, error) {
	eval := evaluator.New(opts...)
	expr, err := compileWithCache(eval, query)
	if err != nil {
		return nil, err
	}
	return eval.Eval(ctx, expr, data)
}

// compileWithCache compiles query through eval's expression cache when one
// is configured, otherwise compiles directly.
func compileWithCache(eval *evaluator.Evaluator, query string) (*types.Expression, error) {
	c := eval.Cache()
	if c == nil {
		return Compile(query)
	}
	return c.GetOrCompile(query, func() (*types.Expression, error) {
		return Compile(query)
	})
}

// EvalStream compiles query and evaluates it against each JSON value
// streamed from r; see evaluator.EvalStream for the streaming contract.
func EvalStream(ctx context.Context, query string, r io.Reader, opts ...EvalOption) (<-chan StreamResult, error) {
	expr, err := Compile(query)
	if err != nil {
		return nil, err
	}
	return evaluator.New(opts...).EvalStream(ctx, expr, r)
}

// EvalOption configures an evaluation; see the With* functions below.
type EvalOption = evaluator.EvalOption

// StreamResult is one value produced by EvalStream, paired with any error
// that occurred evaluating it.
type StreamResult = evaluator.StreamResult

// CustomFunc is the signature for a user-defined function callable from a
// JSONata expression; see WithCustomFunction.
type CustomFunc = functions.CustomFunc

// CustomFunctionDef pairs a name and signature with a CustomFunc, for use
// with WithFunctions.
type CustomFunctionDef = functions.CustomFunctionDef

// AdvancedCustomFunc is a user-defined function that additionally receives
// a Caller, letting it invoke JSONata function-typed arguments itself
// (e.g. a custom higher-order function).
type AdvancedCustomFunc = functions.AdvancedCustomFunc

// AdvancedCustomFunctionDef pairs a name and signature with an
// AdvancedCustomFunc, for use with WithFunctions.
type AdvancedCustomFunctionDef = functions.AdvancedCustomFunctionDef

// FunctionEntry is the interface shared by CustomFunctionDef and
// AdvancedCustomFunctionDef, letting WithFunctions accept a mix of both.
type FunctionEntry = functions.FunctionEntry

func WithCaching(enabled bool) EvalOption      { return evaluator.WithCaching(enabled) }
func WithCacheSize(size int) EvalOption        { return evaluator.WithCacheSize(size) }
func WithConcurrency(enabled bool) EvalOption  { return evaluator.WithConcurrency(enabled) }
func WithTimeout(t time.Duration) EvalOption   { return evaluator.WithTimeout(t) }
func WithDebug(enabled bool) EvalOption        { return evaluator.WithDebug(enabled) }

// WithCustomFunction registers a single user-defined function under name
// (without the leading "$"), with an optional JSONata signature string.
//
//	result, err := gosonata.Eval(`$greet("World")`, nil,
//	    gosonata.WithCustomFunction("greet", "<s:s>", func(ctx context.Context, args ...interface{}) (interface{}, error) {
//	        return "Hello, " + args[0].(string) + "!", nil
//	    }),
//	)
func WithCustomFunction(name, signature string, fn CustomFunc) EvalOption {
	return evaluator.WithCustomFunction(name, signature, fn)
}

// WithFunctions registers any mix of CustomFunctionDef and
// AdvancedCustomFunctionDef in one call — convenient for spreading an
// ext sub-package's AllEntries():
//
//	gosonata.WithFunctions(extstring.AllEntries()...)
//	gosonata.WithFunctions(ext.AllEntries()...)
func WithFunctions(defs ...functions.FunctionEntry) EvalOption {
	return evaluator.WithFunctions(defs...)
}
