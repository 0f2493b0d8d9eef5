// Package functions defines the types used to register user-defined
// functions with the evaluator (CustomFunctionDef, AdvancedCustomFunctionDef,
// FunctionEntry, Caller) and a name-keyed FunctionRegistry.
//
// The JSONata built-in functions are implemented in pkg/evaluator, not here;
// DefaultRegistry returns an empty registry.
//
// # Example
//
//	registry := functions.NewRegistry()
//	registry.Register("$double", double, "<n:n>")
//	fn, ok := registry.Lookup("$double")
//	if ok {
//	    result, err := fn(ctx, 21.0)
//	}
package functions

import (
	"context"
	"fmt"
)

// BuiltinFunc is the signature for built-in functions.
type BuiltinFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// CustomFunc is the signature a caller supplies when registering a
// user-defined function with the evaluator via WithCustomFunction.
type CustomFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// CustomFunctionDef pairs a custom function with its registration name and
// optional JSONata type-signature string (e.g. "<s:s>"); Signature == ""
// means no argument validation is applied.
type CustomFunctionDef struct {
	Name      string
	Signature string
	Fn        CustomFunc
}

func (CustomFunctionDef) isFunctionEntry() {}

// Caller lets an advanced custom function invoke a JSONata function value
// (a lambda or built-in) received as one of its own arguments, without the
// functions package needing to import the evaluator. fn is whatever opaque
// callable value the evaluator passed through as an argument.
type Caller interface {
	Call(ctx context.Context, fn interface{}, args ...interface{}) (interface{}, error)
}

// AdvancedCustomFunc is the signature for higher-order user-defined functions
// that receive a Caller to invoke function-valued arguments.
type AdvancedCustomFunc func(ctx context.Context, caller Caller, args ...interface{}) (interface{}, error)

// AdvancedCustomFunctionDef pairs an AdvancedCustomFunc with its registration
// name and optional JSONata type-signature string.
type AdvancedCustomFunctionDef struct {
	Name      string
	Signature string
	Fn        AdvancedCustomFunc
}

func (AdvancedCustomFunctionDef) isFunctionEntry() {}

// FunctionEntry is implemented by CustomFunctionDef and AdvancedCustomFunctionDef
// so both can be passed interchangeably to a single registration call
// (see evaluator.WithFunctions).
type FunctionEntry interface {
	isFunctionEntry()
}

// FunctionRegistry manages built-in function registration and lookup.
type FunctionRegistry struct {
	functions  map[string]BuiltinFunc
	signatures map[string]string
}

// NewRegistry creates a new function registry.
func NewRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions:  make(map[string]BuiltinFunc),
		signatures: make(map[string]string),
	}
}

// DefaultRegistry returns a new, empty registry. No built-in functions are
// registered in it; they are implemented in pkg/evaluator.
func DefaultRegistry() *FunctionRegistry {
	registry := NewRegistry()

	return registry
}

// Register adds a function to the registry.
func (r *FunctionRegistry) Register(name string, fn BuiltinFunc, signature string) {
	r.functions[name] = fn
	r.signatures[name] = signature
}

// Lookup retrieves a function from the registry.
func (r *FunctionRegistry) Lookup(name string) (BuiltinFunc, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Signature returns the signature for a function.
func (r *FunctionRegistry) Signature(name string) (string, bool) {
	sig, ok := r.signatures[name]
	return sig, ok
}

// List returns all registered function names.
func (r *FunctionRegistry) List() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	return names
}

// Example placeholder function
func exampleFunction(ctx context.Context, args ...interface{}) (interface{}, error) {
	return nil, fmt.Errorf("not implemented yet")
}
