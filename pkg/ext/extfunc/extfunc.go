// Package extfunc provides functional programming utilities for the evaluator beyond
// the official JSONata spec.
package extfunc

import (
	"context"
	"fmt"
	"sync"

	"github.com/nilforge/jsonquery/pkg/evaluator"
	"github.com/nilforge/jsonquery/pkg/functions"
)

// AllAdvanced returns all advanced (HOF) functional utility definitions.
// These require a Caller to invoke function arguments.
func AllAdvanced() []functions.AdvancedCustomFunctionDef {
	return []functions.AdvancedCustomFunctionDef{
		Pipe(),
		Memoize(),
	}
}

// AllEntries returns all functional utility definitions as [functions.FunctionEntry],
// suitable for spreading into [gosonata.WithFunctions].
func AllEntries() []functions.FunctionEntry {
	all := AllAdvanced()
	out := make([]functions.FunctionEntry, len(all))
	for i, f := range all {
		out[i] = f
	}
	return out
}

// Pipe returns the AdvancedCustomFunctionDef for $pipe(value, fn1, fn2, ...).
// Threads value through the chain of functions left-to-right.
//
// Example:
//
//	$pipe("  hello  ", $trim, $uppercase)  =>  "HELLO"
func Pipe() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name:      "pipe",
		Signature: "",
		Fn: func(ctx context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("$pipe: requires at least 1 argument")
			}
			value := args[0]
			for i, fn := range args[1:] {
				if fn == nil {
					return nil, fmt.Errorf("$pipe: argument %d is not a function", i+2)
				}
				result, err := caller.Call(ctx, fn, value)
				if err != nil {
					return nil, fmt.Errorf("$pipe: step %d: %w", i+1, err)
				}
				value = result
			}
			return value, nil
		},
	}
}

// Memoize returns the AdvancedCustomFunctionDef for $memoize(fn).
// Returns a new function that caches results by the string representation
// of its arguments, keyed per call to $memoize:
//
//	$expensiveFn := $memoize(function($x){...})
//
// The returned function is a real JSONata callable (an *evaluator.FunctionDef),
// so it can be bound to a variable and invoked like any other function.
func Memoize() functions.AdvancedCustomFunctionDef {
	return functions.AdvancedCustomFunctionDef{
		Name:      "memoize",
		Signature: "",
		Fn: func(_ context.Context, caller functions.Caller, args ...interface{}) (interface{}, error) {
			if len(args) < 1 || args[0] == nil {
				return nil, fmt.Errorf("$memoize: requires a function argument")
			}
			m := &memoizedFunc{fn: args[0], caller: caller, cache: make(map[string]interface{})}
			return &evaluator.FunctionDef{
				Name:    "memoized",
				MinArgs: 0,
				MaxArgs: -1,
				Impl: func(ctx context.Context, _ *evaluator.Evaluator, _ *evaluator.EvalContext, callArgs []interface{}) (interface{}, error) {
					return m.call(ctx, callArgs...)
				},
			}, nil
		},
	}
}

// memoizedFunc wraps a JSONata function value with an in-memory cache keyed
// by the string form of its call arguments.
type memoizedFunc struct {
	fn     interface{}
	caller functions.Caller
	mu     sync.Mutex
	cache  map[string]interface{}
}

func (m *memoizedFunc) call(ctx context.Context, args ...interface{}) (interface{}, error) {
	key := fmt.Sprint(args...)

	m.mu.Lock()
	if v, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	result, err := m.caller.Call(ctx, m.fn, args...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = result
	m.mu.Unlock()
	return result, nil
}
