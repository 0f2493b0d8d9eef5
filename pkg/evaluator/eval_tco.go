package evaluator

import "context"

type recurseDepthKey struct{}

// tcoTailKey marks a context as being in tail-call position; when set, a
// tail call returns a tcoThunk instead of recursing, so the trampoline loop
// in the caller can run it without growing the Go call stack.
type tcoTailKey struct{}

// tcoThunk is a pending tail-call invocation, trampolined by the lambda
// evaluator instead of being called recursively.
type tcoThunk struct {
	lambda *Lambda
	args   []interface{}
}

// getRecurseDepthPtr returns the shared recursion-depth counter stashed on
// ctx by withNewRecurseDepthPtr, or nil if none was ever installed.
func getRecurseDepthPtr(ctx context.Context) *int {
	p, _ := ctx.Value(recurseDepthKey{}).(*int)
	return p
}

// withNewRecurseDepthPtr attaches a fresh recursion-depth counter to ctx;
// called once per top-level evaluation so every nested lambda call shares
// the same counter.
func withNewRecurseDepthPtr(ctx context.Context) context.Context {
	depth := 0
	return context.WithValue(ctx, recurseDepthKey{}, &depth)
}

// setTCOTail returns a context flagged for (or explicitly cleared of) tail
// position.
func setTCOTail(ctx context.Context, tail bool) context.Context {
	return context.WithValue(ctx, tcoTailKey{}, tail)
}

func withTCOTail(ctx context.Context) context.Context    { return setTCOTail(ctx, true) }
func withoutTCOTail(ctx context.Context) context.Context { return setTCOTail(ctx, false) }

func isTCOTail(ctx context.Context) bool {
	tail, _ := ctx.Value(tcoTailKey{}).(bool)
	return tail
}
