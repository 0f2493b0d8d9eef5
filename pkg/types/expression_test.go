package types

import (
	"errors"
	"testing"
)

func TestNewExpressionRoundTrip(t *testing.T) {
	ast := &ASTNode{Type: NodeString, Str: "hello"}
	expr := NewExpression(ast, "\"hello\"", nil)

	if expr.AST() != ast {
		t.Errorf("AST() did not return the node passed to NewExpression")
	}
	if got, want := expr.Source(), "\"hello\""; got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
	if got, want := expr.String(), expr.Source(); got != want {
		t.Errorf("String() = %q, want Source() %q", got, want)
	}
	if len(expr.Errors()) != 0 {
		t.Errorf("Errors() = %v, want empty", expr.Errors())
	}
}

func TestExpressionAddError(t *testing.T) {
	expr := NewExpression(&ASTNode{Type: NodeNumber, Num: 1.0}, "1", nil)

	e1 := errors.New("first")
	e2 := NewError(ErrSyntaxError, "second", 3)
	expr.AddError(e1)
	expr.AddError(e2)

	errs := expr.Errors()
	if len(errs) != 2 {
		t.Fatalf("Errors() len = %d, want 2", len(errs))
	}
	if errs[0] != e1 || errs[1] != e2 {
		t.Errorf("Errors() did not preserve insertion order")
	}
}

func TestNewExpressionNilArena(t *testing.T) {
	// arena may be nil when nodes are built by hand, e.g. directly in tests.
	expr := NewExpression(&ASTNode{Type: NodeNull}, "null", nil)
	if expr.AST() == nil {
		t.Fatal("AST() = nil")
	}
}
