package fuzz

import (
	"testing"

	"github.com/nilforge/jsonquery/pkg/parser"
)

// parserFuzzSeeds covers the shapes most likely to stress the lexer/parser
// boundary: deep paths, predicates, lambdas, and common malformed inputs an
// interactive query editor would actually produce mid-keystroke.
func parserFuzzSeeds() []string {
	return []string{
		`$.name`,
		`$.items[price > 100]`,
		`$sum($.prices)`,
		`$map($.items, function($v) { $v.price * 2 })`,
		`$reduce($.items, function($acc, $v) { $acc + $v.price }, 0)`,
		`$`,
		`$$`,
		`1 + 2 * 3`,
		`(1 + 2) * (3 - 4)`,
		`a.b.c.d.e.f`,
		`$[0..10]`,
		`{"a": 1, "b": [1,2,3]}`,
		`a ~> $uppercase ~> $trim`,
		``,
		`(`,
		`$foo(`,
		`"unterminated`,
		`$.items[`,
		`function(`,
	}
}

func FuzzParserCompile(f *testing.F) {
	for _, s := range parserFuzzSeeds() {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		// The only contract under fuzzing is "never panic" — malformed input
		// must surface as an *types.Error from Compile, not a crash.
		_, _ = parser.Compile(input)
	})
}

func FuzzParserCompileIsDeterministic(f *testing.F) {
	for _, s := range parserFuzzSeeds() {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		expr1, err1 := parser.Compile(input)
		expr2, err2 := parser.Compile(input)
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("Compile(%q) disagreed on success across two calls: %v vs %v", input, err1, err2)
		}
		if err1 != nil {
			return
		}
		if expr1.String() != expr2.String() {
			t.Fatalf("Compile(%q) produced different ASTs across two calls:\n%s\nvs\n%s",
				input, expr1.String(), expr2.String())
		}
	})
}
