package unit_test

import (
	"testing"

	"github.com/nilforge/jsonquery/pkg/parser"
	"github.com/nilforge/jsonquery/pkg/types"
)

// tokenCase describes one lexer scan and the token stream it should produce.
// skip, when non-empty, marks a known lexer quirk rather than a test bug.
type tokenCase struct {
	name    string
	input   string
	want    []parser.Token
	wantErr bool
	skip    string
}

func runTokenCases(t *testing.T, cases []tokenCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.skip != "" {
				t.Skip(tc.skip)
			}

			lx := parser.NewLexer(tc.input)
			var got []parser.Token
			for {
				tok := lx.Next()
				if tok.Type == parser.TokenEOF {
					break
				}
				if tok.Type == parser.TokenError {
					if !tc.wantErr {
						t.Fatalf("unexpected lex error: %v", lx.Error())
					}
					return
				}
				got = append(got, tok)
			}
			if tc.wantErr {
				t.Fatal("expected a lex error, got none")
			}

			if len(got) != len(tc.want) {
				t.Fatalf("got %d tokens, want %d\ngot:  %v\nwant: %v", len(got), len(tc.want), got, tc.want)
			}
			for i, tok := range got {
				want := tc.want[i]
				if tok.Type != want.Type || tok.Value != want.Value || tok.Position != want.Position {
					t.Errorf("token %d = {%v %q @%d}, want {%v %q @%d}",
						i, tok.Type, tok.Value, tok.Position, want.Type, want.Value, want.Position)
				}
			}

			// Calling Next again past EOF must keep returning EOF, not panic or loop.
			for i := 0; i < 3; i++ {
				if tok := lx.Next(); tok.Type != parser.TokenEOF {
					t.Errorf("post-EOF call %d returned %v, want EOF", i+1, tok.Type)
				}
			}
		})
	}
}

func TestLexerWhitespaceHandling(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "no whitespace", input: "abc", want: []parser.Token{{Type: parser.TokenName, Value: "abc", Position: 0}}},
		{name: "leading whitespace", input: "   abc", want: []parser.Token{{Type: parser.TokenName, Value: "abc", Position: 3}}},
		{name: "trailing whitespace", input: "abc   ", want: []parser.Token{{Type: parser.TokenName, Value: "abc", Position: 0}}},
		{name: "mixed whitespace runes", input: " \t\n\r\vabc", want: []parser.Token{{Type: parser.TokenName, Value: "abc", Position: 5}}},
		{name: "empty input", input: "", want: nil},
		{name: "only whitespace", input: "   \t\n  ", want: nil},
	})
}

func TestLexerStringLiterals(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "double quoted", input: `"hello"`, want: []parser.Token{{Type: parser.TokenString, Value: "hello", Position: 1}}},
		{name: "single quoted", input: `'world'`, want: []parser.Token{{Type: parser.TokenString, Value: "world", Position: 1}}},
		{name: "empty string", input: `""`, want: []parser.Token{{Type: parser.TokenString, Value: "", Position: 1}}},
		{name: "contains spaces", input: `"hello world"`, want: []parser.Token{{Type: parser.TokenString, Value: "hello world", Position: 1}}},
		{name: "escape sequences decoded", input: `"hello\nworld\t!"`, want: []parser.Token{{Type: parser.TokenString, Value: "hello\nworld\t!", Position: 1}}},
		{name: "escaped quotes", input: `"he said \"hi\""`, want: []parser.Token{{Type: parser.TokenString, Value: `he said "hi"`, Position: 1}}},
		{name: "unterminated double quote", input: `"hello`, wantErr: true},
		{name: "unterminated single quote", input: `'hello`, wantErr: true},
	})
}

func TestLexerNumberLiterals(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "integer", input: "123", want: []parser.Token{{Type: parser.TokenNumber, Value: "123", Position: 0}}},
		{name: "zero", input: "0", want: []parser.Token{{Type: parser.TokenNumber, Value: "0", Position: 0}}},
		{name: "decimal", input: "3.14", want: []parser.Token{{Type: parser.TokenNumber, Value: "3.14", Position: 0}}},
		{name: "scientific", input: "1e10", want: []parser.Token{{Type: parser.TokenNumber, Value: "1e10", Position: 0}}},
		{name: "scientific with plus", input: "1e+10", want: []parser.Token{{Type: parser.TokenNumber, Value: "1e+10", Position: 0}}},
		{name: "scientific with minus", input: "1e-10", want: []parser.Token{{Type: parser.TokenNumber, Value: "1e-10", Position: 0}}},
		{name: "decimal with exponent", input: "3.14e-2", want: []parser.Token{{Type: parser.TokenNumber, Value: "3.14e-2", Position: 0}}},
		{
			name:  "range operator does not extend the number",
			input: "1..5",
			want: []parser.Token{
				{Type: parser.TokenNumber, Value: "1", Position: 0},
				{Type: parser.TokenRange, Value: "..", Position: 1},
				{Type: parser.TokenNumber, Value: "5", Position: 3},
			},
		},
	})
}

func TestLexerNamesAndEscapedNames(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "simple name", input: "abc", want: []parser.Token{{Type: parser.TokenName, Value: "abc", Position: 0}}},
		{name: "underscores", input: "hello_world", want: []parser.Token{{Type: parser.TokenName, Value: "hello_world", Position: 0}}},
		{name: "digits", input: "field123", want: []parser.Token{{Type: parser.TokenName, Value: "field123", Position: 0}}},
		{name: "backtick-escaped", input: "`Product Name`", want: []parser.Token{{Type: parser.TokenNameEsc, Value: "Product Name", Position: 1}}},
		{name: "backtick-escaped with dashes", input: "`field-with-dashes`", want: []parser.Token{{Type: parser.TokenNameEsc, Value: "field-with-dashes", Position: 1}}},
		{name: "unterminated backtick", input: "`hello", wantErr: true},
	})
}

func TestLexerVariableReferences(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "context variable", input: "$", want: []parser.Token{{Type: parser.TokenVariable, Value: "", Position: 1}}},
		{name: "parent context variable", input: "$$", want: []parser.Token{{Type: parser.TokenVariable, Value: "$", Position: 1}}},
		{name: "named variable", input: "$var", want: []parser.Token{{Type: parser.TokenVariable, Value: "var", Position: 1}}},
		{name: "long variable name", input: "$myVariable123", want: []parser.Token{{Type: parser.TokenVariable, Value: "myVariable123", Position: 1}}},
	})
}

func TestLexerKeywords(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "and", input: "and", want: []parser.Token{{Type: parser.TokenAnd, Value: "and", Position: 0}}},
		{name: "or", input: "or", want: []parser.Token{{Type: parser.TokenOr, Value: "or", Position: 0}}},
		{name: "in", input: "in", want: []parser.Token{{Type: parser.TokenIn, Value: "in", Position: 0}}},
		{name: "true", input: "true", want: []parser.Token{{Type: parser.TokenTrue, Value: "true", Position: 0}}},
		{name: "false", input: "false", want: []parser.Token{{Type: parser.TokenFalse, Value: "false", Position: 0}}},
		{name: "null", input: "null", want: []parser.Token{{Type: parser.TokenNull, Value: "null", Position: 0}}},
	})
}

func TestLexerOperatorSymbols(t *testing.T) {
	single := []tokenCase{
		{name: "bracket open", input: "[", want: []parser.Token{{Type: parser.TokenBracketOpen, Value: "[", Position: 0}}},
		{name: "bracket close", input: "]", want: []parser.Token{{Type: parser.TokenBracketClose, Value: "]", Position: 0}}},
		{name: "brace open", input: "{", want: []parser.Token{{Type: parser.TokenBraceOpen, Value: "{", Position: 0}}},
		{name: "brace close", input: "}", want: []parser.Token{{Type: parser.TokenBraceClose, Value: "}", Position: 0}}},
		{name: "paren open", input: "(", want: []parser.Token{{Type: parser.TokenParenOpen, Value: "(", Position: 0}}},
		{name: "paren close", input: ")", want: []parser.Token{{Type: parser.TokenParenClose, Value: ")", Position: 0}}},
		{name: "dot", input: ".", want: []parser.Token{{Type: parser.TokenDot, Value: ".", Position: 0}}},
		{name: "comma", input: ",", want: []parser.Token{{Type: parser.TokenComma, Value: ",", Position: 0}}},
		{name: "semicolon", input: ";", want: []parser.Token{{Type: parser.TokenSemicolon, Value: ";", Position: 0}}},
		{name: "colon", input: ":", want: []parser.Token{{Type: parser.TokenColon, Value: ":", Position: 0}}},
		{name: "question", input: "?", want: []parser.Token{{Type: parser.TokenCondition, Value: "?", Position: 0}}},
		{name: "plus", input: "+", want: []parser.Token{{Type: parser.TokenPlus, Value: "+", Position: 0}}},
		{name: "minus", input: "-", want: []parser.Token{{Type: parser.TokenMinus, Value: "-", Position: 0}}},
		{name: "mult", input: "*", want: []parser.Token{{Type: parser.TokenMult, Value: "*", Position: 0}}},
		{name: "div standalone", input: "/", want: []parser.Token{{Type: parser.TokenDiv, Value: "/", Position: 0}}},
		{name: "div between operands", input: "1/2", want: []parser.Token{
			{Type: parser.TokenNumber, Value: "1", Position: 0},
			{Type: parser.TokenDiv, Value: "/", Position: 1},
			{Type: parser.TokenNumber, Value: "2", Position: 2},
		}},
		{name: "mod", input: "%", want: []parser.Token{{Type: parser.TokenMod, Value: "%", Position: 0}}},
		{name: "pipe", input: "|", want: []parser.Token{{Type: parser.TokenPipe, Value: "|", Position: 0}}},
		{name: "equal", input: "=", want: []parser.Token{{Type: parser.TokenEqual, Value: "=", Position: 0}}},
		{name: "less", input: "<", want: []parser.Token{{Type: parser.TokenLess, Value: "<", Position: 0}}},
		{name: "greater", input: ">", want: []parser.Token{{Type: parser.TokenGreater, Value: ">", Position: 0}}},
		{name: "sort", input: "^", want: []parser.Token{{Type: parser.TokenSort, Value: "^", Position: 0}}},
		{name: "concat", input: "&", want: []parser.Token{{Type: parser.TokenConcat, Value: "&", Position: 0}}},
	}
	double := []tokenCase{
		{name: "not equal", input: "!=", want: []parser.Token{{Type: parser.TokenNotEqual, Value: "!=", Position: 0}}},
		{name: "less equal", input: "<=", want: []parser.Token{{Type: parser.TokenLessEqual, Value: "<=", Position: 0}}},
		{name: "greater equal", input: ">=", want: []parser.Token{{Type: parser.TokenGreaterEqual, Value: ">=", Position: 0}}},
		{name: "range", input: "..", want: []parser.Token{{Type: parser.TokenRange, Value: "..", Position: 0}}},
		{name: "apply", input: "~>", want: []parser.Token{{Type: parser.TokenApply, Value: "~>", Position: 0}}},
		{name: "assign", input: ":=", want: []parser.Token{{Type: parser.TokenAssign, Value: ":=", Position: 0}}},
		{name: "descendent", input: "**", want: []parser.Token{{Type: parser.TokenDescendent, Value: "**", Position: 0}}},
	}

	t.Run("single char", func(t *testing.T) { runTokenCases(t, single) })
	t.Run("two char", func(t *testing.T) { runTokenCases(t, double) })
	t.Run("adjacent, no spaces", func(t *testing.T) {
		// Adjacent one-char operators lex as one token each.
		runTokenCases(t, []tokenCase{{
			name:  "plus minus mult",
			input: "+-*",
			want: []parser.Token{
				{Type: parser.TokenPlus, Value: "+", Position: 0},
				{Type: parser.TokenMinus, Value: "-", Position: 1},
				{Type: parser.TokenMult, Value: "*", Position: 2},
			},
		}})
	})
}

// The lexer has no regex-literal token: '/' always lexes as TokenDiv and the
// text between slashes lexes as ordinary tokens.
func TestLexerSlashIsAlwaysDivision(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{name: "simple pattern", input: "/ab+/", want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenName, Value: "ab", Position: 1},
			{Type: parser.TokenPlus, Value: "+", Position: 3},
			{Type: parser.TokenDiv, Value: "/", Position: 4},
		}},
		{name: "single flag letter is a name", input: "/pattern/i", want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenName, Value: "pattern", Position: 1},
			{Type: parser.TokenDiv, Value: "/", Position: 8},
			{Type: parser.TokenName, Value: "i", Position: 9},
		}},
		{name: "multiple flag letters are one name", input: "/test/ims", want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenName, Value: "test", Position: 1},
			{Type: parser.TokenDiv, Value: "/", Position: 5},
			{Type: parser.TokenName, Value: "ims", Position: 6},
		}},
		{name: "backslash before slash stays in the name", input: `/a\/b/`, want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenName, Value: `a\`, Position: 1},
			{Type: parser.TokenDiv, Value: "/", Position: 3},
			{Type: parser.TokenName, Value: "b", Position: 4},
			{Type: parser.TokenDiv, Value: "/", Position: 5},
		}},
		{name: "character class", input: "/[a-z]+/", want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenBracketOpen, Value: "[", Position: 1},
			{Type: parser.TokenName, Value: "a", Position: 2},
			{Type: parser.TokenMinus, Value: "-", Position: 3},
			{Type: parser.TokenName, Value: "z", Position: 4},
			{Type: parser.TokenBracketClose, Value: "]", Position: 5},
			{Type: parser.TokenPlus, Value: "+", Position: 6},
			{Type: parser.TokenDiv, Value: "/", Position: 7},
		}},
		{name: "unclosed pattern is not a lex error", input: "/pattern", want: []parser.Token{
			{Type: parser.TokenDiv, Value: "/", Position: 0},
			{Type: parser.TokenName, Value: "pattern", Position: 1},
		}},
		{
			name: "slash between numbers", input: "10/5",
			want: []parser.Token{
				{Type: parser.TokenNumber, Value: "10", Position: 0},
				{Type: parser.TokenDiv, Value: "/", Position: 2},
				{Type: parser.TokenNumber, Value: "5", Position: 3},
			},
		},
	})
}

func TestLexerRealisticExpressions(t *testing.T) {
	runTokenCases(t, []tokenCase{
		{
			name:  "root-relative path",
			input: "$.name",
			want: []parser.Token{
				{Type: parser.TokenVariable, Value: "", Position: 1},
				{Type: parser.TokenDot, Value: ".", Position: 1},
				{Type: parser.TokenName, Value: "name", Position: 2},
			},
		},
		{
			name:  "array filter predicate",
			input: "items[price > 100]",
			want: []parser.Token{
				{Type: parser.TokenName, Value: "items", Position: 0},
				{Type: parser.TokenBracketOpen, Value: "[", Position: 5},
				{Type: parser.TokenName, Value: "price", Position: 6},
				{Type: parser.TokenGreater, Value: ">", Position: 12},
				{Type: parser.TokenNumber, Value: "100", Position: 14},
				{Type: parser.TokenBracketClose, Value: "]", Position: 17},
			},
		},
		{
			name:  "function call",
			input: `$sum(items.price)`,
			want: []parser.Token{
				{Type: parser.TokenVariable, Value: "sum", Position: 1},
				{Type: parser.TokenParenOpen, Value: "(", Position: 4},
				{Type: parser.TokenName, Value: "items", Position: 5},
				{Type: parser.TokenDot, Value: ".", Position: 10},
				{Type: parser.TokenName, Value: "price", Position: 11},
				{Type: parser.TokenParenClose, Value: ")", Position: 16},
			},
		},
		{
			name:  "object construction",
			input: `{"name": $name, "age": $age}`,
			want: []parser.Token{
				{Type: parser.TokenBraceOpen, Value: "{", Position: 0},
				{Type: parser.TokenString, Value: "name", Position: 2},
				{Type: parser.TokenColon, Value: ":", Position: 7},
				{Type: parser.TokenVariable, Value: "name", Position: 10},
				{Type: parser.TokenComma, Value: ",", Position: 14},
				{Type: parser.TokenString, Value: "age", Position: 17},
				{Type: parser.TokenColon, Value: ":", Position: 21},
				{Type: parser.TokenVariable, Value: "age", Position: 24},
				{Type: parser.TokenBraceClose, Value: "}", Position: 27},
			},
		},
		{
			name:  "chained boolean comparison",
			input: "price > 100 and quantity < 50",
			want: []parser.Token{
				{Type: parser.TokenName, Value: "price", Position: 0},
				{Type: parser.TokenGreater, Value: ">", Position: 6},
				{Type: parser.TokenNumber, Value: "100", Position: 8},
				{Type: parser.TokenAnd, Value: "and", Position: 12},
				{Type: parser.TokenName, Value: "quantity", Position: 16},
				{Type: parser.TokenLess, Value: "<", Position: 25},
				{Type: parser.TokenNumber, Value: "50", Position: 27},
			},
		},
		{
			name:  "mixed arithmetic with division",
			input: "1+2/3",
			want: []parser.Token{
				{Type: parser.TokenNumber, Value: "1", Position: 0},
				{Type: parser.TokenPlus, Value: "+", Position: 1},
				{Type: parser.TokenNumber, Value: "2", Position: 2},
				{Type: parser.TokenDiv, Value: "/", Position: 3},
				{Type: parser.TokenNumber, Value: "3", Position: 4},
			},
		},
	})
}

func TestTokenTypeStringer(t *testing.T) {
	tests := []struct {
		tt   parser.TokenType
		want string
	}{
		{parser.TokenEOF, "(eof)"},
		{parser.TokenError, "(error)"},
		{parser.TokenString, "(string)"},
		{parser.TokenNumber, "(number)"},
		{parser.TokenName, "(name)"},
		{parser.TokenVariable, "(variable)"},
		{parser.TokenPlus, "+"},
		{parser.TokenAnd, "and"},
		{parser.TokenNotEqual, "!="},
		{parser.TokenRange, ".."},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.tt.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLexerErrorTokenCarriesTypesError(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode types.ErrorCode
	}{
		{"unterminated double-quoted string", `"hello`, types.ErrStringNotClosed},
		{"unterminated single-quoted string", `'hello`, types.ErrStringNotClosed},
		{"unterminated escaped name", "`hello", types.ErrNameNotClosed},
		{"unterminated comment", "/* hello", types.ErrCommentNotClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lx := parser.NewLexer(tt.input)
			tok := lx.Next()
			if tok.Type != parser.TokenError {
				t.Fatalf("Next() = %v, want an error token", tok.Type)
			}
			err := lx.Error()
			if err == nil {
				t.Fatal("Error() = nil after an error token")
			}
			if err.Code != tt.wantCode {
				t.Errorf("Error().Code = %s, want %s", err.Code, tt.wantCode)
			}
		})
	}
}
