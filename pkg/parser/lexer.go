package parser

import (
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/nilforge/jsonquery/pkg/types"
)

const eof = -1

// Lexer converts JSONata source into a stream of tokens. The implementation
// follows Rob Pike's "Lexical Scanning in Go" technique (the same shape the
// teacher's lexer uses), extended with exact mantissa/exponent number
// accumulation and UTF-16 surrogate-pair string decoding per spec.md §4.1.
type Lexer struct {
	input  string
	length int

	// start/current track character counts; byteStart/byteCurrent track bytes,
	// so every emitted token can report both (spec.md "Positions").
	start       int
	current     int
	byteStart   int
	byteCurrent int

	err *types.Error
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, length: len(input)}
}

// Error returns the first error encountered during lexing, if any.
func (l *Lexer) Error() *types.Error { return l.err }

// Next returns the next token. Once the input is exhausted, Next returns
// TokenEOF for all subsequent calls.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()
	if l.err != nil {
		return l.errTok()
	}

	ch := l.peekRune()
	if ch == eof {
		return l.eofTok()
	}

	switch {
	case ch == '"' || ch == '\'':
		l.advanceRune()
		l.ignore()
		return l.scanString(ch)
	case ch >= '0' && ch <= '9':
		return l.scanNumber()
	case ch == '`':
		l.advanceRune()
		l.ignore()
		return l.scanEscapedName()
	case isNameStart(ch):
		return l.scanName()
	}

	// Two-char symbols take priority over one-char prefixes (e.g. ".." over ".").
	if completions := lookupSymbol2(ch); completions != nil {
		l.advanceRune()
		for _, c := range completions {
			if l.peekRune() == c.r {
				l.advanceRune()
				return l.newToken(c.tt)
			}
		}
		// Not a two-char match: fall back to the one-char symbol for ch, if any.
		if tt, ok := lookupSymbol1(ch); ok {
			return l.newToken(tt)
		}
		return l.errTok2(types.ErrSyntaxError, "Unexpected character")
	}

	if tt, ok := lookupSymbol1(ch); ok {
		l.advanceRune()
		return l.newToken(tt)
	}

	l.advanceRune()
	return l.errTok2(types.ErrSyntaxError, "Unexpected character")
}

// --- whitespace & comments -------------------------------------------------

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for isWhitespace(l.peekRune()) {
			l.advanceRune()
		}
		l.ignore()

		if l.peekRune() != '/' {
			return
		}
		// Lookahead for block comment start without consuming on a false match.
		save := l.snapshot()
		l.advanceRune()
		if l.peekRune() != '*' {
			l.restore(save)
			return
		}
		l.advanceRune()
		closed := false
		for {
			ch := l.advanceRune()
			if ch == eof {
				break
			}
			if ch == '*' && l.peekRune() == '/' {
				l.advanceRune()
				closed = true
				break
			}
		}
		if !closed {
			l.err = types.NewError(types.ErrCommentNotClosed, "Comment not terminated", l.start)
			return
		}
		l.ignore()
	}
}

// --- numbers ----------------------------------------------------------------

// scanNumber implements spec.md §4.1's exact lexing: an integer mantissa
// (accumulated as a uint64) and a decimal exponent (accumulated as an int),
// with fractional digits decrementing the exponent while shifting the
// mantissa, and a trailing e/E exponent added on top. A bare "0" is not
// extended into a decimal point unless followed by a digit, so "0..5"
// lexes as Number(0), Range, Number(5) rather than consuming "0." as a
// malformed decimal.
func (l *Lexer) scanNumber() Token {
	var mantissa uint64
	var exp int

	pushDigit := func(d int) {
		if mantissa <= (math.MaxUint64-9)/10 {
			mantissa = mantissa*10 + uint64(d)
		} else {
			// Precision beyond uint64 range: keep magnitude via the exponent,
			// drop further mantissa precision (matches typical float lexers).
			exp++
		}
	}
	pushFracDigit := func(d int) {
		if mantissa <= (math.MaxUint64-9)/10 {
			mantissa = mantissa*10 + uint64(d)
			exp--
		}
		// else: precision below what fits is simply dropped.
	}

	// Integer part: JSON forbids leading zeroes (a single "0", or a non-zero
	// digit followed by more digits).
	if l.peekRune() == '0' {
		l.advanceRune()
	} else {
		for isDigit(l.peekRune()) {
			d := int(l.advanceRune() - '0')
			pushDigit(d)
		}
	}

	// Fractional part — only if followed by at least one digit, so "0.." and
	// "5.." are not mistaken for malformed decimals.
	if l.peekRune() == '.' {
		save := l.snapshot()
		l.advanceRune()
		if isDigit(l.peekRune()) {
			for isDigit(l.peekRune()) {
				d := int(l.advanceRune() - '0')
				pushFracDigit(d)
			}
		} else {
			l.restore(save)
		}
	}

	// Exponent part.
	if ch := l.peekRune(); ch == 'e' || ch == 'E' {
		save := l.snapshot()
		l.advanceRune()
		sign := 1
		if c := l.peekRune(); c == '+' || c == '-' {
			if c == '-' {
				sign = -1
			}
			l.advanceRune()
		}
		if !isDigit(l.peekRune()) {
			l.restore(save)
		} else {
			var e int
			for isDigit(l.peekRune()) {
				e = e*10 + int(l.advanceRune()-'0')
				if e > 1_000_000 {
					e = 1_000_000 // saturate; finalizeNumber rejects as out of range anyway
				}
			}
			exp += sign * e
		}
	}

	t := l.newToken(TokenNumber)
	val, err := finalizeNumber(mantissa, exp)
	if err != nil {
		t.Type = TokenError
		l.err = types.NewError(types.ErrNumberOutOfRange, err.Error(), t.Position)
		return t
	}
	t.NumValue = val
	return t
}

// finalizeNumber converts an accumulated mantissa/exponent pair to a finite,
// normal float64, matching spec.md §4.1: conversion that yields non-finite
// or subnormal fails with S0102.
func finalizeNumber(mantissa uint64, exp int) (float64, error) {
	s := strconv.FormatUint(mantissa, 10) + "e" + strconv.Itoa(exp)
	val, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, numErr{"number out of range"}
	}
	if val != 0 && math.Abs(val) < minNormalFloat64 {
		return 0, numErr{"number out of range"}
	}
	return val, nil
}

const minNormalFloat64 = 2.2250738585072014e-308

type numErr struct{ msg string }

func (e numErr) Error() string { return e.msg }

// --- strings ----------------------------------------------------------------

// scanString decodes escapes inline (including \uXXXX and UTF-16 surrogate
// pairs) so the Token's Value is already the final string, matching
// spec.md §4.1's string escape rules exactly.
func (l *Lexer) scanString(quote rune) Token {
	var buf []rune
	for {
		ch := l.advanceRune()
		switch {
		case ch == eof:
			return l.errTok2(types.ErrStringNotClosed, "Unterminated string literal")
		case ch == quote:
			return l.strTok(string(buf))
		case ch == '\\':
			r, ok := l.scanEscape()
			if !ok {
				return l.errTok() // error already recorded by scanEscape
			}
			buf = append(buf, r)
		default:
			buf = append(buf, ch)
		}
	}
}

// scanEscape consumes one escape sequence (the leading backslash has already
// been consumed) and returns the decoded rune, handling \uXXXX high/low
// surrogate pairs per spec.md §4.1.
func (l *Lexer) scanEscape() (rune, bool) {
	ch := l.advanceRune()
	switch ch {
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case '\'':
		return '\'', true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '/':
		return '/', true
	case 'u':
		unit, ok := l.scanHex4()
		if !ok {
			l.err = types.NewError(types.ErrBadUnicodeEscape, "Invalid unicode escape", l.current)
			return 0, false
		}
		if unit >= 0xD800 && unit <= 0xDBFF {
			// High surrogate: require a following \uXXXX low surrogate.
			save := l.snapshot()
			if l.peekRune() == '\\' {
				l.advanceRune()
				if l.peekRune() == 'u' {
					l.advanceRune()
					low, ok := l.scanHex4()
					if ok && low >= 0xDC00 && low <= 0xDFFF {
						decoded := utf16.DecodeRune(rune(unit), rune(low))
						return decoded, true
					}
				}
			}
			l.restore(save)
			l.err = types.NewError(types.ErrBadUnicodeEscape, "Unpaired UTF-16 surrogate", l.current)
			return 0, false
		}
		return rune(unit), true
	default:
		l.err = types.NewError(types.ErrBadEscape, "Unsupported escape sequence", l.current)
		return 0, false
	}
}

func (l *Lexer) scanHex4() (uint32, bool) {
	var v uint32
	for i := 0; i < 4; i++ {
		ch := l.advanceRune()
		d, ok := hexDigit(ch)
		if !ok {
			return 0, false
		}
		v = v<<4 | uint32(d)
	}
	return v, true
}

func hexDigit(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	default:
		return 0, false
	}
}

// --- escaped (backtick) names ------------------------------------------------

func (l *Lexer) scanEscapedName() Token {
	for {
		ch := l.advanceRune()
		if ch == '`' {
			t := l.newToken(TokenNameEsc)
			// strip the trailing backtick already consumed from the value
			t.Value = t.Value[:len(t.Value)-1]
			return t
		}
		if ch == eof {
			return l.errTok2(types.ErrNameNotClosed, "Unterminated quoted name")
		}
	}
}

// --- names / variables / keywords -------------------------------------------

func (l *Lexer) scanName() Token {
	isVar := l.peekRune() == '$'
	if isVar {
		l.advanceRune()
		l.ignore()
	}

	for {
		ch := l.peekRune()
		if ch == eof || isWhitespace(ch) {
			break
		}
		if _, ok := lookupSymbol1(ch); ok {
			break
		}
		if lookupSymbol2(ch) != nil {
			break
		}
		l.advanceRune()
	}

	t := l.newToken(TokenName)
	if isVar {
		t.Type = TokenVariable
		return t
	}
	if tt, ok := lookupKeyword(t.Value); ok {
		t.Type = tt
	}
	return t
}

func isNameStart(r rune) bool {
	return r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

// --- low-level scanning helpers ---------------------------------------------

type lexSnapshot struct {
	current, byteCurrent int
}

func (l *Lexer) snapshot() lexSnapshot {
	return lexSnapshot{l.current, l.byteCurrent}
}

func (l *Lexer) restore(s lexSnapshot) {
	l.current, l.byteCurrent = s.current, s.byteCurrent
}

// peekRune returns the next rune without consuming it.
func (l *Lexer) peekRune() rune {
	if l.byteCurrent >= l.length {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.byteCurrent:])
	return r
}

// advanceRune consumes and returns the next rune, advancing both the
// character and byte counters (spec.md §4.1: advancing over a char
// increments the char index by 1 and the byte index by the char's UTF-8
// length).
func (l *Lexer) advanceRune() rune {
	if l.byteCurrent >= l.length {
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.byteCurrent:])
	l.byteCurrent += w
	l.current++
	return r
}

func (l *Lexer) ignore() {
	l.start = l.current
	l.byteStart = l.byteCurrent
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{
		Type:     tt,
		Value:    l.input[l.byteStart:l.byteCurrent],
		Position: l.start,
		BytePos:  l.byteStart,
		CharLen:  l.current - l.start,
		ByteLen:  l.byteCurrent - l.byteStart,
	}
	l.ignore()
	return t
}

func (l *Lexer) strTok(decoded string) Token {
	t := l.newToken(TokenString)
	t.Value = decoded
	return t
}

func (l *Lexer) eofTok() Token {
	return Token{Type: TokenEOF, Position: l.current, BytePos: l.byteCurrent}
}

func (l *Lexer) errTok() Token {
	return l.newToken(TokenError)
}

func (l *Lexer) errTok2(code types.ErrorCode, msg string) Token {
	t := l.newToken(TokenError)
	l.err = types.NewError(code, msg, t.Position).WithToken(t.Value)
	return t
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
