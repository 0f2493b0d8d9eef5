package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nilforge/jsonquery/pkg/types"
)

// matchResultKeys gives $match's and $replace's match objects the same
// shape: { match, index, groups }.
var matchResultKeys = []string{"match", "index", "groups"}

func newMatchObject(match string, index float64, groups []interface{}) *OrderedObject {
	if groups == nil {
		groups = []interface{}{}
	}
	return &OrderedObject{
		Keys: append([]string(nil), matchResultKeys...),
		Values: map[string]interface{}{
			"match":  match,
			"index":  index,
			"groups": groups,
		},
	}
}

// fieldOf reads a named field off a match object, whichever object
// representation it happens to be (plain map from a custom matcher
// function, or *OrderedObject as produced internally).
func fieldOf(obj interface{}, key string) interface{} {
	switch m := obj.(type) {
	case map[string]interface{}:
		return m[key]
	case *OrderedObject:
		return m.Values[key]
	default:
		return nil
	}
}

// matchWithCustomMatcher drives a user-supplied matcher function following
// JSONata's custom-matcher protocol: matcher(str) returns a match object
// {match, start, end, groups, next}, or null when exhausted; next() (no
// args) advances to the following match.
func matchWithCustomMatcher(ctx context.Context, e *Evaluator, evalCtx *EvalContext, matcher interface{}, str string, limit int) ([]interface{}, error) {
	result := make([]interface{}, 0)
	current, err := e.callHOFFn(ctx, evalCtx, matcher, []interface{}{str})
	if err != nil {
		return nil, err
	}

	for count := 0; current != nil; count++ {
		if limit >= 0 && count >= limit {
			break
		}

		matchStr, _ := fieldOf(current, "match").(string)
		start, _ := fieldOf(current, "start").(float64)
		groups, _ := fieldOf(current, "groups").([]interface{})
		result = append(result, newMatchObject(matchStr, start, groups))

		nextFn := fieldOf(current, "next")
		if nextFn == nil {
			break
		}
		current, err = e.callHOFFn(ctx, evalCtx, nextFn, nil)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// fnMatch implements $match(str, pattern, limit?): pattern may be a regex
// literal, a plain string (matched literally), or a custom matcher function.
func fnMatch(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	str, ok := args[0].(string)
	if !ok {
		str = fmt.Sprint(args[0])
	}

	limit := -1
	if len(args) > 2 && args[2] != nil {
		limitNum, err := e.toNumber(args[2])
		if err != nil {
			return nil, err
		}
		limit = int(limitNum)
	}

	var regexPattern *regexp.Regexp
	switch pattern := args[1].(type) {
	case string:
		compiled, err := getOrCompileRegex(regexp.QuoteMeta(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		regexPattern = compiled
	case *regexp.Regexp:
		regexPattern = pattern
	case *Lambda, *FunctionDef:
		return matchWithCustomMatcher(ctx, e, evalCtx, args[1], str, limit)
	default:
		return nil, fmt.Errorf("pattern must be string or regex")
	}

	matches := regexPattern.FindAllStringSubmatchIndex(str, limit)
	result := make([]interface{}, len(matches))
	for i, m := range matches {
		groups := make([]interface{}, 0, len(m)/2-1)
		for j := 1; j < len(m)/2; j++ {
			start, end := m[2*j], m[2*j+1]
			if start >= 0 && end >= 0 {
				groups = append(groups, str[start:end])
			} else {
				groups = append(groups, nil)
			}
		}
		result[i] = newMatchObject(str[m[0]:m[1]], float64(m[0]), groups)
	}
	return result, nil
}

// expandReplacementTemplate expands a $replace template string: $0 is the
// full match, $1..$N are capture groups (1-indexed), $$ is a literal '$',
// and unrecognized named references like $w are kept as literal text.
// A run of digits resolves via greedy backtracking — the longest numeric
// prefix that names an existing group wins, with the remaining digits
// emitted as literal text; a lone digit naming no group expands to "".
func expandReplacementTemplate(template string, groups []string, fullMatch string) string {
	buf := acquireBuf()
	defer releaseBuf(buf)

	for i := 0; i < len(template); {
		if template[i] != '$' {
			buf.WriteByte(template[i])
			i++
			continue
		}
		i++
		if i >= len(template) {
			buf.WriteByte('$')
			break
		}

		switch c := template[i]; {
		case c == '$':
			buf.WriteByte('$')
			i++
		case c == '0':
			buf.WriteString(fullMatch)
			i++
		case c >= '1' && c <= '9':
			i = expandNumericRef(buf, template, i, groups)
		case isASCIILetter(c) || c == '_':
			j := i
			for j < len(template) && (isASCIILetter(template[j]) || isASCIIDigit(template[j]) || template[j] == '_') {
				j++
			}
			buf.WriteByte('$')
			buf.WriteString(template[i:j])
			i = j
		default:
			buf.WriteByte('$')
		}
	}
	return buf.String()
}

func isASCIILetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isASCIIDigit(c byte) bool  { return c >= '0' && c <= '9' }

// expandNumericRef consumes the run of digits at template[i:] and writes
// the resolved group reference (or literal fallback) to buf, returning the
// index just past the consumed digits.
func expandNumericRef(buf interface{ WriteString(string) (int, error) }, template string, i int, groups []string) int {
	j := i
	for j < len(template) && isASCIIDigit(template[j]) {
		j++
	}
	digits := template[i:j]

	for end := len(digits); end >= 1; end-- {
		n, _ := strconv.Atoi(digits[:end])
		if n >= 1 && n <= len(groups) {
			buf.WriteString(groups[n-1])
			buf.WriteString(digits[end:])
			return j
		}
		if end == 1 {
			buf.WriteString(digits[1:])
			return j
		}
	}
	buf.WriteString(digits)
	return j
}

// replaceLiteral implements $replace for a plain-string pattern: a literal
// substring match, not a regex.
func replaceLiteral(str, pattern string, replacement interface{}, limit int) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("D3010: pattern cannot be empty")
	}
	repl := fmt.Sprint(replacement)
	if limit < 0 {
		return strings.ReplaceAll(str, pattern, repl), nil
	}
	return strings.Replace(str, pattern, repl, limit), nil
}

// replaceRegex implements $replace for a regex pattern, dispatching each
// match's replacement text to either a lambda/function callback (called
// with the match object) or a $0/$1.. template string.
func replaceRegex(ctx context.Context, e *Evaluator, evalCtx *EvalContext, str string, pattern *regexp.Regexp, replacement interface{}, limit int) (string, error) {
	if pattern.String() == "" {
		return "", fmt.Errorf("D3010: pattern cannot be empty")
	}

	maxMatches := -1
	if limit >= 0 {
		maxMatches = limit
	}
	allMatches := pattern.FindAllStringSubmatchIndex(str, maxMatches)

	buf := acquireBuf()
	defer releaseBuf(buf)

	lastEnd := 0
	for _, m := range allMatches {
		matchStart, matchEnd := m[0], m[1]
		if matchStart == matchEnd {
			return "", types.NewError(types.ErrZeroLengthMatch, "regular expression match did not advance position", -1)
		}
		buf.WriteString(str[lastEnd:matchStart])

		fullMatch := str[matchStart:matchEnd]
		numGroups := (len(m) - 2) / 2
		groups := make([]string, numGroups)
		for j := 0; j < numGroups; j++ {
			gStart, gEnd := m[2+2*j], m[3+2*j]
			if gStart >= 0 && gEnd >= 0 {
				groups[j] = str[gStart:gEnd]
			}
		}

		switch replacement.(type) {
		case *Lambda, *FunctionDef:
			matchObj := newMatchObject(fullMatch, float64(matchStart), toInterfaceSlice(groups))
			result, err := e.callHOFFn(ctx, evalCtx, replacement, []interface{}{matchObj})
			if err != nil {
				return "", err
			}
			if result != nil {
				resultStr, ok := result.(string)
				if !ok {
					return "", types.NewError(types.ErrReplacementNotString, "replacement function must return a string", -1)
				}
				buf.WriteString(resultStr)
			}
		default:
			buf.WriteString(expandReplacementTemplate(fmt.Sprint(replacement), groups, fullMatch))
		}

		lastEnd = matchEnd
	}
	buf.WriteString(str[lastEnd:])
	return buf.String(), nil
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// fnReplace implements $replace(str, pattern, replacement, limit?).
func fnReplace(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str, ok := args[0].(string)
	if !ok {
		str = fmt.Sprint(args[0])
	}

	limit := -1
	if len(args) > 3 && args[3] != nil {
		limitNum, err := e.toNumber(args[3])
		if err != nil {
			return nil, err
		}
		limit = int(limitNum)
		if limit < 0 {
			return nil, fmt.Errorf("D3011: limit must be non-negative")
		}
	}

	switch pattern := args[1].(type) {
	case string:
		return replaceLiteral(str, pattern, args[2], limit)
	case *regexp.Regexp:
		return replaceRegex(ctx, e, evalCtx, str, pattern, args[2], limit)
	default:
		return nil, fmt.Errorf("pattern must be string or regex")
	}
}
