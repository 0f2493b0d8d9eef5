package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nilforge/jsonquery/pkg/types"
)

// requireStringArg extracts args[idx] as a string, erroring with
// fnName/argPos in the message the way every $string-family builtin
// reports a type mismatch.
func requireStringArg(args []interface{}, idx int, fnName string, argPos int) (string, error) {
	s, ok := args[idx].(string)
	if !ok {
		return "", types.NewError(types.ErrArgumentCountMismatch,
			fmt.Sprintf("Argument %d of function '%s' must be a string", argPos, fnName), -1)
	}
	return s, nil
}

// fnString implements $string(value, prettify?): scalars render through
// Evaluator.toString, arrays/objects/maps go through JSON marshaling
// after preprocessForStringify substitutes "" for any embedded function
// value and rounds floats to JSON-safe precision.
func fnString(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	value := evalCtx.Data()
	if len(args) > 0 {
		value = args[0]
	}
	if value == nil {
		return nil, nil
	}
	if _, ok := value.(types.Null); ok {
		return "null", nil
	}

	prettify := false
	if len(args) > 1 && args[1] != nil {
		p, ok := args[1].(bool)
		if !ok {
			return nil, types.NewError(types.ErrArgumentCountMismatch, "The second argument of the $string function must be Boolean", -1)
		}
		prettify = p
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, types.NewError(types.ErrSerializeNonFinite, "value cannot be represented as a JSON number", -1)
		}
		return e.toString(value), nil
	case int, bool:
		return e.toString(value), nil
	case *Lambda, *FunctionDef:
		return "", nil
	case map[string]interface{}, []interface{}, *OrderedObject:
		return stringifyContainer(e, value, prettify)
	default:
		return e.toString(value), nil
	}
}

func stringifyContainer(e *Evaluator, value interface{}, prettify bool) (interface{}, error) {
	processed, err := preprocessForStringify(e, value)
	if err != nil {
		return nil, err
	}
	if containsNonFinite(processed) {
		return nil, types.NewError(types.ErrNumberTooLarge, "value cannot be represented as a JSON number", -1)
	}

	var out []byte
	if prettify {
		out, err = json.MarshalIndent(processed, "", "  ")
	} else {
		out, err = json.Marshal(processed)
	}
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// containsNonFinite reports whether value contains an Inf or NaN float64
// anywhere in its (possibly nested) structure.
func containsNonFinite(value interface{}) bool {
	switch v := value.(type) {
	case float64:
		return math.IsInf(v, 0) || math.IsNaN(v)
	case map[string]interface{}:
		for _, item := range v {
			if containsNonFinite(item) {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if containsNonFinite(item) {
				return true
			}
		}
	case *OrderedObject:
		for _, item := range v.Values {
			if containsNonFinite(item) {
				return true
			}
		}
	}
	return false
}

// preprocessForStringify walks value replacing function values with "",
// rounding floats to JSON-safe precision, and recursing through
// containers — the shape $string() needs before handing off to
// encoding/json.
func preprocessForStringify(e *Evaluator, value interface{}) (interface{}, error) {
	if isFunctionValue(value) {
		return "", nil
	}
	switch v := value.(type) {
	case types.Null:
		return nil, nil
	case float64:
		return e.roundNumberForJSON(v), nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, item := range v {
			processed, err := preprocessForStringify(e, item)
			if err != nil {
				return nil, err
			}
			result[key] = processed
		}
		return result, nil
	case *OrderedObject:
		result := &OrderedObject{
			Keys:   make([]string, 0, len(v.Keys)),
			Values: make(map[string]interface{}, len(v.Values)),
		}
		for _, key := range v.Keys {
			result.Keys = append(result.Keys, key)
			processed, err := preprocessForStringify(e, v.Values[key])
			if err != nil {
				return nil, err
			}
			result.Values[key] = processed
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			processed, err := preprocessForStringify(e, item)
			if err != nil {
				return nil, err
			}
			result[i] = processed
		}
		return result, nil
	default:
		return value, nil
	}
}

func isFunctionValue(value interface{}) bool {
	switch value.(type) {
	case *Lambda, *FunctionDef:
		return true
	default:
		return false
	}
}

// fnLength implements $length(str): Unicode character count, not bytes.
func fnLength(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	v, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("T0410: $length() argument must be a string")
	}
	return float64(utf8.RuneCountInString(v)), nil
}

// fnSubstring implements $substring(str, start, length?) with Python-style
// negative start (counts from the end) and rune-based (not byte) indexing.
func fnSubstring(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str, err := requireStringArg(args, 0, "substring", 1)
	if err != nil {
		return nil, err
	}
	start, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}

	runes := []rune(str)
	strLen := len(runes)
	startIdx := int(start)
	if startIdx < 0 {
		startIdx = strLen + startIdx
		if startIdx < 0 {
			startIdx = 0
		}
	}
	if startIdx > strLen {
		return "", nil
	}
	if len(args) == 2 {
		return string(runes[startIdx:]), nil
	}

	length, err := e.toNumber(args[2])
	if err != nil {
		return nil, err
	}
	lengthInt := int(length)
	if lengthInt <= 0 {
		return "", nil
	}
	endIdx := startIdx + lengthInt
	if endIdx > strLen {
		endIdx = strLen
	}
	return string(runes[startIdx:endIdx]), nil
}

func fnUppercase(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str, err := requireStringArg(args, 0, "uppercase", 1)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(str), nil
}

func fnLowercase(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str, err := requireStringArg(args, 0, "lowercase", 1)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(str), nil
}

var collapseWhitespace = regexp.MustCompile(`\s+`)

// fnTrim implements $trim(str): trims leading/trailing whitespace and
// collapses internal whitespace runs to a single space.
func fnTrim(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	str := strings.TrimSpace(e.toString(args[0]))
	return collapseWhitespace.ReplaceAllString(str, " "), nil
}

// fnContains implements $contains(str, pattern): pattern may be a literal
// string or a compiled regex.
func fnContains(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	str, ok := args[0].(string)
	if !ok {
		return nil, types.NewError("T0410", "Argument 1 of function 'contains' must be a string", -1)
	}
	switch pattern := args[1].(type) {
	case string:
		return strings.Contains(str, pattern), nil
	case *regexp.Regexp:
		return pattern.MatchString(str), nil
	default:
		return nil, types.NewError("T0410", "Argument 2 of function 'contains' must be a string or regex", -1)
	}
}

// fnSplit implements $split(str, separator, limit?), where separator may
// be a literal string or a compiled regex.
func fnSplit(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str, ok := args[0].(string)
	if !ok {
		return nil, types.NewError(types.ErrArgumentCountMismatch, "The first argument of the function '$split' must be a string", -1)
	}

	limit := -1
	if len(args) >= 3 && args[2] != nil {
		switch v := args[2].(type) {
		case float64:
			limit = int(v)
		case int:
			limit = v
		default:
			return nil, types.NewError(types.ErrArgumentCountMismatch, "The third argument of the function '$split' must be a number", -1)
		}
		if limit < 0 {
			return nil, types.NewError("D3020", "Third argument of $split cannot be negative", -1)
		}
		if limit == 0 {
			return []interface{}{}, nil
		}
	}

	var parts []string
	switch sep := args[1].(type) {
	case *regexp.Regexp:
		parts = sep.Split(str, -1)
	case string:
		parts = strings.Split(str, sep)
	default:
		return nil, types.NewError(types.ErrArgumentCountMismatch, "The second argument of the function '$split' must be a string or regex", -1)
	}
	if limit > 0 && len(parts) > limit {
		parts = parts[:limit]
	}

	result := make([]interface{}, len(parts))
	for i, p := range parts {
		result[i] = p
	}
	return result, nil
}

// fnJoin implements $join(array, separator?); a bare string argument
// passes through unchanged (JSONata treats it as a singleton sequence).
func fnJoin(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	if str, ok := args[0].(string); ok {
		return str, nil
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, types.NewError("T0412", "The argument of the function '$join' is not an array", -1)
	}

	separator := ""
	if len(args) == 2 && args[1] != nil {
		sep, ok := args[1].(string)
		if !ok {
			return nil, types.NewError(types.ErrArgumentCountMismatch, "The second argument of the function '$join' is not a string", -1)
		}
		separator = sep
	}

	strs := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, types.NewError("T0412", "The argument of the function '$join' is not an array of strings", -1)
		}
		strs[i] = s
	}
	return strings.Join(strs, separator), nil
}

// fnPad implements $pad(str, width, char?): a negative width pads on the
// left, positive on the right; the pad string (default a single space)
// repeats to fill, counted in runes for Unicode correctness.
func fnPad(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str := e.toString(args[0])
	strRunes := []rune(str)

	width, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}
	targetWidth := int(width)

	padRunes := []rune{' '}
	if len(args) > 2 && args[2] != nil {
		if padStr := []rune(e.toString(args[2])); len(padStr) > 0 {
			padRunes = padStr
		}
	}

	leftPad := targetWidth < 0
	if leftPad {
		targetWidth = -targetWidth
	}
	if len(strRunes) >= targetWidth {
		return str, nil
	}

	padCount := targetWidth - len(strRunes)
	padding := make([]rune, padCount)
	for i := range padding {
		padding[i] = padRunes[i%len(padRunes)]
	}

	if leftPad {
		return string(padding) + string(strRunes), nil
	}
	return string(strRunes) + string(padding), nil
}

// fnSubstringBefore implements $substringBefore(str, separator): an empty
// separator or one that never occurs yields "" and str respectively,
// matching what $substringAfter does in the mirrored cases.
func fnSubstringBefore(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	str, separator, undefined, err := substringSplitArgs(args, "substringBefore")
	if undefined || err != nil {
		return nil, err
	}
	if separator == "" {
		return "", nil
	}
	idx := strings.Index(str, separator)
	if idx < 0 {
		return str, nil
	}
	return str[:idx], nil
}

// fnSubstringAfter implements $substringAfter(str, separator).
func fnSubstringAfter(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	str, separator, undefined, err := substringSplitArgs(args, "substringAfter")
	if undefined || err != nil {
		return nil, err
	}
	if separator == "" {
		return str, nil
	}
	idx := strings.Index(str, separator)
	if idx < 0 {
		return str, nil
	}
	return str[idx+len(separator):], nil
}

// substringSplitArgs validates the shared (str, separator) argument shape
// of $substringBefore/$substringAfter. undefined is true when args[0] is
// nil, telling the caller to return JSONata's undefined without erroring.
func substringSplitArgs(args []interface{}, fnName string) (str, separator string, undefined bool, err error) {
	if args[0] == nil {
		return "", "", true, nil
	}
	str, err = requireStringArg(args, 0, fnName, 1)
	if err != nil {
		return "", "", false, err
	}
	separator, err = requireStringArg(args, 1, fnName, 2)
	if err != nil {
		return "", "", false, err
	}
	return str, separator, false, nil
}
