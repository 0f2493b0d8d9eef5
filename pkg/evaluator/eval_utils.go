package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nilforge/jsonquery/pkg/types"
)

// scalarTruthy handles the type rules shared by every truthiness variant
// (bool/string/number/null), returning ok=false when value needs
// container- or function-specific handling from the caller.
func scalarTruthy(value interface{}) (result bool, ok bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		return v != "", true
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	case types.Null:
		return false, true
	case map[string]interface{}:
		return len(v) > 0, true
	case *OrderedObject:
		return len(v.Values) > 0, true
	default:
		return false, false
	}
}

// isTruthy is the general-purpose truthiness test used by path predicates
// and boolean contexts outside $boolean()/the default operator: a non-empty
// array is truthy regardless of its elements' own truthiness, and an
// unrecognized type (including functions) is truthy.
func (e *Evaluator) isTruthy(value interface{}) bool {
	if value == nil {
		return false
	}
	if result, ok := scalarTruthy(value); ok {
		return result
	}
	if arr, isArray := value.([]interface{}); isArray {
		return len(arr) > 0
	}
	return true
}

// isTruthyBoolean implements $boolean(): functions are always false, and an
// array is truthy only if some element is (recursively) truthy.
func (e *Evaluator) isTruthyBoolean(value interface{}) bool {
	if value == nil {
		return false
	}
	if result, ok := scalarTruthy(value); ok {
		return result
	}
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if e.isTruthyBoolean(item) {
				return true
			}
		}
		return false
	case *Lambda, *FunctionDef:
		return false
	default:
		return true
	}
}

// isTruthyForDefault implements the default operator (?:): like
// isTruthyBoolean's array rule, but any unrecognized type — including
// functions — is falsy rather than truthy.
func (e *Evaluator) isTruthyForDefault(value interface{}) bool {
	if value == nil {
		return false
	}
	if result, ok := scalarTruthy(value); ok {
		return result
	}
	if arr, isArray := value.([]interface{}); isArray {
		for _, item := range arr {
			if e.isTruthyForDefault(item) {
				return true
			}
		}
		return false
	}
	return false
}

// toArray wraps a scalar as a single-element array; nil becomes empty and
// an already-array value passes through unchanged.
func (e *Evaluator) toArray(value interface{}) ([]interface{}, error) {
	if value == nil {
		return []interface{}{}, nil
	}
	if arr, ok := value.([]interface{}); ok {
		return arr, nil
	}
	return []interface{}{value}, nil
}

// toNumber converts value to float64 per JSONata coercion rules (bool
// true/false -> 1/0, numeric string parsed), erroring on nil, null, and
// anything else that has no numeric reading.
func (e *Evaluator) toNumber(value interface{}) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("undefined value")
	}
	switch v := value.(type) {
	case types.Null:
		return 0, fmt.Errorf("null value")
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

// tryNumber reports the numeric reading of value when it is already one of
// Go's numeric kinds, without attempting string parsing or bool coercion —
// callers that need those conversions (e.g. the $number() builtin, the
// equality operator) apply them explicitly so tryNumber can stay a cheap,
// unambiguous probe.
func (e *Evaluator) tryNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// toString renders value the way JSONata's string concatenation and
// $string() do: numbers through formatNumberForString, everything without
// a dedicated case falling back to its JSON encoding.
func (e *Evaluator) toString(value interface{}) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case types.Null:
		return "null"
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return e.formatNumberForString(v)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(b)
	}
}

// roundNumberForJSON rounds v to 15 significant digits, the precision
// JSONata numbers are held to on their way out to JSON.
func (e *Evaluator) roundNumberForJSON(v float64) float64 {
	str := strconv.FormatFloat(v, 'g', 15, 64)
	rounded, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return v
	}
	return rounded
}

// formatNumberForString renders v the way JSONata's string coercion does:
// scientific notation (exponent without a leading zero) outside
// [1e-6, 1e21), fixed-point with trailing zeros trimmed inside it.
func (e *Evaluator) formatNumberForString(v float64) string {
	rounded := e.roundNumberForJSON(v)
	abs := math.Abs(rounded)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		str := strconv.FormatFloat(rounded, 'g', -1, 64)
		str = strings.ReplaceAll(str, "e-0", "e-")
		str = strings.ReplaceAll(str, "e+0", "e+")
		str = strings.ReplaceAll(str, "E-0", "E-")
		str = strings.ReplaceAll(str, "E+0", "E+")
		return str
	}

	str := strconv.FormatFloat(rounded, 'f', 15, 64)
	str = e.cleanFloatingPointArtifacts(str, rounded)
	str = strings.TrimRight(str, "0")
	str = strings.TrimRight(str, ".")
	if str == "" || str == "-0" {
		return "0"
	}
	return str
}

// cleanFloatingPointArtifacts re-rounds str at the first run of 4+ repeated
// 9s or 0s in its decimal part — evidence of binary-float representation
// error (90.569999999999993 should print as 90.57) rather than a value the
// source expression actually produced.
func (e *Evaluator) cleanFloatingPointArtifacts(str string, rounded float64) string {
	isNinesRun := true
	idx := strings.Index(str, "9999")
	if idx < 0 {
		isNinesRun = false
		idx = strings.Index(str, "0000")
	}
	if idx < 0 {
		return str
	}

	parts := strings.Split(str, ".")
	if len(parts) != 2 {
		return str
	}
	if !isNinesRun && idx <= len(parts[0]) {
		return str // run of zeros before the decimal point, not an artifact
	}
	decimalPos := idx - len(parts[0]) - 1
	if decimalPos <= 0 || decimalPos >= len(parts[1]) {
		return str
	}

	factor := math.Pow(10, float64(decimalPos))
	return strconv.FormatFloat(math.Round(rounded*factor)/factor, 'f', decimalPos, 64)
}
