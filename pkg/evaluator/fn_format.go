package evaluator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nilforge/jsonquery/pkg/types"
)

func fnFormatNumber(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return e.formatNumberForString(num), nil
	}

	picture := e.toString(args[1])
	format := NewDecimalFormat()
	if len(args) > 2 && args[2] != nil {
		applyDecimalFormatOptions(&format, decimalFormatOptions(args[2]))
	}

	formatted, err := FormatNumberWithPicture(num, picture, format)
	if err != nil {
		return nil, types.NewError(types.ErrorCode(err.Error()[:5]), err.Error()[7:], -1)
	}
	return formatted, nil
}

// decimalFormatOptions normalizes the third $formatNumber argument — an
// OrderedObject from a JSONata object literal, or a plain map when called
// from Go — into a key/value lookup.
func decimalFormatOptions(v interface{}) map[string]interface{} {
	switch opts := v.(type) {
	case *OrderedObject:
		return opts.Values
	case map[string]interface{}:
		return opts
	default:
		return nil
	}
}

// applyDecimalFormatOptions overlays the XPath decimal-format option names
// (decimal-separator, grouping-separator, ...) present in opts onto format.
func applyDecimalFormatOptions(format *DecimalFormat, opts map[string]interface{}) {
	if opts == nil {
		return
	}
	setRune := func(key string, dst *rune) {
		if s, ok := opts[key].(string); ok {
			if r, ok := leadingRune(s); ok {
				*dst = r
			}
		}
	}
	setRune("decimal-separator", &format.DecimalSeparator)
	setRune("grouping-separator", &format.GroupSeparator)
	setRune("exponent-separator", &format.ExponentSeparator)
	setRune("minus-sign", &format.MinusSign)
	setRune("zero-digit", &format.ZeroDigit)
	setRune("digit", &format.OptionalDigit)
	setRune("pattern-separator", &format.PatternSeparator)

	if inf, ok := opts["infinity"].(string); ok {
		format.Infinity = inf
	}
	if nan, ok := opts["NaN"].(string); ok {
		format.NaN = nan
	}
	if pct, ok := opts["percent"].(string); ok {
		format.Percent = pct
	}
	if pm, ok := opts["per-mille"].(string); ok {
		format.PerMille = pm
	}
}

// leadingRune returns the first rune of s and true, or (0, false) if s is empty.
func leadingRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// parseRadix validates an optional radix argument (2-36), defaulting to 10.
func parseRadix(e *Evaluator, args []interface{}, index int) (int, error) {
	if len(args) <= index || args[index] == nil {
		return 10, nil
	}
	radixNum, err := e.toNumber(args[index])
	if err != nil {
		return 0, err
	}
	radix := int(radixNum)
	if radix < 2 || radix > 36 {
		return 0, fmt.Errorf("D3100: radix must be between 2 and 36")
	}
	return radix, nil
}

func fnFormatBase(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	if math.IsInf(num, 0) || math.IsNaN(num) {
		return nil, fmt.Errorf("D3061: cannot format non-finite number")
	}

	radix, err := parseRadix(e, args, 1)
	if err != nil {
		return nil, err
	}
	return strconv.FormatInt(int64(roundBankers(num, 0)), radix), nil
}

// fnFormatInteger formats an integer with an optional picture string,
// supporting decimal, Roman-numeral ("i"/"I"), and spelled-out ("w"/"W"/"Ww")
// forms.
// Signature: $formatInteger(number [, picture])
func fnFormatInteger(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	if math.IsInf(num, 0) || math.IsNaN(num) {
		return nil, fmt.Errorf("D3061: cannot format non-finite number")
	}
	intNum := int(num)

	if len(args) == 1 {
		return fmt.Sprintf("%d", intNum), nil
	}

	switch e.toString(args[1]) {
	case "i":
		return strings.ToLower(toRomanNumeral(intNum)), nil
	case "I":
		return toRomanNumeral(intNum), nil
	case "w":
		return strings.ToLower(numberToWords(intNum)), nil
	case "W":
		return numberToWords(intNum), nil
	case "Ww":
		return strings.Title(strings.ToLower(numberToWords(intNum))), nil
	default:
		return fmt.Sprintf("%d", intNum), nil
	}
}

func toRomanNumeral(num int) string {
	if num <= 0 || num >= 4000 {
		return fmt.Sprintf("%d", num) // outside representable range
	}

	val := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	sym := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}

	var result strings.Builder
	for i := 0; i < len(val); i++ {
		for num >= val[i] {
			result.WriteString(sym[i])
			num -= val[i]
		}
	}
	return result.String()
}

// numberToWords spells out an integer in English; numbers of a million or
// more fall back to their decimal form.
func numberToWords(num int) string {
	if num == 0 {
		return "zero"
	}
	if num < 0 {
		return "minus " + numberToWords(-num)
	}

	ones := []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	teens := []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	tens := []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

	switch {
	case num < 10:
		return ones[num]
	case num < 20:
		return teens[num-10]
	case num < 100:
		return tens[num/10] + hyphenIfNeeded(num%10) + ones[num%10]
	case num < 1000:
		result := ones[num/100] + " hundred"
		if num%100 != 0 {
			result += " " + numberToWords(num%100)
		}
		return result
	case num < 1000000:
		result := numberToWords(num/1000) + " thousand"
		if num%1000 != 0 {
			result += " " + numberToWords(num%1000)
		}
		return result
	default:
		return fmt.Sprintf("%d", num)
	}
}

func hyphenIfNeeded(n int) string {
	if n > 0 {
		return "-"
	}
	return ""
}

// Signature: $parseInteger(string [, radix])
func fnParseInteger(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str := strings.TrimSpace(e.toString(args[0]))

	radix, err := parseRadix(e, args, 1)
	if err != nil {
		return nil, err
	}

	num, err := strconv.ParseInt(str, radix, 64)
	if err != nil {
		return nil, fmt.Errorf("D3137: cannot parse '%s' as integer", str)
	}
	return float64(num), nil
}
