package evaluator

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecimalFormat holds the symbol set a FormatNumberWithPicture picture
// string is interpreted against (XPath/XSLT decimal-format semantics:
// https://www.w3.org/TR/xpath-functions-31/#func-format-number).
type DecimalFormat struct {
	DecimalSeparator  rune
	GroupSeparator    rune
	ExponentSeparator rune
	MinusSign         rune
	Infinity          string
	NaN               string
	Percent           string
	PerMille          string
	ZeroDigit         rune
	OptionalDigit     rune
	PatternSeparator  rune
}

// NewDecimalFormat returns the XPath default decimal-format symbol set.
func NewDecimalFormat() DecimalFormat {
	return DecimalFormat{
		DecimalSeparator:  '.',
		GroupSeparator:    ',',
		ExponentSeparator: 'e',
		MinusSign:         '-',
		Infinity:          "Infinity",
		NaN:               "NaN",
		Percent:           "%",
		PerMille:          "‰",
		ZeroDigit:         '0',
		OptionalDigit:     '#',
		PatternSeparator:  ';',
	}
}

func (df *DecimalFormat) isZeroDigit(r rune) bool { return r == df.ZeroDigit }

func (df *DecimalFormat) isDecimalDigit(r rune) bool {
	r -= df.ZeroDigit
	return r >= 0 && r <= 9
}

func (df *DecimalFormat) isDigit(r rune) bool {
	return r == df.OptionalDigit || df.isDecimalDigit(r)
}

// isActive reports whether r is one of the picture-string characters that
// participate in the number's shape, as opposed to literal prefix/suffix
// text.
func (df *DecimalFormat) isActive(r rune) bool {
	switch r {
	case df.DecimalSeparator, df.GroupSeparator, df.OptionalDigit, df.ExponentSeparator:
		return true
	}
	return df.isDecimalDigit(r)
}

const (
	numTypeNormal = iota
	numTypePercent
	numTypePermille
)

// formatConfig is the fully-resolved rendering plan for one sub-picture,
// derived once from its pattern string and then reused across the
// integer/fraction/exponent formatting passes.
type formatConfig struct {
	NumericType        int
	IntGroupPositions  []int
	GroupingInterval   int
	MinIntDigits       int
	ScaleFactor        int
	FracGroupPositions []int
	MinFracDigits      int
	MaxFracDigits      int
	MinExpDigits       int
	PrefixText         string
	SuffixText         string
}

// FormatNumberWithPicture renders value according to an XPath picture
// string (e.g. "#,##0.00", "0.000e0") under format's symbol set, backing
// the $formatNumber builtin.
func FormatNumberWithPicture(value float64, picture string, format DecimalFormat) (string, error) {
	if math.IsInf(value, 0) {
		if value > 0 {
			return format.Infinity, nil
		}
		return string(format.MinusSign) + format.Infinity, nil
	}
	if math.IsNaN(value) {
		return format.NaN, nil
	}

	cfg, err := parsePictureString(picture, &format, value < 0)
	if err != nil {
		return "", err
	}

	switch cfg.NumericType {
	case numTypePercent:
		value *= 100
	case numTypePermille:
		value *= 1000
	}

	exponent := 0
	if cfg.MinExpDigits != 0 {
		value, exponent = normalizeMantissa(value, cfg.ScaleFactor)
	}

	value = roundToDecimalPlaces(value, cfg.MaxFracDigits)
	intDigits, fracDigits := splitAtByte(numberToCustomDigits(value, cfg.MaxFracDigits, &format), '.')

	var intPart, fracPart, expPart string
	if intDigits != "" {
		intPart = formatIntegerDigits(intDigits, &cfg, &format)
	}
	if fracDigits != "" {
		fracPart = formatDecimalDigits(fracDigits, &cfg, &format)
	}
	if cfg.MinExpDigits != 0 {
		expPart = formatExponentDigits(numberToCustomDigits(float64(exponent), 0, &format), &cfg, &format)
	}

	return assemblePicture(cfg, format, intPart, fracPart, expPart, exponent), nil
}

// normalizeMantissa scales value by powers of ten until its magnitude sits
// in [10^(scaleFactor-1), 10^scaleFactor), the range a picture's exponent
// notation expects a single digit of integer part to occupy, and reports
// how many powers of ten were applied as the exponent.
func normalizeMantissa(value float64, scaleFactor int) (mantissa float64, exponent int) {
	minMantissa := math.Pow(10, float64(scaleFactor-1))
	maxMantissa := math.Pow(10, float64(scaleFactor))

	mantissa = value
	for mantissa != 0 && math.Abs(mantissa) < minMantissa {
		mantissa *= 10
		exponent--
	}
	for math.Abs(mantissa) >= maxMantissa {
		mantissa /= 10
		exponent++
	}
	return mantissa, exponent
}

// assemblePicture concatenates a sub-picture's literal prefix/suffix with
// its formatted integer, fraction, and exponent parts.
func assemblePicture(cfg formatConfig, format DecimalFormat, intPart, fracPart, expPart string, exponent int) string {
	buf := make([]byte, 0, 128)
	buf = append(buf, cfg.PrefixText...)
	buf = append(buf, intPart...)

	if len(fracPart) > 0 {
		buf = append(buf, string(format.DecimalSeparator)...)
		buf = append(buf, fracPart...)
	}
	if len(expPart) > 0 {
		buf = append(buf, string(format.ExponentSeparator)...)
		if exponent < 0 {
			buf = append(buf, string(format.MinusSign)...)
		}
		buf = append(buf, expPart...)
	}
	buf = append(buf, cfg.SuffixText...)
	return string(buf)
}

// parsePictureString splits picture on its (at most one) pattern
// separator into a positive and an optional negative sub-picture. Both
// are parsed (and thus validated) unconditionally — a syntax error in an
// unused negative sub-picture must still surface when formatting a
// positive number — before selecting the one matching isNegative, falling
// back to prepending the format's minus sign when no explicit negative
// sub-picture was given.
func parsePictureString(picture string, format *DecimalFormat, isNegative bool) (formatConfig, error) {
	positivePattern, negativePattern := splitAtRune(picture, format.PatternSeparator)
	if positivePattern == "" {
		return formatConfig{}, fmt.Errorf("D3080: picture string must contain 1 or 2 subpictures")
	}

	positiveCfg, err := parsePicturePattern(positivePattern, format)
	if err != nil {
		return formatConfig{}, err
	}

	var negativeCfg formatConfig
	if negativePattern != "" {
		negativeCfg, err = parsePicturePattern(negativePattern, format)
		if err != nil {
			return formatConfig{}, err
		}
	}

	if !isNegative {
		return positiveCfg, nil
	}
	if negativePattern != "" {
		return negativeCfg, nil
	}
	positiveCfg.PrefixText = string(format.MinusSign) + positiveCfg.PrefixText
	return positiveCfg, nil
}

// pictureComponents is one sub-picture decomposed into its literal and
// numeric pieces, ahead of validation and formatConfig derivation.
type pictureComponents struct {
	PrefixPart     string
	SuffixPart     string
	ActivePart     string
	MantissaPart   string
	ExponentPart   string
	IntegerPart    string
	FractionalPart string
	FullPattern    string
}

func parsePicturePattern(pattern string, format *DecimalFormat) (formatConfig, error) {
	components := splitPictureComponents(pattern, format)
	if err := validateComponents(components, format); err != nil {
		return formatConfig{}, err
	}
	return computeFormatConfig(components, format), nil
}

// splitPictureComponents locates the passive prefix/suffix around the
// pattern's active (numeric) core, then splits that core on the exponent
// and decimal separators.
func splitPictureComponents(pattern string, format *DecimalFormat) pictureComponents {
	prefixEnd := 0
	for i, r := range pattern {
		if format.isActive(r) || r == format.ExponentSeparator {
			prefixEnd = i
			break
		}
	}

	suffixStart := len(pattern)
	for i := len(pattern); i > 0; {
		r, size := utf8.DecodeLastRuneInString(pattern[:i])
		if format.isActive(r) || r == format.ExponentSeparator {
			suffixStart = i
			break
		}
		i -= size
	}

	prefix := pattern[:prefixEnd]
	suffix := pattern[suffixStart:]
	activePart := pattern[prefixEnd:suffixStart]

	mantissa := activePart
	var exponent string
	if expIdx := strings.IndexRune(activePart, format.ExponentSeparator); expIdx != -1 {
		mantissa = activePart[:expIdx]
		exponent = activePart[expIdx+1:]
	}

	integerPart := mantissa
	var fractionalPart string
	if decIdx := strings.IndexRune(mantissa, format.DecimalSeparator); decIdx != -1 {
		integerPart = mantissa[:decIdx]
		fractionalPart = mantissa[decIdx+1:]
	}

	return pictureComponents{
		PrefixPart:     prefix,
		SuffixPart:     suffix,
		ActivePart:     activePart,
		MantissaPart:   mantissa,
		ExponentPart:   exponent,
		IntegerPart:    integerPart,
		FractionalPart: fractionalPart,
		FullPattern:    pattern,
	}
}

// validateComponents enforces the XPath picture-string grammar's
// well-formedness rules (D3080-series error codes), each corresponding to
// one constraint from the spec's picture-string grammar.
func validateComponents(comp pictureComponents, format *DecimalFormat) error {
	if strings.Count(comp.FullPattern, string(format.DecimalSeparator)) > 1 {
		return fmt.Errorf("D3081: subpicture cannot contain more than one decimal separator")
	}

	percentCount := strings.Count(comp.FullPattern, format.Percent)
	if percentCount > 1 {
		return fmt.Errorf("D3082: subpicture cannot contain more than one percent character")
	}
	permilleCount := strings.Count(comp.FullPattern, format.PerMille)
	if permilleCount > 1 {
		return fmt.Errorf("D3083: subpicture cannot contain more than one per-mille character")
	}
	if percentCount > 0 && permilleCount > 0 {
		return fmt.Errorf("D3084: subpicture cannot contain both percent and per-mille characters")
	}

	if strings.IndexFunc(comp.MantissaPart, format.isDigit) == -1 {
		return fmt.Errorf("D3085: mantissa part must contain at least one digit")
	}
	if strings.IndexFunc(comp.ActivePart, func(r rune) bool { return !format.isActive(r) }) != -1 {
		return fmt.Errorf("D3086: subpicture cannot contain passive character between active characters")
	}
	if lastRune(comp.IntegerPart) == format.GroupSeparator || firstRune(comp.FractionalPart) == format.GroupSeparator {
		return fmt.Errorf("D3087: group separator cannot be adjacent to decimal separator")
	}
	if strings.Contains(comp.FullPattern, string([]rune{format.GroupSeparator, format.GroupSeparator})) {
		return fmt.Errorf("D3088: subpicture cannot contain adjacent group separators")
	}

	if pos := strings.IndexFunc(comp.IntegerPart, format.isDecimalDigit); pos != -1 {
		pos += utf8.RuneLen(format.ZeroDigit)
		if strings.ContainsRune(comp.IntegerPart[pos:], format.OptionalDigit) {
			return fmt.Errorf("D3089: integer part cannot contain decimal digit followed by optional digit")
		}
	}
	if pos := strings.IndexRune(comp.FractionalPart, format.OptionalDigit); pos != -1 {
		pos += utf8.RuneLen(format.OptionalDigit)
		if strings.IndexFunc(comp.FractionalPart[pos:], format.isDecimalDigit) != -1 {
			return fmt.Errorf("D3090: fractional part cannot contain optional digit followed by decimal digit")
		}
	}

	exponentCount := strings.Count(comp.FullPattern, string(format.ExponentSeparator))
	if exponentCount > 1 {
		return fmt.Errorf("D3091: subpicture cannot contain more than one exponent separator")
	}
	if exponentCount > 0 && (percentCount > 0 || permilleCount > 0) {
		return fmt.Errorf("D3092: subpicture cannot contain percent/per-mille and exponent separator")
	}
	if exponentCount > 0 {
		if strings.IndexFunc(comp.ExponentPart, func(r rune) bool { return !format.isDecimalDigit(r) }) != -1 {
			return fmt.Errorf("D3093: exponent part must consist solely of decimal digits")
		}
	}

	return nil
}

// computeFormatConfig derives the rendering plan (digit-count minimums,
// grouping positions, prefix/suffix text) from a validated sub-picture.
func computeFormatConfig(comp pictureComponents, format *DecimalFormat) formatConfig {
	var numType int
	switch {
	case strings.Contains(comp.FullPattern, format.Percent):
		numType = numTypePercent
	case strings.Contains(comp.FullPattern, format.PerMille):
		numType = numTypePermille
	}

	intGroupPos := findGroupingSeparators(comp.IntegerPart, format.GroupSeparator, format.isDigit, false)
	fracGroupPos := findGroupingSeparators(comp.FractionalPart, format.GroupSeparator, format.isDigit, true)
	groupInterval := calculateGroupingInterval(intGroupPos)

	minIntDigits := countRunesWhere(comp.IntegerPart, format.isDecimalDigit)
	scaleFactor := minIntDigits

	minFracDigits := countRunesWhere(comp.FractionalPart, format.isDecimalDigit)
	maxFracDigits := countRunesWhere(comp.FractionalPart, format.isDigit)

	if minIntDigits == 0 && maxFracDigits == 0 {
		if comp.ExponentPart != "" {
			minFracDigits, maxFracDigits = 1, 1
		} else {
			minIntDigits = 1
		}
	}
	if comp.ExponentPart != "" && minIntDigits == 0 && strings.ContainsRune(comp.IntegerPart, format.OptionalDigit) {
		minIntDigits = 1
	}
	if minIntDigits == 0 && minFracDigits == 0 {
		minFracDigits = 1
	}

	minExpDigits := 0
	if comp.ExponentPart != "" {
		minExpDigits = countRunesWhere(comp.ExponentPart, format.isDecimalDigit)
	}

	return formatConfig{
		NumericType:        numType,
		IntGroupPositions:  intGroupPos,
		GroupingInterval:   groupInterval,
		MinIntDigits:       minIntDigits,
		ScaleFactor:        scaleFactor,
		FracGroupPositions: fracGroupPos,
		MinFracDigits:      minFracDigits,
		MaxFracDigits:      maxFracDigits,
		MinExpDigits:       minExpDigits,
		PrefixText:         comp.PrefixPart,
		SuffixText:         comp.SuffixPart,
	}
}

// findGroupingSeparators returns, for each group separator in s, the
// count of predicate-matching runes to its right (lookLeft=false, used
// for the integer part which groups from the decimal point outward) or
// the cumulative count including all separators seen so far (lookLeft=
// true, used for the fraction part which groups left-to-right).
func findGroupingSeparators(s string, sep rune, predicate func(rune) bool, lookLeft bool) []int {
	var positions []int
	for {
		idx := strings.IndexRune(s, sep)
		if idx == -1 {
			break
		}
		sepLen := utf8.RuneLen(sep)
		remainder := s[idx+sepLen:]
		positions = append(positions, countRunesWhere(remainder, predicate))
		if lookLeft {
			if l := len(positions); l > 1 {
				positions[l-1] += positions[l-2]
			}
		}
		s = s[idx+sepLen:]
	}
	return positions
}

// calculateGroupingInterval reports the regular spacing implied by
// positions (e.g. [3,6,9] -> 3), or 0 if the separators aren't evenly
// spaced and must instead be applied at their literal positions.
func calculateGroupingInterval(positions []int) int {
	if len(positions) == 0 {
		return 0
	}
	interval := gcdSlice(positions)
	for i := range positions {
		if indexOfInt(positions, interval*(i+1)) == -1 {
			return 0
		}
	}
	return interval
}

func formatIntegerDigits(integerStr string, cfg *formatConfig, format *DecimalFormat) string {
	integerStr = strings.TrimLeftFunc(integerStr, format.isZeroDigit)

	if padding := cfg.MinIntDigits - utf8.RuneCountInString(integerStr); padding > 0 {
		integerStr = strings.Repeat(string(format.ZeroDigit), padding) + integerStr
	}

	switch {
	case cfg.GroupingInterval > 0:
		return addPeriodicSeparators(integerStr, format.GroupSeparator, cfg.GroupingInterval)
	case len(cfg.IntGroupPositions) > 0:
		return addSeparatorsAtPositions(integerStr, format.GroupSeparator, cfg.IntGroupPositions, true)
	default:
		return integerStr
	}
}

func formatDecimalDigits(fracStr string, cfg *formatConfig, format *DecimalFormat) string {
	fracStr = strings.TrimRightFunc(fracStr, format.isZeroDigit)

	if padding := cfg.MinFracDigits - utf8.RuneCountInString(fracStr); padding > 0 {
		fracStr += strings.Repeat(string(format.ZeroDigit), padding)
	}
	if len(cfg.FracGroupPositions) > 0 {
		return addSeparatorsAtPositions(fracStr, format.GroupSeparator, cfg.FracGroupPositions, false)
	}
	return fracStr
}

func formatExponentDigits(expStr string, cfg *formatConfig, format *DecimalFormat) string {
	if padding := cfg.MinExpDigits - utf8.RuneCountInString(expStr); padding > 0 {
		expStr = strings.Repeat(string(format.ZeroDigit), padding) + expStr
	}
	return expStr
}

// numberToCustomDigits renders abs(value) as a fixed-point decimal string
// with precision fraction digits, remapping the ASCII digits to the
// format's ZeroDigit-based digit set if it isn't plain "0"-"9".
func numberToCustomDigits(value float64, precision int, format *DecimalFormat) string {
	byteStr := strconv.AppendFloat(make([]byte, 0, 24), math.Abs(value), 'f', precision, 64)
	if format.ZeroDigit == '0' {
		return string(byteStr)
	}
	byteStr = bytes.Map(func(r rune) rune {
		offset := r - '0'
		if offset < 0 || offset > 9 {
			return r
		}
		return format.ZeroDigit + offset
	}, byteStr)
	return string(byteStr)
}

// addPeriodicSeparators inserts sep every interval runes, counting from
// the right (as grouping separators in a picture string always do for the
// integer part).
func addPeriodicSeparators(s string, sep rune, interval int) string {
	runeCount := utf8.RuneCountInString(s)
	if interval <= 0 || runeCount <= interval {
		return s
	}

	endPos := len(s)
	chunkCount := (runeCount - 1) / interval
	chunks := make([]string, chunkCount+1)

	for chunkCount > 0 {
		bytePos := 0
		for i := 0; i < interval; i++ {
			_, width := utf8.DecodeLastRuneInString(s[:endPos])
			bytePos += width
		}
		chunks[chunkCount] = s[endPos-bytePos : endPos]
		endPos -= bytePos
		chunkCount--
	}
	chunks[chunkCount] = s[:endPos]
	return strings.Join(chunks, string(sep))
}

// addSeparatorsAtPositions inserts sep at each rune offset in positions,
// counted from the right when fromRight is set (irregular integer-part
// grouping) or from the left otherwise (fraction-part grouping).
func addSeparatorsAtPositions(s string, sep rune, positions []int, fromRight bool) string {
	chunks := make([]string, 0, len(positions)+1)
	for _, pos := range positions {
		runeNum := pos
		if fromRight {
			runeNum = utf8.RuneCountInString(s) - pos
		}
		bytePos := 0
		for runeNum > 0 && bytePos < len(s) {
			_, width := utf8.DecodeRuneInString(s[bytePos:])
			bytePos += width
			runeNum--
		}
		chunks = append(chunks, s[:bytePos])
		s = s[bytePos:]
	}
	chunks = append(chunks, s)
	return strings.Join(chunks, string(sep))
}

// splitAtRune splits s on r. If r does not appear it returns (s, ""),
// which the caller (parsePictureString) treats as "no separate negative
// sub-picture"; if r appears more than once it returns ("", ""), which the
// caller rejects with D3080.
func splitAtRune(s string, r rune) (before, after string) {
	idx := strings.IndexRune(s, r)
	if idx == -1 {
		return s, ""
	}
	remaining := s[idx+utf8.RuneLen(r):]
	if strings.ContainsRune(remaining, r) {
		return "", ""
	}
	return s[:idx], remaining
}

// splitAtByte is splitAtRune specialized for a single-byte separator
// (the decimal point in an already-rendered digit string).
func splitAtByte(s string, b byte) (before, after string) {
	idx := strings.IndexByte(s, b)
	if idx == -1 {
		return s, ""
	}
	remaining := s[idx+1:]
	if strings.IndexByte(remaining, b) != -1 {
		return "", ""
	}
	return s[:idx], remaining
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func countRunesWhere(s string, predicate func(rune) bool) int {
	var count int
	for _, r := range s {
		if predicate(r) {
			count++
		}
	}
	return count
}

func gcd(a, b int) int {
	if b == 0 {
		return a
	}
	return gcd(b, a%b)
}

func gcdSlice(numbers []int) int {
	result := 0
	for _, num := range numbers {
		result = gcd(result, num)
	}
	return result
}

func indexOfInt(numbers []int, target int) int {
	for idx, num := range numbers {
		if num == target {
			return idx
		}
	}
	return -1
}

// roundToDecimalPlaces rounds x to precision decimal places, half away
// from zero (matching XPath's fn:round semantics used by picture-string
// formatting, as opposed to Go's round-half-to-even).
func roundToDecimalPlaces(x float64, precision int) float64 {
	if x == 0 {
		return 0
	}
	if precision >= 0 && x == math.Trunc(x) {
		return x
	}
	multiplier := math.Pow10(precision)
	scaled := x * multiplier
	if math.IsInf(scaled, 0) {
		return x
	}
	if x < 0 {
		x = math.Ceil(scaled - 0.5)
	} else {
		x = math.Floor(scaled + 0.5)
	}
	if x == 0 {
		return 0
	}
	return x / multiplier
}
