package evaluator

import (
	"fmt"
	"strings"
)

// TypeCode is one character of a JSONata function signature's type
// notation (e.g. the "n" in "<n-n:n>").
type TypeCode string

const (
	TypeAny      TypeCode = "x"
	TypeString   TypeCode = "s"
	TypeNumber   TypeCode = "n"
	TypeBoolean  TypeCode = "b"
	TypeNull     TypeCode = "l"
	TypeArray    TypeCode = "a"
	TypeObject   TypeCode = "o"
	TypeFunction TypeCode = "f"
)

func isKnownTypeCode(t TypeCode) bool {
	switch t {
	case TypeAny, TypeString, TypeNumber, TypeBoolean, TypeNull, TypeArray, TypeObject, TypeFunction:
		return true
	default:
		return false
	}
}

// ParamType is one parameter (or the return type) of a parsed signature.
// SubType/FuncParams/FuncReturn only apply to array (a<...>) and function
// (f<...:...>) types; UnionTypes holds the alternatives of a "(ns)"-style
// union, with Type set to the first alternative for plain-type callers.
type ParamType struct {
	Type       TypeCode
	SubType    *ParamType
	UnionTypes []TypeCode
	FuncParams []ParamType
	FuncReturn *ParamType
	Optional   bool
}

// Signature is a parsed JSONata function signature, used to validate and
// adapt arguments at call time (see validateAndAdaptLambdaArgs).
type Signature struct {
	Params     []ParamType
	ReturnType *ParamType
}

// ParseSignature parses a bracketed signature string such as "<n-n:n>",
// "<s-s>", "<a<s>s?:s>", or "<f<n:n>:f<n:n>>" into params and (if present)
// a return type, split on the top-level ':' that isn't nested inside '<>'.
func ParseSignature(sig string) (*Signature, error) {
	if sig == "" {
		return nil, nil
	}
	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") {
		return nil, fmt.Errorf("S0401: Invalid signature format")
	}
	body := sig[1 : len(sig)-1]

	parts := splitByColonRespectingBrackets(body)
	if len(parts) > 2 {
		return nil, fmt.Errorf("S0401: Invalid signature format")
	}

	result := &Signature{}
	if len(parts) > 0 && parts[0] != "" {
		params, err := parseParamList(parts[0])
		if err != nil {
			return nil, err
		}
		result.Params = params
	}
	if len(parts) == 2 {
		returnType, err := parseParamType(parts[1])
		if err != nil {
			return nil, err
		}
		result.ReturnType = returnType
	}
	return result, nil
}

// splitByColonRespectingBrackets splits s on top-level ':' characters,
// treating anything nested inside '<' '>' as opaque.
func splitByColonRespectingBrackets(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// parseParamList parses a run of consecutive parameter types, each
// optionally followed by a '-' separator (purely cosmetic in JSONata
// signatures — it marks a parameter boundary but carries no meaning of
// its own, so it's simply skipped).
func parseParamList(params string) ([]ParamType, error) {
	var result []ParamType
	i := 0
	for i < len(params) {
		paramType, consumed, err := parseParamTypeAt(params, i)
		if err != nil {
			return nil, err
		}
		result = append(result, *paramType)
		i += consumed
		if i < len(params) && params[i] == '-' {
			i++
		}
	}
	return result, nil
}

// parseParamTypeAt parses one parameter type starting at position i in s
// — a union "(xy)", a plain type code, or a type code with an array/function
// subtype and/or trailing '?' — and returns it along with how many bytes
// of s it consumed.
func parseParamTypeAt(s string, i int) (*ParamType, int, error) {
	if i >= len(s) {
		return nil, 0, fmt.Errorf("S0401: Unexpected end of signature")
	}
	start := i
	if s[i] == '(' {
		return parseUnionTypeAt(s, i, start)
	}

	paramType := &ParamType{}
	typeCode := TypeCode(s[i : i+1])
	if !isKnownTypeCode(typeCode) {
		return nil, 0, fmt.Errorf("S0401: Unknown type code: %s", typeCode)
	}
	paramType.Type = typeCode
	i++

	if i < len(s) && s[i] == '<' {
		consumed, err := parseSubtypeAt(s, i, typeCode, paramType)
		if err != nil {
			return nil, 0, err
		}
		i = consumed
	}

	if i < len(s) && s[i] == '?' {
		paramType.Optional = true
		i++
	}
	return paramType, i - start, nil
}

// parseUnionTypeAt parses a "(xy...)"-style union starting at s[i] == '('.
func parseUnionTypeAt(s string, i, start int) (*ParamType, int, error) {
	j := i + 1
	for j < len(s) && s[j] != ')' {
		j++
	}
	if j >= len(s) {
		return nil, 0, fmt.Errorf("S0401: Unmatched ( in signature")
	}

	paramType := &ParamType{}
	for _, char := range s[i+1 : j] {
		typeCode := TypeCode(string(char))
		if !isKnownTypeCode(typeCode) {
			return nil, 0, fmt.Errorf("S0401: Unknown type code in union: %s", typeCode)
		}
		paramType.UnionTypes = append(paramType.UnionTypes, typeCode)
	}
	if len(paramType.UnionTypes) > 0 {
		paramType.Type = paramType.UnionTypes[0]
	}
	i = j + 1

	if i < len(s) && s[i] == '?' {
		paramType.Optional = true
		i++
	}
	return paramType, i - start, nil
}

// parseSubtypeAt parses the "<...>" subtype following a type code at
// s[i] == '<' — only TypeArray ("a<n>") and TypeFunction ("f<n:n>") may
// carry one — filling paramType.SubType or FuncParams/FuncReturn in
// place, and returns the index just past the closing '>'.
func parseSubtypeAt(s string, i int, typeCode TypeCode, paramType *ParamType) (int, error) {
	if typeCode != TypeArray && typeCode != TypeFunction {
		return 0, fmt.Errorf("S0401: Type %s cannot have subtypes", typeCode)
	}

	depth := 1
	j := i + 1
	for j < len(s) && depth > 0 {
		switch s[j] {
		case '<':
			depth++
		case '>':
			depth--
		}
		j++
	}
	if depth != 0 {
		return 0, fmt.Errorf("S0401: Unmatched < in signature")
	}

	subSig := s[i+1 : j-1]
	if subSig == "" {
		return 0, fmt.Errorf("S0401: Empty subtype")
	}

	if typeCode == TypeFunction {
		parts := strings.Split(subSig, ":")
		if len(parts) != 2 {
			return 0, fmt.Errorf("S0401: Function signature must have format f<params:return>")
		}
		if parts[0] != "" {
			funcParams, err := parseParamList(parts[0])
			if err != nil {
				return 0, err
			}
			paramType.FuncParams = funcParams
		}
		if parts[1] != "" {
			funcReturn, err := parseParamType(parts[1])
			if err != nil {
				return 0, err
			}
			paramType.FuncReturn = funcReturn
		}
		return j, nil
	}

	// Array subtype, possibly nested (a<a<n>>).
	subType, _, err := parseParamTypeAt(subSig, 0)
	if err != nil {
		return 0, err
	}
	paramType.SubType = subType
	return j, nil
}

// parseParamType parses s as exactly one parameter type, erroring if any
// trailing characters remain — used for a signature's return type, which
// has no sibling parameters to stop at.
func parseParamType(s string) (*ParamType, error) {
	paramType, consumed, err := parseParamTypeAt(s, 0)
	if err != nil {
		return nil, err
	}
	if consumed != len(s) {
		return nil, fmt.Errorf("S0401: Unexpected characters after type")
	}
	return paramType, nil
}

// ValidateArgument checks value against pt, recursing into array element
// types and union alternatives as needed.
func (pt *ParamType) ValidateArgument(value interface{}) error {
	if len(pt.UnionTypes) > 0 {
		var lastErr error
		for _, typeCode := range pt.UnionTypes {
			if err := (&ParamType{Type: typeCode}).ValidateArgument(value); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
		return lastErr
	}

	if value == nil {
		if pt.Type == TypeNull || pt.Type == TypeAny {
			return nil
		}
		return fmt.Errorf("T0410: Expected %s, got null", pt.Type)
	}

	switch pt.Type {
	case TypeAny:
		return nil

	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("T0410: Expected string, got %T", value)
		}

	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("T0410: Expected number, got %T", value)
		}

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("T0410: Expected boolean, got %T", value)
		}

	case TypeArray:
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("T0412: Expected array, got %T", value)
		}
		if pt.SubType != nil {
			for i, elem := range arr {
				if err := pt.SubType.ValidateArgument(elem); err != nil {
					return fmt.Errorf("T0412: Array element %d: %v", i, err)
				}
			}
		}

	case TypeObject:
		switch value.(type) {
		case map[string]interface{}, *OrderedObject:
		default:
			return fmt.Errorf("T0410: Expected object, got %T", value)
		}

	case TypeFunction:
		// Signature-to-signature checking (pt.FuncParams/FuncReturn) isn't
		// enforced: JSONata itself only checks that a callable was passed.
		switch value.(type) {
		case *Lambda, *FunctionDef:
		default:
			return fmt.Errorf("T0410: Expected function, got %T", value)
		}

	default:
		return fmt.Errorf("S0401: Unknown type code: %s", pt.Type)
	}

	return nil
}
