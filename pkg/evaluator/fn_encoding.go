package evaluator

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/nilforge/jsonquery/pkg/types"
)

func fnBase64Encode(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	return base64.StdEncoding.EncodeToString([]byte(e.toString(args[0]))), nil
}

// Signature: $base64decode(string)
func fnBase64Decode(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(e.toString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("D3137: invalid base64 string: %w", err)
	}
	return string(decoded), nil
}

// Characters encodeURI/encodeURIComponent leave untouched; encodeURI's set
// is a superset covering the URI reserved characters ;/?:@&=+$,#.
const (
	uriUnreservedChars          = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.!~*'()"
	uriReservedExtraForEncodeURI = ";/?:@&=+$,#"
)

// Signature: $encodeUrl(string) — like JS encodeURI.
func fnEncodeUrl(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return encodeURIJS(e.toString(args[0]), "encodeUrl", uriUnreservedChars+uriReservedExtraForEncodeURI)
}

// Signature: $encodeUrlComponent(string) — like JS encodeURIComponent.
func fnEncodeUrlComponent(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return encodeURIJS(e.toString(args[0]), "encodeUrlComponent", uriUnreservedChars)
}

// encodeURIJS percent-encodes every byte of str not in excluded, matching
// the JS encodeURI/encodeURIComponent contract that fnName names.
func encodeURIJS(str, fnName, excluded string) (string, error) {
	if err := rejectUnpairedSurrogates(str, fnName); err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, b := range []byte(str) {
		if strings.ContainsRune(excluded, rune(b)) {
			buf.WriteByte(b)
		} else {
			fmt.Fprintf(&buf, "%%%02X", b)
		}
	}
	return buf.String(), nil
}

// rejectUnpairedSurrogates returns a D3140 error if str contains a lone
// UTF-16 surrogate (U+D800-U+DFFF), which Go strings surface either as the
// raw surrogate codepoint or as the U+FFFD replacement character.
func rejectUnpairedSurrogates(str, fnName string) error {
	for _, r := range str {
		if r == '�' || (r >= 0xD800 && r <= 0xDFFF) {
			return types.NewError("D3140",
				fmt.Sprintf("The argument of function %s contains an unpaired surrogate: %q", fnName, str), -1)
		}
	}
	return nil
}

// Signature: $decodeUrl(string)
func fnDecodeUrl(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	decoded, err := url.PathUnescape(e.toString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("D3137: invalid URL encoding: %w", err)
	}
	return decoded, nil
}

// Signature: $decodeUrlComponent(string)
func fnDecodeUrlComponent(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	decoded, err := url.QueryUnescape(e.toString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("D3137: invalid URL component encoding: %w", err)
	}
	return decoded, nil
}
