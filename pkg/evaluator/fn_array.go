package evaluator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/nilforge/jsonquery/pkg/types"
)

func fnAppend(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[1] == nil {
		return args[0], nil
	}

	arr1, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	arr2, err := e.toArray(args[1])
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(arr1)+len(arr2))
	result = append(result, arr1...)
	result = append(result, arr2...)
	return result, nil
}

func fnReverse(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, len(arr))
	for i, v := range arr {
		result[len(arr)-1-i] = v
	}
	return result, nil
}

// fnDistinct removes duplicate array elements, comparing by deep structural
// equality rather than Go identity: two objects with the same keys and
// values in different insertion order compare equal.
func fnDistinct(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(arr))
	result := make([]interface{}, 0, len(arr))
	for _, item := range arr {
		key := distinctCanonicalKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// distinctCanonicalKey renders v as a string that is equal for two values iff
// they are structurally equal, backing $distinct's deduplication.
func distinctCanonicalKey(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "N" // undefined
	case types.Null:
		return "n" // JSON null
	case bool:
		if val {
			return "bt"
		}
		return "bf"
	case float64:
		// Fast-path: evita json.Marshal usando strconv, zero allocazioni aggiuntive
		return "f" + strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		// Fast-path: il prefisso "s" garantisce unicità di tipo; il valore grezzo è canonico
		return "s" + val
	case *OrderedObject:
		keys := make([]string, len(val.Keys))
		copy(keys, val.Keys)
		return canonicalObjectKey(keys, func(k string) interface{} { return val.Values[k] })
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		return canonicalObjectKey(keys, func(k string) interface{} { return val[k] })
	case []interface{}:
		var buf strings.Builder
		buf.WriteString("a[")
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(distinctCanonicalKey(item))
		}
		buf.WriteByte(']')
		return buf.String()
	default:
		return fmt.Sprintf("%T:%v", val, val)
	}
}

// canonicalObjectKey renders an object's fields, sorted by key so insertion
// order never affects the result, using lookup to fetch each field's value.
func canonicalObjectKey(keys []string, lookup func(string) interface{}) string {
	sort.Strings(keys)
	var buf strings.Builder
	buf.WriteString("o{")
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		// strconv.Quote produce la stessa forma quoted+escaped di json.Marshal per le stringhe
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.WriteString(distinctCanonicalKey(lookup(k)))
	}
	buf.WriteByte('}')
	return buf.String()
}

// fnShuffle returns a Fisher-Yates shuffled copy of array, leaving the
// original untouched.
// Signature: $shuffle(array)
func fnShuffle(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, len(arr))
	copy(result, arr)
	rand.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	return result, nil
}

// fnZip convolves one or more arrays into an array of tuples, one tuple per
// index, truncated to the length of the shortest input.
// Signature: $zip(array1, array2, ...)
func fnZip(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return []interface{}{}, nil
	}
	for _, arg := range args {
		if arg == nil {
			return []interface{}{}, nil
		}
	}

	arrays := make([][]interface{}, len(args))
	minLen := -1
	for i, arg := range args {
		arr, err := e.toArray(arg)
		if err != nil {
			return nil, err
		}
		arrays[i] = arr
		if minLen == -1 || len(arr) < minLen {
			minLen = len(arr)
		}
	}
	if minLen <= 0 {
		return []interface{}{}, nil
	}

	result := make([]interface{}, minLen)
	for i := 0; i < minLen; i++ {
		tuple := make([]interface{}, len(arrays))
		for j, arr := range arrays {
			tuple[j] = arr[i]
		}
		result[i] = tuple
	}
	return result, nil
}
