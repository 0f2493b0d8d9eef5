// Package extformat provides data-format functions for the evaluator (CSV, templates).
// All functions use only the Go standard library.
package extformat

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/nilforge/jsonquery/pkg/ext/extstring"
	"github.com/nilforge/jsonquery/pkg/functions"
)

// All returns all extended format function definitions.
func All() []functions.CustomFunctionDef {
	return []functions.CustomFunctionDef{
		ParseCSV(),
		ToCSV(),
		Template(),
	}
}

// AllEntries returns all format function definitions as [functions.FunctionEntry],
// suitable for spreading into [gosonata.WithFunctions].
func AllEntries() []functions.FunctionEntry {
	all := All()
	out := make([]functions.FunctionEntry, len(all))
	for i, f := range all {
		out[i] = f
	}
	return out
}

// csvOptions holds the parsed (separator, comment) pair accepted by $csv's
// optional options object.
type csvOptions struct {
	separator rune
	comment   rune
}

func parseCSVOptions(v interface{}) (csvOptions, error) {
	opts := csvOptions{separator: ','}
	if v == nil {
		return opts, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return opts, fmt.Errorf("options must be an object")
	}
	if sep, ok := m["separator"].(string); ok && len(sep) > 0 {
		opts.separator = rune(sep[0])
	}
	if c, ok := m["comment"].(string); ok && len(c) > 0 {
		opts.comment = rune(c[0])
	}
	return opts, nil
}

// ParseCSV returns the definition for $csv(str [, options]).
// Parses a CSV string into an array of objects using the first row as headers.
//
// options object (all optional):
//   - "separator": field delimiter character (default ",")
//   - "comment":   comment character (default none)
func ParseCSV() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "csv",
		Signature: "<s<o>?:a<o>>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			src, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("$csv: first argument must be a string")
			}
			var rawOpts interface{}
			if len(args) >= 2 {
				rawOpts = args[1]
			}
			opts, err := parseCSVOptions(rawOpts)
			if err != nil {
				return nil, fmt.Errorf("$csv: %w", err)
			}

			r := csv.NewReader(strings.NewReader(src))
			r.Comma = opts.separator
			if opts.comment != 0 {
				r.Comment = opts.comment
			}
			r.TrimLeadingSpace = true

			records, err := r.ReadAll()
			if err != nil {
				return nil, fmt.Errorf("$csv: parse error: %w", err)
			}
			if len(records) < 2 {
				return nil, nil // no data rows
			}

			headers := records[0]
			result := make([]interface{}, 0, len(records)-1)
			for _, row := range records[1:] {
				obj := make(map[string]interface{}, len(headers))
				for i, h := range headers {
					if i < len(row) {
						obj[h] = row[i]
					} else {
						obj[h] = ""
					}
				}
				result = append(result, obj)
			}
			if len(result) == 0 {
				return nil, nil
			}
			return result, nil
		},
	}
}

// csvColumns determines the column order for $toCSV: an explicit columns
// argument if given, otherwise the keys of the first row.
func csvColumns(arr []interface{}, explicit interface{}) []string {
	var columns []string
	if colsRaw, ok := explicit.([]interface{}); ok {
		for _, c := range colsRaw {
			if s, ok := c.(string); ok {
				columns = append(columns, s)
			}
		}
	}
	if len(columns) == 0 {
		if first, ok := arr[0].(map[string]interface{}); ok {
			for k := range first {
				columns = append(columns, k)
			}
		}
	}
	return columns
}

// ToCSV returns the definition for $toCSV(array, columns).
// Converts an array of objects to a CSV string with a header row.
//
// columns is an optional array of column names. When omitted, keys of the first
// object are used.
func ToCSV() functions.CustomFunctionDef {
	return functions.CustomFunctionDef{
		Name:      "toCSV",
		Signature: "<a<o><a<s>>?:s>",
		Fn: func(_ context.Context, args ...interface{}) (interface{}, error) {
			arr, ok := args[0].([]interface{})
			if !ok {
				return nil, fmt.Errorf("$toCSV: first argument must be an array")
			}
			if len(arr) == 0 {
				return "", nil
			}

			var explicitCols interface{}
			if len(args) >= 2 {
				explicitCols = args[1]
			}
			if explicitCols != nil {
				if _, ok := explicitCols.([]interface{}); !ok {
					return nil, fmt.Errorf("$toCSV: columns must be an array")
				}
			}
			columns := csvColumns(arr, explicitCols)
			if len(columns) == 0 {
				return nil, fmt.Errorf("$toCSV: cannot determine columns")
			}

			var buf bytes.Buffer
			w := csv.NewWriter(&buf)

			if err := w.Write(columns); err != nil {
				return nil, fmt.Errorf("$toCSV: %w", err)
			}

			for _, item := range arr {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("$toCSV: all array elements must be objects")
				}
				row := make([]string, len(columns))
				for i, col := range columns {
					if v, exists := obj[col]; exists {
						row[i] = fmt.Sprint(v)
					}
				}
				if err := w.Write(row); err != nil {
					return nil, fmt.Errorf("$toCSV: %w", err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return nil, fmt.Errorf("$toCSV: %w", err)
			}
			return buf.String(), nil
		},
	}
}

// Template returns the definition for $template(str, bindings).
// Delegates to extstring.Template so the {{key}} placeholder behavior has a
// single implementation shared by both packages.
func Template() functions.CustomFunctionDef {
	return extstring.Template()
}
