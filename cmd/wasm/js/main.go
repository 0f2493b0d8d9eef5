//go:build js && wasm

// Command jsonquery-wasm-js is the WebAssembly entrypoint for browser and
// Node.js hosts. It publishes a global `gosonata` object:
//
//	gosonata.version()              → string
//	gosonata.eval(query, dataJSON)   → resultJSON  (throws on error)
//	gosonata.compile(query)          → { eval(dataJSON) → resultJSON }  (throws on error)
//
// Build:
//
//	GOOS=js GOARCH=wasm go build -o jsonquery.wasm ./cmd/wasm/js/
//
// Node.js usage:
//
//	const { load } = require('./jsonquery_wasm')
//	const gs = await load()
//	console.log(JSON.parse(gs.eval('$.name', JSON.stringify({name:'Alice'}))))
//
// Browser usage:
//
//	<script src="wasm_exec.js"></script>
//	<script type="module">
//	  import { load } from './jsonquery_wasm.mjs'
//	  const gs = await load()
//	  console.log(JSON.parse(gs.eval('$.x', JSON.stringify({x:42}))))
//	</script>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/nilforge/jsonquery"
	"github.com/nilforge/jsonquery/pkg/evaluator"
)

// jsThrow aborts the current JS call by panicking; the Go wasm runtime turns
// an uncaught panic inside a js.FuncOf callback into a thrown JS exception.
func jsThrow(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

// decodeJSONArg parses the JSON-string argument at index i of args, or
// throws with ctx prefixed to the error.
func decodeJSONArg(ctx string, args []js.Value, i int) interface{} {
	var data interface{}
	if err := json.Unmarshal([]byte(args[i].String()), &data); err != nil {
		jsThrow("%s: invalid data JSON: %v", ctx, err)
	}
	return data
}

// encodeJSONResult marshals result back to a JSON string, throwing on
// failure (which should not happen for values this library produces).
func encodeJSONResult(ctx string, result interface{}) string {
	out, err := json.Marshal(result)
	if err != nil {
		jsThrow("%s: marshal result: %v", ctx, err)
	}
	return string(out)
}

// jsEval implements gosonata.eval(query, dataJSON) → resultJSON.
func jsEval(_ js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		jsThrow("gosonata.eval requires 2 arguments: query (string) and data (JSON string)")
	}
	query := args[0].String()
	data := decodeJSONArg("gosonata.eval", args, 1)

	result, err := gosonata.EvalWithContext(context.Background(), query, data,
		gosonata.WithConcurrency(false),
	)
	if err != nil {
		jsThrow("gosonata.eval: %v", err)
	}
	return encodeJSONResult("gosonata.eval", result)
}

// jsCompile implements gosonata.compile(query) → { eval(dataJSON) → resultJSON }.
func jsCompile(_ js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		jsThrow("gosonata.compile requires 1 argument: query (string)")
	}
	query := args[0].String()

	expr, err := gosonata.Compile(query)
	if err != nil {
		jsThrow("gosonata.compile: %v", err)
	}

	ev := evaluator.New(gosonata.WithConcurrency(false))
	evalFn := js.FuncOf(func(_ js.Value, innerArgs []js.Value) interface{} {
		if len(innerArgs) < 1 {
			jsThrow("compiled.eval requires 1 argument: data (JSON string)")
		}
		data := decodeJSONArg("compiled.eval", innerArgs, 0)
		r, err := ev.Eval(context.Background(), expr, data)
		if err != nil {
			jsThrow("compiled.eval: %v", err)
		}
		return encodeJSONResult("compiled.eval", r)
	})

	return js.ValueOf(map[string]interface{}{"eval": evalFn})
}

func main() {
	js.Global().Set("gosonata", js.ValueOf(map[string]interface{}{
		"eval":    js.FuncOf(jsEval),
		"compile": js.FuncOf(jsCompile),
		"version": js.FuncOf(func(_ js.Value, _ []js.Value) interface{} {
			return gosonata.Version()
		}),
	}))

	// The JS event loop owns execution from here; block forever so the Go
	// runtime (and its registered js.Func callbacks) stays alive.
	select {}
}
