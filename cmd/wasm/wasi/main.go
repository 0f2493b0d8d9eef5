//go:build wasip1

// Command jsonquery-wasm-wasi is a WASI (wasip1) entrypoint usable from any
// host runtime that supports the WebAssembly System Interface.
//
// Protocol: one JSON object on stdin, one JSON object on stdout.
//
//	stdin:  { "query": "<expr>", "data": <any JSON value> }
//	stdout: { "result": <any JSON value> }    on success
//	        { "error":  "<message>"       }    on failure (exit code 1)
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -o jsonquery.wasm ./cmd/wasm/wasi/
//
// Run with wasmtime:
//
//	echo '{"query":"$.name","data":{"name":"Alice"}}' | wasmtime jsonquery.wasm
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/nilforge/jsonquery"
)

type request struct {
	Query string      `json:"query"`
	Data  interface{} `json:"data"`
}

type response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// fail writes an error response to stdout and terminates with exit code 1.
func fail(msg string) {
	_ = json.NewEncoder(os.Stdout).Encode(response{Error: msg})
	os.Exit(1)
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fail("invalid request JSON: " + err.Error())
	}

	result, err := gosonata.EvalWithContext(context.Background(), req.Query, req.Data,
		gosonata.WithConcurrency(false),
	)
	if err != nil {
		fail(err.Error())
	}

	_ = json.NewEncoder(os.Stdout).Encode(response{Result: result})
}
