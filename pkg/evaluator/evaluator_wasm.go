//go:build (js && wasm) || wasip1

package evaluator

// init forces concurrency off by default for every Evaluator created under
// a WebAssembly build.
//
// js/wasm (browser, Node.js) cooperatively multiplexes goroutines onto one
// OS thread; a sub-evaluation goroutine blocked on an undrained channel can
// deadlock the whole runtime. wasip1 carries the same restriction today
// because the Go runtime's WASI threading support is still experimental.
func init() {
	defaultConcurrency = false
}
