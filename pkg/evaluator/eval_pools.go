package evaluator

import (
	"bytes"
	"regexp"
	"sync"
)

// regexCache memoizes compiled patterns process-wide, keyed by the Go-syntax
// pattern string (already translated from JSONata/PCRE-ish syntax by the
// caller). A *regexp.Regexp is immutable once built, so concurrent readers
// need no extra locking beyond what sync.Map already provides; a pattern
// compiled twice by racing goroutines just stores the same value twice.
var regexCache sync.Map // map[string]*regexp.Regexp

// getOrCompileRegex returns the cached *regexp.Regexp for pattern, compiling
// and caching it on first use.
func getOrCompileRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, compiled)
	return compiled, nil
}

// mustCompileRegex compiles pattern through the shared cache and panics on
// error; reserved for package-level vars whose pattern is a known-good literal.
func mustCompileRegex(pattern string) *regexp.Regexp {
	compiled, err := getOrCompileRegex(pattern)
	if err != nil {
		panic("evaluator: static regex failed to compile: " + err.Error())
	}
	return compiled
}

// bufPool recycles *bytes.Buffer across the hot string-building paths
// (regex replacement, template expansion) to cut GC pressure from many
// short-lived allocations. Buffers are always Reset in acquireBuf, so no
// state from a previous borrower leaks to the next.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

func acquireBuf() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// releaseBuf returns buf to the pool, unless its backing array has grown
// past a size where pooling it would just retain memory unnecessarily.
const maxPooledBufCap = 64 * 1024

func releaseBuf(buf *bytes.Buffer) {
	if buf.Cap() <= maxPooledBufCap {
		bufPool.Put(buf)
	}
}

// hofArgsFrame backs the (item, index, array) / (acc, item, index, array)
// argument slices passed to $map/$filter/$reduce/$single callbacks. Pooling
// the backing array avoids one []interface{} allocation per iterated
// element; the frame is never retained past the callHOFFn call that uses it.
type hofArgsFrame struct {
	buf [4]interface{}
}

var hofArgsPool = sync.Pool{
	New: func() interface{} { return new(hofArgsFrame) },
}

// acquireHOFArgs3 returns a pooled 3-element (item, index, array) frame.
func acquireHOFArgs3(item, index, array interface{}) (*hofArgsFrame, []interface{}) {
	f := hofArgsPool.Get().(*hofArgsFrame)
	f.buf[0], f.buf[1], f.buf[2] = item, index, array
	return f, f.buf[:3]
}

// acquireHOFArgs4 returns a pooled 4-element (acc, item, index, array) frame.
func acquireHOFArgs4(acc, item, index, array interface{}) (*hofArgsFrame, []interface{}) {
	f := hofArgsPool.Get().(*hofArgsFrame)
	f.buf[0], f.buf[1], f.buf[2], f.buf[3] = acc, item, index, array
	return f, f.buf[:4]
}

// releaseHOFArgs returns f to the pool, clearing its slots first so pooled
// frames don't keep the last call's values reachable.
func releaseHOFArgs(f *hofArgsFrame) {
	if f == nil {
		return
	}
	f.buf[0], f.buf[1], f.buf[2], f.buf[3] = nil, nil, nil, nil
	hofArgsPool.Put(f)
}
