package unit_test

import (
	"testing"

	"github.com/nilforge/jsonquery/pkg/cache"
	"github.com/nilforge/jsonquery/pkg/parser"
	"github.com/nilforge/jsonquery/pkg/types"
)

func compileOrFatal(t *testing.T, query string) *types.Expression {
	t.Helper()
	expr, err := parser.Compile(query)
	if err != nil {
		t.Fatalf("compile %q: %v", query, err)
	}
	return expr
}

func TestCacheCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"explicit capacity", 10, 10},
		{"zero falls back to default", 0, 256},
		{"negative falls back to default", -5, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.New(tt.capacity)
			if got := c.Capacity(); got != tt.want {
				t.Errorf("Capacity() = %d, want %d", got, tt.want)
			}
			if got := c.Len(); got != 0 {
				t.Errorf("Len() = %d, want 0 for a fresh cache", got)
			}
		})
	}
}

func TestCacheSetAndGet(t *testing.T) {
	c := cache.New(4)
	expr := compileOrFatal(t, "$.name")
	c.Set("$.name", expr)

	if got := c.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	got, ok := c.Get("$.name")
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if got != expr {
		t.Error("Get() returned a different *Expression than was Set")
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(\"missing\") hit, want miss")
	}
}

func TestCacheSetOverwritesExistingKey(t *testing.T) {
	c := cache.New(4)
	first := compileOrFatal(t, "$.a")
	second := compileOrFatal(t, "$.b")

	c.Set("k", first)
	c.Set("k", second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() miss after overwrite, want hit")
	}
	if got != second {
		t.Error("Get() returned the pre-overwrite expression")
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d after overwrite, want 1 (same key, not a new entry)", got)
	}
}

func TestCacheLRUEvictsOldestOnOverflow(t *testing.T) {
	c := cache.New(3)
	insertOrder := []string{"a", "b", "c", "d"}
	for _, key := range insertOrder {
		c.Set(key, compileOrFatal(t, "$.x"))
	}

	if got := c.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3 (capacity enforced)", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("\"a\" survived eviction, want the oldest entry gone")
	}
	if _, ok := c.Get("d"); !ok {
		t.Error("\"d\" was evicted, want the most recent insert to survive")
	}
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := cache.New(4)
	for _, key := range []string{"a", "b", "c"} {
		c.Set(key, compileOrFatal(t, "$.x"))
	}

	c.Invalidate("b")
	if _, ok := c.Get("b"); ok {
		t.Error("Get(\"b\") hit after Invalidate, want miss")
	}
	if got, want := c.Len(), 2; got != want {
		t.Errorf("Len() after Invalidate = %d, want %d", got, want)
	}

	c.Clear()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}

func TestCacheGetOrCompileCompilesOnceThenReusesResult(t *testing.T) {
	c := cache.New(4)
	compiles := 0
	compileFn := func() (*types.Expression, error) {
		compiles++
		return parser.Compile("$.age")
	}

	first, err := c.GetOrCompile("$.age", compileFn)
	if err != nil || first == nil {
		t.Fatalf("GetOrCompile() first call: expr=%v err=%v", first, err)
	}
	if compiles != 1 {
		t.Fatalf("compiles = %d after first call, want 1", compiles)
	}

	second, err := c.GetOrCompile("$.age", compileFn)
	if err != nil || second == nil {
		t.Fatalf("GetOrCompile() second call: expr=%v err=%v", second, err)
	}
	if compiles != 1 {
		t.Errorf("compiles = %d after cached second call, want still 1", compiles)
	}
	if first != second {
		t.Error("GetOrCompile() returned a different pointer on a cache hit")
	}
}

func TestCacheGetOrCompilePropagatesCompileError(t *testing.T) {
	c := cache.New(4)
	_, err := c.GetOrCompile("(unterminated", func() (*types.Expression, error) {
		return parser.Compile("(unterminated")
	})
	if err == nil {
		t.Fatal("GetOrCompile() with an invalid query returned nil error")
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d after a failed compile, want 0 (nothing cached)", got)
	}
}
