package unit_test

import (
	"testing"

	gosonata "github.com/nilforge/jsonquery"
	"github.com/nilforge/jsonquery/pkg/ext"
	"github.com/nilforge/jsonquery/pkg/ext/extarray"
	"github.com/nilforge/jsonquery/pkg/ext/extcrypto"
	"github.com/nilforge/jsonquery/pkg/ext/extdatetime"
	"github.com/nilforge/jsonquery/pkg/ext/extformat"
	"github.com/nilforge/jsonquery/pkg/ext/extfunc"
	"github.com/nilforge/jsonquery/pkg/ext/extnumeric"
	"github.com/nilforge/jsonquery/pkg/ext/extobject"
	"github.com/nilforge/jsonquery/pkg/ext/extstring"
	"github.com/nilforge/jsonquery/pkg/ext/exttypes"
)

// runExt evaluates expr with the given extension functions registered,
// failing the test on the first error. Shared by every case in this file.
func runExt(t *testing.T, expr string, data interface{}, opt gosonata.EvalOption) interface{} {
	t.Helper()
	got, err := gosonata.Eval(expr, data, opt)
	if err != nil {
		t.Fatalf("Eval(%q): %v", expr, err)
	}
	return got
}

type extCase struct {
	name string
	expr string
	data interface{}
	want interface{}
}

func runExtCases(t *testing.T, opt gosonata.EvalOption, cases []extCase) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := runExt(t, c.expr, c.data, opt); got != c.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, c.want, c.want)
			}
		})
	}
}

// ── registration surface ────────────────────────────────────────────────────

func TestWithFunctionsRegistration(t *testing.T) {
	t.Run("a single entry registers one builtin", func(t *testing.T) {
		got := runExt(t, `$startsWith("jsonquery", "json")`, nil, gosonata.WithFunctions(extstring.StartsWith()))
		if got != true {
			t.Errorf("got %v, want true", got)
		}
	})

	t.Run("a spread slice registers every entry in a package", func(t *testing.T) {
		got := runExt(t, `$last([10,20,30])`, nil, gosonata.WithFunctions(extarray.AllEntries()...))
		if got != 30.0 {
			t.Errorf("got %v, want 30", got)
		}
	})

	t.Run("entries from different packages can be mixed", func(t *testing.T) {
		entries := append(extstring.AllEntries(), extarray.AllEntries()...)
		got := runExt(t, `$startsWith($string($last([1,2,3])), "3")`, nil, gosonata.WithFunctions(entries...))
		if got != true {
			t.Errorf("got %v, want true", got)
		}
	})

	t.Run("entries backed by lambdas still run through the evaluator", func(t *testing.T) {
		got := runExt(t, `$groupBy([1,2,3,4], function($v){$v % 2 = 0 ? "even" : "odd"})`,
			nil, gosonata.WithFunctions(extarray.GroupBy()))
		obj, ok := got.(map[string]interface{})
		if !ok {
			t.Fatalf("got %T, want map", got)
		}
		if len(obj["even"].([]interface{})) != 2 {
			t.Errorf("expected 2 evens, got %v", obj["even"])
		}
	})

	t.Run("ext.AllEntries aggregates every sub-package", func(t *testing.T) {
		entries := ext.AllEntries()
		if len(entries) == 0 {
			t.Fatal("ext.AllEntries() returned an empty slice")
		}
		opt := gosonata.WithFunctions(entries...)
		runExtCases(t, opt, []extCase{
			{"string fn", `$startsWith("abc", "ab")`, nil, true},
			{"array fn", `$last([1,2,3])`, nil, 3.0},
			{"numeric fn", `$sign(-1)`, nil, -1.0},
			{"types fn", `$isNumber(42)`, nil, true},
			{"object fn", `$size({"a":1,"b":2})`, nil, 2.0},
		})
	})
}

// ── extstring ────────────────────────────────────────────────────────────────

func TestExtString(t *testing.T) {
	opt := gosonata.WithFunctions(extstring.AllEntries()...)

	runExtCases(t, opt, []extCase{
		{"startsWith true", `$startsWith("Hello World", "Hello")`, nil, true},
		{"startsWith false", `$startsWith("Hello World", "World")`, nil, false},
		{"endsWith true", `$endsWith("Hello World", "World")`, nil, true},
		{"endsWith false", `$endsWith("Hello World", "Hello")`, nil, false},
		{"indexOf", `$indexOf("abcabc", "bc")`, nil, 1.0},
		{"indexOf with offset", `$indexOf("abcabc", "bc", 2)`, nil, 4.0},
		{"lastIndexOf", `$lastIndexOf("abcabc", "bc")`, nil, 4.0},
		{"capitalize", `$capitalize("hello world")`, nil, "Hello world"},
		{"titleCase", `$titleCase("hello world")`, nil, "Hello World"},
		{"camelCase", `$camelCase("hello_world")`, nil, "helloWorld"},
		{"snakeCase", `$snakeCase("helloWorld")`, nil, "hello_world"},
		{"kebabCase", `$kebabCase("helloWorld")`, nil, "hello-world"},
		{"repeat", `$repeat("ab", 3)`, nil, "ababab"},
		{"template", `$template("Hello, {{name}}!", {"name": "World"})`, nil, "Hello, World!"},
	})

	t.Run("words splits on whitespace", func(t *testing.T) {
		got := runExt(t, `$count($words("hello world foo"))`, nil, opt)
		if got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})

	t.Run("AllEntries is non-empty", func(t *testing.T) {
		if len(extstring.AllEntries()) == 0 {
			t.Fatal("extstring.AllEntries() is empty")
		}
	})
}

// ── extarray ─────────────────────────────────────────────────────────────────

func TestExtArraySlicing(t *testing.T) {
	opt := gosonata.WithFunctions(extarray.AllEntries()...)
	nums := map[string]interface{}{"items": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0}}

	wantArrayLen := func(t *testing.T, expr string, data interface{}, want int) []interface{} {
		t.Helper()
		arr, ok := runExt(t, expr, data, opt).([]interface{})
		if !ok {
			t.Fatalf("%q: got non-array", expr)
		}
		if len(arr) != want {
			t.Errorf("%q: got length %d, want %d", expr, len(arr), want)
		}
		return arr
	}

	t.Run("first and last", func(t *testing.T) {
		if got := runExt(t, `$first(items)`, nums, opt); got != 1.0 {
			t.Errorf("$first: got %v, want 1", got)
		}
		if got := runExt(t, `$last(items)`, nums, opt); got != 5.0 {
			t.Errorf("$last: got %v, want 5", got)
		}
	})

	t.Run("take and skip", func(t *testing.T) {
		wantArrayLen(t, `$take(items, 2)`, nums, 2)
		wantArrayLen(t, `$skip(items, 2)`, nums, 3)
	})

	t.Run("slice selects a sub-range", func(t *testing.T) {
		arr := wantArrayLen(t, `$slice([10,20,30,40,50], 1, 3)`, nil, 2)
		if arr[0] != 20.0 {
			t.Errorf("got %v, want [20 30]", arr)
		}
	})

	t.Run("flatten collapses nested arrays", func(t *testing.T) {
		wantArrayLen(t, `$flatten([[1,[2]],3])`, nil, 3)
	})

	t.Run("chunk groups into fixed-size slices", func(t *testing.T) {
		wantArrayLen(t, `$chunk([1,2,3,4,5], 2)`, nil, 3)
	})

	t.Run("range is end-inclusive", func(t *testing.T) {
		arr := wantArrayLen(t, `$range(1, 5, 1)`, nil, 5)
		if arr[0] != 1.0 || arr[4] != 5.0 {
			t.Errorf("got %v, want [1..5]", arr)
		}
	})
}

func TestExtArraySetOperations(t *testing.T) {
	opt := gosonata.WithFunctions(extarray.AllEntries()...)

	tests := []struct {
		name string
		expr string
		want int
	}{
		{"union", `$union([1,2,3],[2,3,4])`, 4},
		{"intersection", `$intersection([1,2,3],[2,3,4])`, 2},
		{"difference", `$difference([1,2,3],[2,3])`, 1},
		{"symmetricDifference", `$symmetricDifference([1,2,3],[2,3,4])`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, ok := runExt(t, tt.expr, nil, opt).([]interface{})
			if !ok || len(arr) != tt.want {
				t.Errorf("got %v, want length %d", arr, tt.want)
			}
		})
	}

	t.Run("difference preserves left-only elements", func(t *testing.T) {
		arr := runExt(t, `$difference([1,2,3],[2,3])`, nil, opt).([]interface{})
		if arr[0] != 1.0 {
			t.Errorf("got %v, want [1]", arr)
		}
	})
}

func TestExtArrayHigherOrder(t *testing.T) {
	opt := gosonata.WithFunctions(extarray.AllEntries()...)

	t.Run("groupBy partitions by key", func(t *testing.T) {
		obj := runExt(t, `$groupBy([1,2,3,4], function($v){$string($v % 2)})`, nil, opt).(map[string]interface{})
		if len(obj) != 2 {
			t.Errorf("expected 2 groups, got %v", obj)
		}
	})

	t.Run("countBy tallies per key", func(t *testing.T) {
		got := runExt(t, `$countBy([1,2,3,4,5,6], function($v){$v % 2 = 0 ? "even" : "odd"}).even`, nil, opt)
		if got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})

	t.Run("sumBy reduces a derived field", func(t *testing.T) {
		data := map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"price": 10.0, "qty": 3.0},
				map[string]interface{}{"price": 5.0, "qty": 2.0},
			},
		}
		got := runExt(t, `$sumBy(items, function($x){$x.price * $x.qty})`, data, opt)
		if got != 40.0 {
			t.Errorf("got %v, want 40", got)
		}
	})

	t.Run("minBy and maxBy", func(t *testing.T) {
		if got := runExt(t, `$minBy([3,1,2], function($v){$v})`, nil, opt); got != 1.0 {
			t.Errorf("$minBy: got %v, want 1", got)
		}
		if got := runExt(t, `$maxBy([3,1,2], function($v){$v})`, nil, opt); got != 3.0 {
			t.Errorf("$maxBy: got %v, want 3", got)
		}
	})

	t.Run("accumulate returns a running scan", func(t *testing.T) {
		got := runExt(t, `$last($accumulate([1,2,3,4], function($acc,$v){$acc+$v}, 0))`, nil, opt)
		if got != 10.0 {
			t.Errorf("got %v, want 10", got)
		}
	})

	t.Run("window produces overlapping sub-slices", func(t *testing.T) {
		got := runExt(t, `$count($window([1,2,3,4], 2, 1))`, nil, opt)
		if got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})

	t.Run("zipLongest pads to the longer input", func(t *testing.T) {
		got := runExt(t, `$count($zipLongest([1,2,3],[4,5]))`, nil, opt)
		if got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})
}

// ── extnumeric ───────────────────────────────────────────────────────────────

func TestExtNumericScalarFunctions(t *testing.T) {
	opt := gosonata.WithFunctions(extnumeric.AllEntries()...)
	runExtCases(t, opt, []extCase{
		{"sign negative", `$sign(-5)`, nil, -1.0},
		{"sign zero", `$sign(0)`, nil, 0.0},
		{"sign positive", `$sign(3)`, nil, 1.0},
		{"trunc positive", `$trunc(3.9)`, nil, 3.0},
		{"trunc negative", `$trunc(-3.9)`, nil, -3.0},
		{"clamp below range", `$clamp(-5, 0, 100)`, nil, 0.0},
		{"clamp above range", `$clamp(150, 0, 100)`, nil, 100.0},
		{"clamp inside range", `$clamp(50, 0, 100)`, nil, 50.0},
		{"log base 10", `$log(100, 10)`, nil, 2.0},
		{"sin of 0", `$sin(0)`, nil, 0.0},
		{"cos of 0", `$cos(0)`, nil, 1.0},
		{"atan2", `$atan2(0, 1)`, nil, 0.0},
	})
}

func TestExtNumericStatistics(t *testing.T) {
	opt := gosonata.WithFunctions(extnumeric.AllEntries()...)
	const nums = `[1,2,3,4,5]`

	t.Run("median of an odd-length array is the middle element", func(t *testing.T) {
		if got := runExt(t, `$median(`+nums+`)`, nil, opt); got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})

	t.Run("mode returns the most frequent value", func(t *testing.T) {
		// May come back as a bare scalar or a single-element array depending
		// on how many values tie for most frequent.
		got := runExt(t, `$mode([1,2,2,3])`, nil, opt)
		modes, ok := got.([]interface{})
		if !ok {
			modes = []interface{}{got}
		}
		if len(modes) == 0 || modes[0] != 2.0 {
			t.Errorf("got %v, want 2", got)
		}
	})

	t.Run("variance and stddev are positive for a spread sample", func(t *testing.T) {
		if got := runExt(t, `$variance(`+nums+`) > 0`, nil, opt); got != true {
			t.Error("expected $variance > 0")
		}
		if got := runExt(t, `$stddev(`+nums+`) > 0`, nil, opt); got != true {
			t.Error("expected $stddev > 0")
		}
	})

	t.Run("percentile 50 resolves", func(t *testing.T) {
		if got := runExt(t, `$percentile(`+nums+`, 50)`, nil, opt); got == nil {
			t.Error("got nil")
		}
	})
}

func TestExtNumericConstants(t *testing.T) {
	opt := gosonata.WithFunctions(extnumeric.AllEntries()...)
	if got := runExt(t, `$pi() > 3.14`, nil, opt); got != true {
		t.Errorf("$pi: got %v, want true", got)
	}
	if got := runExt(t, `$e() > 2.71`, nil, opt); got != true {
		t.Errorf("$e: got %v, want true", got)
	}
}

// ── extobject ────────────────────────────────────────────────────────────────

func TestExtObjectShapeFunctions(t *testing.T) {
	opt := gosonata.WithFunctions(extobject.AllEntries()...)

	t.Run("values and pairs count the same as keys", func(t *testing.T) {
		if got := runExt(t, `$count($values({"a":1,"b":2}))`, nil, opt); got != 2.0 {
			t.Errorf("$values: got %v, want 2", got)
		}
		if got := runExt(t, `$count($pairs({"a":1,"b":2}))`, nil, opt); got != 2.0 {
			t.Errorf("$pairs: got %v, want 2", got)
		}
	})

	t.Run("fromPairs builds an object from [key,value] tuples", func(t *testing.T) {
		if got := runExt(t, `$fromPairs([["x",10],["y",20]]).x`, nil, opt); got != 10.0 {
			t.Errorf("got %v, want 10", got)
		}
	})

	t.Run("pick and omit filter keys", func(t *testing.T) {
		if got := runExt(t, `$count($keys($pick({"a":1,"b":2,"c":3}, ["a","c"])))`, nil, opt); got != 2.0 {
			t.Errorf("$pick: got %v, want 2", got)
		}
		if got := runExt(t, `$count($keys($omit({"a":1,"b":2,"c":3}, ["b"])))`, nil, opt); got != 2.0 {
			t.Errorf("$omit: got %v, want 2", got)
		}
	})

	t.Run("size counts top-level keys", func(t *testing.T) {
		if got := runExt(t, `$size({"a":1,"b":2,"c":3})`, nil, opt); got != 3.0 {
			t.Errorf("got %v, want 3", got)
		}
	})

	t.Run("deepMerge merges nested objects recursively", func(t *testing.T) {
		if got := runExt(t, `$deepMerge([{"a":{"x":1}},{"a":{"y":2}}]).a.y`, nil, opt); got != 2.0 {
			t.Errorf("got %v, want 2", got)
		}
	})

	t.Run("rename swaps a key while keeping its value", func(t *testing.T) {
		if got := runExt(t, `$rename({"old_key":"val"},{"old_key":"newKey"}).newKey`, nil, opt); got != "val" {
			t.Errorf("got %v, want val", got)
		}
	})

	t.Run("invert swaps keys and values", func(t *testing.T) {
		if got := runExt(t, `$count($keys($invert({"a":"1","b":"2"})))`, nil, opt); got != 2.0 {
			t.Errorf("got %v, want 2", got)
		}
	})
}

func TestExtObjectHigherOrder(t *testing.T) {
	opt := gosonata.WithFunctions(extobject.AllEntries()...)

	t.Run("mapValues transforms every value", func(t *testing.T) {
		if got := runExt(t, `$mapValues({"a":1,"b":2}, function($v){$v*10}).a`, nil, opt); got != 10.0 {
			t.Errorf("got %v, want 10", got)
		}
	})

	t.Run("mapKeys transforms every key", func(t *testing.T) {
		if got := runExt(t, `$count($keys($mapKeys({"a":1,"b":2}, function($k){$uppercase($k)})))`, nil, opt); got != 2.0 {
			t.Errorf("got %v, want 2", got)
		}
	})
}

// ── exttypes ─────────────────────────────────────────────────────────────────

func TestExtTypes(t *testing.T) {
	opt := gosonata.WithFunctions(exttypes.AllEntries()...)
	runExtCases(t, opt, []extCase{
		{"isString on a string", `$isString("hello")`, nil, true},
		{"isString on a number", `$isString(42)`, nil, false},
		{"isNumber on a number", `$isNumber(42)`, nil, true},
		{"isNumber on a string", `$isNumber("42")`, nil, false},
		{"isBoolean on a bool", `$isBoolean(true)`, nil, true},
		{"isBoolean on a number", `$isBoolean(1)`, nil, false},
		{"isArray on an array", `$isArray([1,2,3])`, nil, true},
		{"isArray on a string", `$isArray("abc")`, nil, false},
		{"isObject on an object", `$isObject({"a":1})`, nil, true},
		{"isObject on an array", `$isObject([1,2])`, nil, false},
		{"isNull on null", `$isNull(null)`, nil, true},
		{"isNull on a string", `$isNull("x")`, nil, false},
		{"isEmpty on an empty string", `$isEmpty("")`, nil, true},
		{"isEmpty on an empty array", `$isEmpty([])`, nil, true},
		{"isEmpty on an empty object", `$isEmpty({})`, nil, true},
		{"isEmpty on a non-empty string", `$isEmpty("x")`, nil, false},
	})
}

// ── extcrypto ────────────────────────────────────────────────────────────────

func TestExtCryptoUUID(t *testing.T) {
	opt := gosonata.WithFunctions(extcrypto.AllEntries()...)
	got := runExt(t, `$uuid()`, nil, opt)
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected a string, got %T", got)
	}
	if len(s) != 36 {
		t.Errorf("expected a 36-character UUID, got %d chars (%q)", len(s), s)
	}
}

func TestExtCryptoHash(t *testing.T) {
	opt := gosonata.WithFunctions(extcrypto.AllEntries()...)

	for _, algo := range []string{"md5", "sha1", "sha256", "sha512"} {
		t.Run(algo, func(t *testing.T) {
			got := runExt(t, `$hash("hello", "`+algo+`")`, nil, opt)
			if s, ok := got.(string); !ok || s == "" {
				t.Errorf("got %v, want a non-empty digest string", got)
			}
		})
	}

	t.Run("sha256 matches the known digest for 'hello'", func(t *testing.T) {
		got := runExt(t, `$hash("hello", "sha256")`, nil, opt)
		want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestExtCryptoHMAC(t *testing.T) {
	opt := gosonata.WithFunctions(extcrypto.AllEntries()...)
	got := runExt(t, `$hmac("message", "secret", "sha256")`, nil, opt)
	if s, ok := got.(string); !ok || s == "" {
		t.Errorf("got %v, want a non-empty MAC string", got)
	}
}

// ── extdatetime ──────────────────────────────────────────────────────────────

func TestExtDateTimeArithmetic(t *testing.T) {
	opt := gosonata.WithFunctions(extdatetime.AllEntries()...)

	t.Run("dateAdd advances by the given unit", func(t *testing.T) {
		if got := runExt(t, `$dateAdd(0, 1, "day")`, nil, opt); got != 86400000.0 {
			t.Errorf("+1 day: got %v, want 86400000", got)
		}
		if got := runExt(t, `$dateAdd(0, 2, "hour")`, nil, opt); got != 7200000.0 {
			t.Errorf("+2 hours: got %v, want 7200000", got)
		}
	})

	t.Run("dateDiff measures the gap between two instants", func(t *testing.T) {
		if got := runExt(t, `$dateDiff(0, 86400000, "day")`, nil, opt); got != 1.0 {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("dateStartOf and dateEndOf bracket a calendar unit", func(t *testing.T) {
		if got := runExt(t, `$dateStartOf(1000, "day")`, nil, opt); got != 0.0 {
			t.Errorf("dateStartOf: got %v, want 0", got)
		}
		if got := runExt(t, `$dateEndOf(0, "day")`, nil, opt); got != 86399999.0 {
			t.Errorf("dateEndOf: got %v, want 86399999", got)
		}
	})
}

func TestExtDateTimeComponents(t *testing.T) {
	opt := gosonata.WithFunctions(extdatetime.AllEntries()...)
	if got := runExt(t, `$dateComponents(0).year`, nil, opt); got != 1970.0 {
		t.Errorf("year: got %v, want 1970", got)
	}
	if got := runExt(t, `$dateComponents(0).month`, nil, opt); got != 1.0 {
		t.Errorf("month: got %v, want 1", got)
	}
}

// ── extformat ────────────────────────────────────────────────────────────────

func TestExtFormatCSV(t *testing.T) {
	opt := gosonata.WithFunctions(extformat.AllEntries()...)

	t.Run("csv parses rows into objects keyed by header", func(t *testing.T) {
		arr, ok := runExt(t, `$csv("name,age\nAlice,30\nBob,25")`, nil, opt).([]interface{})
		if !ok {
			t.Fatalf("got non-array result")
		}
		if len(arr) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(arr))
		}
		first := arr[0].(map[string]interface{})
		if first["name"] != "Alice" {
			t.Errorf("first row name = %v, want Alice", first["name"])
		}
	})

	t.Run("toCSV renders rows back to text", func(t *testing.T) {
		data := map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{"name": "Alice", "age": 30.0},
				map[string]interface{}{"name": "Bob", "age": 25.0},
			},
		}
		got := runExt(t, `$toCSV(rows, ["name","age"])`, data, opt)
		if s, ok := got.(string); !ok || s == "" {
			t.Errorf("got %v, want a non-empty string", got)
		}
	})
}

func TestExtFormatTemplate(t *testing.T) {
	opt := gosonata.WithFunctions(extformat.AllEntries()...)
	got := runExt(t, `$template("Hi {{first}} {{last}}!", {"first":"John","last":"Doe"})`, nil, opt)
	if got != "Hi John Doe!" {
		t.Errorf("got %v, want 'Hi John Doe!'", got)
	}
}

// ── extfunc ──────────────────────────────────────────────────────────────────

func TestExtFuncPipeThreadsValueThroughLambdas(t *testing.T) {
	opt := gosonata.WithFunctions(extfunc.AllEntries()...)
	got := runExt(t, `$pipe("  hello  ", $trim, $uppercase)`, nil, opt)
	if got != "HELLO" {
		t.Errorf("got %v, want HELLO", got)
	}
}

func TestExtFuncMemoizeCachesByArguments(t *testing.T) {
	opt := gosonata.WithFunctions(extfunc.AllEntries()...)
	got := runExt(t, `
		($sq := $memoize(function($n){$n * $n});
		 [$sq(4), $sq(4)])
	`, nil, opt)
	arr, ok := got.([]interface{})
	if !ok || len(arr) != 2 || arr[0] != 16.0 || arr[1] != 16.0 {
		t.Errorf("got %v, want [16, 16]", got)
	}
}
