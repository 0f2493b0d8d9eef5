package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// nowTime/nowCalculated cache the wall-clock instant the first $now()/
// $millis() call in this process observed, so that every subsequent call —
// across every expression evaluated by this process — returns the same
// timestamp. This matches JSONata's single-evaluation "now" semantic at
// the process level rather than per-Eval call.
var (
	nowTime       time.Time
	nowCalculated bool
)

// cachedNow returns the process-wide cached "now" instant, computing and
// latching it on first use.
func cachedNow() time.Time {
	if !nowCalculated {
		nowTime = time.Now()
		nowCalculated = true
	}
	return nowTime
}

// reTimezoneOffset matches a bare timezone offset like +0000 or -0000 at
// the end of a string.
var reTimezoneOffset = mustCompileRegex(`([+-])(\d{2})(\d{2})$`)

// fnNow implements $now([picture [, timezone]]). Picture/timezone
// formatting beyond plain ISO 8601 is not implemented (date/time locale
// formatting is out of scope); both arguments are currently ignored.
func fnNow(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return cachedNow().UTC().Format(time.RFC3339Nano), nil
}

// fnMillis implements $millis(), sharing $now's cached instant.
func fnMillis(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return float64(cachedNow().UnixMilli()), nil
}

// timePictureMarker is one substitution rule applied by
// formatTimestampWithPicture, tried in declaration order so more specific
// markers (e.g. "[Y0001]") are replaced before their generic prefix
// ("[Y]") would otherwise match part of the pattern.
type timePictureMarker struct {
	marker string
	value  func(t time.Time, isoYear, isoWeek, isoWeekday int) string
}

var timePictureMarkers = []timePictureMarker{
	{"[X0001]", func(t time.Time, y, _, _ int) string { return fmt.Sprintf("%04d", y) }},
	{"[X]", func(t time.Time, y, _, _ int) string { return fmt.Sprintf("%d", y) }},
	{"[W01]", func(t time.Time, _, w, _ int) string { return fmt.Sprintf("%02d", w) }},
	{"[W]", func(t time.Time, _, w, _ int) string { return fmt.Sprintf("%d", w) }},
	{"[F1]", func(t time.Time, _, _, d int) string { return fmt.Sprintf("%d", d) }},
	{"[F]", func(t time.Time, _, _, d int) string { return fmt.Sprintf("%d", d) }},
	{"[Y0001]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"[Y0000]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"[Y,*-4]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"[Y]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"[M01]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", int(t.Month())) }},
	{"[M00]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", int(t.Month())) }},
	{"[M]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", int(t.Month())) }},
	{"[D01]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"[D00]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"[D]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", t.Day()) }},
	{"[H00]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Hour()) }},
	{"[H01]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Hour()) }},
	{"[H]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", t.Hour()) }},
	{"[m00]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Minute()) }},
	{"[m01]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Minute()) }},
	{"[m]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", t.Minute()) }},
	{"[s00]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Second()) }},
	{"[s01]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%02d", t.Second()) }},
	{"[s]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", t.Second()) }},
	{"[f001]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%03d", t.Nanosecond()/1e6) }},
	{"[f]", func(t time.Time, _, _, _ int) string { return fmt.Sprintf("%d", t.Nanosecond()/1e6) }},
}

// formatTimestampWithPicture formats t using an XPath-picture-string
// subset: [Y]/[Y0001] year, [M]/[M01] month, [D]/[D01] day, [H]/[H00]
// hour, [m]/[m00] minute, [s]/[s00] second, [f]/[f001] milliseconds,
// [X]/[W]/[F] ISO week-date components.
func formatTimestampWithPicture(t time.Time, picture string) string {
	isoYear, isoWeek := t.ISOWeek()
	weekday := int(t.Weekday()) // 0=Sun .. 6=Sat
	isoWeekday := weekday
	if isoWeekday == 0 {
		isoWeekday = 7 // ISO: Sunday is 7
	}

	result := picture
	for _, m := range timePictureMarkers {
		if strings.Contains(result, m.marker) {
			result = strings.ReplaceAll(result, m.marker, m.value(t, isoYear, isoWeek, isoWeekday))
		}
	}
	return result
}

// fnFromMillis implements $fromMillis(number [, picture [, timezone]]);
// timezone is accepted but not applied (output is always UTC).
func fnFromMillis(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	millis, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	timestamp := time.Unix(0, int64(millis)*1_000_000).UTC()

	if len(args) < 2 || args[1] == nil {
		return timestamp.Format(time.RFC3339Nano), nil
	}
	picture, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("D3110: picture argument of $fromMillis must be a string")
	}
	return formatTimestampWithPicture(timestamp, picture), nil
}

// isoTimestampLayouts are tried in order by fnToMillis when no picture is
// given, from most to least specific.
var isoTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// fnToMillis implements $toMillis(timestamp [, picture]).
func fnToMillis(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	timestamp, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("D3110: timestamp must be a string, got %T", args[0])
	}

	if len(args) == 2 && args[1] != nil {
		picture, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("picture format must be a string")
		}
		return parseTimestampWithPicture(timestamp, picture)
	}

	normalized := normalizeTimezoneOffset(timestamp)
	for _, layout := range isoTimestampLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return float64(t.UnixMilli()), nil
		}
	}
	return nil, fmt.Errorf("D3110: cannot parse timestamp: %s", timestamp)
}

// normalizeTimezoneOffset rewrites a bare "+0000"-style offset to "+00:00"
// so it matches a Go reference-layout timezone field.
func normalizeTimezoneOffset(timestamp string) string {
	if reTimezoneOffset.MatchString(timestamp) {
		return reTimezoneOffset.ReplaceAllString(timestamp, `$1$2:$3`)
	}
	return timestamp
}

// timePictureComponent is one named, regex-backed field recognized by
// parseTimestampWithPicture.
type timePictureComponent struct {
	name    string
	pattern string
}

// timePictureComponentMarkers maps each group of picture markers (longest/
// most specific first) to the date-time component it captures.
var timePictureComponentMarkers = []struct {
	markers []string
	comp    timePictureComponent
}{
	{[]string{"[Y0001]", "[Y0000]", "[Y,*-4]", "[Y]"}, timePictureComponent{"year", `(\d{1,4})`}},
	{[]string{"[M01]", "[M00]", "[M]"}, timePictureComponent{"month", `(\d{1,2})`}},
	{[]string{"[D01]", "[D00]", "[D]"}, timePictureComponent{"day", `(\d{1,2})`}},
	{[]string{"[H00]", "[H]"}, timePictureComponent{"hour", `(\d{1,2})`}},
	{[]string{"[m00]", "[m]"}, timePictureComponent{"minute", `(\d{1,2})`}},
	{[]string{"[s00]", "[s]"}, timePictureComponent{"second", `(\d{1,2})`}},
}

// parseTimestampWithPicture parses timestamp against a picture format
// string by translating each recognized marker into a regex capture
// group, in the order the markers appear in picture. This is a narrow
// implementation covering only the component markers above, not a full
// XPath picture-string parser.
func parseTimestampWithPicture(timestamp, picture string) (interface{}, error) {
	type foundComponent struct {
		pos  int
		comp timePictureComponent
	}
	var components []foundComponent
	pattern := picture
	for _, group := range timePictureComponentMarkers {
		for _, marker := range group.markers {
			if pos := strings.Index(picture, marker); pos >= 0 {
				components = append(components, foundComponent{pos, group.comp})
				pattern = strings.Replace(pattern, marker, group.comp.pattern, 1)
				break
			}
		}
	}
	sort.Slice(components, func(i, j int) bool { return components[i].pos < components[j].pos })

	re, err := getOrCompileRegex("^" + pattern + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid picture format: %s", picture)
	}
	matches := re.FindStringSubmatch(timestamp)
	if matches == nil {
		return nil, fmt.Errorf("D3110: cannot parse timestamp with picture format: %s", timestamp)
	}

	values := make(map[string]int, len(components))
	for i, found := range components {
		val, _ := strconv.Atoi(matches[i+1])
		values[found.comp.name] = val
	}

	year := values["year"]
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	month := values["month"]
	if month == 0 {
		month = 1
	}
	day := values["day"]
	if day == 0 {
		day = 1
	}

	t := time.Date(year, time.Month(month), day, values["hour"], values["minute"], values["second"], 0, time.UTC)
	return float64(t.UnixMilli()), nil
}
