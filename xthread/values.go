package xthread

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// accessor reads one candidate value from a raw record. ok is false when the candidate is absent or
// empty, which lets a rule list fall through to the next alias.
type accessor func(raw map[string]any) (string, bool)

func firstOf(raw map[string]any, rules []accessor) (string, bool) {
	for _, get := range rules {
		if v, ok := get(raw); ok {
			return v, true
		}
	}
	return "", false
}

// field reads a top-level scalar.
func field(key string) accessor {
	return func(raw map[string]any) (string, bool) {
		return scalar(raw[key])
	}
}

// nested reads a scalar below a chain of object keys.
func nested(keys ...string) accessor {
	return func(raw map[string]any) (string, bool) {
		v, ok := lookup(raw, keys...)
		if !ok {
			return "", false
		}
		return scalar(v)
	}
}

func fields(keys ...string) []accessor {
	out := make([]accessor, 0, len(keys))
	for _, k := range keys {
		out = append(out, field(k))
	}
	return out
}

func lookup(raw map[string]any, keys ...string) (any, bool) {
	var cur any = raw
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// scalar renders strings and numbers. Empty strings, zero numbers, bools and containers count as
// absent.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		s := t.String()
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return s, s != ""
	case float64:
		if t == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), t != 0
	case int64:
		return strconv.FormatInt(t, 10), t != 0
	}
	return "", false
}

// count parses engagement counters that arrive as numbers or numeric strings.
func count(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, i != 0
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), int64(f) != 0
		}
	case float64:
		return int64(t), int64(t) != 0
	case int:
		return int64(t), t != 0
	case int64:
		return t, t != 0
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, i != 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), int64(f) != 0
		}
	}
	return 0, false
}

func firstCount(raw map[string]any, keys ...string) int64 {
	for _, k := range keys {
		if n, ok := count(raw[k]); ok {
			return n
		}
	}
	return 0
}

// truthy mirrors how scraped payloads flag replies: null and false are off, ids and non-empty values
// are on.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0" && s != "null"
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}
