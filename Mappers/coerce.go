// Package Mappers turns raw store documents into typed entities and back.
// Every mapper is total: missing or malformed fields fall back to defaults
// and never produce an error.
package Mappers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case *string:
		if x == nil {
			return ""
		}
		return strings.TrimSpace(*x)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	}
	return ""
}

// asOptString maps blank and absent values to nil.
func asOptString(v any) *string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), true
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case int:
		return time.UnixMilli(int64(x)).UTC(), true
	case int64:
		return time.UnixMilli(x).UTC(), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(x)).UTC(), true
	case map[string]any:
		// exported Timestamp shape {seconds, nanoseconds}
		secs, ok := asInt64(x["seconds"])
		if !ok {
			secs, ok = asInt64(x["_seconds"])
		}
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := asInt64(x["nanoseconds"])
		if nanos == 0 {
			nanos, _ = asInt64(x["_nanoseconds"])
		}
		return time.Unix(secs, nanos).UTC(), true
	}
	return time.Time{}, false
}

func asOptTime(v any) *time.Time {
	t, ok := asTime(v)
	if !ok {
		return nil
	}
	return &t
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return int64(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	}
	return false
}

func asStrings(v any) []string {
	var out []string
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range x {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// timeOrNil keeps nullable instants explicit in write fields.
func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// pathSegment returns the i-th segment of a slash separated document path.
func pathSegment(path string, i int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}
