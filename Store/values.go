package Store

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// timeLayout is fixed width so stored instants compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// normalize converts a Go value into the JSON-shaped form the local store persists
// and compares: instants become fixed-width UTC strings, integers become float64.
// now resolves ServerTimestamp; when nil the sentinel is kept.
func normalize(v any, now *time.Time) any {
	switch x := v.(type) {
	case nil:
		return nil
	case serverTimestamp:
		if now == nil {
			return x
		}
		return encodeTime(*now)
	case time.Time:
		return encodeTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return encodeTime(*x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case string, bool, float64:
		return x
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val, now)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val, now)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface(), now)
		}
		return out
	}
	return v
}

// compareValues orders two normalized values of the same kind.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func matches(data map[string]any, f Filter) bool {
	field, present := data[f.Field]
	want := normalize(f.Value, nil)

	switch f.Op {
	case OpEqual:
		return present && reflect.DeepEqual(field, want)
	case OpNotEqual:
		return present && !reflect.DeepEqual(field, want)
	case OpIn:
		options, ok := want.([]any)
		if !ok || !present {
			return false
		}
		for _, o := range options {
			if reflect.DeepEqual(field, o) {
				return true
			}
		}
		return false
	case OpArrayContains:
		items, ok := field.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if reflect.DeepEqual(item, want) {
				return true
			}
		}
		return false
	}

	if !present {
		return false
	}
	c, ok := compareValues(field, want)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// applyQuery filters, orders and limits docs in place of a query planner.
// Documents missing the order field are excluded, as Firestore does.
func applyQuery(docs []Document, q Query) []Document {
	var out []Document
	for _, d := range docs {
		ok := true
		for _, f := range q.Filters {
			if !matches(d.Data, f) {
				ok = false
				break
			}
		}
		if ok && q.OrderBy != "" {
			if _, present := d.Data[q.OrderBy]; !present {
				ok = false
			}
		}
		if ok {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c, _ := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func containsValue(items []any, v any) bool {
	for _, item := range items {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}
