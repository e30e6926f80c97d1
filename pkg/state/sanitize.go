package state

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// sanitizeForJSON implements the degrade-on-failure half of the
// serialization contract (§4.1): any leaf that is not a primitive, list, or
// map must expose a working json.Marshaler, or it is converted to its string
// form rather than aborting the whole save. url.URL and time.Time values
// serialize to strings explicitly, matching the source's behavior.
func sanitizeForJSON(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, int, int64, float32:
		return v
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339Nano)
	case url.URL:
		return t.String()
	case *url.URL:
		if t == nil {
			return nil
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitizeForJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeForJSON(val)
		}
		return out
	default:
		if _, err := json.Marshal(v); err == nil {
			return v
		}
		return fmt.Sprintf("%v", v)
	}
}

func sanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return sanitizeForJSON(m).(map[string]any)
}
