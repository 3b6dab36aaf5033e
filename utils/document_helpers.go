package utils

import "time"

// ExtractString safely extracts a string from a store document.
func ExtractString(doc map[string]interface{}, field string) string {
	if v, ok := doc[field].(string); ok {
		return v
	}
	return ""
}

// ExtractInt safely extracts an integer from a store document. Numeric values
// come back as int, int64, or float64 depending on the backend.
func ExtractInt(doc map[string]interface{}, field string) int {
	switch v := doc[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ExtractBool safely extracts a boolean from a store document.
func ExtractBool(doc map[string]interface{}, field string) bool {
	if v, ok := doc[field].(bool); ok {
		return v
	}
	return false
}

// ExtractTime safely extracts a timestamp from a store document. The memory
// backend stores time.Time values directly; DynamoDB round-trips them as
// epoch milliseconds.
func ExtractTime(doc map[string]interface{}, field string) time.Time {
	switch v := doc[field].(type) {
	case time.Time:
		return v
	case int64:
		return time.UnixMilli(v).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ExtractStringSlice safely extracts a list of strings from a store document.
func ExtractStringSlice(doc map[string]interface{}, field string) []string {
	switch v := doc[field].(type) {
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
