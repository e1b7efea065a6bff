package telemetry

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Item text never leaves the process through spans.
var denyKeys = []string{
	"text",
	"content",
	"body",
	"authorization",
	"api_key",
	"secret",
	"credential",
	"token",
	"password",
}

// SafeAttributes filters out unsafe keys/values and returns OTEL attributes
// in key order.
func SafeAttributes(values map[string]interface{}) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []attribute.KeyValue
	for _, k := range keys {
		if denied(k) {
			continue
		}
		switch val := values[k].(type) {
		case string:
			if len(val) > 256 {
				continue
			}
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			// unsupported types ignored for safety
		}
	}
	return attrs
}

// denied matches on the last dotted segment so namespaces such as
// "textpulse." do not trip the filter.
func denied(key string) bool {
	lk := strings.ToLower(key)
	lk = lk[strings.LastIndex(lk, ".")+1:]
	for _, bad := range denyKeys {
		if strings.Contains(lk, bad) {
			return true
		}
	}
	return false
}
