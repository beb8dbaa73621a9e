package sanitization

import (
	"encoding/json"
	"fmt"
)

// embeddedJSONKeys hold JSON documents encoded as strings, such as execution input and output.
var embeddedJSONKeys = map[string]bool{
	"input":  true,
	"output": true,
	"body":   true,
}

// SanitizeJSON recursively sanitizes JSON data for logging.
//
// It returns indented JSON with sensitive fields redacted and structure preserved.
func SanitizeJSON(jsonBytes []byte) string {
	if len(jsonBytes) == 0 {
		return emptyMaskedValue
	}

	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return fmt.Sprintf("(malformed JSON: %s)", err.Error())
	}

	out, err := json.MarshalIndent(sanitizeJSONValue(data), "", "  ")
	if err != nil {
		return "(error marshaling sanitized JSON)"
	}
	return string(out)
}

func sanitizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeJSONObject(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = sanitizeJSONValue(v[i])
		}
		return out
	default:
		return sanitizeValue(v)
	}
}

func sanitizeJSONObject(obj map[string]any) map[string]any {
	result := make(map[string]any, len(obj))
	for key, value := range obj {
		if embeddedJSONKeys[key] {
			if text, ok := value.(string); ok {
				if nested, ok := sanitizeEmbedded(text); ok {
					result[key] = nested
					continue
				}
			}
		}

		switch sv := SanitizeFieldValue(key, value).(type) {
		case map[string]any:
			result[key] = sanitizeJSONObject(sv)
		case []any:
			result[key] = sanitizeJSONValue(sv)
		default:
			result[key] = sv
		}
	}
	return result
}

func sanitizeEmbedded(text string) (string, bool) {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return "", false
	}
	switch data.(type) {
	case map[string]any, []any:
	default:
		return "", false
	}
	out, err := json.Marshal(sanitizeJSONValue(data))
	if err != nil {
		return "", false
	}
	return string(out), true
}
