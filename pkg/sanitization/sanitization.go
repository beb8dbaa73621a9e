package sanitization

import (
	"fmt"
	"strings"
)

const redactedValue = "[REDACTED]"

const (
	emptyMaskedValue = "(empty)"
	maskedValue      = "***masked***"
)

// AllowedFields are field names that bypass key based redaction even though they contain
// a blocked substring.
var AllowedFields = map[string]bool{
	"token_count":       true,
	"next_token":        true,
	"task_token_source": true,
}

// SanitizationType defines how to sanitize a field.
type SanitizationType int

const (
	FullyRedact SanitizationType = iota
	PartialMask
)

// SensitiveFields maps lowercased field names to their treatment.
var SensitiveFields = map[string]SanitizationType{
	"task_token": FullyRedact,
	"tasktoken":  FullyRedact,

	"aws_secret_access_key": FullyRedact,
	"aws_session_token":     FullyRedact,
	"secret_access_key":     FullyRedact,
	"session_token":         FullyRedact,
	"password":              FullyRedact,
	"secret":                FullyRedact,
	"private_key":           FullyRedact,
	"authorization":         FullyRedact,

	"aws_access_key_id": PartialMask,
	"access_key_id":     PartialMask,
	"account":           PartialMask,
	"account_id":        PartialMask,
}

var blockedSubstrings = []string{
	"secret",
	"token",
	"password",
	"private_key",
	"credential",
	"authorization",
}

// SanitizeLogString removes control characters that could enable log forging.
func SanitizeLogString(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

// SanitizeFieldValue sanitizes a field value based on its key name.
func SanitizeFieldValue(key string, value any) any {
	keyLower := strings.ToLower(strings.TrimSpace(key))
	if keyLower == "" || AllowedFields[keyLower] {
		return sanitizeValue(value)
	}

	if typ, ok := SensitiveFields[keyLower]; ok {
		if typ == PartialMask {
			return maskValue(value)
		}
		return redactedValue
	}

	for _, substr := range blockedSubstrings {
		if strings.Contains(keyLower, substr) {
			return redactedValue
		}
	}

	return sanitizeValue(value)
}

// MaskFirstLast keeps the first prefixLen and last suffixLen characters and masks the middle.
func MaskFirstLast(value string, prefixLen, suffixLen int) string {
	if value == "" {
		return emptyMaskedValue
	}
	if prefixLen < 0 || suffixLen < 0 || len(value) <= prefixLen+suffixLen {
		return maskedValue
	}
	return value[:prefixLen] + "***" + value[len(value)-suffixLen:]
}

// MaskFirstLast4 keeps the first and last 4 characters and masks the middle.
func MaskFirstLast4(value string) string {
	return MaskFirstLast(value, 4, 4)
}

// TaskTokenFingerprint returns a short, non-reversible form of a task token that is
// still useful for correlating log lines of one callback.
func TaskTokenFingerprint(token string) string {
	token = strings.TrimSpace(token)
	if len(token) < 24 {
		return maskedValue
	}
	return MaskFirstLast(token, 6, 6)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return SanitizeLogString(typed)
	case []byte:
		return SanitizeLogString(string(typed))
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = SanitizeFieldValue(k, v)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = SanitizeFieldValue(k, v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = sanitizeValue(typed[i])
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = SanitizeLogString(typed[i])
		}
		return out
	case bool, int, int32, int64, float64:
		return typed
	case error:
		return SanitizeLogString(typed.Error())
	default:
		return SanitizeLogString(fmt.Sprintf("%v", typed))
	}
}

func maskValue(value any) string {
	switch v := value.(type) {
	case string:
		return maskTail(v)
	case []byte:
		return maskTail(string(v))
	default:
		return redactedValue
	}
}

// maskTail keeps the last 4 characters.
func maskTail(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 4 {
		return redactedValue
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
