// Package sfntasks builds AWS Step Functions service-integration task states.
//
// Each integration (LambdaInvoke, SqsSendMessage, BatchSubmitJob, ...) is constructed from a
// flat props struct inside a Stack. A constructed task renders its Amazon States Language
// Task state and reports the IAM statements the state machine role needs to run it.
package sfntasks

import (
	"sort"
	"strconv"
)

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// putIf sets key when value is non-empty.
func putIf(m map[string]any, key string, value string) {
	if value != "" {
		m[key] = value
	}
}

func putInt(m map[string]any, key string, value *int) {
	if value != nil {
		m[key] = *value
	}
}

func putBool(m map[string]any, key string, value *bool) {
	if value != nil {
		m[key] = *value
	}
}

func itoa(v int) string { return strconv.Itoa(v) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
