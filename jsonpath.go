package sfntasks

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	// JsonPathDiscard as a ResultPath drops the task result and passes the input through.
	JsonPathDiscard = "DISCARD"
	// JsonPathEntirePayload references the whole state input.
	JsonPathEntirePayload = "$"
	// JsonPathTaskToken is the context-object path of the callback task token.
	JsonPathTaskToken = "${Token[$$.Task.Token]}"

	taskTokenPath = "$$.Task.Token"
)

// String path tokens look like ${Token[<path>]} and list tokens like ${TokenList[<path>]}.
var (
	stringTokenRe = regexp.MustCompile(`\$\{Token\[(.+?)\]\}`)
	wholeStringRe = regexp.MustCompile(`^\$\{Token\[(.+)\]\}$`)
	wholeListRe   = regexp.MustCompile(`^\$\{TokenList\[(.+)\]\}$`)
)

// JsonPathStringAt returns a string that renders as a reference to path.
func JsonPathStringAt(path string) string {
	return "${Token[" + path + "]}"
}

// JsonPathListAt returns a list that renders as a reference to path.
func JsonPathListAt(path string) []string {
	return []string{"${TokenList[" + path + "]}"}
}

// number tokens are NaN payloads; the low bits index numberPaths.
const numberTokenBase uint64 = 0x7ff8_5ef0_0000_0000

var (
	numberMu    sync.Mutex
	numberPaths = map[uint64]string{}
	numberIndex = map[string]uint64{}
)

// JsonPathNumberAt returns a number that renders as a reference to path. Tokens are
// interned for the life of the process.
func JsonPathNumberAt(path string) float64 {
	numberMu.Lock()
	defer numberMu.Unlock()
	if bits, ok := numberIndex[path]; ok {
		return math.Float64frombits(bits)
	}
	bits := numberTokenBase | uint64(len(numberPaths)+1)
	numberPaths[bits] = path
	numberIndex[path] = bits
	return math.Float64frombits(bits)
}

func numberTokenPath(v float64) (string, bool) {
	if !math.IsNaN(v) {
		return "", false
	}
	numberMu.Lock()
	defer numberMu.Unlock()
	path, ok := numberPaths[math.Float64bits(v)]
	return path, ok
}

// IsJsonPathString reports whether s is entirely a path reference.
func IsJsonPathString(s string) bool {
	return wholeStringRe.MatchString(s)
}

// JsonPathFormat renders the States.Format intrinsic. Arguments may be path references
// (from JsonPathStringAt) or literal strings.
func JsonPathFormat(format string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	// the template keeps its {} placeholders unescaped
	parts = append(parts, "'"+strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(format)+"'")
	for _, arg := range args {
		if m := wholeStringRe.FindStringSubmatch(arg); m != nil {
			parts = append(parts, m[1])
			continue
		}
		parts = append(parts, quoteIntrinsic(arg))
	}
	return JsonPathStringAt("States.Format(" + strings.Join(parts, ", ") + ")")
}

// JsonPathJsonToString renders the States.JsonToString intrinsic.
func JsonPathJsonToString(value string) string {
	return JsonPathStringAt("States.JsonToString(" + intrinsicArg(value) + ")")
}

// JsonPathStringToJson renders the States.StringToJson intrinsic.
func JsonPathStringToJson(value string) string {
	return JsonPathStringAt("States.StringToJson(" + intrinsicArg(value) + ")")
}

func intrinsicArg(value string) string {
	if m := wholeStringRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return quoteIntrinsic(value)
}

func quoteIntrinsic(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `{`, `\{`, `}`, `\}`)
	return "'" + replacer.Replace(s) + "'"
}

func validatePath(path string) error {
	switch {
	case path == "$" || path == "$$":
		return nil
	case strings.HasPrefix(path, "$.") || strings.HasPrefix(path, "$["):
		return nil
	case strings.HasPrefix(path, "$$.") || strings.HasPrefix(path, "$$["):
		return nil
	case strings.HasPrefix(path, "States."):
		return nil
	default:
		return fmt.Errorf("JSONPath must start with '$', got %q", path)
	}
}

// renderObject resolves path tokens in a parameter object. A key whose value is a
// path reference is rendered as "<key>.$": "<path>".
func renderObject(obj map[string]any) (map[string]any, error) {
	if obj == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(obj))
	for _, key := range keys {
		value := obj[key]
		if value == nil {
			continue
		}
		path, isPath, err := pathOf(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if isPath {
			if err := validatePath(path); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key+".$"] = path
			continue
		}
		rendered, err := renderValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}

// pathOf reports whether value is, in its entirety, a path token.
func pathOf(value any) (string, bool, error) {
	switch v := value.(type) {
	case string:
		if m := wholeStringRe.FindStringSubmatch(v); m != nil && len(stringTokenRe.FindAllString(v, -1)) == 1 {
			return m[1], true, nil
		}
		if stringTokenRe.MatchString(v) {
			return "", false, fmt.Errorf("Field references must be the entire string, cannot concatenate them (found '%s')", v)
		}
	case []string:
		if len(v) == 1 {
			if m := wholeListRe.FindStringSubmatch(v[0]); m != nil {
				return m[1], true, nil
			}
		}
	case float64:
		if path, ok := numberTokenPath(v); ok {
			return path, true, nil
		}
	}
	return "", false, nil
}

func renderValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		return renderObject(v)
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return renderObject(obj)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if _, isPath, _ := pathOf(item); isPath {
				return nil, fmt.Errorf("Cannot use JsonPath fields in an array, they must be used in objects")
			}
			rendered, err := renderValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		}
		return out, nil
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			rendered, err := renderObject(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		}
		return out, nil
	case []string:
		for _, item := range v {
			if stringTokenRe.MatchString(item) || wholeListRe.MatchString(item) {
				return nil, fmt.Errorf("Cannot use JsonPath fields in an array, they must be used in objects")
			}
		}
		return append([]string(nil), v...), nil
	case string:
		if stringTokenRe.MatchString(v) {
			return nil, fmt.Errorf("Field references must be the entire string, cannot concatenate them (found '%s')", v)
		}
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("number %v cannot be rendered", v)
		}
		return v, nil
	default:
		return v, nil
	}
}

// referencedPaths returns every path token found in value.
func referencedPaths(value any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			for _, m := range stringTokenRe.FindAllStringSubmatch(x, -1) {
				out = append(out, m[1])
			}
			if m := wholeListRe.FindStringSubmatch(x); m != nil {
				out = append(out, m[1])
			}
		case []string:
			for _, s := range x {
				walk(s)
			}
		case float64:
			if path, ok := numberTokenPath(x); ok {
				out = append(out, path)
			}
		case map[string]any:
			for _, inner := range x {
				walk(inner)
			}
		case map[string]string:
			for _, inner := range x {
				walk(inner)
			}
		case []any:
			for _, inner := range x {
				walk(inner)
			}
		case []map[string]any:
			for _, inner := range x {
				walk(inner)
			}
		}
	}
	walk(value)
	return out
}

// containsTaskToken reports whether value references the callback task token.
func containsTaskToken(value any) bool {
	for _, path := range referencedPaths(value) {
		if strings.Contains(path, taskTokenPath) {
			return true
		}
	}
	return false
}

// ValidateJsonPath reports whether path is a reference Step Functions accepts.
func ValidateJsonPath(path string) error {
	return validatePath(path)
}

// RenderParameters resolves path tokens in obj the way task Parameters are rendered,
// for use in Pass states and result selectors outside a task.
func RenderParameters(obj map[string]any) (map[string]any, error) {
	return renderObject(obj)
}
