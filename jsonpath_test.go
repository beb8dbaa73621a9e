package sfntasks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRenderObject_Paths(t *testing.T) {
	t.Parallel()

	out, err := renderObject(map[string]any{
		"str":    JsonPathStringAt("$.a"),
		"list":   JsonPathListAt("$.items"),
		"num":    JsonPathNumberAt("$.count"),
		"ctx":    JsonPathStringAt("$$.Execution.Id"),
		"plain":  "text",
		"nested": map[string]any{"inner": JsonPathStringAt("$.b")},
		"skip":   nil,
		"env":    map[string]string{"TOKEN": JsonPathTaskToken},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"str.$":  "$.a",
		"list.$": "$.items",
		"num.$":  "$.count",
		"ctx.$":  "$$.Execution.Id",
		"plain":  "text",
		"nested": map[string]any{"inner.$": "$.b"},
		"env":    map[string]any{"TOKEN.$": "$$.Task.Token"},
	}, out)
}

func TestRenderObject_Errors(t *testing.T) {
	t.Parallel()

	_, err := renderObject(map[string]any{"greeting": "hello " + JsonPathStringAt("$.name")})
	require.ErrorContains(t, err, "Field references must be the entire string, cannot concatenate them (found 'hello ${Token[$.name]}')")

	_, err = renderObject(map[string]any{"items": []any{JsonPathStringAt("$.a")}})
	require.ErrorContains(t, err, "Cannot use JsonPath fields in an array, they must be used in objects")

	_, err = renderObject(map[string]any{"items": []string{"x", JsonPathStringAt("$.a")}})
	require.ErrorContains(t, err, "Cannot use JsonPath fields in an array")

	_, err = renderObject(map[string]any{"bad": JsonPathStringAt("a.b")})
	require.ErrorContains(t, err, "JSONPath must start with '$'")

	_, err = renderObject(map[string]any{"nan": math.NaN()})
	require.Error(t, err)
}

func TestJsonPathFormat(t *testing.T) {
	t.Parallel()

	format := JsonPathFormat("Hello {}, you are {}", JsonPathStringAt("$.name"), "it's {odd}")
	require.Equal(t, `${Token[States.Format('Hello {}, you are {}', $.name, 'it\'s \{odd\}')]}`, format)

	out, err := renderObject(map[string]any{"message": format})
	require.NoError(t, err)
	require.Equal(t, `States.Format('Hello {}, you are {}', $.name, 'it\'s \{odd\}')`, out["message.$"])

	require.Equal(t, "${Token[States.JsonToString($.obj)]}", JsonPathJsonToString(JsonPathStringAt("$.obj")))
	require.Equal(t, "${Token[States.StringToJson($.str)]}", JsonPathStringToJson(JsonPathStringAt("$.str")))
}

func TestJsonPathNumberAt_IsStable(t *testing.T) {
	t.Parallel()

	a := JsonPathNumberAt("$.stable.number")
	b := JsonPathNumberAt("$.stable.number")
	require.True(t, math.IsNaN(a))
	require.Equal(t, math.Float64bits(a), math.Float64bits(b))

	path, ok := numberTokenPath(a)
	require.True(t, ok)
	require.Equal(t, "$.stable.number", path)

	_, ok = numberTokenPath(1.5)
	require.False(t, ok)
}

func TestContainsTaskToken(t *testing.T) {
	t.Parallel()

	require.True(t, containsTaskToken(map[string]any{"a": []any{map[string]any{"t": JsonPathTaskToken}}}))
	require.True(t, containsTaskToken(JsonPathFormat("{}", JsonPathTaskToken)))
	require.False(t, containsTaskToken(map[string]any{"a": JsonPathStringAt("$.token")}))
	require.False(t, TaskInputFromText("no token").containsTaskToken())
}

func TestRenderObject_PathKeysProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Za-z][A-Za-z0-9]{0,8}`), 1, 8, rapid.ID[string]).Draw(t, "keys")
		paths := rapid.SliceOfN(rapid.StringMatching(`\$\.[a-z]{1,6}(\.[a-z]{1,6}){0,2}`), len(keys), len(keys)).Draw(t, "paths")
		literal := rapid.SliceOfN(rapid.Bool(), len(keys), len(keys)).Draw(t, "literal")

		obj := map[string]any{}
		for i, k := range keys {
			if literal[i] {
				obj[k] = paths[i]
			} else {
				obj[k] = JsonPathStringAt(paths[i])
			}
		}

		out, err := renderObject(obj)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if len(out) != len(keys) {
			t.Fatalf("expected %d keys, got %d", len(keys), len(out))
		}
		for i, k := range keys {
			if literal[i] {
				if out[k] != paths[i] {
					t.Fatalf("literal %q changed: %v", k, out[k])
				}
				continue
			}
			if out[k+".$"] != paths[i] {
				t.Fatalf("path %q rendered as %v", k, out[k+".$"])
			}
		}
	})
}
