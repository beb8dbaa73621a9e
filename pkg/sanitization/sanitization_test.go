package sanitization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSanitizeLogString_StripsCRLF(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ab", SanitizeLogString("a\r\nb"))
	require.Empty(t, SanitizeLogString(""))
}

func TestSanitizeFieldValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		value any
		want  any
	}{
		{key: "taskToken", value: "AAAAKgAAAAIAAAAAAAAAAQ", want: redactedValue},
		{key: "task_token", value: "x", want: redactedValue},
		{key: "AWS_SECRET_ACCESS_KEY", value: "abc", want: redactedValue},
		{key: "refresh_token", value: "abc", want: redactedValue},
		{key: "db_credentials", value: "abc", want: redactedValue},
		{key: "aws_access_key_id", value: "AKIAABCDEFGH1234", want: "************1234"},
		{key: "account_id", value: "123", want: redactedValue},
		{key: "account_id", value: 123456789012, want: redactedValue},
		{key: "next_token", value: "page-2", want: "page-2"},
		{key: "", value: "a\nb", want: "ab"},
		{key: "count", value: 3, want: 3},
		{key: "ok", value: true, want: true},
		{key: "cause", value: errors.New("boom\r\n"), want: "boom"},
		{key: "raw", value: []byte("x\ny"), want: "xy"},
		{key: "items", value: []string{"a\n", "b"}, want: []any{"a", "b"}},
		{key: "nil", value: nil, want: nil},
		{key: "duration", value: struct{ S int }{S: 1}, want: "{1}"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeFieldValue(tc.key, tc.value), tc.key)
	}
}

func TestSanitizeFieldValue_Recurses(t *testing.T) {
	t.Parallel()

	got := SanitizeFieldValue("payload", map[string]any{
		"orderId": "o-1",
		"callback": map[string]string{
			"taskToken": "secret",
		},
		"list": []any{"a\n", map[string]any{"password": "p"}},
	})
	require.Equal(t, map[string]any{
		"orderId":  "o-1",
		"callback": map[string]any{"taskToken": redactedValue},
		"list":     []any{"a", map[string]any{"password": redactedValue}},
	}, got)
}

func TestSanitizeJSON(t *testing.T) {
	t.Parallel()

	out := SanitizeJSON([]byte(`{
		"executionArn": "arn:aws:states:us-east-1:123456789012:execution:orders:1",
		"input": "{\"taskToken\":\"abc\",\"orderId\":\"o-1\"}",
		"output": "plain text",
		"nested": {"secret": "s", "items": [{"session_token": "t"}, 1]}
	}`))
	parsed := gjson.Parse(out)
	require.Equal(t, "arn:aws:states:us-east-1:123456789012:execution:orders:1", parsed.Get("executionArn").String())
	require.Equal(t, `{"orderId":"o-1","taskToken":"[REDACTED]"}`, parsed.Get("input").String())
	require.Equal(t, "plain text", parsed.Get("output").String())
	require.Equal(t, redactedValue, parsed.Get("nested.secret").String())
	require.Equal(t, redactedValue, parsed.Get("nested.items.0.session_token").String())
	require.EqualValues(t, 1, parsed.Get("nested.items.1").Int())

	require.Equal(t, "(empty)", SanitizeJSON(nil))
	require.Contains(t, SanitizeJSON([]byte("{")), "malformed JSON")
}

func TestMasking(t *testing.T) {
	t.Parallel()

	require.Equal(t, "(empty)", MaskFirstLast("", 1, 1))
	require.Equal(t, maskedValue, MaskFirstLast("abc", -1, 1))
	require.Equal(t, maskedValue, MaskFirstLast("abcd", 2, 2))
	require.Equal(t, "ab***ef", MaskFirstLast("abcXXef", 2, 2))
	require.Equal(t, "abcd***6789", MaskFirstLast4("abcdXXXX6789"))

	require.Equal(t, maskedValue, TaskTokenFingerprint("short"))
	require.Equal(t, "AAAAKg***xyz123", TaskTokenFingerprint("AAAAKgAAAAIAAAAAAAAAAQxyz123"))
}
