package zap

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/theory-cloud/sfntasks/pkg/observability"
	"github.com/theory-cloud/sfntasks/testkit"
)

func TestSNSNotifier_PublishesEntryWithAttributes(t *testing.T) {
	t.Parallel()

	topic := testkit.NewFakeSNSTopic()
	notifier := NewSNSNotifier(topic, "  arn:aws:sns:us-east-1:123456789012:alerts  ", SNSNotifierOptions{})

	err := notifier.Notify(context.Background(), observability.LogEntry{
		Level:        "error",
		Message:      "task.failed",
		StateMachine: "orders",
		State:        "Charge",
	})
	require.NoError(t, err)

	last, ok := topic.Last()
	require.True(t, ok)
	require.Equal(t, "arn:aws:sns:us-east-1:123456789012:alerts", last.TopicARN)
	require.Equal(t, defaultNotificationSubject, last.Subject)
	require.Equal(t, map[string]string{"state_machine": "orders", "state": "Charge"}, last.Attributes)

	body := gjson.Parse(last.Message)
	require.Equal(t, "task.failed", body.Get("entry.message").String())
	require.Equal(t, "orders", body.Get("entry.state_machine").String())
}

func TestSNSNotifier_TruncatesAndSanitizes(t *testing.T) {
	t.Parallel()

	topic := testkit.NewFakeSNSTopic()
	notifier := NewSNSNotifier(topic, "arn:aws:sns:us-east-1:123456789012:alerts", SNSNotifierOptions{
		Subject: "line1\r\nline2" + strings.Repeat("s", 200),
	})

	require.NoError(t, notifier.Notify(context.Background(), observability.LogEntry{
		Fields: map[string]any{"payload": strings.Repeat("x", 300*1024)},
	}))
	last, ok := topic.Last()
	require.True(t, ok)
	require.NotContains(t, last.Subject, "\n")
	require.Len(t, last.Subject, maxSubjectLength)
	require.LessOrEqual(t, len(last.Message), maxMessageBytes)
	require.Nil(t, last.Attributes)
	require.False(t, json.Valid([]byte(last.Message)))
}

func TestSNSNotifier_Errors(t *testing.T) {
	t.Parallel()

	var nilNotifier *snsNotifier
	require.Error(t, nilNotifier.Notify(context.Background(), observability.LogEntry{}))

	require.ErrorContains(t, NewSNSNotifier(testkit.NewFakeSNSTopic(), " ", SNSNotifierOptions{}).Notify(context.Background(), observability.LogEntry{}), "topic arn is empty")

	topic := testkit.NewFakeSNSTopic()
	topic.Err = errors.New("throttled")
	require.ErrorContains(t, NewSNSNotifier(topic, "arn:aws:sns:us-east-1:123456789012:alerts", SNSNotifierOptions{}).Notify(context.Background(), observability.LogEntry{}), "throttled")
}

func TestWithEnvironmentErrorNotifications_NoTopicIsNoop(t *testing.T) {
	t.Setenv("SFNTASKS_ERROR_NOTIFICATIONS_TOPIC_ARN", "")
	t.Setenv("SFNTASKS_SNS_ERROR_TOPIC_ARN", "")
	t.Setenv("ERROR_NOTIFICATIONS_TOPIC_ARN", "")

	opts := &loggerOptions{}
	WithEnvironmentErrorNotifications(context.Background(), DefaultEnvironmentErrorNotifications())(opts)
	require.Nil(t, opts.notifier)
	require.NoError(t, opts.initErr)
}

func TestWithEnvironmentErrorNotifications_InstallsNotifier(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("SFNTASKS_ERROR_NOTIFICATIONS_TOPIC_ARN", "")
	t.Setenv("SFNTASKS_SNS_ERROR_TOPIC_ARN", "arn:aws:sns:us-east-1:123456789012:alerts")
	t.Setenv("SFNTASKS_ERROR_NOTIFICATIONS_SUBJECT", "deploy failure")

	opts := &loggerOptions{}
	WithEnvironmentErrorNotifications(context.Background(), DefaultEnvironmentErrorNotifications())(opts)
	require.NoError(t, opts.initErr)

	notifier, ok := opts.notifier.(*snsNotifier)
	require.True(t, ok)
	require.Equal(t, "arn:aws:sns:us-east-1:123456789012:alerts", notifier.topicARN)
	require.Equal(t, "deploy failure", notifier.subject)
}

func TestFirstEnvValue(t *testing.T) {
	t.Setenv("SFNTASKS_TEST_A", "")
	t.Setenv("SFNTASKS_TEST_B", " b ")
	require.Equal(t, "b", firstEnvValue("", "SFNTASKS_TEST_A", "SFNTASKS_TEST_B"))
	require.Empty(t, firstEnvValue("SFNTASKS_TEST_A"))
}
