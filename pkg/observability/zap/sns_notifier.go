package zap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/theory-cloud/sfntasks/pkg/observability"
	"github.com/theory-cloud/sfntasks/pkg/sanitization"
)

const (
	defaultNotificationSubject = "sfntasks error"
	maxSubjectLength           = 100
	maxMessageBytes            = 256 * 1024
)

// SNSPublisher is the part of *sns.Client the notifier uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifierOptions struct {
	Subject string
}

type snsNotifier struct {
	client   SNSPublisher
	topicARN string
	subject  string
}

var _ observability.ErrorNotifier = (*snsNotifier)(nil)

// NewSNSNotifier publishes error entries to topicARN. The entry's state machine and state
// are copied into message attributes so subscriptions can filter on them.
func NewSNSNotifier(client SNSPublisher, topicARN string, opts SNSNotifierOptions) observability.ErrorNotifier {
	return &snsNotifier{
		client:   client,
		topicARN: strings.TrimSpace(topicARN),
		subject:  strings.TrimSpace(opts.Subject),
	}
}

func (n *snsNotifier) Notify(ctx context.Context, entry observability.LogEntry) error {
	if n == nil || n.client == nil {
		return errors.New("observability/zap: sns notifier is nil")
	}
	if n.topicARN == "" {
		return errors.New("observability/zap: sns topic arn is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(map[string]any{
		"entry": entry,
		"env": map[string]string{
			"aws_region":               os.Getenv("AWS_REGION"),
			"aws_lambda_function_name": os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		},
	})
	if err != nil {
		return err
	}

	subject := n.subject
	if subject == "" {
		subject = defaultNotificationSubject
	}
	subject = sanitization.SanitizeLogString(subject)
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}

	message := string(body)
	if len(message) > maxMessageBytes {
		message = message[:maxMessageBytes]
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Subject:           aws.String(subject),
		Message:           aws.String(message),
		MessageAttributes: messageAttributes(entry),
	})
	return err
}

func messageAttributes(entry observability.LogEntry) map[string]snstypes.MessageAttributeValue {
	attrs := map[string]snstypes.MessageAttributeValue{}
	for key, value := range map[string]string{
		"state_machine": entry.StateMachine,
		"state":         entry.State,
	} {
		if value == "" {
			continue
		}
		attrs[key] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
