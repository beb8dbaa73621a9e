package testkit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

type SQSEventOptions struct {
	QueueARN string
	Records  []SQSMessageOptions
}

type SQSMessageOptions struct {
	MessageID         string
	Body              string
	EventSourceARN    string
	MessageAttributes map[string]events.SQSMessageAttribute
}

func SQSEvent(opts SQSEventOptions) events.SQSEvent {
	queueARN := strings.TrimSpace(opts.QueueARN)
	out := events.SQSEvent{Records: make([]events.SQSMessage, 0, len(opts.Records))}
	for _, rec := range opts.Records {
		id := strings.TrimSpace(rec.MessageID)
		if id == "" {
			id = fmt.Sprintf("msg-%d", len(out.Records)+1)
		}
		arn := strings.TrimSpace(rec.EventSourceARN)
		if arn == "" {
			arn = queueARN
		}
		out.Records = append(out.Records, events.SQSMessage{
			MessageId:         id,
			Body:              rec.Body,
			EventSource:       "aws:sqs",
			EventSourceARN:    arn,
			MessageAttributes: rec.MessageAttributes,
		})
	}
	return out
}

// CallbackBody builds the message body an SqsSendMessage task sends with
// {"taskToken.$": "$$.Task.Token", "input.$": "$"}.
func CallbackBody(token string, input any) string {
	body := map[string]any{"taskToken": token}
	if input != nil {
		body["input"] = input
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return `{"taskToken":` + fmt.Sprintf("%q", token) + `}`
	}
	return string(raw)
}

// CallbackSQSEvent builds an SQS event with one callback message per token.
func CallbackSQSEvent(queueARN string, tokens ...string) events.SQSEvent {
	opts := SQSEventOptions{QueueARN: queueARN}
	for i, token := range tokens {
		opts.Records = append(opts.Records, SQSMessageOptions{Body: CallbackBody(token, map[string]any{"index": i})})
	}
	return SQSEvent(opts)
}
