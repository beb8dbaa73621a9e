package testkit

import (
	"encoding/json"
	"testing"
)

func TestSQSEvent_Defaults(t *testing.T) {
	out := SQSEvent(SQSEventOptions{
		QueueARN: "arn:aws:sqs:us-east-1:123:queue1",
		Records: []SQSMessageOptions{
			{MessageID: "", Body: "a"},
			{MessageID: "id2", Body: "b", EventSourceARN: "arn:aws:sqs:us-east-1:123:override"},
		},
	})
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out.Records))
	}
	if out.Records[0].MessageId != "msg-1" || out.Records[0].EventSource != "aws:sqs" {
		t.Fatalf("unexpected first record: %#v", out.Records[0])
	}
	if out.Records[0].EventSourceARN != "arn:aws:sqs:us-east-1:123:queue1" {
		t.Fatalf("unexpected default arn: %q", out.Records[0].EventSourceARN)
	}
	if out.Records[1].MessageId != "id2" || out.Records[1].EventSourceARN != "arn:aws:sqs:us-east-1:123:override" {
		t.Fatalf("unexpected second record: %#v", out.Records[1])
	}
}

func TestCallbackSQSEvent(t *testing.T) {
	out := CallbackSQSEvent("arn:aws:sqs:us-east-1:123:callbacks", "tok-a", "tok-b")
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out.Records))
	}

	var body struct {
		TaskToken string         `json:"taskToken"`
		Input     map[string]any `json:"input"`
	}
	if err := json.Unmarshal([]byte(out.Records[1].Body), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body.TaskToken != "tok-b" || body.Input["index"] != float64(1) {
		t.Fatalf("unexpected body %#v", body)
	}

	if got := CallbackBody("tok", nil); got != `{"taskToken":"tok"}` {
		t.Fatalf("unexpected body without input: %s", got)
	}
}
