package testkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
)

func TestFakeSFNClient(t *testing.T) {
	ctx := context.Background()
	client := NewFakeSFNClient()
	client.Gone["late"] = true

	if _, err := client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{TaskToken: aws.String("t1"), Output: aws.String("{}")}); err != nil {
		t.Fatalf("success: %v", err)
	}
	if _, err := client.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{TaskToken: aws.String("t2"), Error: aws.String("E"), Cause: aws.String("c")}); err != nil {
		t.Fatalf("failure: %v", err)
	}
	if _, err := client.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{TaskToken: aws.String("t3")}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	var apiErr smithy.APIError
	_, err := client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{TaskToken: aws.String("late")})
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "TaskTimedOut" {
		t.Fatalf("expected TaskTimedOut, got %v", err)
	}
	_, err = client.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{TaskToken: aws.String(" ")})
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "InvalidToken" {
		t.Fatalf("expected InvalidToken, got %v", err)
	}

	if len(client.Completions("")) != 3 {
		t.Fatalf("unexpected calls %#v", client.Calls)
	}
	failures := client.Completions("failure")
	if len(failures) != 1 || failures[0].Token != "t2" || failures[0].Error != "E" {
		t.Fatalf("unexpected failures %#v", failures)
	}
}

func TestFakeSQSQueue(t *testing.T) {
	ctx := context.Background()
	queue := NewFakeSQSQueue()
	queue.Enqueue("a")
	queue.Enqueue("b")
	queue.Enqueue("c")

	out, err := queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{MaxNumberOfMessages: 2})
	if err != nil || len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %v %v", out, err)
	}
	if queue.InFlight() != 2 {
		t.Fatalf("expected 2 in flight, got %d", queue.InFlight())
	}
	if _, err := queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{ReceiptHandle: out.Messages[0].ReceiptHandle}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{ReceiptHandle: out.Messages[0].ReceiptHandle}); err == nil {
		t.Fatal("expected error deleting twice")
	}
	if got := queue.Deleted(); len(got) != 1 || got[0] != "msg-1" {
		t.Fatalf("unexpected deleted %v", got)
	}

	out, err = queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{MaxNumberOfMessages: 10})
	if err != nil || len(out.Messages) != 1 || aws.ToString(out.Messages[0].Body) != "c" {
		t.Fatalf("expected remaining message, got %v %v", out, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := queue.ReceiveMessage(waitCtx, &sqs.ReceiveMessageInput{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
