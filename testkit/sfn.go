package testkit

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/smithy-go"
)

// TaskCompletion records one SendTask* call.
type TaskCompletion struct {
	Kind   string // success, failure or heartbeat
	Token  string
	Output string
	Error  string
	Cause  string
}

// FakeSFNClient records task completions. Tokens listed in Gone fail with TaskTimedOut.
type FakeSFNClient struct {
	mu sync.Mutex

	Calls []TaskCompletion
	Gone  map[string]bool

	// Err, when set, is returned by every call.
	Err error
}

func NewFakeSFNClient() *FakeSFNClient {
	return &FakeSFNClient{Gone: map[string]bool{}}
}

func (f *FakeSFNClient) SendTaskSuccess(_ context.Context, params *sfn.SendTaskSuccessInput, _ ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	if err := f.record(params.TaskToken, TaskCompletion{Kind: "success", Output: aws.ToString(params.Output)}); err != nil {
		return nil, err
	}
	return &sfn.SendTaskSuccessOutput{}, nil
}

func (f *FakeSFNClient) SendTaskFailure(_ context.Context, params *sfn.SendTaskFailureInput, _ ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	if err := f.record(params.TaskToken, TaskCompletion{Kind: "failure", Error: aws.ToString(params.Error), Cause: aws.ToString(params.Cause)}); err != nil {
		return nil, err
	}
	return &sfn.SendTaskFailureOutput{}, nil
}

func (f *FakeSFNClient) SendTaskHeartbeat(_ context.Context, params *sfn.SendTaskHeartbeatInput, _ ...func(*sfn.Options)) (*sfn.SendTaskHeartbeatOutput, error) {
	if err := f.record(params.TaskToken, TaskCompletion{Kind: "heartbeat"}); err != nil {
		return nil, err
	}
	return &sfn.SendTaskHeartbeatOutput{}, nil
}

func (f *FakeSFNClient) record(token *string, call TaskCompletion) error {
	if f == nil {
		return errors.New("testkit: sfn client is nil")
	}
	call.Token = strings.TrimSpace(aws.ToString(token))
	if call.Token == "" {
		return &smithy.GenericAPIError{Code: "InvalidToken", Message: "task token is empty"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Gone[call.Token] {
		return &smithy.GenericAPIError{Code: "TaskTimedOut", Message: "task timed out"}
	}
	f.Calls = append(f.Calls, call)
	return nil
}

// Completions returns a copy of the recorded calls of kind ("" for all).
func (f *FakeSFNClient) Completions(kind string) []TaskCompletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TaskCompletion
	for _, call := range f.Calls {
		if kind == "" || call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}
