// Package callback completes Step Functions tasks started with the WAIT_FOR_TASK_TOKEN pattern.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/smithy-go"

	"github.com/theory-cloud/sfntasks/pkg/logger"
	"github.com/theory-cloud/sfntasks/pkg/observability"
)

const (
	maxErrorLength = 256
	maxCauseLength = 32768
	// DefaultErrorCode is reported when a handler fails without a TaskError.
	DefaultErrorCode = "Callback.HandlerError"
)

var (
	// ErrTaskGone means the token no longer refers to a waiting task.
	ErrTaskGone = errors.New("task no longer waiting")
	// ErrInvalidToken means Step Functions rejected the token format.
	ErrInvalidToken = errors.New("invalid task token")
)

// API is the part of *sfn.Client a Completer uses.
type API interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
	SendTaskHeartbeat(ctx context.Context, params *sfn.SendTaskHeartbeatInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskHeartbeatOutput, error)
}

var _ API = (*sfn.Client)(nil)

type Completer struct {
	api    API
	logger observability.StructuredLogger
}

type CompleterOption func(*Completer)

func WithCompleterLogger(l observability.StructuredLogger) CompleterOption {
	return func(c *Completer) {
		c.logger = observability.OrNoOp(l)
	}
}

func NewCompleter(api API, opts ...CompleterOption) *Completer {
	c := &Completer{api: api, logger: observability.NewNoOpLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Succeed reports output as the task result. Output is marshalled unless it already is
// JSON ([]byte, json.RawMessage); nil becomes {}.
func (c *Completer) Succeed(ctx context.Context, token string, output any) error {
	if strings.TrimSpace(token) == "" {
		return ErrTaskTokenMissing
	}
	raw, err := encodeOutput(output)
	if err != nil {
		return err
	}

	_, err = c.api.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(token),
		Output:    aws.String(string(raw)),
	})
	if err != nil {
		return wrap("send task success", err)
	}
	c.logger.Debug("task.succeeded", map[string]any{"task_token_source": logger.TaskToken(token)})
	return nil
}

// Fail reports a task failure. errCode and cause are truncated to the service limits.
func (c *Completer) Fail(ctx context.Context, token, errCode, cause string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTaskTokenMissing
	}
	if strings.TrimSpace(errCode) == "" {
		errCode = DefaultErrorCode
	}

	_, err := c.api.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(token),
		Error:     aws.String(truncate(errCode, maxErrorLength)),
		Cause:     aws.String(truncate(cause, maxCauseLength)),
	})
	if err != nil {
		return wrap("send task failure", err)
	}
	c.logger.Debug("task.failed", map[string]any{"task_token_source": logger.TaskToken(token), "error_code": errCode})
	return nil
}

func (c *Completer) Heartbeat(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTaskTokenMissing
	}
	if _, err := c.api.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{TaskToken: aws.String(token)}); err != nil {
		return wrap("send task heartbeat", err)
	}
	return nil
}

// TaskError lets a handler choose the error code reported to Step Functions.
type TaskError struct {
	Code  string
	Cause string
}

func (e *TaskError) Error() string {
	if e.Cause == "" {
		return e.Code
	}
	return e.Code + ": " + e.Cause
}

func encodeOutput(output any) (json.RawMessage, error) {
	switch v := output.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("callback: output is not valid JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("callback: output is not valid JSON")
		}
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("callback: encode output: %w", err)
		}
		return raw, nil
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func wrap(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TaskTimedOut", "TaskDoesNotExist":
			return fmt.Errorf("callback: %s: %w: %w", op, ErrTaskGone, err)
		case "InvalidToken":
			return fmt.Errorf("callback: %s: %w: %w", op, ErrInvalidToken, err)
		}
	}
	return fmt.Errorf("callback: %s: %w", op, err)
}
