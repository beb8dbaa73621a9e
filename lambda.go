package sfntasks

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// LambdaInvocationType selects how the function is invoked.
type LambdaInvocationType string

const (
	// LambdaInvocationTypeRequestResponse invokes synchronously and waits for the result.
	LambdaInvocationTypeRequestResponse LambdaInvocationType = "RequestResponse"
	// LambdaInvocationTypeEvent queues the invocation and returns immediately.
	LambdaInvocationTypeEvent LambdaInvocationType = "Event"
	// LambdaInvocationTypeDryRun only validates parameters and permissions.
	LambdaInvocationTypeDryRun LambdaInvocationType = "DryRun"
)

func (t LambdaInvocationType) Valid() bool {
	switch t {
	case LambdaInvocationTypeRequestResponse, LambdaInvocationTypeEvent, LambdaInvocationTypeDryRun:
		return true
	default:
		return false
	}
}

// Lambda errors that are safe to retry.
var lambdaTransientErrors = []string{
	"Lambda.ClientExecutionTimeoutException",
	"Lambda.ServiceException",
	"Lambda.AWSLambdaException",
	"Lambda.SdkClientException",
}

// LambdaInvokeProps configures LambdaInvoke.
type LambdaInvokeProps struct {
	TaskProps `yaml:",inline"`

	// Function name, partial ARN or full ARN.
	LambdaFunction string `field:"required" json:"lambdaFunction" yaml:"lambdaFunction"`
	// Up to 3583 bytes of client context, base64 encoded on render.
	ClientContext  string               `field:"optional" json:"clientContext,omitempty" yaml:"clientContext,omitempty"`
	InvocationType LambdaInvocationType `field:"optional" json:"invocationType,omitempty" yaml:"invocationType,omitempty"`
	// Defaults to the state input.
	Payload *TaskInput `field:"optional" json:"payload,omitempty" yaml:"payload,omitempty"`
	// Invoke the function directly and return only the payload. Default false.
	PayloadResponseOnly *bool  `field:"optional" json:"payloadResponseOnly,omitempty" yaml:"payloadResponseOnly,omitempty"`
	Qualifier           string `field:"optional" json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	// Retry on transient Lambda errors. Default true.
	RetryOnServiceExceptions *bool `field:"optional" json:"retryOnServiceExceptions,omitempty" yaml:"retryOnServiceExceptions,omitempty"`
}

// LambdaInvoke invokes a Lambda function.
type LambdaInvoke struct {
	*TaskState
	props       LambdaInvokeProps
	functionArn string
}

func NewLambdaInvoke(scope *Stack, id string, props *LambdaInvokeProps) (*LambdaInvoke, error) {
	p := newProblems("LambdaInvoke")
	if props == nil {
		p.required("lambdaFunction")
		return nil, p.err()
	}

	p.requireString("lambdaFunction", props.LambdaFunction)
	if props.InvocationType != "" {
		p.enum("invocationType", props.InvocationType, "RequestResponse, Event, DryRun")
	}
	if len(props.ClientContext) > 3583 {
		p.invalid("clientContext", "clientContext must be at most 3583 bytes, got %d", len(props.ClientContext))
	}
	payloadResponseOnly := boolOr(props.PayloadResponseOnly, false)
	if payloadResponseOnly {
		if props.IntegrationPattern != "" || props.InvocationType != "" || props.ClientContext != "" || props.Qualifier != "" {
			p.invalid("payloadResponseOnly", "The 'payloadResponseOnly' property cannot be used if 'integrationPattern', 'invocationType', 'clientContext', or 'qualifier' are specified.")
		}
		if props.Payload != nil && props.Payload.Type != InputTypeObject {
			p.invalid("payload", "payload must be an object when payloadResponseOnly is set")
		}
	}
	if props.pattern() == IntegrationPatternWaitForTaskToken && !props.Payload.containsTaskToken() {
		p.add(taskTokenRequired("payload"))
	}

	l := &LambdaInvoke{props: *props}
	if props.LambdaFunction != "" {
		l.functionArn = lambdaFunctionArn(scope, props.LambdaFunction)
		p.deployable("lambdaFunction", props.LambdaFunction, l.functionArn)
	}
	task, err := newTaskState(scope, id, "LambdaInvoke", props.TaskProps, patternsCallback, l, p)
	if err != nil {
		return nil, err
	}
	l.TaskState = task

	if boolOr(props.RetryOnServiceExceptions, true) {
		l.AddRetry(RetryProps{
			Errors:      lambdaTransientErrors,
			Interval:    2 * time.Second,
			MaxAttempts: Int(6),
			BackoffRate: Float(2),
		})
	}
	return l, nil
}

func (l *LambdaInvoke) FunctionArn() string { return l.functionArn }

func (l *LambdaInvoke) resourceArn() string {
	if boolOr(l.props.PayloadResponseOnly, false) {
		return l.functionArn
	}
	return integrationResourceArn(l.scope, "lambda", "invoke", l.props.pattern())
}

func (l *LambdaInvoke) parameters() map[string]any {
	if boolOr(l.props.PayloadResponseOnly, false) {
		if l.props.Payload == nil {
			return nil
		}
		obj, _ := l.props.Payload.Value.(map[string]any)
		return obj
	}

	params := map[string]any{"FunctionName": l.functionArn}
	if l.props.Payload != nil {
		params["Payload"] = l.props.Payload.value()
	} else {
		params["Payload"] = JsonPathStringAt(JsonPathEntirePayload)
	}
	if l.props.InvocationType != "" {
		params["InvocationType"] = string(l.props.InvocationType)
	}
	if l.props.ClientContext != "" {
		params["ClientContext"] = base64.StdEncoding.EncodeToString([]byte(l.props.ClientContext))
	}
	putIf(params, "Qualifier", l.props.Qualifier)
	return params
}

func (l *LambdaInvoke) policyStatements() []iam.Statement {
	return []iam.Statement{
		iam.Allow([]string{"lambda:InvokeFunction"}, l.functionArn, l.functionArn+":*"),
	}
}

// lambdaFunctionArn expands a function name or partial ARN into a full ARN.
func lambdaFunctionArn(scope *Stack, nameOrArn string) string {
	if iam.IsArn(nameOrArn) {
		return nameOrArn
	}
	// name, name:alias, account:function:name
	parts := strings.Split(nameOrArn, ":")
	switch {
	case len(parts) >= 3 && parts[1] == "function":
		return scope.FormatArn(iam.Arn{Service: "lambda", Account: parts[0], Resource: "function", ResourceName: strings.Join(parts[2:], ":"), Format: iam.ArnColon})
	default:
		return scope.FormatArn(iam.Arn{Service: "lambda", Resource: "function", ResourceName: nameOrArn, Format: iam.ArnColon})
	}
}
