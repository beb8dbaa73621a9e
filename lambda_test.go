package sfntasks

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLambdaInvoke_Defaults(t *testing.T) {
	t.Parallel()

	task, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{LambdaFunction: "process-order"})
	require.NoError(t, err)
	require.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:process-order", task.FunctionArn())

	out := renderJSON(t, task)
	require.Equal(t, "arn:aws:states:::lambda:invoke", out.Get("Resource").String())
	require.Equal(t, task.FunctionArn(), out.Get("Parameters.FunctionName").String())
	require.Equal(t, "$", out.Get(`Parameters.Payload\.$`).String())
	require.False(t, out.Get("Parameters.InvocationType").Exists())

	retry := out.Get("Retry.0")
	require.Equal(t, []any{
		"Lambda.ClientExecutionTimeoutException",
		"Lambda.ServiceException",
		"Lambda.AWSLambdaException",
		"Lambda.SdkClientException",
	}, retry.Get("ErrorEquals").Value())
	require.EqualValues(t, 2, retry.Get("IntervalSeconds").Int())
	require.EqualValues(t, 6, retry.Get("MaxAttempts").Int())
	require.InDelta(t, 2.0, retry.Get("BackoffRate").Float(), 0)

	statements := task.PolicyStatements()
	require.Len(t, statements, 1)
	require.Equal(t, []string{"lambda:InvokeFunction"}, statements[0].Actions)
	require.Equal(t, []string{task.FunctionArn(), task.FunctionArn() + ":*"}, statements[0].Resources)
}

func TestLambdaInvoke_AllOptions(t *testing.T) {
	t.Parallel()

	task, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		LambdaFunction:           "arn:aws:lambda:eu-west-1:999999999999:function:fn",
		ClientContext:            `{"custom":"ctx"}`,
		InvocationType:           LambdaInvocationTypeEvent,
		Payload:                  TaskInputFromObject(map[string]any{"orderId": JsonPathStringAt("$.order.id"), "fixed": 1.0}),
		Qualifier:                "live",
		RetryOnServiceExceptions: Bool(false),
	})
	require.NoError(t, err)

	out := renderJSON(t, task)
	require.Equal(t, "arn:aws:lambda:eu-west-1:999999999999:function:fn", out.Get("Parameters.FunctionName").String())
	require.Equal(t, "Event", out.Get("Parameters.InvocationType").String())
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{"custom":"ctx"}`)), out.Get("Parameters.ClientContext").String())
	require.Equal(t, "live", out.Get("Parameters.Qualifier").String())
	require.Equal(t, "$.order.id", out.Get(`Parameters.Payload.orderId\.$`).String())
	require.EqualValues(t, 1, out.Get("Parameters.Payload.fixed").Int())
	require.False(t, out.Get("Retry").Exists())
}

func TestLambdaInvoke_PayloadResponseOnly(t *testing.T) {
	t.Parallel()

	task, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		LambdaFunction:      "fn",
		Payload:             TaskInputFromObject(map[string]any{"id": JsonPathStringAt("$.id")}),
		PayloadResponseOnly: Bool(true),
	})
	require.NoError(t, err)

	out := renderJSON(t, task)
	require.Equal(t, task.FunctionArn(), out.Get("Resource").String())
	require.Equal(t, "$.id", out.Get(`Parameters.id\.$`).String())
	require.False(t, out.Get("Parameters.FunctionName").Exists())

	_, err = NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		LambdaFunction:      "fn",
		PayloadResponseOnly: Bool(true),
		Qualifier:           "live",
	})
	require.ErrorContains(t, err, "The 'payloadResponseOnly' property cannot be used if 'integrationPattern', 'invocationType', 'clientContext', or 'qualifier' are specified.")
}

func TestLambdaInvoke_WaitForTaskToken(t *testing.T) {
	t.Parallel()

	_, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		TaskProps:      TaskProps{IntegrationPattern: IntegrationPatternWaitForTaskToken},
		LambdaFunction: "fn",
	})
	require.ErrorContains(t, err, "Task Token is required in `payload` for callback. Use JsonPathTaskToken to set the token.")

	task, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		TaskProps:      TaskProps{IntegrationPattern: IntegrationPatternWaitForTaskToken},
		LambdaFunction: "fn",
		Payload:        TaskInputFromObject(map[string]any{"token": JsonPathTaskToken}),
	})
	require.NoError(t, err)

	out := renderJSON(t, task)
	require.Equal(t, "arn:aws:states:::lambda:invoke.waitForTaskToken", out.Get("Resource").String())
	require.Equal(t, "$$.Task.Token", out.Get(`Parameters.Payload.token\.$`).String())
}

func TestLambdaInvoke_RunJobUnsupported(t *testing.T) {
	t.Parallel()

	_, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{
		TaskProps:      TaskProps{IntegrationPattern: IntegrationPatternRunJob},
		LambdaFunction: "fn",
	})
	require.ErrorContains(t, err, "Supported Patterns: REQUEST_RESPONSE,WAIT_FOR_TASK_TOKEN. Received: RUN_JOB")
}

func TestLambdaInvoke_RequiredAndEnums(t *testing.T) {
	t.Parallel()

	_, err := NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{})
	require.ErrorContains(t, err, "Required property 'lambdaFunction' is missing")

	_, err = NewLambdaInvoke(testStack(), "Invoke", nil)
	require.ErrorContains(t, err, "Required property 'lambdaFunction' is missing")

	_, err = NewLambdaInvoke(testStack(), "Invoke", &LambdaInvokeProps{LambdaFunction: "fn", InvocationType: "Async"})
	require.ErrorContains(t, err, "invocationType must be one of")
}

func TestLambdaFunctionArn(t *testing.T) {
	t.Parallel()

	stack := testStack()
	require.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:fn", lambdaFunctionArn(stack, "fn"))
	require.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:fn:prod", lambdaFunctionArn(stack, "fn:prod"))
	require.Equal(t, "arn:aws:lambda:us-east-1:444455556666:function:fn", lambdaFunctionArn(stack, "444455556666:function:fn"))
	require.Equal(t, "arn:aws:lambda:us-west-2:1:function:x", lambdaFunctionArn(stack, "arn:aws:lambda:us-west-2:1:function:x"))
}
