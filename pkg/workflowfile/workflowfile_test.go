package workflowfile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/theory-cloud/sfntasks"
)

func TestLoadAndBuild(t *testing.T) {
	t.Parallel()

	doc, err := Load("testdata/orders.yaml")
	require.NoError(t, err)
	require.Equal(t, time.Hour, doc.Timeout)
	require.Equal(t, "orders-prod", doc.Deploy.Name)
	require.Equal(t, map[string]string{"app": "orders"}, doc.Deploy.Tags)
	require.Len(t, doc.States, 6)

	def, err := Build(doc, nil)
	require.NoError(t, err)
	require.Equal(t, "Charge", def.StartAt())

	raw, err := def.Render()
	require.NoError(t, err)
	out := gjson.ParseBytes(raw)

	require.EqualValues(t, 3600, out.Get("TimeoutSeconds").Int())
	require.Equal(t, "Charge an order and wait for fulfilment", out.Get("Comment").String())

	charge := out.Get("States.Charge")
	require.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:charge-card", charge.Get("Parameters.FunctionName").String())
	require.Equal(t, "$.order.id", charge.Get(`Parameters.Payload.orderId\.$`).String())
	require.Equal(t, "workflow", charge.Get("Parameters.Payload.source").String())
	require.Equal(t, "Fulfil", charge.Get("Next").String())
	require.Equal(t, "Failed", charge.Get("Catch.0.Next").String())
	require.Contains(t, charge.Get("Retry.#.ErrorEquals.0").String(), "Payment.Declined")

	fulfil := out.Get("States.Fulfil")
	require.Equal(t, "arn:aws:states:::sqs:sendMessage.waitForTaskToken", fulfil.Get("Resource").String())
	require.Equal(t, "$$.Task.Token", fulfil.Get(`Parameters.MessageBody.taskToken\.$`).String())
	require.EqualValues(t, 300, fulfil.Get("HeartbeatSeconds").Int())

	shipped := out.Get("States.Shipped")
	require.Equal(t, "Choice", shipped.Get("Type").String())
	require.Equal(t, "Done", shipped.Get("Choices.0.Next").String())
	require.Equal(t, "$.attempts", shipped.Get("Choices.1.And.0.Variable").String())
	require.True(t, shipped.Get("Choices.1.And.1.Not.IsPresent").Bool())
	require.Equal(t, "Failed", shipped.Get("Default").String())

	require.EqualValues(t, 30, out.Get("States.Pause.Seconds").Int())
	require.Equal(t, "Fulfil", out.Get("States.Pause.Next").String())
	require.Equal(t, "OrderFailed", out.Get("States.Failed.Error").String())

	var actions []string
	for _, st := range def.Policy().Statement {
		actions = append(actions, st.Actions...)
	}
	require.Contains(t, actions, "lambda:InvokeFunction")
	require.Contains(t, actions, "sqs:SendMessage")
}

func TestBuild_UsesGivenScope(t *testing.T) {
	t.Parallel()

	doc, err := ParseBytes([]byte(`
states:
  - name: Notify
    type: SnsPublish
    props:
      topic: alerts
      message: "hello"
`))
	require.NoError(t, err)

	scope := sfntasks.NewStack(sfntasks.StackProps{Region: "eu-west-1", Account: "111122223333"})
	def, err := Build(doc, scope)
	require.NoError(t, err)

	raw, err := def.Render()
	require.NoError(t, err)
	require.Equal(t, "arn:aws:sns:eu-west-1:111122223333:alerts", gjson.GetBytes(raw, "States.Notify.Parameters.TopicArn").String())
	require.True(t, gjson.GetBytes(raw, "States.Notify.End").Bool())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseBytes(nil)
	require.ErrorContains(t, err, "document is empty")

	_, err = ParseBytes([]byte("comment: nothing\n"))
	require.ErrorContains(t, err, "at least one state")

	_, err = ParseBytes([]byte("states: [{name: A, type: Succeed}]\nbogus: 1\n"))
	require.ErrorContains(t, err, "bogus")

	_, err = Load("testdata/missing.yaml")
	require.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		yaml string
		want string
	}{
		"unknown type": {
			yaml: `states: [{name: A, type: Teleport}]`,
			want: `unknown type "Teleport"`,
		},
		"duplicate": {
			yaml: `states: [{name: A, type: Succeed}, {name: A, type: Succeed}]`,
			want: `state "A" is defined more than once`,
		},
		"unknown next": {
			yaml: `states: [{name: A, type: Pass, next: B}]`,
			want: `transition to unknown state "B"`,
		},
		"unknown prop": {
			yaml: `states: [{name: A, type: LambdaInvoke, props: {lambdaFunction: f, speed: fast}}]`,
			want: "speed",
		},
		"constructor error": {
			yaml: `states: [{name: A, type: LambdaInvoke, props: {}}]`,
			want: "Required property 'lambdaFunction' is missing",
		},
		"terminal with next": {
			yaml: `states: [{name: A, type: Succeed, next: A}]`,
			want: "Succeed states cannot have next or end",
		},
		"retry on pass": {
			yaml: `states: [{name: A, type: Pass, retry: [{errors: [X]}]}]`,
			want: "Pass states do not support retry or catch",
		},
		"empty rule": {
			yaml: `states: [{name: A, type: Choice, choices: [{variable: $.x, next: B}]}, {name: B, type: Succeed}]`,
			want: "exactly one comparison or combinator, found 0",
		},
		"two comparisons": {
			yaml: `states: [{name: A, type: Choice, choices: [{variable: $.x, isNull: true, isPresent: true, next: B}]}, {name: B, type: Succeed}]`,
			want: "found 2",
		},
		"unreachable": {
			yaml: `states: [{name: A, type: Succeed}, {name: B, type: Succeed}]`,
			want: `state "B" is not reachable from "A"`,
		},
		"bad startAt": {
			yaml: "startAt: Z\nstates: [{name: A, type: Succeed}]",
			want: `startAt names unknown state "Z"`,
		},
		"catch without next": {
			yaml: `states: [{name: A, type: LambdaInvoke, props: {lambdaFunction: "arn:aws:lambda:us-east-1:1:function:f"}, catch: [{errors: [X]}]}]`,
			want: "catch rules need next",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc, err := ParseBytes([]byte(tc.yaml))
			require.NoError(t, err)
			_, err = Build(doc, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestResolvePaths(t *testing.T) {
	t.Parallel()

	var props struct {
		Plain  string         `yaml:"plain"`
		Path   string         `yaml:"path"`
		Nested map[string]any `yaml:"nested"`
	}
	doc, err := ParseBytes([]byte(`
states:
  - name: A
    type: Succeed
    props:
      plain: x.$
      path.$: $.a
      nested:
        deep.$: $$.Execution.Id
        list: [1, 2]
`))
	require.NoError(t, err)
	require.NoError(t, decodeProps(&doc.States[0].Props, &props))
	require.Equal(t, "x.$", props.Plain)
	require.Equal(t, sfntasks.JsonPathStringAt("$.a"), props.Path)
	require.Equal(t, sfntasks.JsonPathStringAt("$$.Execution.Id"), props.Nested["deep"])
	require.Len(t, props.Nested["list"], 2)

	// the original node is untouched
	require.True(t, strings.Contains(doc.States[0].Props.Content[2].Value, ".$"))
}

func TestIntegrationTypes(t *testing.T) {
	t.Parallel()

	types := IntegrationTypes()
	require.Contains(t, types, "LambdaInvoke")
	require.Contains(t, types, "SageMakerCreateTrainingJob")
	require.IsIncreasing(t, types)
}
