package statemachine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/theory-cloud/sfntasks"
)

func testStack() *sfntasks.Stack {
	return sfntasks.NewStack(sfntasks.StackProps{Region: "us-east-1", Account: "123456789012"})
}

func lambdaTask(t *testing.T, stack *sfntasks.Stack, id, fn string) *sfntasks.LambdaInvoke {
	t.Helper()
	task, err := sfntasks.NewLambdaInvoke(stack, id, &sfntasks.LambdaInvokeProps{LambdaFunction: fn})
	require.NoError(t, err)
	return task
}

func render(t *testing.T, def *Definition) gjson.Result {
	t.Helper()
	out, err := def.Render()
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(out))
	return gjson.ParseBytes(out)
}

func TestDefinition_LinearChain(t *testing.T) {
	t.Parallel()

	stack := testStack()
	charge := lambdaTask(t, stack, "Charge", "charge")
	notify, err := sfntasks.NewSqsSendMessage(stack, "Notify", &sfntasks.SqsSendMessageProps{
		Queue:       "notifications",
		MessageBody: sfntasks.TaskInputFromJsonPathAt("$.receipt"),
	})
	require.NoError(t, err)

	chain := Start(Pass("Prepare", PassProps{Parameters: map[string]any{"orderId": sfntasks.JsonPathStringAt("$.id")}})).
		Next(Task(charge)).
		Next(Wait("Settle", WaitProps{Duration: 30 * time.Second})).
		Next(Task(notify)).
		Next(Succeed("Done", ""))

	def := NewDefinition(chain, DefinitionProps{Comment: "orders", Timeout: time.Hour, Version: "1.0"})
	out := render(t, def)

	require.Equal(t, "Prepare", out.Get("StartAt").String())
	require.Equal(t, "orders", out.Get("Comment").String())
	require.EqualValues(t, 3600, out.Get("TimeoutSeconds").Int())
	require.Equal(t, "1.0", out.Get("Version").String())

	require.Equal(t, "Pass", out.Get("States.Prepare.Type").String())
	require.Equal(t, "$.id", out.Get(`States.Prepare.Parameters.orderId\.$`).String())
	require.Equal(t, "Charge", out.Get("States.Prepare.Next").String())
	require.Equal(t, "arn:aws:states:::lambda:invoke", out.Get("States.Charge.Resource").String())
	require.Equal(t, "Settle", out.Get("States.Charge.Next").String())
	require.EqualValues(t, 30, out.Get("States.Settle.Seconds").Int())
	require.Equal(t, "Notify", out.Get("States.Settle.Next").String())
	require.Equal(t, "Done", out.Get("States.Notify.Next").String())
	require.Equal(t, "Succeed", out.Get("States.Done.Type").String())
	require.False(t, out.Get("States.Done.Next").Exists())

	require.Equal(t, []string{"Charge", "Done", "Notify", "Prepare", "Settle"}, def.StateNames())
	require.Len(t, def.Tasks(), 2)

	policy := def.Policy()
	require.True(t, policy.Grants("lambda:InvokeFunction", charge.FunctionArn()))
	require.True(t, policy.Grants("sqs:SendMessage", "arn:aws:sqs:us-east-1:123456789012:notifications"))
}

func TestDefinition_EndIsRenderedForOpenTail(t *testing.T) {
	t.Parallel()

	out := render(t, NewDefinition(Start(Pass("Only", PassProps{Result: map[string]any{"ok": true}})), DefinitionProps{}))
	require.True(t, out.Get("States.Only.End").Bool())
	require.True(t, out.Get("States.Only.Result.ok").Bool())
	require.False(t, out.Get("TimeoutSeconds").Exists())
}

func TestDefinition_ChoiceBranches(t *testing.T) {
	t.Parallel()

	stack := testStack()
	approve := lambdaTask(t, stack, "Approve", "approve")
	reject := Fail("Rejected", FailProps{Error: "Order.Rejected", Cause: "amount too large"})
	done := Succeed("Done", "")

	approveBranch := Start(Task(approve)).Next(done)
	choice := Choice("Route", "").
		When(And(IsPresent("$.amount", true), NumericLessThan("$.amount", 100)), approveBranch).
		When(Or(StringEquals("$.tier", "gold"), Not(BooleanEquals("$.flagged", true))), done).
		Otherwise(reject)

	out := render(t, NewDefinition(Start(Pass("Load", PassProps{})).Next(choice), DefinitionProps{}))

	require.Equal(t, "Route", out.Get("States.Load.Next").String())
	route := out.Get("States.Route")
	require.Equal(t, "Choice", route.Get("Type").String())
	require.Equal(t, "$.amount", route.Get("Choices.0.And.0.Variable").String())
	require.True(t, route.Get("Choices.0.And.0.IsPresent").Bool())
	require.InDelta(t, 100.0, route.Get("Choices.0.And.1.NumericLessThan").Float(), 0)
	require.Equal(t, "Approve", route.Get("Choices.0.Next").String())
	require.Equal(t, "gold", route.Get("Choices.1.Or.0.StringEquals").String())
	require.True(t, route.Get("Choices.1.Or.1.Not.BooleanEquals").Bool())
	require.Equal(t, "Done", route.Get("Choices.1.Next").String())
	require.Equal(t, "Rejected", route.Get("Default").String())
	require.Equal(t, "Order.Rejected", out.Get("States.Rejected.Error").String())
	require.Equal(t, "Done", out.Get("States.Approve.Next").String())
}

func TestDefinition_CatchTargetsMustExistAndCountAsReachable(t *testing.T) {
	t.Parallel()

	stack := testStack()
	charge := lambdaTask(t, stack, "Charge", "charge")
	charge.AddCatch("Refund", sfntasks.CatchProps{ResultPath: "$.error"})

	def := NewDefinition(Start(Task(charge)), DefinitionProps{})
	_, err := def.Render()
	require.ErrorIs(t, err, ErrInvalidDefinition)
	require.ErrorContains(t, err, `state "Charge" catches to unknown state "Refund"`)

	def.Add(Fail("Refund", FailProps{Error: "Charge.Failed"}))
	out := render(t, def)
	require.Equal(t, "Refund", out.Get("States.Charge.Catch.0.Next").String())
	require.Equal(t, "Fail", out.Get("States.Refund.Type").String())
}

func TestDefinition_ValidationErrors(t *testing.T) {
	t.Parallel()

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(Start(Succeed("A", "")), DefinitionProps{}).Add(Succeed("Orphan", ""))
		require.ErrorContains(t, def.Validate(), `state "Orphan" is not reachable from "A"`)
	})
	t.Run("duplicate names", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(Start(Pass("Same", PassProps{})).Next(Succeed("Same", "")), DefinitionProps{})
		require.ErrorContains(t, def.Validate(), `state name "Same" is used by more than one state`)
	})
	t.Run("long name", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("S", 81)
		def := NewDefinition(Start(Succeed(long, "")), DefinitionProps{})
		require.ErrorContains(t, def.Validate(), "exceeds 80 characters")
	})
	t.Run("next after terminal", func(t *testing.T) {
		t.Parallel()
		chain := Start(Succeed("Done", "")).Next(Pass("After", PassProps{}))
		require.ErrorContains(t, chain.Err(), `state "Done" cannot be followed by "After"`)
		require.ErrorContains(t, NewDefinition(chain, DefinitionProps{}).Validate(), "cannot be followed")
	})
	t.Run("no start", func(t *testing.T) {
		t.Parallel()
		require.ErrorContains(t, NewDefinition(nil, DefinitionProps{}).Validate(), "no start state")
	})
	t.Run("fractional timeout", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(Start(Succeed("Done", "")), DefinitionProps{Timeout: 1500 * time.Millisecond})
		require.ErrorContains(t, def.Validate(), "timeout must be a positive whole number of seconds")
	})
}

func TestDefinition_StateRenderErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		node Node
		want string
	}{
		"wait without field": {node: Wait("W", WaitProps{}), want: "exactly one of"},
		"wait two fields":    {node: Wait("W", WaitProps{Duration: time.Second, SecondsPath: "$.s"}), want: "got 2"},
		"wait bad path":      {node: Wait("W", WaitProps{TimestampPath: "ts"}), want: "TimestampPath: JSONPath must start with '$'"},
		"pass bad path":      {node: Pass("P", PassProps{InputPath: "input"}), want: "InputPath"},
		"choice no rules":    {node: Choice("C", ""), want: `Choice state "C" needs at least one rule`},
		"choice bad var":     {node: Choice("C", "").When(StringEquals("x", "y"), Succeed("S", "")), want: "StringEquals: Variable"},
		"empty and":          {node: Choice("C", "").When(And(), Succeed("S", "")), want: "And needs at least one condition"},
	}
	for name, tc := range cases {
		_, err := NewDefinition(Start(tc.node), DefinitionProps{}).Render()
		require.ErrorIs(t, err, ErrInvalidDefinition, name)
		require.ErrorContains(t, err, tc.want, name)
	}
}

func TestWait_Variants(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	out := render(t, NewDefinition(
		Start(Wait("Until", WaitProps{Timestamp: at})).Next(Wait("ByPath", WaitProps{SecondsPath: "$.delay"})),
		DefinitionProps{},
	))
	require.Equal(t, "2026-01-02T02:04:05Z", out.Get("States.Until.Timestamp").String())
	require.Equal(t, "$.delay", out.Get("States.ByPath.SecondsPath").String())
	require.True(t, out.Get("States.ByPath.End").Bool())
}

func TestPass_DiscardResultPath(t *testing.T) {
	t.Parallel()

	doc, err := NewDefinition(Start(Pass("P", PassProps{ResultPath: sfntasks.JsonPathDiscard})), DefinitionProps{}).Document()
	require.NoError(t, err)
	state := doc["States"].(map[string]any)["P"].(map[string]any)
	value, ok := state["ResultPath"]
	require.True(t, ok)
	require.Nil(t, value)
}

func TestChain_NextWithChainAndLoops(t *testing.T) {
	t.Parallel()

	tail := Start(Pass("B", PassProps{})).Next(Pass("C", PassProps{}))
	chain := Start(Pass("A", PassProps{})).Next(tail).Next(Succeed("D", ""))
	require.NoError(t, chain.Err())

	out := render(t, NewDefinition(chain, DefinitionProps{}))
	require.Equal(t, "B", out.Get("States.A.Next").String())
	require.Equal(t, "C", out.Get("States.B.Next").String())
	require.Equal(t, "D", out.Get("States.C.Next").String())

	poll := Wait("Poll", WaitProps{Duration: 5 * time.Second})
	check := Choice("Check", "")
	check.When(StringEquals("$.status", "DONE"), Succeed("Finished", "")).Otherwise(poll)
	loop := Start(poll).Next(check)
	out = render(t, NewDefinition(loop, DefinitionProps{}))
	require.Equal(t, "Check", out.Get("States.Poll.Next").String())
	require.Equal(t, "Poll", out.Get("States.Check.Default").String())

	second := Start(Pass("X", PassProps{}))
	second.Next(Pass("Y", PassProps{}))
	x := second.start.(*PassState)
	err := Start(x).Next(Pass("Z", PassProps{})).Err()
	require.ErrorContains(t, err, `state "X" already transitions to "Y"`)
}
