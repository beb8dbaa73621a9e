package sfntasks

import (
	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// StepFunctionsStartExecutionProps configures StepFunctionsStartExecution.
type StepFunctionsStartExecutionProps struct {
	TaskProps `yaml:",inline"`

	// State machine ARN or name.
	StateMachine string `field:"required" json:"stateMachine" yaml:"stateMachine"`
	// Defaults to the state input.
	Input *TaskInput `field:"optional" json:"input,omitempty" yaml:"input,omitempty"`
	Name  string     `field:"optional" json:"name,omitempty" yaml:"name,omitempty"`
	// Pass the parent execution id so the console links both executions. Input must be an
	// object. Default false.
	AssociateWithParent *bool `field:"optional" json:"associateWithParent,omitempty" yaml:"associateWithParent,omitempty"`
}

// StepFunctionsStartExecution starts a nested state machine execution.
type StepFunctionsStartExecution struct {
	*TaskState
	props           StepFunctionsStartExecutionProps
	stateMachineArn string
}

func NewStepFunctionsStartExecution(scope *Stack, id string, props *StepFunctionsStartExecutionProps) (*StepFunctionsStartExecution, error) {
	p := newProblems("StepFunctionsStartExecution")
	if props == nil {
		p.required("stateMachine")
		return nil, p.err()
	}
	p.requireString("stateMachine", props.StateMachine)
	if props.pattern() == IntegrationPatternWaitForTaskToken && !props.Input.containsTaskToken() {
		p.add(taskTokenRequired("input"))
	}
	if boolOr(props.AssociateWithParent, false) && props.Input != nil && props.Input.Type != InputTypeObject {
		p.invalid("associateWithParent", "Could not enable `associateWithParent` because `input` is taken directly from a JSON path. Use TaskInputFromObject instead.")
	}

	s := &StepFunctionsStartExecution{props: *props}
	if props.StateMachine != "" {
		s.stateMachineArn = scope.arnOrName(props.StateMachine, "states", "stateMachine", iam.ArnColon)
		p.deployable("stateMachine", props.StateMachine, s.stateMachineArn)
	}
	task, err := newTaskState(scope, id, "StepFunctionsStartExecution", props.TaskProps, patternsAll, s, p)
	if err != nil {
		return nil, err
	}
	s.TaskState = task
	return s, nil
}

func (s *StepFunctionsStartExecution) StateMachineArn() string { return s.stateMachineArn }

func (s *StepFunctionsStartExecution) resourceArn() string {
	arn := integrationResourceArn(s.scope, "states", "startExecution", s.props.pattern())
	if s.props.pattern() == IntegrationPatternRunJob {
		// version 2 returns the child output as JSON instead of an escaped string
		arn += ":2"
	}
	return arn
}

func (s *StepFunctionsStartExecution) parameters() map[string]any {
	params := map[string]any{"StateMachineArn": s.stateMachineArn}

	var input any = JsonPathStringAt(JsonPathEntirePayload)
	if s.props.Input != nil {
		input = s.props.Input.value()
	} else if boolOr(s.props.AssociateWithParent, false) {
		input = map[string]any{}
	}
	if obj, ok := input.(map[string]any); ok && boolOr(s.props.AssociateWithParent, false) {
		merged := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			merged[k] = v
		}
		merged["AWS_STEP_FUNCTIONS_STARTED_BY_EXECUTION_ID"] = JsonPathStringAt("$$.Execution.Id")
		input = merged
	}
	params["Input"] = input
	putIf(params, "Name", s.props.Name)
	return params
}

func (s *StepFunctionsStartExecution) policyStatements() []iam.Statement {
	statements := []iam.Statement{iam.Allow([]string{"states:StartExecution"}, s.stateMachineArn)}
	if s.props.pattern() != IntegrationPatternRunJob {
		return statements
	}
	executions := s.scope.FormatArn(iam.Arn{
		Service:      "states",
		Resource:     "execution",
		ResourceName: iam.ResourceNameOf(s.stateMachineArn) + "*",
		Format:       iam.ArnColon,
	})
	return append(statements,
		iam.Allow([]string{"states:DescribeExecution", "states:StopExecution"}, executions),
		iam.Allow([]string{"events:PutTargets", "events:PutRule", "events:DescribeRule"}, s.scope.eventsRuleArn("StepFunctionsGetEventsForStepFunctionsExecutionRule")),
	)
}

// StepFunctionsInvokeActivityProps configures StepFunctionsInvokeActivity.
type StepFunctionsInvokeActivityProps struct {
	TaskProps `yaml:",inline"`

	// Activity ARN or name.
	Activity   string         `field:"required" json:"activity" yaml:"activity"`
	Parameters map[string]any `field:"optional" json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// StepFunctionsInvokeActivity hands work to an activity worker.
type StepFunctionsInvokeActivity struct {
	*TaskState
	props       StepFunctionsInvokeActivityProps
	activityArn string
}

func NewStepFunctionsInvokeActivity(scope *Stack, id string, props *StepFunctionsInvokeActivityProps) (*StepFunctionsInvokeActivity, error) {
	p := newProblems("StepFunctionsInvokeActivity")
	if props == nil {
		p.required("activity")
		return nil, p.err()
	}
	p.requireString("activity", props.Activity)

	a := &StepFunctionsInvokeActivity{props: *props}
	if props.Activity != "" {
		a.activityArn = scope.arnOrName(props.Activity, "states", "activity", iam.ArnColon)
		p.deployable("activity", props.Activity, a.activityArn)
	}
	task, err := newTaskState(scope, id, "StepFunctionsInvokeActivity", props.TaskProps, patternsRequestResponse, a, p)
	if err != nil {
		return nil, err
	}
	a.TaskState = task
	return a, nil
}

func (a *StepFunctionsInvokeActivity) ActivityArn() string { return a.activityArn }

func (a *StepFunctionsInvokeActivity) resourceArn() string { return a.activityArn }

func (a *StepFunctionsInvokeActivity) parameters() map[string]any { return a.props.Parameters }

// Activity workers call Step Functions with their own credentials.
func (a *StepFunctionsInvokeActivity) policyStatements() []iam.Statement { return nil }
