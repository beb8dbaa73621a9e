// Package cdk places sfntasks definitions into AWS CDK stacks.
package cdk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/theory-cloud/sfntasks"
	"github.com/theory-cloud/sfntasks/pkg/iam"
	"github.com/theory-cloud/sfntasks/pkg/statemachine"
)

// StackEnvironment returns a sfntasks scope whose ARNs use the partition, region and
// account of stack. Values CDK leaves unresolved fall back to the sfntasks wildcards, so
// tasks naming resources by name need a stack with an explicit env; full ARNs work either way.
func StackEnvironment(stack awscdk.Stack) *sfntasks.Stack {
	return sfntasks.NewStack(sfntasks.StackProps{
		Partition: literal(stack.Partition()),
		Region:    literal(stack.Region()),
		Account:   literal(stack.Account()),
	})
}

// literal drops CDK tokens, which collide with the JSON path token encoding.
func literal(s *string) string {
	v := deref(s)
	if strings.Contains(v, "${Token[") {
		return ""
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewTaskState wraps a rendered task as a CustomState so it can be chained with
// native CDK states. The task's policy statements must be granted separately, for
// example with GrantTaskPolicies.
func NewTaskState(scope constructs.Construct, id string, task sfntasks.Task) (awsstepfunctions.CustomState, error) {
	if task == nil {
		return nil, errors.New("cdk: task is nil")
	}
	state, err := task.RenderState()
	if err != nil {
		return nil, fmt.Errorf("cdk: render %s: %w", task.ID(), err)
	}
	return awsstepfunctions.NewCustomState(scope, jsii.String(id), &awsstepfunctions.CustomStateProps{
		StateJson: &state,
	}), nil
}

// StateMachineProps configures NewStateMachine.
type StateMachineProps struct {
	// Default: - CloudFormation-generated name.
	StateMachineName *string
	// Default: StateMachineType_STANDARD.
	StateMachineType awsstepfunctions.StateMachineType
	// Default: - a new role is created.
	Role awsiam.IRole
	// Default: false.
	TracingEnabled *bool
	// Default: - no logging.
	Logs *awsstepfunctions.LogOptions
}

// NewStateMachine renders def as the definition body of a new state machine and grants
// its role every statement the definition's tasks need.
func NewStateMachine(scope constructs.Construct, id string, def *statemachine.Definition, props *StateMachineProps) (awsstepfunctions.StateMachine, error) {
	if def == nil {
		return nil, errors.New("cdk: definition is nil")
	}
	if props == nil {
		props = &StateMachineProps{}
	}
	body, err := def.Render()
	if err != nil {
		return nil, fmt.Errorf("cdk: %w", err)
	}

	sm := awsstepfunctions.NewStateMachine(scope, jsii.String(id), &awsstepfunctions.StateMachineProps{
		DefinitionBody:   awsstepfunctions.DefinitionBody_FromString(jsii.String(string(body))),
		StateMachineName: props.StateMachineName,
		StateMachineType: props.StateMachineType,
		Role:             props.Role,
		TracingEnabled:   props.TracingEnabled,
		Logs:             props.Logs,
	})
	for _, st := range PolicyStatementProps(def.Policy()) {
		sm.AddToRolePolicy(awsiam.NewPolicyStatement(st))
	}
	return sm, nil
}

// GrantTaskPolicies adds the statements of tasks to grantee's policy.
func GrantTaskPolicies(grantee awsiam.IRole, tasks ...sfntasks.Task) {
	doc := iam.NewDocument()
	for _, task := range tasks {
		if task != nil {
			doc.Add(task.PolicyStatements()...)
		}
	}
	for _, st := range PolicyStatementProps(doc.Minimize()) {
		grantee.AddToPrincipalPolicy(awsiam.NewPolicyStatement(st))
	}
}

// PolicyStatementProps converts a policy document to CDK statement props.
func PolicyStatementProps(doc *iam.Document) []*awsiam.PolicyStatementProps {
	if doc == nil {
		return nil
	}
	out := make([]*awsiam.PolicyStatementProps, 0, len(doc.Statement))
	for _, st := range doc.Statement {
		props := &awsiam.PolicyStatementProps{
			Actions:   jsii.Strings(st.Actions...),
			Resources: jsii.Strings(st.Resources...),
			Effect:    awsiam.Effect_ALLOW,
		}
		if st.Effect == "Deny" {
			props.Effect = awsiam.Effect_DENY
		}
		if st.Sid != "" {
			props.Sid = jsii.String(st.Sid)
		}
		if len(st.Conditions) > 0 {
			conditions := make(map[string]interface{}, len(st.Conditions))
			for op, values := range st.Conditions {
				conditions[op] = values
			}
			props.Conditions = &conditions
		}
		out = append(out, props)
	}
	return out
}
