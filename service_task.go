package sfntasks

import (
	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// serviceTask is an integration whose parameters and statements are fixed at construction.
type serviceTask struct {
	*TaskState
	service    string
	api        string
	params     map[string]any
	statements func(pattern IntegrationPattern) []iam.Statement
}

func (s *serviceTask) resourceArn() string {
	return integrationResourceArn(s.scope, s.service, s.api, s.props.pattern())
}

func (s *serviceTask) parameters() map[string]any { return s.params }

func (s *serviceTask) policyStatements() []iam.Statement {
	if s.statements == nil {
		return nil
	}
	return s.statements(s.props.pattern())
}

type serviceTaskSpec struct {
	typeName   string
	service    string
	api        string
	supported  []IntegrationPattern
	params     map[string]any
	statements func(pattern IntegrationPattern) []iam.Statement
}

func newServiceTask(scope *Stack, id string, props TaskProps, spec serviceTaskSpec, p *problems) (*serviceTask, error) {
	s := &serviceTask{
		service:    spec.service,
		api:        spec.api,
		params:     spec.params,
		statements: spec.statements,
	}
	task, err := newTaskState(scope, id, spec.typeName, props, spec.supported, s, p)
	if err != nil {
		return nil, err
	}
	s.TaskState = task
	return s, nil
}

var runJobEventActions = []string{"events:PutTargets", "events:PutRule", "events:DescribeRule"}
