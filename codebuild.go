package sfntasks

import (
	"github.com/theory-cloud/sfntasks/pkg/iam"
)

type BuildEnvironmentVariableType string

const (
	BuildEnvironmentVariableTypePlaintext      BuildEnvironmentVariableType = "PLAINTEXT"
	BuildEnvironmentVariableTypeParameterStore BuildEnvironmentVariableType = "PARAMETER_STORE"
	BuildEnvironmentVariableTypeSecretsManager BuildEnvironmentVariableType = "SECRETS_MANAGER"
)

func (t BuildEnvironmentVariableType) Valid() bool {
	switch t {
	case BuildEnvironmentVariableTypePlaintext, BuildEnvironmentVariableTypeParameterStore, BuildEnvironmentVariableTypeSecretsManager:
		return true
	default:
		return false
	}
}

// BuildEnvironmentVariable overrides a CodeBuild environment variable.
type BuildEnvironmentVariable struct {
	Value string `field:"required" json:"value" yaml:"value"`
	// Defaults to PLAINTEXT.
	Type BuildEnvironmentVariableType `field:"optional" json:"type,omitempty" yaml:"type,omitempty"`
}

// CodeBuildStartBuildProps configures CodeBuildStartBuild.
type CodeBuildStartBuildProps struct {
	TaskProps `yaml:",inline"`

	// Project name or ARN.
	Project                      string                              `field:"required" json:"project" yaml:"project"`
	EnvironmentVariablesOverride map[string]BuildEnvironmentVariable `field:"optional" json:"environmentVariablesOverride,omitempty" yaml:"environmentVariablesOverride,omitempty"`
}

// CodeBuildStartBuild starts a CodeBuild project build.
type CodeBuildStartBuild struct {
	*TaskState
	props      CodeBuildStartBuildProps
	projectArn string
}

func NewCodeBuildStartBuild(scope *Stack, id string, props *CodeBuildStartBuildProps) (*CodeBuildStartBuild, error) {
	p := newProblems("CodeBuildStartBuild")
	if props == nil {
		p.required("project")
		return nil, p.err()
	}
	p.requireString("project", props.Project)
	for _, name := range sortedKeys(props.EnvironmentVariablesOverride) {
		v := props.EnvironmentVariablesOverride[name]
		if v.Type != "" {
			p.enum("environmentVariablesOverride."+name+".type", v.Type, "PLAINTEXT, PARAMETER_STORE, SECRETS_MANAGER")
		}
	}

	c := &CodeBuildStartBuild{props: *props}
	if props.Project != "" {
		c.projectArn = scope.arnOrName(props.Project, "codebuild", "project", iam.ArnSlash)
	}
	task, err := newTaskState(scope, id, "CodeBuildStartBuild", props.TaskProps, patternsRunJob, c, p)
	if err != nil {
		return nil, err
	}
	c.TaskState = task
	return c, nil
}

func (c *CodeBuildStartBuild) resourceArn() string {
	return integrationResourceArn(c.scope, "codebuild", "startBuild", c.props.pattern())
}

func (c *CodeBuildStartBuild) parameters() map[string]any {
	params := map[string]any{"ProjectName": iam.ResourceNameOf(c.props.Project)}
	if len(c.props.EnvironmentVariablesOverride) > 0 {
		vars := make([]any, 0, len(c.props.EnvironmentVariablesOverride))
		for _, name := range sortedKeys(c.props.EnvironmentVariablesOverride) {
			v := c.props.EnvironmentVariablesOverride[name]
			typ := v.Type
			if typ == "" {
				typ = BuildEnvironmentVariableTypePlaintext
			}
			vars = append(vars, map[string]any{"Name": name, "Type": string(typ), "Value": v.Value})
		}
		params["EnvironmentVariablesOverride"] = vars
	}
	return params
}

func (c *CodeBuildStartBuild) policyStatements() []iam.Statement {
	statements := []iam.Statement{
		iam.Allow([]string{"codebuild:StartBuild", "codebuild:StopBuild", "codebuild:BatchGetBuilds", "codebuild:BatchGetReports"}, c.projectArn),
	}
	if c.props.pattern() == IntegrationPatternRunJob {
		statements = append(statements, iam.Allow(
			[]string{"events:PutTargets", "events:PutRule", "events:DescribeRule"},
			c.scope.eventsRuleArn("StepFunctionsGetEventForCodeBuildStartBuildRule"),
		))
	}
	return statements
}
