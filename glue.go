package sfntasks

import (
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// GlueStartJobRunProps configures GlueStartJobRun.
type GlueStartJobRunProps struct {
	TaskProps `yaml:",inline"`

	// Job name or ARN.
	GlueJobName string     `field:"required" json:"glueJobName" yaml:"glueJobName"`
	Arguments   *TaskInput `field:"optional" json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// Whole minutes after the job run starts before a delay notification is sent.
	NotifyDelayAfter      time.Duration `field:"optional" json:"notifyDelayAfter,omitempty" yaml:"notifyDelayAfter,omitempty"`
	SecurityConfiguration string        `field:"optional" json:"securityConfiguration,omitempty" yaml:"securityConfiguration,omitempty"`
}

// GlueStartJobRun starts an AWS Glue job run.
type GlueStartJobRun struct {
	*TaskState
	props  GlueStartJobRunProps
	jobArn string
}

func NewGlueStartJobRun(scope *Stack, id string, props *GlueStartJobRunProps) (*GlueStartJobRun, error) {
	p := newProblems("GlueStartJobRun")
	if props == nil {
		p.required("glueJobName")
		return nil, p.err()
	}
	p.requireString("glueJobName", props.GlueJobName)
	if props.Timeout%time.Minute != 0 {
		p.invalid("timeout", "timeout must be a whole number of minutes for Glue job runs, got %s", props.Timeout)
	}
	if props.NotifyDelayAfter < 0 || props.NotifyDelayAfter%time.Minute != 0 {
		p.invalid("notifyDelayAfter", "notifyDelayAfter must be a positive whole number of minutes, got %s", props.NotifyDelayAfter)
	}

	g := &GlueStartJobRun{props: *props}
	if props.GlueJobName != "" {
		g.jobArn = scope.arnOrName(props.GlueJobName, "glue", "job", iam.ArnSlash)
	}
	task, err := newTaskState(scope, id, "GlueStartJobRun", props.TaskProps, patternsRunJob, g, p)
	if err != nil {
		return nil, err
	}
	g.TaskState = task
	return g, nil
}

func (g *GlueStartJobRun) resourceArn() string {
	return integrationResourceArn(g.scope, "glue", "startJobRun", g.props.pattern())
}

func (g *GlueStartJobRun) parameters() map[string]any {
	params := map[string]any{"JobName": iam.ResourceNameOf(g.props.GlueJobName)}
	if g.props.Arguments != nil {
		params["Arguments"] = g.props.Arguments.value()
	}
	if g.props.Timeout > 0 {
		params["Timeout"] = int(g.props.Timeout / time.Minute)
	}
	putIf(params, "SecurityConfiguration", g.props.SecurityConfiguration)
	if g.props.NotifyDelayAfter > 0 {
		params["NotificationProperty"] = map[string]any{"NotifyDelayAfter": int(g.props.NotifyDelayAfter / time.Minute)}
	}
	return params
}

func (g *GlueStartJobRun) policyStatements() []iam.Statement {
	actions := []string{"glue:StartJobRun"}
	if g.props.pattern() == IntegrationPatternRunJob {
		actions = append(actions, "glue:GetJobRun", "glue:GetJobRuns", "glue:BatchStopJobRun")
	}
	return []iam.Statement{iam.Allow(actions, g.jobArn)}
}
