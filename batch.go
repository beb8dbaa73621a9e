package sfntasks

import (
	"strings"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// BatchContainerOverrides overrides the job definition's container properties.
type BatchContainerOverrides struct {
	Command     []string          `field:"optional" json:"command,omitempty" yaml:"command,omitempty"`
	Environment map[string]string `field:"optional" json:"environment,omitempty" yaml:"environment,omitempty"`
	GpuCount    *int              `field:"optional" json:"gpuCount,omitempty" yaml:"gpuCount,omitempty"`
	// Only valid for multi-node parallel jobs.
	InstanceType string `field:"optional" json:"instanceType,omitempty" yaml:"instanceType,omitempty"`
	// Hard memory limit in MiB.
	MemoryMiB *int `field:"optional" json:"memoryMiB,omitempty" yaml:"memoryMiB,omitempty"`
	Vcpus     *int `field:"optional" json:"vcpus,omitempty" yaml:"vcpus,omitempty"`
}

// BatchJobDependency is a job the submitted job waits for.
type BatchJobDependency struct {
	JobId string `field:"optional" json:"jobId,omitempty" yaml:"jobId,omitempty"`
	// N_TO_N or SEQUENTIAL for array jobs.
	Type string `field:"optional" json:"type,omitempty" yaml:"type,omitempty"`
}

// BatchSubmitJobProps configures BatchSubmitJob.
type BatchSubmitJobProps struct {
	TaskProps `yaml:",inline"`

	JobDefinitionArn string `field:"required" json:"jobDefinitionArn" yaml:"jobDefinitionArn"`
	JobName          string `field:"required" json:"jobName" yaml:"jobName"`
	JobQueueArn      string `field:"required" json:"jobQueueArn" yaml:"jobQueueArn"`
	// Between 2 and 10,000.
	ArraySize *int `field:"optional" json:"arraySize,omitempty" yaml:"arraySize,omitempty"`
	// Between 1 and 10.
	Attempts           *int                     `field:"optional" json:"attempts,omitempty" yaml:"attempts,omitempty"`
	ContainerOverrides *BatchContainerOverrides `field:"optional" json:"containerOverrides,omitempty" yaml:"containerOverrides,omitempty"`
	// At most 20 dependencies.
	DependsOn []BatchJobDependency `field:"optional" json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Payload   *TaskInput           `field:"optional" json:"payload,omitempty" yaml:"payload,omitempty"`
	Tags      map[string]string    `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
}

// BatchSubmitJob submits an AWS Batch job.
type BatchSubmitJob struct {
	*TaskState
	props BatchSubmitJobProps
}

func NewBatchSubmitJob(scope *Stack, id string, props *BatchSubmitJobProps) (*BatchSubmitJob, error) {
	p := newProblems("BatchSubmitJob")
	if props == nil {
		p.required("jobDefinitionArn")
		p.required("jobName")
		p.required("jobQueueArn")
		return nil, p.err()
	}
	p.requireString("jobDefinitionArn", props.JobDefinitionArn)
	p.requireString("jobName", props.JobName)
	p.requireString("jobQueueArn", props.JobQueueArn)
	if props.ArraySize != nil && (*props.ArraySize < 2 || *props.ArraySize > 10_000) {
		p.invalid("arraySize", "arraySize must be between 2 and 10,000. Received %d.", *props.ArraySize)
	}
	if props.Attempts != nil && (*props.Attempts < 1 || *props.Attempts > 10) {
		p.invalid("attempts", "attempts must be between 1 and 10. Received %d.", *props.Attempts)
	}
	if len(props.DependsOn) > 20 {
		p.invalid("dependsOn", "dependencies must be 20 or less. Received %d.", len(props.DependsOn))
	}
	if props.Timeout > 0 && props.Timeout < time.Minute {
		p.invalid("timeout", "attempt duration must be greater than 60 seconds. Received %d seconds.", int(props.Timeout/time.Second))
	}
	if props.ContainerOverrides != nil {
		for key := range props.ContainerOverrides.Environment {
			if strings.HasPrefix(key, "AWS_BATCH") {
				p.invalid("containerOverrides.environment", "Invalid environment variable name: %s. Environment variable names starting with 'AWS_BATCH' are reserved.", key)
			}
		}
	}
	if len(props.Tags) > 50 {
		p.invalid("tags", "Maximum tag number of entries is 50.")
	}

	b := &BatchSubmitJob{props: *props}
	task, err := newTaskState(scope, id, "BatchSubmitJob", props.TaskProps, patternsRunJob, b, p)
	if err != nil {
		return nil, err
	}
	b.TaskState = task
	return b, nil
}

func (b *BatchSubmitJob) resourceArn() string {
	return integrationResourceArn(b.scope, "batch", "submitJob", b.props.pattern())
}

func (b *BatchSubmitJob) parameters() map[string]any {
	params := map[string]any{
		"JobDefinition": b.props.JobDefinitionArn,
		"JobName":       b.props.JobName,
		"JobQueue":      b.props.JobQueueArn,
	}
	if b.props.Payload != nil {
		params["Parameters"] = b.props.Payload.value()
	}
	if b.props.ArraySize != nil {
		params["ArrayProperties"] = map[string]any{"Size": *b.props.ArraySize}
	}
	if o := b.props.ContainerOverrides; o != nil {
		params["ContainerOverrides"] = renderBatchContainerOverrides(o)
	}
	if len(b.props.DependsOn) > 0 {
		deps := make([]any, 0, len(b.props.DependsOn))
		for _, d := range b.props.DependsOn {
			dep := map[string]any{}
			putIf(dep, "JobId", d.JobId)
			putIf(dep, "Type", d.Type)
			deps = append(deps, dep)
		}
		params["DependsOn"] = deps
	}
	if b.props.Attempts != nil {
		params["RetryStrategy"] = map[string]any{"Attempts": *b.props.Attempts}
	}
	if b.props.Timeout > 0 {
		params["Timeout"] = map[string]any{"AttemptDurationSeconds": int(b.props.Timeout / time.Second)}
	}
	if len(b.props.Tags) > 0 {
		tags := make(map[string]any, len(b.props.Tags))
		for k, v := range b.props.Tags {
			tags[k] = v
		}
		params["Tags"] = tags
	}
	return params
}

func renderBatchContainerOverrides(o *BatchContainerOverrides) map[string]any {
	out := map[string]any{}
	if len(o.Command) > 0 {
		out["Command"] = append([]string(nil), o.Command...)
	}
	if len(o.Environment) > 0 {
		env := make([]any, 0, len(o.Environment))
		for _, name := range sortedKeys(o.Environment) {
			env = append(env, map[string]any{"Name": name, "Value": o.Environment[name]})
		}
		out["Environment"] = env
	}
	putIf(out, "InstanceType", o.InstanceType)

	var resources []any
	if o.GpuCount != nil {
		resources = append(resources, map[string]any{"Type": "GPU", "Value": itoa(*o.GpuCount)})
	}
	if o.MemoryMiB != nil {
		resources = append(resources, map[string]any{"Type": "MEMORY", "Value": itoa(*o.MemoryMiB)})
	}
	if o.Vcpus != nil {
		resources = append(resources, map[string]any{"Type": "VCPU", "Value": itoa(*o.Vcpus)})
	}
	if len(resources) > 0 {
		out["ResourceRequirements"] = resources
	}
	return out
}

func (b *BatchSubmitJob) policyStatements() []iam.Statement {
	statements := []iam.Statement{
		iam.Allow([]string{"batch:SubmitJob"}, b.props.JobDefinitionArn, b.props.JobQueueArn),
	}
	if b.props.pattern() == IntegrationPatternRunJob {
		statements = append(statements, iam.Allow(
			[]string{"events:PutTargets", "events:PutRule", "events:DescribeRule"},
			b.scope.eventsRuleArn("StepFunctionsGetEventsForBatchJobsRule"),
		))
	}
	return statements
}
