package sfntasks

import (
	"slices"
	"strings"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

type NetworkMode string

const (
	NetworkModeAwsVpc NetworkMode = "awsvpc"
	NetworkModeBridge NetworkMode = "bridge"
	NetworkModeHost   NetworkMode = "host"
	NetworkModeNone   NetworkMode = "none"
	NetworkModeNat    NetworkMode = "nat"
)

func (m NetworkMode) Valid() bool {
	switch m {
	case NetworkModeAwsVpc, NetworkModeBridge, NetworkModeHost, NetworkModeNone, NetworkModeNat:
		return true
	default:
		return false
	}
}

type Compatibility string

const (
	CompatibilityEc2           Compatibility = "EC2"
	CompatibilityFargate       Compatibility = "FARGATE"
	CompatibilityEc2AndFargate Compatibility = "EC2_AND_FARGATE"
	CompatibilityExternal      Compatibility = "EXTERNAL"
)

func (c Compatibility) Valid() bool {
	switch c {
	case CompatibilityEc2, CompatibilityFargate, CompatibilityEc2AndFargate, CompatibilityExternal:
		return true
	default:
		return false
	}
}

func (c Compatibility) ec2() bool {
	return c == CompatibilityEc2 || c == CompatibilityEc2AndFargate
}

func (c Compatibility) fargate() bool {
	return c == CompatibilityFargate || c == CompatibilityEc2AndFargate
}

type FargatePlatformVersion string

const (
	FargatePlatformVersionLatest FargatePlatformVersion = "LATEST"
	FargatePlatformVersionV1_4_0 FargatePlatformVersion = "1.4.0"
	FargatePlatformVersionV1_3_0 FargatePlatformVersion = "1.3.0"
	FargatePlatformVersionV1_2_0 FargatePlatformVersion = "1.2.0"
	FargatePlatformVersionV1_1_0 FargatePlatformVersion = "1.1.0"
	FargatePlatformVersionV1_0_0 FargatePlatformVersion = "1.0.0"
)

func (v FargatePlatformVersion) Valid() bool {
	switch v {
	case FargatePlatformVersionLatest, FargatePlatformVersionV1_4_0, FargatePlatformVersionV1_3_0,
		FargatePlatformVersionV1_2_0, FargatePlatformVersionV1_1_0, FargatePlatformVersionV1_0_0:
		return true
	default:
		return false
	}
}

// EcsTaskDefinition describes the task definition a task runs.
type EcsTaskDefinition struct {
	// Family, family:revision, or a task definition ARN.
	Family           string        `field:"required" json:"family" yaml:"family"`
	NetworkMode      NetworkMode   `field:"optional" json:"networkMode,omitempty" yaml:"networkMode,omitempty"`
	Compatibility    Compatibility `field:"required" json:"compatibility" yaml:"compatibility"`
	TaskRoleArn      string        `field:"optional" json:"taskRoleArn,omitempty" yaml:"taskRoleArn,omitempty"`
	ExecutionRoleArn string        `field:"optional" json:"executionRoleArn,omitempty" yaml:"executionRoleArn,omitempty"`
	// Names of the containers; used to check container overrides.
	Containers []string `field:"optional" json:"containers,omitempty" yaml:"containers,omitempty"`
}

// PlacementStrategy controls how tasks are spread over container instances.
type PlacementStrategy struct {
	Type  string `json:"type" yaml:"type"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

func PlacementStrategySpreadAcrossInstances() PlacementStrategy {
	return PlacementStrategy{Type: "spread", Field: "instanceId"}
}

// PlacementStrategySpreadAcross spreads evenly over each field in turn. With no fields it
// spreads across instances.
func PlacementStrategySpreadAcross(fields ...string) []PlacementStrategy {
	if len(fields) == 0 {
		return []PlacementStrategy{PlacementStrategySpreadAcrossInstances()}
	}
	out := make([]PlacementStrategy, 0, len(fields))
	for _, f := range fields {
		out = append(out, PlacementStrategy{Type: "spread", Field: f})
	}
	return out
}

func PlacementStrategyPackedByCpu() PlacementStrategy {
	return PlacementStrategy{Type: "binpack", Field: "cpu"}
}

func PlacementStrategyPackedByMemory() PlacementStrategy {
	return PlacementStrategy{Type: "binpack", Field: "memory"}
}

func PlacementStrategyRandomly() PlacementStrategy {
	return PlacementStrategy{Type: "random"}
}

// PlacementConstraint restricts which container instances a task can run on.
type PlacementConstraint struct {
	Type       string `json:"type" yaml:"type"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

func PlacementConstraintDistinctInstances() PlacementConstraint {
	return PlacementConstraint{Type: "distinctInstance"}
}

// PlacementConstraintMemberOf uses cluster query language expressions.
func PlacementConstraintMemberOf(expressions ...string) []PlacementConstraint {
	out := make([]PlacementConstraint, 0, len(expressions))
	for _, e := range expressions {
		out = append(out, PlacementConstraint{Type: "memberOf", Expression: e})
	}
	return out
}

const (
	launchTypeEc2     = "EC2"
	launchTypeFargate = "FARGATE"
)

// EcsLaunchTarget selects EC2 or Fargate. Build it with EcsEc2LaunchTarget or
// EcsFargateLaunchTarget.
type EcsLaunchTarget struct {
	Type                 string                 `json:"type" yaml:"type"`
	PlatformVersion      FargatePlatformVersion `json:"platformVersion,omitempty" yaml:"platformVersion,omitempty"`
	PlacementConstraints []PlacementConstraint  `json:"placementConstraints,omitempty" yaml:"placementConstraints,omitempty"`
	PlacementStrategies  []PlacementStrategy    `json:"placementStrategies,omitempty" yaml:"placementStrategies,omitempty"`
}

type EcsEc2LaunchTargetOptions struct {
	PlacementConstraints []PlacementConstraint `field:"optional" json:"placementConstraints,omitempty" yaml:"placementConstraints,omitempty"`
	PlacementStrategies  []PlacementStrategy   `field:"optional" json:"placementStrategies,omitempty" yaml:"placementStrategies,omitempty"`
}

func EcsEc2LaunchTarget(options *EcsEc2LaunchTargetOptions) *EcsLaunchTarget {
	target := &EcsLaunchTarget{Type: launchTypeEc2}
	if options != nil {
		target.PlacementConstraints = options.PlacementConstraints
		target.PlacementStrategies = options.PlacementStrategies
	}
	return target
}

type EcsFargateLaunchTargetOptions struct {
	PlatformVersion FargatePlatformVersion `field:"required" json:"platformVersion" yaml:"platformVersion"`
}

func EcsFargateLaunchTarget(options *EcsFargateLaunchTargetOptions) *EcsLaunchTarget {
	target := &EcsLaunchTarget{Type: launchTypeFargate}
	if options != nil {
		target.PlatformVersion = options.PlatformVersion
	}
	return target
}

// ContainerOverride changes one container's settings for this run.
type ContainerOverride struct {
	ContainerName     string            `field:"required" json:"containerName" yaml:"containerName"`
	Command           []string          `field:"optional" json:"command,omitempty" yaml:"command,omitempty"`
	Cpu               *int              `field:"optional" json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Environment       map[string]string `field:"optional" json:"environment,omitempty" yaml:"environment,omitempty"`
	MemoryLimit       *int              `field:"optional" json:"memoryLimit,omitempty" yaml:"memoryLimit,omitempty"`
	MemoryReservation *int              `field:"optional" json:"memoryReservation,omitempty" yaml:"memoryReservation,omitempty"`
}

// EcsRunTaskProps configures EcsRunTask.
type EcsRunTaskProps struct {
	TaskProps `yaml:",inline"`

	// Cluster name or ARN. Defaults to "default".
	Cluster            string              `field:"optional" json:"cluster,omitempty" yaml:"cluster,omitempty"`
	TaskDefinition     *EcsTaskDefinition  `field:"required" json:"taskDefinition" yaml:"taskDefinition"`
	LaunchTarget       *EcsLaunchTarget    `field:"required" json:"launchTarget" yaml:"launchTarget"`
	ContainerOverrides []ContainerOverride `field:"optional" json:"containerOverrides,omitempty" yaml:"containerOverrides,omitempty"`
	// Required for awsvpc networking.
	Subnets        []string `field:"optional" json:"subnets,omitempty" yaml:"subnets,omitempty"`
	SecurityGroups []string `field:"optional" json:"securityGroups,omitempty" yaml:"securityGroups,omitempty"`
	// Default false.
	AssignPublicIp       *bool `field:"optional" json:"assignPublicIp,omitempty" yaml:"assignPublicIp,omitempty"`
	EnableExecuteCommand *bool `field:"optional" json:"enableExecuteCommand,omitempty" yaml:"enableExecuteCommand,omitempty"`
	// TASK_DEFINITION copies task definition tags to the task.
	PropagatedTagSource string `field:"optional" json:"propagatedTagSource,omitempty" yaml:"propagatedTagSource,omitempty"`
}

// EcsRunTask runs an ECS task.
type EcsRunTask struct {
	*TaskState
	props      EcsRunTaskProps
	clusterArn string
	familyArn  string
	taskDefArn string
}

func NewEcsRunTask(scope *Stack, id string, props *EcsRunTaskProps) (*EcsRunTask, error) {
	p := newProblems("EcsRunTask")
	if props == nil {
		p.required("taskDefinition")
		p.required("launchTarget")
		return nil, p.err()
	}

	td := props.TaskDefinition
	if td == nil {
		p.required("taskDefinition")
	} else {
		p.requireString("taskDefinition.family", td.Family)
		p.enum("taskDefinition.compatibility", td.Compatibility, "EC2, FARGATE, EC2_AND_FARGATE, EXTERNAL")
		if td.NetworkMode != "" {
			p.enum("taskDefinition.networkMode", td.NetworkMode, "awsvpc, bridge, host, none, nat")
		}
	}

	lt := props.LaunchTarget
	switch {
	case lt == nil:
		p.required("launchTarget")
	case lt.Type == launchTypeFargate:
		if lt.PlatformVersion != "" {
			p.enum("launchTarget.platformVersion", lt.PlatformVersion, "LATEST, 1.4.0, 1.3.0, 1.2.0, 1.1.0, 1.0.0")
		}
		if td != nil && !td.Compatibility.fargate() {
			p.invalid("launchTarget", "Supplied TaskDefinition is not configured for compatibility with Fargate")
		}
		if td != nil && td.NetworkMode != NetworkModeAwsVpc {
			p.invalid("taskDefinition.networkMode", "FARGATE launch type requires the awsvpc network mode, got %q", td.NetworkMode)
		}
	case lt.Type == launchTypeEc2:
		if td != nil && !td.Compatibility.ec2() {
			p.invalid("launchTarget", "Supplied TaskDefinition is not configured for compatibility with EC2")
		}
	default:
		p.invalid("launchTarget.type", "launchTarget.type must be EC2 or FARGATE, got %q", lt.Type)
	}

	if td != nil && td.NetworkMode == NetworkModeAwsVpc && len(props.Subnets) == 0 {
		p.required("subnets")
	}
	if td != nil && td.NetworkMode != NetworkModeAwsVpc && (len(props.Subnets) > 0 || len(props.SecurityGroups) > 0 || props.AssignPublicIp != nil) {
		p.invalid("subnets", "subnets, securityGroups and assignPublicIp can only be used with the awsvpc network mode")
	}

	for i, o := range props.ContainerOverrides {
		if o.ContainerName == "" {
			p.required("containerOverrides.containerName")
			continue
		}
		if td != nil && len(td.Containers) > 0 && !slices.Contains(td.Containers, o.ContainerName) {
			p.invalid("containerOverrides", "Overrides mention container with name '%s', but no such container in task definition (override %d)", o.ContainerName, i)
		}
	}
	if props.PropagatedTagSource != "" && props.PropagatedTagSource != "TASK_DEFINITION" {
		p.invalid("propagatedTagSource", "propagatedTagSource must be TASK_DEFINITION, got %q", props.PropagatedTagSource)
	}

	if props.pattern() == IntegrationPatternWaitForTaskToken {
		envs := make([]any, 0, len(props.ContainerOverrides))
		for _, o := range props.ContainerOverrides {
			envs = append(envs, o.Environment)
		}
		if !containsTaskToken(envs) {
			p.add(taskTokenRequired("containerOverrides"))
		}
	}

	e := &EcsRunTask{props: *props}
	cluster := props.Cluster
	if cluster == "" {
		cluster = "default"
	}
	e.clusterArn = scope.arnOrName(cluster, "ecs", "cluster", iam.ArnSlash)
	p.deployable("cluster", cluster, e.clusterArn)
	if td != nil && td.Family != "" {
		e.familyArn, e.taskDefArn = taskDefinitionArns(scope, td.Family)
		p.deployable("taskDefinition", td.Family, e.taskDefArn)
	}

	task, err := newTaskState(scope, id, "EcsRunTask", props.TaskProps, patternsAll, e, p)
	if err != nil {
		return nil, err
	}
	e.TaskState = task
	return e, nil
}

// taskDefinitionArns returns the family ARN and the ARN to run; the latter names the
// revision when one was given.
func taskDefinitionArns(scope *Stack, family string) (string, string) {
	name := family
	if iam.IsArn(family) {
		name = iam.ResourceNameOf(family)
	}
	base, revision, hasRevision := strings.Cut(name, ":")
	familyArn := scope.arnOrName(base, "ecs", "task-definition", iam.ArnSlash)
	if iam.IsArn(family) {
		parsed, _ := iam.ParseArn(family)
		parsed.ResourceName = base
		familyArn = parsed.String()
	}
	if hasRevision {
		return familyArn, familyArn + ":" + revision
	}
	return familyArn, familyArn
}

func (e *EcsRunTask) resourceArn() string {
	return integrationResourceArn(e.scope, "ecs", "runTask", e.props.pattern())
}

func (e *EcsRunTask) parameters() map[string]any {
	params := map[string]any{
		"Cluster":        e.clusterArn,
		"TaskDefinition": e.taskDefArn,
	}
	lt := e.props.LaunchTarget
	params["LaunchType"] = lt.Type
	putIf(params, "PlatformVersion", string(lt.PlatformVersion))
	if len(lt.PlacementConstraints) > 0 {
		constraints := make([]any, 0, len(lt.PlacementConstraints))
		for _, c := range lt.PlacementConstraints {
			item := map[string]any{"Type": c.Type}
			putIf(item, "Expression", c.Expression)
			constraints = append(constraints, item)
		}
		params["PlacementConstraints"] = constraints
	}
	if len(lt.PlacementStrategies) > 0 {
		strategies := make([]any, 0, len(lt.PlacementStrategies))
		for _, s := range lt.PlacementStrategies {
			item := map[string]any{"Type": s.Type}
			putIf(item, "Field", s.Field)
			strategies = append(strategies, item)
		}
		params["PlacementStrategy"] = strategies
	}

	if e.props.TaskDefinition.NetworkMode == NetworkModeAwsVpc {
		assign := "DISABLED"
		if boolOr(e.props.AssignPublicIp, false) {
			assign = "ENABLED"
		}
		vpc := map[string]any{
			"Subnets":        append([]string(nil), e.props.Subnets...),
			"AssignPublicIp": assign,
		}
		if len(e.props.SecurityGroups) > 0 {
			vpc["SecurityGroups"] = append([]string(nil), e.props.SecurityGroups...)
		}
		params["NetworkConfiguration"] = map[string]any{"AwsvpcConfiguration": vpc}
	}

	if len(e.props.ContainerOverrides) > 0 {
		overrides := make([]any, 0, len(e.props.ContainerOverrides))
		for _, o := range e.props.ContainerOverrides {
			item := map[string]any{"Name": o.ContainerName}
			if len(o.Command) > 0 {
				item["Command"] = o.Command
			}
			putInt(item, "Cpu", o.Cpu)
			putInt(item, "Memory", o.MemoryLimit)
			putInt(item, "MemoryReservation", o.MemoryReservation)
			if len(o.Environment) > 0 {
				env := make([]any, 0, len(o.Environment))
				for _, name := range sortedKeys(o.Environment) {
					env = append(env, map[string]any{"Name": name, "Value": o.Environment[name]})
				}
				item["Environment"] = env
			}
			overrides = append(overrides, item)
		}
		params["Overrides"] = map[string]any{"ContainerOverrides": overrides}
	}
	putBool(params, "EnableExecuteCommand", e.props.EnableExecuteCommand)
	putIf(params, "PropagateTags", e.props.PropagatedTagSource)
	return params
}

func (e *EcsRunTask) policyStatements() []iam.Statement {
	runResources := []string{e.familyArn, e.familyArn + ":*"}
	statements := []iam.Statement{
		iam.Allow([]string{"ecs:RunTask"}, runResources...),
	}
	var roles []string
	if td := e.props.TaskDefinition; td != nil {
		if td.TaskRoleArn != "" {
			roles = append(roles, td.TaskRoleArn)
		}
		if td.ExecutionRoleArn != "" {
			roles = append(roles, td.ExecutionRoleArn)
		}
	}
	if len(roles) > 0 {
		statements = append(statements, iam.Allow([]string{"iam:PassRole"}, roles...))
	}
	if e.props.pattern() == IntegrationPatternRunJob {
		statements = append(statements,
			iam.Allow([]string{"ecs:StopTask", "ecs:DescribeTasks"}, "*"),
			iam.Allow([]string{"events:PutTargets", "events:PutRule", "events:DescribeRule"}, e.scope.eventsRuleArn("StepFunctionsGetEventsForECSTaskRule")),
		)
	}
	return statements
}
