// Package deploy publishes rendered state machine definitions to Step Functions.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/oklog/ulid/v2"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/theory-cloud/sfntasks/pkg/naming"
	"github.com/theory-cloud/sfntasks/pkg/observability"
)

// API is the part of *sfn.Client the deployer uses.
type API interface {
	ValidateStateMachineDefinition(ctx context.Context, params *sfn.ValidateStateMachineDefinitionInput, optFns ...func(*sfn.Options)) (*sfn.ValidateStateMachineDefinitionOutput, error)
	ListStateMachines(ctx context.Context, params *sfn.ListStateMachinesInput, optFns ...func(*sfn.Options)) (*sfn.ListStateMachinesOutput, error)
	CreateStateMachine(ctx context.Context, params *sfn.CreateStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.CreateStateMachineOutput, error)
	UpdateStateMachine(ctx context.Context, params *sfn.UpdateStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.UpdateStateMachineOutput, error)
	DescribeStateMachine(ctx context.Context, params *sfn.DescribeStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.DescribeStateMachineOutput, error)
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

var _ API = (*sfn.Client)(nil)

// Deployer validates, creates and updates state machines.
type Deployer struct {
	api    API
	logger observability.StructuredLogger
	now    func() time.Time
}

type Option func(*Deployer)

func WithLogger(logger observability.StructuredLogger) Option {
	return func(d *Deployer) {
		d.logger = observability.OrNoOp(logger)
	}
}

// WithClock sets the time source used for generated execution names.
func WithClock(now func() time.Time) Option {
	return func(d *Deployer) {
		if now != nil {
			d.now = now
		}
	}
}

func New(api API, opts ...Option) *Deployer {
	d := &Deployer{
		api:    api,
		logger: observability.NewNoOpLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Diagnostic is one finding of the remote definition validator.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Validation is the outcome of a remote definition validation.
type Validation struct {
	OK          bool         `json:"ok"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Truncated   bool         `json:"truncated,omitempty"`
}

// Validate asks Step Functions to check definition, including warnings.
func (d *Deployer) Validate(ctx context.Context, definition []byte) (*Validation, error) {
	out, err := d.api.ValidateStateMachineDefinition(ctx, &sfn.ValidateStateMachineDefinitionInput{
		Definition: aws.String(string(definition)),
		Severity:   types.ValidateStateMachineDefinitionSeverityWarning,
	})
	if err != nil {
		return nil, wrap("validate definition", err)
	}

	result := &Validation{
		OK:        out.Result == types.ValidateStateMachineDefinitionResultCodeOk,
		Truncated: aws.ToBool(out.Truncated),
	}
	for _, diag := range out.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Severity: string(diag.Severity),
			Code:     aws.ToString(diag.Code),
			Message:  aws.ToString(diag.Message),
			Location: aws.ToString(diag.Location),
		})
	}
	return result, nil
}

// StateMachineInput describes the desired state of a state machine.
type StateMachineInput struct {
	Name       string
	Definition []byte
	RoleArn    string
	// STANDARD (default) or EXPRESS.
	Type    string
	Tags    map[string]string
	Tracing bool
	// Publish creates a new version on every create or update.
	Publish            bool
	VersionDescription string
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	StateMachineArn string
	VersionArn      string
	Created         bool
}

func (in StateMachineInput) validate() error {
	var errs []error
	if err := naming.Validate(in.Name); err != nil {
		errs = append(errs, err)
	}
	if len(in.Definition) == 0 || !json.Valid(in.Definition) {
		errs = append(errs, fmt.Errorf("%w: definition must be a JSON document", ErrInvalidDefinition))
	}
	if strings.TrimSpace(in.RoleArn) == "" {
		errs = append(errs, errors.New("roleArn is required"))
	}
	switch strings.ToUpper(in.Type) {
	case "", string(types.StateMachineTypeStandard), string(types.StateMachineTypeExpress):
	default:
		errs = append(errs, fmt.Errorf("type must be STANDARD or EXPRESS, got %q", in.Type))
	}
	return errors.Join(errs...)
}

// Upsert creates the state machine named in.Name, or updates it when it already exists.
func (d *Deployer) Upsert(ctx context.Context, in StateMachineInput) (*UpsertResult, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	log := d.logger.WithStateMachine(in.Name)

	arn, err := d.FindByName(ctx, in.Name)
	switch {
	case errors.Is(err, ErrStateMachineNotFound):
		return d.create(ctx, in, log)
	case err != nil:
		return nil, err
	}

	out, err := d.api.UpdateStateMachine(ctx, &sfn.UpdateStateMachineInput{
		StateMachineArn:      aws.String(arn),
		Definition:           aws.String(string(in.Definition)),
		RoleArn:              aws.String(in.RoleArn),
		TracingConfiguration: &types.TracingConfiguration{Enabled: in.Tracing},
		Publish:              in.Publish,
		VersionDescription:   optional(in.VersionDescription),
	})
	if err != nil {
		observability.Record(log, observability.Event{Level: "error", Name: "statemachine.update_failed", Fields: map[string]any{"error": err}})
		return nil, wrap("update state machine", err)
	}
	observability.Record(log, observability.Event{Name: "statemachine.updated", Fields: map[string]any{"arn": arn}})
	return &UpsertResult{StateMachineArn: arn, VersionArn: aws.ToString(out.StateMachineVersionArn)}, nil
}

func (d *Deployer) create(ctx context.Context, in StateMachineInput, log observability.StructuredLogger) (*UpsertResult, error) {
	machineType := types.StateMachineTypeStandard
	if in.Type != "" {
		machineType = types.StateMachineType(strings.ToUpper(in.Type))
	}

	var tags []types.Tag
	for _, key := range slices.Sorted(maps.Keys(in.Tags)) {
		tags = append(tags, types.Tag{Key: aws.String(key), Value: aws.String(in.Tags[key])})
	}

	out, err := d.api.CreateStateMachine(ctx, &sfn.CreateStateMachineInput{
		Name:                 aws.String(in.Name),
		Definition:           aws.String(string(in.Definition)),
		RoleArn:              aws.String(in.RoleArn),
		Type:                 machineType,
		Tags:                 tags,
		TracingConfiguration: &types.TracingConfiguration{Enabled: in.Tracing},
		Publish:              in.Publish,
		VersionDescription:   optional(in.VersionDescription),
	})
	if err != nil {
		observability.Record(log, observability.Event{Level: "error", Name: "statemachine.create_failed", Fields: map[string]any{"error": err}})
		return nil, wrap("create state machine", err)
	}
	arn := aws.ToString(out.StateMachineArn)
	observability.Record(log, observability.Event{Name: "statemachine.created", Fields: map[string]any{"arn": arn}})
	return &UpsertResult{StateMachineArn: arn, VersionArn: aws.ToString(out.StateMachineVersionArn), Created: true}, nil
}

// FindByName returns the ARN of the state machine called name.
func (d *Deployer) FindByName(ctx context.Context, name string) (string, error) {
	paginator := sfn.NewListStateMachinesPaginator(d.api, &sfn.ListStateMachinesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", wrap("list state machines", err)
		}
		for _, item := range page.StateMachines {
			if aws.ToString(item.Name) == name {
				return aws.ToString(item.StateMachineArn), nil
			}
		}
	}
	return "", fmt.Errorf("deploy: %w: %s", ErrStateMachineNotFound, name)
}

// StateMachine is the deployed form of a state machine.
type StateMachine struct {
	Arn        string
	Name       string
	RoleArn    string
	Type       string
	Status     string
	Definition []byte
	RevisionID string
	CreatedAt  time.Time
}

func (d *Deployer) Describe(ctx context.Context, arn string) (*StateMachine, error) {
	out, err := d.api.DescribeStateMachine(ctx, &sfn.DescribeStateMachineInput{StateMachineArn: aws.String(arn)})
	if err != nil {
		return nil, wrap("describe state machine", err)
	}
	return &StateMachine{
		Arn:        aws.ToString(out.StateMachineArn),
		Name:       aws.ToString(out.Name),
		RoleArn:    aws.ToString(out.RoleArn),
		Type:       string(out.Type),
		Status:     string(out.Status),
		Definition: []byte(aws.ToString(out.Definition)),
		RevisionID: aws.ToString(out.RevisionId),
		CreatedAt:  aws.ToTime(out.CreationDate),
	}, nil
}

// Diff compares the deployed definition of arn with local. It returns an empty string
// when they are equal as JSON documents.
func (d *Deployer) Diff(ctx context.Context, arn string, local []byte) (string, error) {
	deployed, err := d.Describe(ctx, arn)
	if err != nil {
		return "", err
	}
	return DiffDefinitions(deployed.Definition, local)
}

// DiffDefinitions renders an ASCII diff from before to after.
func DiffDefinitions(before, after []byte) (string, error) {
	diff, err := gojsondiff.New().Compare(before, after)
	if err != nil {
		return "", fmt.Errorf("deploy: compare definitions: %w", err)
	}
	if !diff.Modified() {
		return "", nil
	}

	var left map[string]any
	if err := json.Unmarshal(before, &left); err != nil {
		return "", fmt.Errorf("deploy: decode deployed definition: %w", err)
	}
	out, err := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true}).Format(diff)
	if err != nil {
		return "", fmt.Errorf("deploy: format diff: %w", err)
	}
	return out, nil
}

// Execution identifies a started execution.
type Execution struct {
	Arn       string
	Name      string
	StartedAt time.Time
}

// StartExecution starts arn with input. An empty name becomes "<prefix>-<ulid>" where
// prefix is the state machine name.
func (d *Deployer) StartExecution(ctx context.Context, arn string, input []byte, name string) (*Execution, error) {
	if len(input) == 0 {
		input = []byte("{}")
	}
	if !json.Valid(input) {
		return nil, errors.New("deploy: execution input must be a JSON document")
	}
	if name == "" {
		name = naming.ExecutionName(stateMachineNameOf(arn), d.newID())
	}
	if err := naming.Validate(name); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}

	out, err := d.api.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(arn),
		Name:            aws.String(name),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return nil, wrap("start execution", err)
	}

	exec := &Execution{Arn: aws.ToString(out.ExecutionArn), Name: name, StartedAt: aws.ToTime(out.StartDate)}
	observability.Record(d.logger, observability.Event{
		Name:  "execution.started",
		Scope: observability.Scope{StateMachine: stateMachineNameOf(arn), ExecutionArn: exec.Arn},
	})
	return exec, nil
}

func (d *Deployer) newID() string {
	return ulid.MustNew(ulid.Timestamp(d.now()), ulid.DefaultEntropy()).String()
}

// stateMachineNameOf extracts the name from arn:<p>:states:<r>:<a>:stateMachine:<name>[:<version>].
func stateMachineNameOf(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) >= 7 && parts[5] == "stateMachine" {
		return parts[6]
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
