package sfntasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

const typeNamePrefix = "@aws-cdk/aws-stepfunctions-tasks."

// Error names Step Functions raises on its own.
const (
	ErrorsAll                   = "States.ALL"
	ErrorsHeartbeatTimeout      = "States.HeartbeatTimeout"
	ErrorsTimeout               = "States.Timeout"
	ErrorsTaskFailed            = "States.TaskFailed"
	ErrorsPermissions           = "States.Permissions"
	ErrorsResultPathMatchFailed = "States.ResultPathMatchFailure"
	ErrorsParameterPathFailure  = "States.ParameterPathFailure"
	ErrorsBranchFailed          = "States.BranchFailed"
	ErrorsNoChoiceMatched       = "States.NoChoiceMatched"
)

// Task is a renderable Step Functions task state.
type Task interface {
	ID() string
	TypeName() string
	RenderState() (map[string]any, error)
	PolicyStatements() []iam.Statement
}

// TaskProps holds the fields every integration accepts.
type TaskProps struct {
	// An optional description for this state.
	Comment string `field:"optional" json:"comment,omitempty" yaml:"comment,omitempty"`
	// Timeout for the heartbeat. Whole seconds.
	Heartbeat time.Duration `field:"optional" json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`
	// JSONPath expression to select part of the state to be the input to this state.
	InputPath string `field:"optional" json:"inputPath,omitempty" yaml:"inputPath,omitempty"`
	// Defaults to REQUEST_RESPONSE.
	IntegrationPattern IntegrationPattern `field:"optional" json:"integrationPattern,omitempty" yaml:"integrationPattern,omitempty"`
	OutputPath         string             `field:"optional" json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	// JsonPathDiscard renders a null ResultPath.
	ResultPath     string         `field:"optional" json:"resultPath,omitempty" yaml:"resultPath,omitempty"`
	ResultSelector map[string]any `field:"optional" json:"resultSelector,omitempty" yaml:"resultSelector,omitempty"`
	// Timeout for the whole task. Whole seconds.
	Timeout time.Duration `field:"optional" json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (p TaskProps) pattern() IntegrationPattern {
	if p.IntegrationPattern == "" {
		return IntegrationPatternRequestResponse
	}
	return p.IntegrationPattern
}

func (p TaskProps) validate(problems *problems) {
	if p.IntegrationPattern != "" {
		problems.enum("integrationPattern", p.IntegrationPattern, "REQUEST_RESPONSE, RUN_JOB, WAIT_FOR_TASK_TOKEN")
	}
	problems.add(wholeSeconds("timeout", p.Timeout))
	problems.add(wholeSeconds("heartbeat", p.Heartbeat))
	for field, path := range map[string]string{"inputPath": p.InputPath, "outputPath": p.OutputPath} {
		if path != "" {
			if err := validatePath(path); err != nil {
				problems.invalid(field, "%s: %v", field, err)
			}
		}
	}
	if p.ResultPath != "" && p.ResultPath != JsonPathDiscard {
		if err := validatePath(p.ResultPath); err != nil {
			problems.invalid("resultPath", "resultPath: %v", err)
		}
	}
	if p.Timeout > 0 && p.Heartbeat > 0 && p.Heartbeat >= p.Timeout {
		problems.invalid("heartbeat", "heartbeat (%s) must be smaller than timeout (%s)", p.Heartbeat, p.Timeout)
	}
}

func wholeSeconds(field string, d time.Duration) error {
	if d == 0 {
		return nil
	}
	if d < 0 || d%time.Second != 0 {
		return &ValidationError{Code: ErrorCodeInvalid, Field: field, Message: fmt.Sprintf("%s must be a positive whole number of seconds, got %s", field, d)}
	}
	return nil
}

// RetryProps configures a Retry rule.
type RetryProps struct {
	// Defaults to [States.ALL].
	Errors []string `field:"optional" json:"errors,omitempty" yaml:"errors,omitempty"`
	// Defaults to 1 second.
	Interval time.Duration `field:"optional" json:"interval,omitempty" yaml:"interval,omitempty"`
	// Defaults to 3. Zero disables retries for the errors.
	MaxAttempts *int `field:"optional" json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	// Defaults to 2.
	BackoffRate *float64 `field:"optional" json:"backoffRate,omitempty" yaml:"backoffRate,omitempty"`
	// Upper bound for the retry interval.
	MaxDelay time.Duration `field:"optional" json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	// FULL or NONE.
	JitterStrategy string `field:"optional" json:"jitterStrategy,omitempty" yaml:"jitterStrategy,omitempty"`
}

// CatchProps configures a Catch rule.
type CatchProps struct {
	// Defaults to [States.ALL].
	Errors     []string `field:"optional" json:"errors,omitempty" yaml:"errors,omitempty"`
	ResultPath string   `field:"optional" json:"resultPath,omitempty" yaml:"resultPath,omitempty"`
}

type catcher struct {
	next  string
	props CatchProps
}

// integration renders the service specific part of a task state.
type integration interface {
	resourceArn() string
	parameters() map[string]any
	policyStatements() []iam.Statement
}

// TaskState is the shared part of every service integration task.
type TaskState struct {
	id       string
	typeName string
	scope    *Stack
	props    TaskProps
	impl     integration

	retries  []RetryProps
	catchers []catcher
}

// newTaskState validates the common props, registers id in scope and wires impl.
// Integration specific failures are passed in extra and joined with the common ones.
func newTaskState(scope *Stack, id, typeName string, props TaskProps, supported []IntegrationPattern, impl integration, extra *problems) (*TaskState, error) {
	props.validate(extra)
	if props.IntegrationPattern == "" || props.IntegrationPattern.Valid() {
		extra.add(validatePatternSupported(typeName, props.pattern(), supported))
	}
	if err := extra.err(); err != nil {
		return nil, err
	}
	if err := scope.register(typeName, id); err != nil {
		return nil, err
	}
	return &TaskState{
		id:       id,
		typeName: typeName,
		scope:    scope,
		props:    props,
		impl:     impl,
	}, nil
}

func (t *TaskState) ID() string { return t.id }

// TypeName is the fully qualified name of the integration, e.g.
// "@aws-cdk/aws-stepfunctions-tasks.LambdaInvoke".
func (t *TaskState) TypeName() string { return typeNamePrefix + t.typeName }

func (t *TaskState) Props() TaskProps { return t.props }

func (t *TaskState) Scope() *Stack { return t.scope }

// IntegrationPattern returns the resolved pattern.
func (t *TaskState) IntegrationPattern() IntegrationPattern { return t.props.pattern() }

// AddRetry appends a retry rule. Rules are evaluated in the order they were added.
func (t *TaskState) AddRetry(props RetryProps) *TaskState {
	t.retries = append(t.retries, props)
	return t
}

// AddCatch routes matching errors to the state named next.
func (t *TaskState) AddCatch(next string, props CatchProps) *TaskState {
	t.catchers = append(t.catchers, catcher{next: next, props: props})
	return t
}

// CatchTargets lists the states catch rules transition to.
func (t *TaskState) CatchTargets() []string {
	out := make([]string, 0, len(t.catchers))
	for _, c := range t.catchers {
		out = append(out, c.next)
	}
	return out
}

// PolicyStatements returns the IAM statements the state machine role needs to run the task.
func (t *TaskState) PolicyStatements() []iam.Statement {
	return t.impl.policyStatements()
}

// RenderState renders the ASL Task state without its transition.
func (t *TaskState) RenderState() (map[string]any, error) {
	state := map[string]any{
		"Type":     "Task",
		"Resource": t.impl.resourceArn(),
	}
	if t.props.Comment != "" {
		state["Comment"] = t.props.Comment
	}

	if params := t.impl.parameters(); params != nil {
		rendered, err := renderObject(params)
		if err != nil {
			return nil, fmt.Errorf("%s %s: Parameters: %w", t.typeName, t.id, err)
		}
		state["Parameters"] = rendered
	}

	if t.props.InputPath != "" {
		state["InputPath"] = t.props.InputPath
	}
	if t.props.OutputPath != "" {
		state["OutputPath"] = t.props.OutputPath
	}
	switch t.props.ResultPath {
	case "":
	case JsonPathDiscard:
		state["ResultPath"] = nil
	default:
		state["ResultPath"] = t.props.ResultPath
	}
	if t.props.ResultSelector != nil {
		rendered, err := renderObject(t.props.ResultSelector)
		if err != nil {
			return nil, fmt.Errorf("%s %s: ResultSelector: %w", t.typeName, t.id, err)
		}
		state["ResultSelector"] = rendered
	}
	if t.props.Timeout > 0 {
		state["TimeoutSeconds"] = int(t.props.Timeout / time.Second)
	}
	if t.props.Heartbeat > 0 {
		state["HeartbeatSeconds"] = int(t.props.Heartbeat / time.Second)
	}

	if len(t.retries) > 0 {
		retries, err := renderRetries(t.retries)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", t.typeName, t.id, err)
		}
		state["Retry"] = retries
	}
	if len(t.catchers) > 0 {
		catches, err := renderCatches(t.catchers)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", t.typeName, t.id, err)
		}
		state["Catch"] = catches
	}
	return state, nil
}

func errorsOrAll(errs []string) []string {
	if len(errs) == 0 {
		return []string{ErrorsAll}
	}
	return append([]string(nil), errs...)
}

// States.ALL must appear alone and in the last rule.
func validateErrorList(kind string, index, total int, errs []string) error {
	for _, e := range errs {
		if e != ErrorsAll {
			continue
		}
		if len(errs) > 1 {
			return fmt.Errorf("%s: %s must appear alone in the error list", kind, ErrorsAll)
		}
		if index != total-1 {
			return fmt.Errorf("%s: %s must appear in the last %s", kind, ErrorsAll, strings.ToLower(kind))
		}
	}
	return nil
}

func renderRetries(retries []RetryProps) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(retries))
	for i, r := range retries {
		errs := errorsOrAll(r.Errors)
		if err := validateErrorList("Retry", i, len(retries), errs); err != nil {
			return nil, err
		}
		interval := r.Interval
		if interval == 0 {
			interval = time.Second
		}
		if err := wholeSeconds("interval", interval); err != nil {
			return nil, err
		}
		maxAttempts := 3
		if r.MaxAttempts != nil {
			maxAttempts = *r.MaxAttempts
		}
		if maxAttempts < 0 {
			return nil, fmt.Errorf("Retry: maxAttempts must be non-negative, got %d", maxAttempts)
		}
		backoff := 2.0
		if r.BackoffRate != nil {
			backoff = *r.BackoffRate
		}
		if backoff < 1 {
			return nil, fmt.Errorf("Retry: backoffRate must be at least 1, got %v", backoff)
		}
		rule := map[string]any{
			"ErrorEquals":     errs,
			"IntervalSeconds": int(interval / time.Second),
			"MaxAttempts":     maxAttempts,
			"BackoffRate":     backoff,
		}
		if r.MaxDelay > 0 {
			if err := wholeSeconds("maxDelay", r.MaxDelay); err != nil {
				return nil, err
			}
			rule["MaxDelaySeconds"] = int(r.MaxDelay / time.Second)
		}
		switch r.JitterStrategy {
		case "":
		case "FULL", "NONE":
			rule["JitterStrategy"] = r.JitterStrategy
		default:
			return nil, fmt.Errorf("Retry: jitterStrategy must be FULL or NONE, got %q", r.JitterStrategy)
		}
		out = append(out, rule)
	}
	return out, nil
}

func renderCatches(catchers []catcher) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(catchers))
	for i, c := range catchers {
		errs := errorsOrAll(c.props.Errors)
		if err := validateErrorList("Catch", i, len(catchers), errs); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.next) == "" {
			return nil, fmt.Errorf("Catch: next state is required")
		}
		rule := map[string]any{
			"ErrorEquals": errs,
			"Next":        c.next,
		}
		switch c.props.ResultPath {
		case "":
		case JsonPathDiscard:
			rule["ResultPath"] = nil
		default:
			rule["ResultPath"] = c.props.ResultPath
		}
		out = append(out, rule)
	}
	return out, nil
}
