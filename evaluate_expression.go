package sfntasks

import (
	"regexp"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// EvaluateExpressionProps configures EvaluateExpression.
type EvaluateExpressionProps struct {
	TaskProps `yaml:",inline"`

	// A JavaScript expression; "$." paths are substituted from the state input.
	Expression string `field:"required" json:"expression" yaml:"expression"`
	// Function that evaluates {expression, expressionAttributeValues} and returns the result.
	EvaluatorFunction string `field:"required" json:"evaluatorFunction" yaml:"evaluatorFunction"`
}

var expressionPathRe = regexp.MustCompile(`\$[.\[][.a-zA-Z\[\]0-9\-_]+`)

// EvaluateExpression evaluates an expression against the state input with a Lambda function.
type EvaluateExpression struct {
	*TaskState
	props       *EvaluateExpressionProps
	functionArn string
}

func NewEvaluateExpression(scope *Stack, id string, props *EvaluateExpressionProps) (*EvaluateExpression, error) {
	p := newProblems("EvaluateExpression")
	if props == nil {
		p.required("expression")
		p.required("evaluatorFunction")
		return nil, p.err()
	}
	p.requireString("expression", props.Expression)
	p.requireString("evaluatorFunction", props.EvaluatorFunction)

	e := &EvaluateExpression{props: props}
	if props.EvaluatorFunction != "" {
		e.functionArn = lambdaFunctionArn(scope, props.EvaluatorFunction)
		p.deployable("evaluatorFunction", props.EvaluatorFunction, e.functionArn)
	}
	task, err := newTaskState(scope, id, "EvaluateExpression", props.TaskProps, patternsRequestResponse, e, p)
	if err != nil {
		return nil, err
	}
	e.TaskState = task
	return e, nil
}

// Paths returns the distinct input paths the expression references, in order of appearance.
func (e *EvaluateExpression) Paths() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range expressionPathRe.FindAllString(e.props.Expression, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (e *EvaluateExpression) resourceArn() string { return e.functionArn }

func (e *EvaluateExpression) parameters() map[string]any {
	values := map[string]any{}
	for _, path := range e.Paths() {
		values[path] = JsonPathStringAt(path)
	}
	return map[string]any{
		"expression":                e.props.Expression,
		"expressionAttributeValues": values,
	}
}

func (e *EvaluateExpression) policyStatements() []iam.Statement {
	return []iam.Statement{iam.Allow([]string{"lambda:InvokeFunction"}, e.functionArn)}
}
