package workflowfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theory-cloud/sfntasks"
	"github.com/theory-cloud/sfntasks/pkg/statemachine"
)

// retryCatcher is implemented by every integration through its embedded TaskState.
type retryCatcher interface {
	AddRetry(props sfntasks.RetryProps) *sfntasks.TaskState
	AddCatch(next string, props sfntasks.CatchProps) *sfntasks.TaskState
}

// Build turns doc into a definition. Tasks are created in scope; a nil scope uses
// doc.Environment. All problems found are reported together.
func Build(doc *Document, scope *sfntasks.Stack) (*statemachine.Definition, error) {
	if doc == nil {
		return nil, errors.New("workflowfile: document is nil")
	}
	if scope == nil {
		scope = sfntasks.NewStack(doc.Environment)
	}

	var errs []error
	nodes := make(map[string]statemachine.Node, len(doc.States))
	ordered := make([]statemachine.Node, 0, len(doc.States))
	for i := range doc.States {
		st := &doc.States[i]
		name := strings.TrimSpace(st.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("states[%d]: name is required", i))
			continue
		}
		if _, dup := nodes[name]; dup {
			errs = append(errs, fmt.Errorf("state %q is defined more than once", name))
			continue
		}
		node, err := buildNode(scope, name, st)
		if err != nil {
			errs = append(errs, fmt.Errorf("state %q: %w", name, err))
			continue
		}
		nodes[name] = node
		ordered = append(ordered, node)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("workflowfile: %w", errors.Join(errs...))
	}

	for i := range doc.States {
		if err := link(&doc.States[i], nodes); err != nil {
			errs = append(errs, fmt.Errorf("state %q: %w", doc.States[i].Name, err))
		}
	}

	startAt := strings.TrimSpace(doc.StartAt)
	if startAt == "" {
		startAt = strings.TrimSpace(doc.States[0].Name)
	}
	start, ok := nodes[startAt]
	if !ok {
		errs = append(errs, fmt.Errorf("startAt names unknown state %q", startAt))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("workflowfile: %w", errors.Join(errs...))
	}

	def := statemachine.NewDefinition(statemachine.Start(start), statemachine.DefinitionProps{
		Comment: doc.Comment,
		Timeout: doc.Timeout,
		Version: doc.Version,
	}).Add(ordered...)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflowfile: %w", err)
	}
	return def, nil
}

func buildNode(scope *sfntasks.Stack, name string, st *State) (statemachine.Node, error) {
	if st.Type != "Choice" && (len(st.Choices) > 0 || st.Default != "") {
		return nil, errors.New("choices and default are only valid on Choice states")
	}
	if st.Type != "Choice" && st.Type != "Succeed" && st.Type != "Fail" && st.Next != "" && st.End {
		return nil, errors.New("next and end are mutually exclusive")
	}

	switch st.Type {
	case "Pass":
		var props statemachine.PassProps
		if err := decodeProps(&st.Props, &props); err != nil {
			return nil, err
		}
		return statemachine.Pass(name, props), noRetry(st)
	case "Wait":
		var props statemachine.WaitProps
		if err := decodeProps(&st.Props, &props); err != nil {
			return nil, err
		}
		return statemachine.Wait(name, props), noRetry(st)
	case "Succeed":
		var props struct {
			Comment string `yaml:"comment,omitempty"`
		}
		if err := decodeProps(&st.Props, &props); err != nil {
			return nil, err
		}
		return statemachine.Succeed(name, props.Comment), terminal(st)
	case "Fail":
		var props statemachine.FailProps
		if err := decodeProps(&st.Props, &props); err != nil {
			return nil, err
		}
		return statemachine.Fail(name, props), terminal(st)
	case "Choice":
		var props struct {
			Comment    string `yaml:"comment,omitempty"`
			InputPath  string `yaml:"inputPath,omitempty"`
			OutputPath string `yaml:"outputPath,omitempty"`
		}
		if err := decodeProps(&st.Props, &props); err != nil {
			return nil, err
		}
		if err := terminal(st); err != nil {
			return nil, err
		}
		if len(st.Choices) == 0 {
			return nil, errors.New("Choice states need at least one rule")
		}
		return statemachine.Choice(name, props.Comment).WithPaths(props.InputPath, props.OutputPath), nil
	}

	build, ok := integrations[st.Type]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", st.Type)
	}
	task, err := build(scope, name, &st.Props)
	if err != nil {
		return nil, err
	}
	rc, ok := task.(retryCatcher)
	if !ok {
		return nil, fmt.Errorf("type %q does not support retry and catch", st.Type)
	}
	for _, retry := range st.Retry {
		rc.AddRetry(retry)
	}
	for _, c := range st.Catch {
		if strings.TrimSpace(c.Next) == "" {
			return nil, errors.New("catch rules need next")
		}
		rc.AddCatch(c.Next, c.CatchProps)
	}
	return statemachine.Task(task), nil
}

func noRetry(st *State) error {
	if len(st.Retry) > 0 || len(st.Catch) > 0 {
		return fmt.Errorf("%s states do not support retry or catch", st.Type)
	}
	return nil
}

func terminal(st *State) error {
	if st.Next != "" || st.End {
		return fmt.Errorf("%s states cannot have next or end", st.Type)
	}
	return noRetry(st)
}

// link wires transitions once every state exists, so files may reference states
// declared later and loop back to earlier ones.
func link(st *State, nodes map[string]statemachine.Node) error {
	node := nodes[strings.TrimSpace(st.Name)]
	lookup := func(name string) (statemachine.Node, error) {
		target, ok := nodes[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("transition to unknown state %q", name)
		}
		return target, nil
	}

	if choice, ok := node.(*statemachine.ChoiceState); ok {
		for i, rule := range st.Choices {
			cond, err := rule.condition()
			if err != nil {
				return fmt.Errorf("choices[%d]: %w", i, err)
			}
			target, err := lookup(rule.Next)
			if err != nil {
				return fmt.Errorf("choices[%d]: %w", i, err)
			}
			choice.When(cond, target)
		}
		if st.Default != "" {
			target, err := lookup(st.Default)
			if err != nil {
				return fmt.Errorf("default: %w", err)
			}
			choice.Otherwise(target)
		}
		return nil
	}

	if st.Next == "" {
		return nil
	}
	target, err := lookup(st.Next)
	if err != nil {
		return err
	}
	return statemachine.Start(node).Next(target).Err()
}

// condition converts a rule to a statemachine condition.
func (r Rule) condition() (statemachine.Condition, error) {
	var found []statemachine.Condition
	add := func(c statemachine.Condition) { found = append(found, c) }

	if r.StringEquals != nil {
		add(statemachine.StringEquals(r.Variable, *r.StringEquals))
	}
	if r.StringMatches != nil {
		add(statemachine.StringMatches(r.Variable, *r.StringMatches))
	}
	if r.NumericEquals != nil {
		add(statemachine.NumericEquals(r.Variable, *r.NumericEquals))
	}
	if r.NumericGreaterThan != nil {
		add(statemachine.NumericGreaterThan(r.Variable, *r.NumericGreaterThan))
	}
	if r.NumericGreaterThanEquals != nil {
		add(statemachine.NumericGreaterThanEquals(r.Variable, *r.NumericGreaterThanEquals))
	}
	if r.NumericLessThan != nil {
		add(statemachine.NumericLessThan(r.Variable, *r.NumericLessThan))
	}
	if r.NumericLessThanEquals != nil {
		add(statemachine.NumericLessThanEquals(r.Variable, *r.NumericLessThanEquals))
	}
	if r.BooleanEquals != nil {
		add(statemachine.BooleanEquals(r.Variable, *r.BooleanEquals))
	}
	if r.IsPresent != nil {
		add(statemachine.IsPresent(r.Variable, *r.IsPresent))
	}
	if r.IsNull != nil {
		add(statemachine.IsNull(r.Variable, *r.IsNull))
	}
	if len(r.And) > 0 {
		nested, err := conditions(r.And)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		add(statemachine.And(nested...))
	}
	if len(r.Or) > 0 {
		nested, err := conditions(r.Or)
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		add(statemachine.Or(nested...))
	}
	if r.Not != nil {
		nested, err := r.Not.condition()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		add(statemachine.Not(nested))
	}

	if len(found) != 1 {
		return nil, fmt.Errorf("a rule needs exactly one comparison or combinator, found %d", len(found))
	}
	return found[0], nil
}

func conditions(rules []Rule) ([]statemachine.Condition, error) {
	out := make([]statemachine.Condition, 0, len(rules))
	for i, rule := range rules {
		c, err := rule.condition()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
