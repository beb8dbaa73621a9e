package statemachine

import (
	"errors"
	"fmt"

	"github.com/theory-cloud/sfntasks"
)

// Condition is a Choice rule test.
type Condition interface {
	render() (map[string]any, error)
}

type comparison struct {
	variable string
	operator string
	value    any
}

func (c comparison) render() (map[string]any, error) {
	if err := sfntasks.ValidateJsonPath(c.variable); err != nil {
		return nil, fmt.Errorf("%s: Variable: %w", c.operator, err)
	}
	return map[string]any{"Variable": c.variable, c.operator: c.value}, nil
}

func StringEquals(variable, value string) Condition {
	return comparison{variable: variable, operator: "StringEquals", value: value}
}

// StringMatches compares against a pattern where '*' matches any run of characters.
func StringMatches(variable, pattern string) Condition {
	return comparison{variable: variable, operator: "StringMatches", value: pattern}
}

func NumericEquals(variable string, value float64) Condition {
	return comparison{variable: variable, operator: "NumericEquals", value: value}
}

func NumericGreaterThan(variable string, value float64) Condition {
	return comparison{variable: variable, operator: "NumericGreaterThan", value: value}
}

func NumericGreaterThanEquals(variable string, value float64) Condition {
	return comparison{variable: variable, operator: "NumericGreaterThanEquals", value: value}
}

func NumericLessThan(variable string, value float64) Condition {
	return comparison{variable: variable, operator: "NumericLessThan", value: value}
}

func NumericLessThanEquals(variable string, value float64) Condition {
	return comparison{variable: variable, operator: "NumericLessThanEquals", value: value}
}

func BooleanEquals(variable string, value bool) Condition {
	return comparison{variable: variable, operator: "BooleanEquals", value: value}
}

func IsPresent(variable string, present bool) Condition {
	return comparison{variable: variable, operator: "IsPresent", value: present}
}

func IsNull(variable string, null bool) Condition {
	return comparison{variable: variable, operator: "IsNull", value: null}
}

type compound struct {
	operator   string
	conditions []Condition
}

func (c compound) render() (map[string]any, error) {
	if len(c.conditions) == 0 {
		return nil, fmt.Errorf("%s needs at least one condition", c.operator)
	}
	out := make([]map[string]any, 0, len(c.conditions))
	for _, cond := range c.conditions {
		if cond == nil {
			return nil, fmt.Errorf("%s: nil condition", c.operator)
		}
		rendered, err := cond.render()
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return map[string]any{c.operator: out}, nil
}

func And(conditions ...Condition) Condition {
	return compound{operator: "And", conditions: conditions}
}

func Or(conditions ...Condition) Condition {
	return compound{operator: "Or", conditions: conditions}
}

type negation struct {
	condition Condition
}

func (n negation) render() (map[string]any, error) {
	if n.condition == nil {
		return nil, errors.New("Not: nil condition")
	}
	inner, err := n.condition.render()
	if err != nil {
		return nil, err
	}
	return map[string]any{"Not": inner}, nil
}

func Not(condition Condition) Condition {
	return negation{condition: condition}
}

type choiceRule struct {
	condition Condition
	next      Node
}

// ChoiceState branches on the first matching rule.
type ChoiceState struct {
	name       string
	comment    string
	inputPath  string
	outputPath string

	rules     []choiceRule
	otherwise Node
}

func Choice(name, comment string) *ChoiceState {
	return &ChoiceState{name: name, comment: comment}
}

func (s *ChoiceState) StateName() string { return s.name }

// WithPaths sets the InputPath and OutputPath of the choice.
func (s *ChoiceState) WithPaths(inputPath, outputPath string) *ChoiceState {
	s.inputPath = inputPath
	s.outputPath = outputPath
	return s
}

// When adds a rule transitioning to next when condition holds.
func (s *ChoiceState) When(condition Condition, next Node) *ChoiceState {
	s.rules = append(s.rules, choiceRule{condition: condition, next: next})
	return s
}

// Otherwise sets the default transition.
func (s *ChoiceState) Otherwise(next Node) *ChoiceState {
	s.otherwise = next
	return s
}

func (s *ChoiceState) successors() []Node {
	out := make([]Node, 0, len(s.rules)+1)
	for _, r := range s.rules {
		if r.next != nil {
			out = append(out, r.next)
		}
	}
	if s.otherwise != nil {
		out = append(out, s.otherwise)
	}
	return out
}

func (s *ChoiceState) render() (map[string]any, error) {
	if len(s.rules) == 0 {
		return nil, fmt.Errorf("Choice state %q needs at least one rule", s.name)
	}
	state := map[string]any{"Type": "Choice"}
	putString(state, "Comment", s.comment)
	if err := putPaths(state, s.inputPath, s.outputPath, ""); err != nil {
		return nil, err
	}

	choices := make([]map[string]any, 0, len(s.rules))
	for i, r := range s.rules {
		if r.condition == nil || r.next == nil {
			return nil, fmt.Errorf("Choice state %q rule %d needs a condition and a next state", s.name, i)
		}
		rule, err := r.condition.render()
		if err != nil {
			return nil, fmt.Errorf("Choice state %q rule %d: %w", s.name, i, err)
		}
		rule["Next"] = r.next.StateName()
		choices = append(choices, rule)
	}
	state["Choices"] = choices
	if s.otherwise != nil {
		state["Default"] = s.otherwise.StateName()
	}
	return state, nil
}
