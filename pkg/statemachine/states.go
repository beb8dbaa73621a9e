// Package statemachine assembles task and flow states into an Amazon States Language
// definition and aggregates the IAM statements its tasks need.
package statemachine

import (
	"fmt"
	"time"

	"github.com/theory-cloud/sfntasks"
)

// Node is a state that can appear in a definition.
type Node interface {
	StateName() string
	render() (map[string]any, error)
	successors() []Node
}

// nexter is a node that transitions to a single next state.
type nexter interface {
	Node
	setNext(Node)
	nextNode() Node
}

type transition struct {
	next Node
}

func (t *transition) setNext(n Node) { t.next = n }
func (t *transition) nextNode() Node { return t.next }

func (t *transition) successors() []Node {
	if t.next == nil {
		return nil
	}
	return []Node{t.next}
}

func (t *transition) apply(state map[string]any) {
	if t.next == nil {
		state["End"] = true
		return
	}
	state["Next"] = t.next.StateName()
}

// TaskNode wraps a service integration task.
type TaskNode struct {
	transition
	task sfntasks.Task
}

// Task wraps t so it can be chained.
func Task(t sfntasks.Task) *TaskNode {
	return &TaskNode{task: t}
}

func (n *TaskNode) StateName() string { return n.task.ID() }

func (n *TaskNode) Task() sfntasks.Task { return n.task }

// catchTargets returns the states the task's catch rules route to.
func (n *TaskNode) catchTargets() []string {
	if c, ok := n.task.(interface{ CatchTargets() []string }); ok {
		return c.CatchTargets()
	}
	return nil
}

func (n *TaskNode) render() (map[string]any, error) {
	state, err := n.task.RenderState()
	if err != nil {
		return nil, err
	}
	n.apply(state)
	return state, nil
}

// PassProps configures a Pass state.
type PassProps struct {
	Comment    string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	InputPath  string         `json:"inputPath,omitempty" yaml:"inputPath,omitempty"`
	OutputPath string         `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	ResultPath string         `json:"resultPath,omitempty" yaml:"resultPath,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Result replaces the input with a literal value.
	Result any `json:"result,omitempty" yaml:"result,omitempty"`
}

type PassState struct {
	transition
	name  string
	props PassProps
}

func Pass(name string, props PassProps) *PassState {
	return &PassState{name: name, props: props}
}

func (s *PassState) StateName() string { return s.name }

func (s *PassState) render() (map[string]any, error) {
	state := map[string]any{"Type": "Pass"}
	putString(state, "Comment", s.props.Comment)
	if err := putPaths(state, s.props.InputPath, s.props.OutputPath, s.props.ResultPath); err != nil {
		return nil, err
	}
	if s.props.Parameters != nil {
		params, err := sfntasks.RenderParameters(s.props.Parameters)
		if err != nil {
			return nil, fmt.Errorf("Parameters: %w", err)
		}
		state["Parameters"] = params
	}
	if s.props.Result != nil {
		state["Result"] = s.props.Result
	}
	s.apply(state)
	return state, nil
}

// WaitProps configures a Wait state. Exactly one field must be set.
type WaitProps struct {
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	// Whole seconds.
	Duration      time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Timestamp     time.Time     `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	SecondsPath   string        `json:"secondsPath,omitempty" yaml:"secondsPath,omitempty"`
	TimestampPath string        `json:"timestampPath,omitempty" yaml:"timestampPath,omitempty"`
}

type WaitState struct {
	transition
	name  string
	props WaitProps
}

func Wait(name string, props WaitProps) *WaitState {
	return &WaitState{name: name, props: props}
}

func (s *WaitState) StateName() string { return s.name }

func (s *WaitState) render() (map[string]any, error) {
	state := map[string]any{"Type": "Wait"}
	putString(state, "Comment", s.props.Comment)

	set := 0
	if s.props.Duration != 0 {
		if s.props.Duration < 0 || s.props.Duration%time.Second != 0 {
			return nil, fmt.Errorf("Wait duration must be a positive whole number of seconds, got %s", s.props.Duration)
		}
		state["Seconds"] = int(s.props.Duration / time.Second)
		set++
	}
	if !s.props.Timestamp.IsZero() {
		state["Timestamp"] = s.props.Timestamp.UTC().Format(time.RFC3339)
		set++
	}
	for key, path := range map[string]string{"SecondsPath": s.props.SecondsPath, "TimestampPath": s.props.TimestampPath} {
		if path == "" {
			continue
		}
		if err := sfntasks.ValidateJsonPath(path); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		state[key] = path
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("Wait state needs exactly one of duration, timestamp, secondsPath or timestampPath, got %d", set)
	}
	s.apply(state)
	return state, nil
}

type SucceedState struct {
	name    string
	comment string
}

func Succeed(name, comment string) *SucceedState {
	return &SucceedState{name: name, comment: comment}
}

func (s *SucceedState) StateName() string  { return s.name }
func (s *SucceedState) successors() []Node { return nil }

func (s *SucceedState) render() (map[string]any, error) {
	state := map[string]any{"Type": "Succeed"}
	putString(state, "Comment", s.comment)
	return state, nil
}

// FailProps configures a Fail state.
type FailProps struct {
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Cause   string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

type FailState struct {
	name  string
	props FailProps
}

func Fail(name string, props FailProps) *FailState {
	return &FailState{name: name, props: props}
}

func (s *FailState) StateName() string  { return s.name }
func (s *FailState) successors() []Node { return nil }

func (s *FailState) render() (map[string]any, error) {
	state := map[string]any{"Type": "Fail"}
	putString(state, "Comment", s.props.Comment)
	putString(state, "Error", s.props.Error)
	putString(state, "Cause", s.props.Cause)
	return state, nil
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func putPaths(state map[string]any, inputPath, outputPath, resultPath string) error {
	for _, p := range []struct{ key, value string }{
		{"InputPath", inputPath},
		{"OutputPath", outputPath},
		{"ResultPath", resultPath},
	} {
		if p.value == "" {
			continue
		}
		if p.key == "ResultPath" && p.value == sfntasks.JsonPathDiscard {
			state[p.key] = nil
			continue
		}
		if err := sfntasks.ValidateJsonPath(p.value); err != nil {
			return fmt.Errorf("%s: %w", p.key, err)
		}
		state[p.key] = p.value
	}
	return nil
}
