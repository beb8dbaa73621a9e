package statemachine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theory-cloud/sfntasks"
	"github.com/theory-cloud/sfntasks/pkg/iam"
)

const maxStateNameLength = 80

// ErrInvalidDefinition wraps every wiring and validation failure of Render.
var ErrInvalidDefinition = errors.New("statemachine: invalid definition")

// DefinitionProps holds the top level fields of a definition.
type DefinitionProps struct {
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	// Whole seconds.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
}

// Definition is a state machine built from a chain.
type Definition struct {
	props DefinitionProps
	chain *Chain
	extra []Node
}

func NewDefinition(chain *Chain, props DefinitionProps) *Definition {
	return &Definition{props: props, chain: chain}
}

// Add registers states that are only reachable through Catch rules.
func (d *Definition) Add(nodes ...Node) *Definition {
	d.extra = append(d.extra, nodes...)
	return d
}

// StartAt is the name of the first state.
func (d *Definition) StartAt() string {
	if d.chain == nil {
		return ""
	}
	return nameOf(unwrap(d.chain.start))
}

type graph struct {
	order  []Node
	byName map[string]Node
	errs   []error
}

func (g *graph) visit(n Node) {
	if chain, ok := n.(*Chain); ok && chain.err != nil {
		g.errs = append(g.errs, chain.err)
	}
	n = unwrap(n)
	if n == nil {
		return
	}
	name := n.StateName()
	if existing, ok := g.byName[name]; ok {
		if existing != n {
			g.errs = append(g.errs, fmt.Errorf("state name %q is used by more than one state", name))
		}
		return
	}
	g.byName[name] = n
	g.order = append(g.order, n)
	for _, next := range n.successors() {
		g.visit(next)
	}
}

func (d *Definition) collect() *graph {
	g := &graph{byName: map[string]Node{}}
	if d.chain == nil || d.chain.start == nil {
		g.errs = append(g.errs, errors.New("definition has no start state"))
		return g
	}
	g.visit(d.chain)
	for _, n := range d.extra {
		g.visit(n)
	}
	return g
}

// Validate checks names, transitions and reachability without rendering.
func (d *Definition) Validate() error {
	g := d.collect()
	problems := append([]error(nil), g.errs...)

	for _, n := range g.order {
		name := n.StateName()
		switch {
		case strings.TrimSpace(name) == "":
			problems = append(problems, errors.New("state name is required"))
		case len(name) > maxStateNameLength:
			problems = append(problems, fmt.Errorf("state name %q exceeds %d characters", name, maxStateNameLength))
		}
		if task, ok := n.(*TaskNode); ok {
			for _, target := range task.catchTargets() {
				if _, ok := g.byName[target]; !ok {
					problems = append(problems, fmt.Errorf("state %q catches to unknown state %q", name, target))
				}
			}
		}
	}

	if len(g.order) > 0 {
		reached := d.reachable(g)
		for _, n := range g.order {
			if !reached[n.StateName()] {
				problems = append(problems, fmt.Errorf("state %q is not reachable from %q", n.StateName(), d.StartAt()))
			}
		}
	}

	if d.props.Timeout < 0 || d.props.Timeout%time.Second != 0 {
		problems = append(problems, fmt.Errorf("timeout must be a positive whole number of seconds, got %s", d.props.Timeout))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(problems...))
}

func (d *Definition) reachable(g *graph) map[string]bool {
	seen := map[string]bool{}
	queue := []Node{unwrap(d.chain.start)}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil || seen[n.StateName()] {
			continue
		}
		seen[n.StateName()] = true
		for _, next := range n.successors() {
			queue = append(queue, unwrap(next))
		}
		if task, ok := n.(*TaskNode); ok {
			for _, target := range task.catchTargets() {
				if t, ok := g.byName[target]; ok {
					queue = append(queue, t)
				}
			}
		}
	}
	return seen
}

// Document renders the definition as a map ready for JSON encoding.
func (d *Definition) Document() (map[string]any, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	g := d.collect()

	states := make(map[string]any, len(g.order))
	for _, n := range g.order {
		rendered, err := n.render()
		if err != nil {
			return nil, fmt.Errorf("%w: state %q: %w", ErrInvalidDefinition, n.StateName(), err)
		}
		states[n.StateName()] = rendered
	}

	doc := map[string]any{
		"StartAt": d.StartAt(),
		"States":  states,
	}
	putString(doc, "Comment", d.props.Comment)
	putString(doc, "Version", d.props.Version)
	if d.props.Timeout > 0 {
		doc["TimeoutSeconds"] = int(d.props.Timeout / time.Second)
	}
	return doc, nil
}

// Render returns the indented ASL JSON.
func (d *Definition) Render() ([]byte, error) {
	doc, err := d.Document()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Tasks returns the task states in traversal order.
func (d *Definition) Tasks() []sfntasks.Task {
	var out []sfntasks.Task
	for _, n := range d.collect().order {
		if task, ok := n.(*TaskNode); ok {
			out = append(out, task.task)
		}
	}
	return out
}

// StateNames returns every state name, sorted.
func (d *Definition) StateNames() []string {
	g := d.collect()
	out := make([]string, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, n.StateName())
	}
	sort.Strings(out)
	return out
}

// Policy returns the minimized IAM document the state machine role needs.
func (d *Definition) Policy() *iam.Document {
	doc := iam.NewDocument()
	for _, task := range d.Tasks() {
		doc.Add(task.PolicyStatements()...)
	}
	return doc.Minimize()
}
