// Package workflowfile loads state machine definitions written in YAML.
//
// A file lists its states in order; the first one is the start state unless startAt
// says otherwise:
//
//	comment: Process an order
//	environment: {region: us-east-1, account: "123456789012"}
//	states:
//	  - name: Charge
//	    type: LambdaInvoke
//	    props:
//	      lambdaFunction: charge-card
//	      payload: {"orderId.$": "$.order.id"}
//	    catch: [{errors: [States.ALL], next: Failed}]
//	    next: Done
//	  - {name: Done, type: Succeed}
//	  - {name: Failed, type: Fail, props: {error: ChargeFailed}}
//
// Mapping keys ending in ".$" inside props are path references, as in Amazon States
// Language.
package workflowfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sfntasks"
)

// Document is a parsed workflow file.
type Document struct {
	Comment     string              `yaml:"comment,omitempty"`
	Timeout     time.Duration       `yaml:"timeout,omitempty"`
	Version     string              `yaml:"version,omitempty"`
	StartAt     string              `yaml:"startAt,omitempty"`
	Environment sfntasks.StackProps `yaml:"environment,omitempty"`
	Deploy      DeploySettings      `yaml:"stateMachine,omitempty"`
	States      []State             `yaml:"states"`
}

// DeploySettings carries what the deploy command needs besides the definition.
type DeploySettings struct {
	Name    string            `yaml:"name,omitempty"`
	RoleArn string            `yaml:"roleArn,omitempty"`
	Type    string            `yaml:"type,omitempty"`
	Tracing bool              `yaml:"tracing,omitempty"`
	Tags    map[string]string `yaml:"tags,omitempty"`
}

// State is one entry of the states list.
type State struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Next string `yaml:"next,omitempty"`
	End  bool   `yaml:"end,omitempty"`

	Retry []sfntasks.RetryProps `yaml:"retry,omitempty"`
	Catch []Catch               `yaml:"catch,omitempty"`

	// Choice states only.
	Choices []Rule `yaml:"choices,omitempty"`
	Default string `yaml:"default,omitempty"`

	// Props decode into the integration or flow state props.
	Props yaml.Node `yaml:"props,omitempty"`
}

type Catch struct {
	sfntasks.CatchProps `yaml:",inline"`
	Next                string `yaml:"next"`
}

// Rule is a Choice rule. Exactly one comparison or combinator must be set.
type Rule struct {
	Variable string `yaml:"variable,omitempty"`

	StringEquals             *string  `yaml:"stringEquals,omitempty"`
	StringMatches            *string  `yaml:"stringMatches,omitempty"`
	NumericEquals            *float64 `yaml:"numericEquals,omitempty"`
	NumericGreaterThan       *float64 `yaml:"numericGreaterThan,omitempty"`
	NumericGreaterThanEquals *float64 `yaml:"numericGreaterThanEquals,omitempty"`
	NumericLessThan          *float64 `yaml:"numericLessThan,omitempty"`
	NumericLessThanEquals    *float64 `yaml:"numericLessThanEquals,omitempty"`
	BooleanEquals            *bool    `yaml:"booleanEquals,omitempty"`
	IsPresent                *bool    `yaml:"isPresent,omitempty"`
	IsNull                   *bool    `yaml:"isNull,omitempty"`

	And []Rule `yaml:"and,omitempty"`
	Or  []Rule `yaml:"or,omitempty"`
	Not *Rule  `yaml:"not,omitempty"`

	// Next is required on top level rules and ignored on nested ones.
	Next string `yaml:"next,omitempty"`
}

// Parse decodes a workflow document. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("workflowfile: document is empty")
		}
		return nil, fmt.Errorf("workflowfile: %w", err)
	}
	if len(doc.States) == 0 {
		return nil, errors.New("workflowfile: states must list at least one state")
	}
	return &doc, nil
}

func ParseBytes(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data))
}

// Load reads and parses the file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflowfile: %w", err)
	}
	return ParseBytes(data)
}
