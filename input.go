package sfntasks

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// InputType distinguishes text and object task inputs.
type InputType int

const (
	InputTypeText InputType = iota
	InputTypeObject
)

// TaskInput is the payload handed to a service integration.
type TaskInput struct {
	Type  InputType
	Value any
}

// TaskInputFromObject builds an object input. Values may contain path references.
func TaskInputFromObject(obj map[string]any) *TaskInput {
	return &TaskInput{Type: InputTypeObject, Value: obj}
}

// TaskInputFromText builds a text input; text may be a single path reference.
func TaskInputFromText(text string) *TaskInput {
	return &TaskInput{Type: InputTypeText, Value: text}
}

// TaskInputFromJsonPathAt passes the value found at path as the input.
func TaskInputFromJsonPathAt(path string) *TaskInput {
	return &TaskInput{Type: InputTypeText, Value: JsonPathStringAt(path)}
}

// UnmarshalYAML lets workflow files write either a string or a mapping.
func (in *TaskInput) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var text string
		if err := node.Decode(&text); err != nil {
			return err
		}
		*in = *TaskInputFromText(text)
		return nil
	}
	var obj map[string]any
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("task input must be a string or a mapping: %w", err)
	}
	*in = *TaskInputFromObject(obj)
	return nil
}

// UnmarshalJSON accepts either a JSON string or a JSON object.
func (in *TaskInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*in = *TaskInputFromText(text)
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("task input must be a string or an object: %w", err)
	}
	*in = *TaskInputFromObject(obj)
	return nil
}

func (in *TaskInput) MarshalJSON() ([]byte, error) {
	if in == nil {
		return []byte("null"), nil
	}
	return json.Marshal(in.Value)
}

func (in *TaskInput) value() any {
	if in == nil {
		return nil
	}
	return in.Value
}

func (in *TaskInput) containsTaskToken() bool {
	if in == nil {
		return false
	}
	return containsTaskToken(in.Value)
}
