package sfntasks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// MessageAttributeDataType is the SNS/SQS message attribute type.
type MessageAttributeDataType string

const (
	MessageAttributeDataTypeString      MessageAttributeDataType = "String"
	MessageAttributeDataTypeStringArray MessageAttributeDataType = "String.Array"
	MessageAttributeDataTypeNumber      MessageAttributeDataType = "Number"
	MessageAttributeDataTypeBinary      MessageAttributeDataType = "Binary"
)

func (t MessageAttributeDataType) Valid() bool {
	switch t {
	case MessageAttributeDataTypeString, MessageAttributeDataTypeStringArray, MessageAttributeDataTypeNumber, MessageAttributeDataTypeBinary:
		return true
	default:
		return false
	}
}

// MessageAttribute is a typed SNS message attribute. When DataType is empty it is
// inferred from Value.
type MessageAttribute struct {
	Value    any                      `field:"required" json:"value" yaml:"value"`
	DataType MessageAttributeDataType `field:"optional" json:"dataType,omitempty" yaml:"dataType,omitempty"`
}

func (a MessageAttribute) render() (map[string]any, error) {
	dataType := a.DataType
	if dataType == "" {
		dataType = inferAttributeType(a.Value)
	}
	if !dataType.Valid() {
		return nil, fmt.Errorf("dataType must be one of String, String.Array, Number, Binary, got %q", dataType)
	}

	out := map[string]any{"DataType": string(dataType)}
	switch v := a.Value.(type) {
	case string:
		if dataType == MessageAttributeDataTypeBinary {
			out["BinaryValue"] = v
		} else {
			out["StringValue"] = v
		}
	case []byte:
		out["BinaryValue"] = base64.StdEncoding.EncodeToString(v)
	case int:
		out["StringValue"] = strconv.Itoa(v)
	case float64:
		if _, isPath := numberTokenPath(v); isPath {
			out["StringValue"] = v
		} else {
			out["StringValue"] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	case bool:
		out["StringValue"] = strconv.FormatBool(v)
	case []string:
		if _, isPath, _ := pathOf(v); isPath {
			out["StringValue"] = v
			break
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out["StringValue"] = string(raw)
	case []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out["StringValue"] = string(raw)
	default:
		return nil, fmt.Errorf("unsupported message attribute value %T", a.Value)
	}
	return out, nil
}

func inferAttributeType(value any) MessageAttributeDataType {
	switch value.(type) {
	case []byte:
		return MessageAttributeDataTypeBinary
	case int, float64:
		return MessageAttributeDataTypeNumber
	case []string, []any:
		return MessageAttributeDataTypeStringArray
	default:
		return MessageAttributeDataTypeString
	}
}

func renderMessageAttributes(attrs map[string]MessageAttribute) (map[string]any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		rendered, err := attr.render()
		if err != nil {
			return nil, fmt.Errorf("messageAttributes.%s: %w", name, err)
		}
		out[name] = rendered
	}
	return out, nil
}

// SnsPublishProps configures SnsPublish.
type SnsPublishProps struct {
	TaskProps `yaml:",inline"`

	// Topic ARN or name.
	Topic   string     `field:"required" json:"topic" yaml:"topic"`
	Message *TaskInput `field:"required" json:"message" yaml:"message"`
	// Send a different message to each subscription protocol. Message must be an object
	// with at least a "default" key.
	MessagePerSubscriptionType *bool                       `field:"optional" json:"messagePerSubscriptionType,omitempty" yaml:"messagePerSubscriptionType,omitempty"`
	MessageAttributes          map[string]MessageAttribute `field:"optional" json:"messageAttributes,omitempty" yaml:"messageAttributes,omitempty"`
	Subject                    string                      `field:"optional" json:"subject,omitempty" yaml:"subject,omitempty"`
	// FIFO topics only.
	MessageGroupId         string `field:"optional" json:"messageGroupId,omitempty" yaml:"messageGroupId,omitempty"`
	MessageDeduplicationId string `field:"optional" json:"messageDeduplicationId,omitempty" yaml:"messageDeduplicationId,omitempty"`
}

// SnsPublish publishes a message to an SNS topic.
type SnsPublish struct {
	*TaskState
	props      SnsPublishProps
	topicArn   string
	attributes map[string]any
}

func NewSnsPublish(scope *Stack, id string, props *SnsPublishProps) (*SnsPublish, error) {
	p := newProblems("SnsPublish")
	if props == nil {
		p.required("topic")
		p.required("message")
		return nil, p.err()
	}
	p.requireString("topic", props.Topic)
	if props.Message == nil {
		p.required("message")
	}
	if props.pattern() == IntegrationPatternWaitForTaskToken && !props.Message.containsTaskToken() {
		p.add(taskTokenRequired("message"))
	}
	if boolOr(props.MessagePerSubscriptionType, false) && props.Message != nil {
		obj, ok := props.Message.Value.(map[string]any)
		if props.Message.Type != InputTypeObject || !ok {
			p.invalid("message", "message must be an object when messagePerSubscriptionType is set")
		} else if _, hasDefault := obj["default"]; !hasDefault {
			p.invalid("message", "message must contain a 'default' key when messagePerSubscriptionType is set")
		}
	}
	if len(props.Subject) > 100 {
		p.invalid("subject", "subject must be at most 100 characters, got %d", len(props.Subject))
	}
	attributes, err := renderMessageAttributes(props.MessageAttributes)
	if err != nil {
		p.invalid("messageAttributes", "%v", err)
	}

	s := &SnsPublish{props: *props, attributes: attributes}
	if props.Topic != "" {
		s.topicArn = scope.arnOrName(props.Topic, "sns", props.Topic, iam.ArnNoName)
		p.deployable("topic", props.Topic, s.topicArn)
	}
	task, err := newTaskState(scope, id, "SnsPublish", props.TaskProps, patternsCallback, s, p)
	if err != nil {
		return nil, err
	}
	s.TaskState = task
	return s, nil
}

func (s *SnsPublish) TopicArn() string { return s.topicArn }

func (s *SnsPublish) resourceArn() string {
	return integrationResourceArn(s.scope, "sns", "publish", s.props.pattern())
}

func (s *SnsPublish) parameters() map[string]any {
	params := map[string]any{
		"TopicArn": s.topicArn,
		"Message":  s.props.Message.value(),
	}
	if boolOr(s.props.MessagePerSubscriptionType, false) {
		params["MessageStructure"] = "json"
	}
	if s.attributes != nil {
		params["MessageAttributes"] = s.attributes
	}
	putIf(params, "Subject", s.props.Subject)
	putIf(params, "MessageGroupId", s.props.MessageGroupId)
	putIf(params, "MessageDeduplicationId", s.props.MessageDeduplicationId)
	return params
}

func (s *SnsPublish) policyStatements() []iam.Statement {
	return []iam.Statement{iam.Allow([]string{"sns:Publish"}, s.topicArn)}
}
