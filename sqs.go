package sfntasks

import (
	"fmt"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

// SqsSendMessageProps configures SqsSendMessage.
type SqsSendMessageProps struct {
	TaskProps `yaml:",inline"`

	// Queue ARN or name.
	Queue       string     `field:"required" json:"queue" yaml:"queue"`
	MessageBody *TaskInput `field:"required" json:"messageBody" yaml:"messageBody"`
	// Between 0 and 900 seconds.
	Delay                  time.Duration `field:"optional" json:"delay,omitempty" yaml:"delay,omitempty"`
	MessageDeduplicationId string        `field:"optional" json:"messageDeduplicationId,omitempty" yaml:"messageDeduplicationId,omitempty"`
	MessageGroupId         string        `field:"optional" json:"messageGroupId,omitempty" yaml:"messageGroupId,omitempty"`
	// KMS key used for server side encryption of the queue, if any.
	EncryptionKeyArn string `field:"optional" json:"encryptionKeyArn,omitempty" yaml:"encryptionKeyArn,omitempty"`
}

// SqsSendMessage sends a message to an SQS queue.
type SqsSendMessage struct {
	*TaskState
	props    SqsSendMessageProps
	queueArn string
	queueURL string
}

func NewSqsSendMessage(scope *Stack, id string, props *SqsSendMessageProps) (*SqsSendMessage, error) {
	p := newProblems("SqsSendMessage")
	if props == nil {
		p.required("queue")
		p.required("messageBody")
		return nil, p.err()
	}
	p.requireString("queue", props.Queue)
	if props.MessageBody == nil {
		p.required("messageBody")
	}
	if props.Delay != 0 {
		p.add(wholeSeconds("delay", props.Delay))
		if props.Delay > 900*time.Second {
			p.invalid("delay", "delay must be between 0 and 900 seconds, got %s", props.Delay)
		}
	}
	if props.pattern() == IntegrationPatternWaitForTaskToken && !props.MessageBody.containsTaskToken() {
		p.add(taskTokenRequired("messageBody"))
	}

	q := &SqsSendMessage{props: *props}
	if props.Queue != "" {
		q.queueArn = scope.arnOrName(props.Queue, "sqs", props.Queue, iam.ArnNoName)
		q.queueURL = queueURL(q.queueArn)
		p.deployable("queue", props.Queue, q.queueArn)
	}
	task, err := newTaskState(scope, id, "SqsSendMessage", props.TaskProps, patternsCallback, q, p)
	if err != nil {
		return nil, err
	}
	q.TaskState = task
	return q, nil
}

func (q *SqsSendMessage) QueueArn() string { return q.queueArn }
func (q *SqsSendMessage) QueueURL() string { return q.queueURL }

func (q *SqsSendMessage) resourceArn() string {
	return integrationResourceArn(q.scope, "sqs", "sendMessage", q.props.pattern())
}

func (q *SqsSendMessage) parameters() map[string]any {
	params := map[string]any{
		"QueueUrl":    q.queueURL,
		"MessageBody": q.props.MessageBody.value(),
	}
	if q.props.Delay > 0 {
		params["DelaySeconds"] = int(q.props.Delay / time.Second)
	}
	putIf(params, "MessageDeduplicationId", q.props.MessageDeduplicationId)
	putIf(params, "MessageGroupId", q.props.MessageGroupId)
	return params
}

func (q *SqsSendMessage) policyStatements() []iam.Statement {
	statements := []iam.Statement{iam.Allow([]string{"sqs:SendMessage"}, q.queueArn)}
	if q.props.EncryptionKeyArn != "" {
		statements = append(statements, iam.Allow([]string{"kms:Decrypt", "kms:GenerateDataKey*"}, q.props.EncryptionKeyArn))
	}
	return statements
}

// queueURL derives https://sqs.<region>.<suffix>/<account>/<name> from a queue ARN.
func queueURL(queueArn string) string {
	parsed, err := iam.ParseArn(queueArn)
	if err != nil {
		return queueArn
	}
	return fmt.Sprintf("https://sqs.%s.%s/%s/%s", parsed.Region, urlSuffix(parsed.Partition), parsed.Account, parsed.Resource)
}

func urlSuffix(partition string) string {
	switch partition {
	case "aws-cn":
		return "amazonaws.com.cn"
	case "aws-iso":
		return "c2s.ic.gov"
	case "aws-iso-b":
		return "sc2s.sgov.gov"
	default:
		return "amazonaws.com"
	}
}
