package testkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notification is one message published to a FakeSNSTopic.
type Notification struct {
	TopicARN   string
	Subject    string
	Message    string
	Attributes map[string]string
}

// FakeSNSTopic stands in for the SNS client the error notifier publishes through.
type FakeSNSTopic struct {
	mu        sync.Mutex
	published []Notification

	// Err, when set, is returned by Publish after the call is recorded.
	Err error
}

func NewFakeSNSTopic() *FakeSNSTopic {
	return &FakeSNSTopic{}
}

func (f *FakeSNSTopic) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if params == nil {
		return nil, errors.New("testkit: publish input is nil")
	}
	topicARN := strings.TrimSpace(aws.ToString(params.TopicArn))
	if topicARN == "" {
		return nil, errors.New("testkit: topic arn is empty")
	}

	n := Notification{
		TopicARN: topicARN,
		Subject:  aws.ToString(params.Subject),
		Message:  aws.ToString(params.Message),
	}
	if len(params.MessageAttributes) > 0 {
		n.Attributes = make(map[string]string, len(params.MessageAttributes))
		for key, value := range params.MessageAttributes {
			n.Attributes[key] = aws.ToString(value.StringValue)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, n)
	if f.Err != nil {
		return nil, f.Err
	}
	return &sns.PublishOutput{MessageId: aws.String(fmt.Sprintf("notification-%d", len(f.published)))}, nil
}

// Published returns a copy of every recorded notification.
func (f *FakeSNSTopic) Published() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.published...)
}

// Last returns the most recent notification, or false when nothing was published.
func (f *FakeSNSTopic) Last() (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return Notification{}, false
	}
	return f.published[len(f.published)-1], true
}
