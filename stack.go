package sfntasks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

const (
	DefaultPartition = "aws"
	// AnyRegion and AnyAccount are used when a stack is only rendered for IAM review and
	// its environment is not known.
	AnyRegion  = "*"
	AnyAccount = "*"

	maxStateNameLength = 80
)

// StackProps describes the environment tasks are rendered for.
type StackProps struct {
	Partition string `field:"optional" json:"partition,omitempty" yaml:"partition,omitempty"`
	Region    string `field:"optional" json:"region,omitempty" yaml:"region,omitempty"`
	Account   string `field:"optional" json:"account,omitempty" yaml:"account,omitempty"`
}

// Stack is the scope tasks are constructed in. It supplies ARN components and keeps
// task ids unique.
type Stack struct {
	partition string
	region    string
	account   string

	mu  sync.Mutex
	ids map[string]struct{}
}

func NewStack(props StackProps) *Stack {
	s := &Stack{
		partition: strings.TrimSpace(props.Partition),
		region:    strings.TrimSpace(props.Region),
		account:   strings.TrimSpace(props.Account),
		ids:       map[string]struct{}{},
	}
	if s.partition == "" {
		s.partition = DefaultPartition
	}
	if s.region == "" {
		s.region = AnyRegion
	}
	if s.account == "" {
		s.account = AnyAccount
	}
	return s
}

var defaultStack = NewStack(StackProps{})

func (s *Stack) Partition() string { return s.orDefault().partition }
func (s *Stack) Region() string    { return s.orDefault().region }
func (s *Stack) Account() string   { return s.orDefault().account }

func (s *Stack) orDefault() *Stack {
	if s == nil {
		return defaultStack
	}
	return s
}

// FormatArn fills in the stack's partition, region and account where a is blank.
func (s *Stack) FormatArn(a iam.Arn) string {
	if a.Partition == "" {
		a.Partition = s.Partition()
	}
	if a.Region == "" {
		a.Region = s.Region()
	}
	if a.Account == "" {
		a.Account = s.Account()
	}
	return a.String()
}

// IDs returns the ids registered in the stack, in no particular order.
func (s *Stack) IDs() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// register claims id within the stack. The nil stack does not track ids.
func (s *Stack) register(typeName, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return &ValidationError{Code: ErrorCodeRequired, Type: typeName, Field: "id", Message: "Required property 'id' is missing"}
	}
	if trimmed != id {
		return &ValidationError{Code: ErrorCodeInvalid, Type: typeName, Field: "id", Message: fmt.Sprintf("id %q has leading or trailing whitespace", id)}
	}
	if len(id) > maxStateNameLength {
		return &ValidationError{Code: ErrorCodeInvalid, Type: typeName, Field: "id", Message: fmt.Sprintf("id %q exceeds %d characters", id, maxStateNameLength)}
	}
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; exists {
		return &ValidationError{
			Code:    ErrorCodeDuplicateID,
			Type:    typeName,
			Field:   "id",
			Message: fmt.Sprintf("There is already a Construct with name '%s' in Stack", id),
		}
	}
	s.ids[id] = struct{}{}
	return nil
}

// eventsRuleArn is the managed EventBridge rule Step Functions creates for RUN_JOB integrations.
func (s *Stack) eventsRuleArn(rule string) string {
	return s.FormatArn(iam.Arn{Service: "events", Resource: "rule", ResourceName: rule, Format: iam.ArnSlash})
}

// serviceArn formats an ARN for a resource owned by the stack's account and region.
func (s *Stack) serviceArn(service, resource, name string, format iam.ArnFormat) string {
	return s.FormatArn(iam.Arn{Service: service, Resource: resource, ResourceName: name, Format: format})
}

// arnOrName returns nameOrArn when it is already an ARN and the formatted ARN otherwise.
func (s *Stack) arnOrName(nameOrArn, service, resource string, format iam.ArnFormat) string {
	if iam.IsArn(nameOrArn) {
		return nameOrArn
	}
	return s.serviceArn(service, resource, nameOrArn, format)
}
