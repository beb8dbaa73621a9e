package sfntasks

import (
	"fmt"
	"strings"
)

// IntegrationPattern selects how Step Functions waits on a service integration.
type IntegrationPattern string

const (
	// IntegrationPatternRequestResponse moves on as soon as the service answers the request.
	IntegrationPatternRequestResponse IntegrationPattern = "REQUEST_RESPONSE"
	// IntegrationPatternRunJob waits for the started job to finish.
	IntegrationPatternRunJob IntegrationPattern = "RUN_JOB"
	// IntegrationPatternWaitForTaskToken pauses until a task token is returned.
	IntegrationPatternWaitForTaskToken IntegrationPattern = "WAIT_FOR_TASK_TOKEN"
)

func (p IntegrationPattern) Valid() bool {
	switch p {
	case IntegrationPatternRequestResponse, IntegrationPatternRunJob, IntegrationPatternWaitForTaskToken:
		return true
	default:
		return false
	}
}

func (p IntegrationPattern) resourceSuffix() string {
	switch p {
	case IntegrationPatternRunJob:
		return ".sync"
	case IntegrationPatternWaitForTaskToken:
		return ".waitForTaskToken"
	default:
		return ""
	}
}

// integrationResourceArn is arn:<partition>:states:::<service>:<api> plus the pattern suffix.
func integrationResourceArn(scope *Stack, service, api string, pattern IntegrationPattern) string {
	return fmt.Sprintf("arn:%s:states:::%s:%s%s", scope.Partition(), service, api, pattern.resourceSuffix())
}

func validatePatternSupported(typeName string, pattern IntegrationPattern, supported []IntegrationPattern) error {
	for _, s := range supported {
		if s == pattern {
			return nil
		}
	}
	names := make([]string, 0, len(supported))
	for _, s := range supported {
		names = append(names, string(s))
	}
	return &ValidationError{
		Code:    ErrorCodeUnsupportedPattern,
		Type:    typeName,
		Field:   "integrationPattern",
		Message: fmt.Sprintf("Unsupported service integration pattern. Supported Patterns: %s. Received: %s", strings.Join(names, ","), pattern),
	}
}

func taskTokenRequired(field string) error {
	return &ValidationError{
		Code:    ErrorCodeInvalid,
		Field:   field,
		Message: fmt.Sprintf("Task Token is required in `%s` for callback. Use JsonPathTaskToken to set the token.", field),
	}
}

var (
	patternsRequestResponse = []IntegrationPattern{IntegrationPatternRequestResponse}
	patternsRunJob          = []IntegrationPattern{IntegrationPatternRequestResponse, IntegrationPatternRunJob}
	patternsCallback        = []IntegrationPattern{IntegrationPatternRequestResponse, IntegrationPatternWaitForTaskToken}
	patternsAll             = []IntegrationPattern{IntegrationPatternRequestResponse, IntegrationPatternRunJob, IntegrationPatternWaitForTaskToken}
)
