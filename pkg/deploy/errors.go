package deploy

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	ErrStateMachineNotFound = errors.New("state machine not found")
	ErrInvalidDefinition    = errors.New("invalid state machine definition")
	ErrAlreadyExists        = errors.New("state machine already exists")
	ErrExecutionExists      = errors.New("execution already exists")
	ErrInvalidArn           = errors.New("invalid arn")
	ErrThrottled            = errors.New("request throttled")
	ErrAccessDenied         = errors.New("access denied")
)

var sentinelByCode = map[string]error{
	"StateMachineDoesNotExist":  ErrStateMachineNotFound,
	"StateMachineDeleting":      ErrStateMachineNotFound,
	"InvalidDefinition":         ErrInvalidDefinition,
	"StateMachineAlreadyExists": ErrAlreadyExists,
	"ExecutionAlreadyExists":    ErrExecutionExists,
	"InvalidArn":                ErrInvalidArn,
	"ThrottlingException":       ErrThrottled,
	"AccessDeniedException":     ErrAccessDenied,
}

// wrap annotates err with op and, for known Step Functions error codes, the matching
// sentinel so callers can use errors.Is.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel, ok := sentinelByCode[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("deploy: %s: %w: %w", op, sentinel, err)
		}
	}
	return fmt.Errorf("deploy: %s: %w", op, err)
}
