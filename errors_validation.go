package sfntasks

import (
	"errors"
	"fmt"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

const (
	ErrorCodeRequired           = "sfntasks.required"
	ErrorCodeInvalid            = "sfntasks.invalid"
	ErrorCodeUnsupportedPattern = "sfntasks.unsupported_pattern"
	ErrorCodeDuplicateID        = "sfntasks.duplicate_id"
)

// ValidationError reports a props value that cannot be rendered into a task state.
type ValidationError struct {
	Code    string
	Type    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err (or any error joined into it) is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ValidationErrors returns every *ValidationError joined into err.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var out []*ValidationError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if v, ok := e.(*ValidationError); ok {
			out = append(out, v)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)
	return out
}

// problems collects validation failures for a single props struct.
type problems struct {
	typeName string
	errs     []error
}

func newProblems(typeName string) *problems {
	return &problems{typeName: typeName}
}

func (p *problems) required(field string) {
	p.errs = append(p.errs, &ValidationError{
		Code:    ErrorCodeRequired,
		Type:    p.typeName,
		Field:   field,
		Message: fmt.Sprintf("Required property '%s' is missing", field),
	})
}

func (p *problems) invalid(field string, format string, args ...any) {
	p.errs = append(p.errs, &ValidationError{
		Code:    ErrorCodeInvalid,
		Type:    p.typeName,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *problems) add(err error) {
	if err == nil {
		return
	}
	var v *ValidationError
	if errors.As(err, &v) && v.Type == "" {
		v.Type = p.typeName
	}
	p.errs = append(p.errs, err)
}

// deployable flags a name whose derived ARN still carries the wildcard region or
// account. Wildcards are fine in policies but not in rendered parameters.
func (p *problems) deployable(field, nameOrArn, arn string) {
	if nameOrArn == "" || iam.IsArn(nameOrArn) {
		return
	}
	parsed, err := iam.ParseArn(arn)
	if err != nil {
		return
	}
	if parsed.Region == AnyRegion || parsed.Account == AnyAccount {
		p.invalid(field, "%s %q cannot be resolved without a stack region and account; pass a full ARN", field, nameOrArn)
	}
}

func (p *problems) requireString(field, value string) {
	if value == "" {
		p.required(field)
	}
}

func (p *problems) enum(field string, value interface{ Valid() bool }, set string) {
	if !value.Valid() {
		p.invalid(field, "%s must be one of %s, got %q", field, set, fmt.Sprint(value))
	}
}

func (p *problems) intRange(field string, value *int, minValue, maxValue int) {
	if value == nil {
		return
	}
	if *value < minValue || *value > maxValue {
		p.invalid(field, "%s must be between %d and %d, got %d", field, minValue, maxValue, *value)
	}
}

func (p *problems) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return errors.Join(p.errs...)
}
