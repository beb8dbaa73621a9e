// Package naming derives Step Functions state machine and execution names.
//
// Both kinds of names are limited to 80 characters of letters, digits, '-' and '_'.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNameLength is the Step Functions limit for state machine and execution names.
const MaxNameLength = 80

var (
	invalidChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	multiDash    = regexp.MustCompile(`-+`)
	validName    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)
)

func sanitizePart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	value = invalidChars.ReplaceAllString(value, "-")
	value = multiDash.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}

// NormalizeStage maps stage aliases to canonical values.
func NormalizeStage(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	switch stage {
	case "prod", "production", "live":
		return "live"
	case "dev", "development":
		return "dev"
	case "stg", "stage", "staging":
		return "stage"
	case "test", "testing":
		return "test"
	case "local":
		return "local"
	default:
		return strings.ToLower(sanitizePart(stage))
	}
}

// StateMachineName returns <app>-<workflow>-<stage>, skipping empty parts.
// Names longer than MaxNameLength keep their stage suffix and lose workflow characters.
func StateMachineName(appName, workflow, stage string) string {
	app := sanitizePart(appName)
	workflow = sanitizePart(workflow)
	stage = NormalizeStage(stage)

	suffix := ""
	if stage != "" {
		suffix = "-" + stage
	}
	name := joinNonEmpty(app, workflow)
	if budget := MaxNameLength - len(suffix); len(name) > budget {
		name = strings.TrimRight(name[:budget], "-")
	}
	if name == "" {
		return strings.TrimPrefix(suffix, "-")
	}
	return name + suffix
}

// ExecutionName returns <prefix>-<id>. When too long, the end of prefix is cut so id stays intact.
func ExecutionName(prefix, id string) string {
	prefix = sanitizePart(prefix)
	id = sanitizePart(id)
	if len(id) >= MaxNameLength {
		return id[len(id)-MaxNameLength:]
	}
	if prefix == "" {
		return id
	}
	if budget := MaxNameLength - len(id) - 1; len(prefix) > budget {
		prefix = strings.TrimRight(prefix[:budget], "-")
	}
	return joinNonEmpty(prefix, id)
}

// Validate reports whether name is usable as a state machine or execution name.
func Validate(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("name %q must be 1-%d characters of letters, digits, '-' or '_'", name, MaxNameLength)
	}
	return nil
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "-")
}
