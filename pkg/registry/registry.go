// Package registry keeps a versioned history of rendered state machine definitions
// and the IAM policies that go with them.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/theory-cloud/sfntasks/pkg/naming"
)

// ErrNotFound is returned when a name or version has no record.
var ErrNotFound = errors.New("registry: record not found")

// Store persists definition records. Versions are ULIDs, so lexical order is
// creation order.
type Store interface {
	// Put stores rec, assigning Version and CreatedAt when unset, and returns the version.
	Put(ctx context.Context, rec *Record) (string, error)

	Get(ctx context.Context, name, version string) (*Record, error)

	// Latest returns the newest version of name.
	Latest(ctx context.Context, name string) (*Record, error)

	// List returns up to limit versions of name, newest first.
	List(ctx context.Context, name string, limit int) ([]*Record, error)

	Delete(ctx context.Context, name, version string) error
}

// Record is one published revision of a state machine.
type Record struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Definition      json.RawMessage   `json:"definition"`
	Policy          json.RawMessage   `json:"policy,omitempty"`
	StateMachineArn string            `json:"state_machine_arn,omitempty"`
	Comment         string            `json:"comment,omitempty"`
	Tasks           []string          `json:"tasks,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// IDGenerator produces record versions.
type IDGenerator interface {
	NewID() string
}

type ulidGenerator struct{}

func (ulidGenerator) NewID() string { return ulid.Make().String() }

// ULIDs is the default version generator.
var ULIDs IDGenerator = ulidGenerator{}

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

func normalizeLimit(limit int) int {
	if limit > 0 && limit <= maxListLimit {
		return limit
	}
	return defaultListLimit
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("registry: name cannot be empty")
	}
	if err := naming.Validate(name); err != nil {
		return "", fmt.Errorf("registry: %w", err)
	}
	return name, nil
}

func validateVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return "", errors.New("registry: version cannot be empty")
	}
	return version, nil
}

func prepareRecord(rec *Record, ids IDGenerator, now time.Time) error {
	if rec == nil {
		return errors.New("registry: record cannot be nil")
	}
	name, err := validateName(rec.Name)
	if err != nil {
		return err
	}
	rec.Name = name
	if len(rec.Definition) == 0 || !json.Valid(rec.Definition) {
		return errors.New("registry: definition must be a JSON document")
	}
	if len(rec.Policy) > 0 && !json.Valid(rec.Policy) {
		return errors.New("registry: policy must be a JSON document")
	}
	if strings.TrimSpace(rec.Version) == "" {
		rec.Version = ids.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	return nil
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	out.Definition = append(json.RawMessage(nil), rec.Definition...)
	out.Policy = append(json.RawMessage(nil), rec.Policy...)
	out.Tasks = append([]string(nil), rec.Tasks...)
	if rec.Tags != nil {
		out.Tags = make(map[string]string, len(rec.Tags))
		for k, v := range rec.Tags {
			out.Tags[k] = v
		}
	}
	return &out
}
