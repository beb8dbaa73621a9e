package iam

import (
	"fmt"
	"strings"
)

// ArnFormat controls the separator between resource type and resource name.
type ArnFormat string

const (
	// ArnSlash: arn:aws:service:region:account:resource/name
	ArnSlash ArnFormat = "/"
	// ArnColon: arn:aws:service:region:account:resource:name
	ArnColon ArnFormat = ":"
	// ArnNoName: arn:aws:service:region:account:resource
	ArnNoName ArnFormat = ""
)

// Arn is a parsed Amazon Resource Name.
type Arn struct {
	Partition    string
	Service      string
	Region       string
	Account      string
	Resource     string
	ResourceName string
	Format       ArnFormat
}

func (a Arn) String() string {
	resource := a.Resource
	if a.ResourceName != "" && a.Format != ArnNoName {
		resource += string(a.Format) + a.ResourceName
	}
	return fmt.Sprintf("arn:%s:%s:%s:%s:%s", a.Partition, a.Service, a.Region, a.Account, resource)
}

// IsArn reports whether s looks like an ARN.
func IsArn(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "arn:")
}

// ParseArn splits an ARN into its components. The resource portion is split on the
// first "/" (or ":" when no "/" is present) into Resource and ResourceName.
func ParseArn(s string) (Arn, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return Arn{}, fmt.Errorf("iam: %q is not an ARN", s)
	}

	out := Arn{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		Account:   parts[4],
		Resource:  parts[5],
		Format:    ArnNoName,
	}
	if i := strings.Index(parts[5], "/"); i >= 0 {
		out.Resource = parts[5][:i]
		out.ResourceName = parts[5][i+1:]
		out.Format = ArnSlash
	} else if i := strings.Index(parts[5], ":"); i >= 0 {
		out.Resource = parts[5][:i]
		out.ResourceName = parts[5][i+1:]
		out.Format = ArnColon
	}
	return out, nil
}

// ResourceNameOf returns the trailing name of an ARN, or s itself when s is not an ARN.
func ResourceNameOf(s string) string {
	if !IsArn(s) {
		return s
	}
	parsed, err := ParseArn(s)
	if err != nil || parsed.ResourceName == "" {
		return s
	}
	return parsed.ResourceName
}
