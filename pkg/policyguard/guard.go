// Package policyguard checks generated IAM policies against a Rego policy before they are
// attached to a state machine role.
package policyguard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

//go:embed iam.rego
var defaultModule string

// Query is the package every guard module must define allow, violations and warnings in.
const Query = "data.sfntasks.iam"

// Result is the outcome of a policy evaluation.
type Result struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type Guard struct {
	prepared rego.PreparedEvalQuery
}

type options struct {
	moduleName string
	module     string
	exempt     []string
}

type Option func(*options)

// WithModule replaces the built-in rules with a custom Rego module in package sfntasks.iam.
func WithModule(name, source string) Option {
	return func(o *options) {
		o.moduleName = name
		o.module = source
	}
}

// WithExemptActions allows service wildcards such as "logs:*" that would otherwise be
// reported.
func WithExemptActions(actions ...string) Option {
	return func(o *options) {
		o.exempt = append(o.exempt, actions...)
	}
}

func New(ctx context.Context, opts ...Option) (*Guard, error) {
	o := &options{moduleName: "iam.rego", module: defaultModule}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	exempt := make([]any, 0, len(o.exempt))
	for _, a := range o.exempt {
		exempt = append(exempt, a)
	}
	store := inmem.NewFromObject(map[string]any{"exempt_actions": exempt})

	prepared, err := rego.New(
		rego.Query(Query),
		rego.Module(o.moduleName, o.module),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policyguard: prepare policy query: %w", err)
	}
	return &Guard{prepared: prepared}, nil
}

// Evaluate runs the policy over doc.
func (g *Guard) Evaluate(ctx context.Context, doc *iam.Document) (*Result, error) {
	if doc == nil {
		return nil, errors.New("policyguard: nil policy document")
	}

	results, err := g.prepared.Eval(ctx, rego.EvalInput(input(doc)))
	if err != nil {
		return nil, fmt.Errorf("policyguard: evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return &Result{Violations: []string{"policy evaluation returned no results"}}, nil
	}

	pkg, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return &Result{Violations: []string{"policy evaluation returned a non-object result"}}, nil
	}

	result := &Result{
		Violations: stringsOf(pkg["violations"]),
		Warnings:   stringsOf(pkg["warnings"]),
	}
	allowed, ok := pkg["allow"].(bool)
	if !ok {
		result.Violations = append(result.Violations, "policy evaluation returned a non-boolean allow")
	}
	result.Allowed = allowed && ok
	if !result.Allowed && len(result.Violations) == 0 {
		result.Violations = []string{"policy denied the document without naming a violation"}
	}
	return result, nil
}

func input(doc *iam.Document) map[string]any {
	statements := make([]any, 0, len(doc.Statement))
	for _, st := range doc.Statement {
		effect := st.Effect
		if effect == "" {
			effect = iam.EffectAllow
		}
		statements = append(statements, map[string]any{
			"sid":       st.Sid,
			"effect":    effect,
			"actions":   anySlice(st.Actions),
			"resources": anySlice(st.Resources),
		})
	}
	return map[string]any{"statements": statements}
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// stringsOf converts a Rego set or array of strings.
func stringsOf(value any) []string {
	var out []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case map[string]any:
		for s := range v {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
