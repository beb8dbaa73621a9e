package iam

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
)

const (
	EffectAllow = "Allow"
	EffectDeny  = "Deny"

	// PolicyVersion is the only IAM policy language version the renderer emits.
	PolicyVersion = "2012-10-17"
)

// Statement is a single IAM policy statement.
//
// Conditions follow the IAM JSON shape: operator -> condition key -> value(s).
type Statement struct {
	Sid        string                    `json:"Sid,omitempty" yaml:"sid,omitempty"`
	Effect     string                    `json:"Effect" yaml:"effect"`
	Actions    []string                  `json:"Action" yaml:"actions"`
	Resources  []string                  `json:"Resource" yaml:"resources"`
	Conditions map[string]map[string]any `json:"Condition,omitempty" yaml:"conditions,omitempty"`
}

// Allow returns an Allow statement for the given actions on the given resources.
func Allow(actions []string, resources ...string) Statement {
	return Statement{
		Effect:    EffectAllow,
		Actions:   append([]string(nil), actions...),
		Resources: append([]string(nil), resources...),
	}
}

// WithCondition returns a copy of s with an added condition.
func (s Statement) WithCondition(operator, key string, value any) Statement {
	out := s.clone()
	if out.Conditions == nil {
		out.Conditions = map[string]map[string]any{}
	}
	if out.Conditions[operator] == nil {
		out.Conditions[operator] = map[string]any{}
	}
	out.Conditions[operator][key] = value
	return out
}

func (s Statement) clone() Statement {
	out := Statement{
		Sid:       s.Sid,
		Effect:    s.Effect,
		Actions:   append([]string(nil), s.Actions...),
		Resources: append([]string(nil), s.Resources...),
	}
	if len(s.Conditions) > 0 {
		out.Conditions = make(map[string]map[string]any, len(s.Conditions))
		for op, kv := range s.Conditions {
			inner := make(map[string]any, len(kv))
			for k, v := range kv {
				inner[k] = v
			}
			out.Conditions[op] = inner
		}
	}
	return out
}

func (s Statement) effect() string {
	if strings.TrimSpace(s.Effect) == "" {
		return EffectAllow
	}
	return s.Effect
}

// MarshalJSON renders single-element action and resource lists as plain strings, the
// way IAM documents are conventionally written.
func (s Statement) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"Effect":   s.effect(),
		"Action":   collapse(s.Actions),
		"Resource": collapse(s.Resources),
	}
	if s.Sid != "" {
		out["Sid"] = s.Sid
	}
	if len(s.Conditions) > 0 {
		out["Condition"] = s.Conditions
	}
	return json.Marshal(out)
}

func collapse(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	if values == nil {
		return []string{}
	}
	return values
}

// Document is an IAM policy document.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// NewDocument builds a document from statements, skipping statements without actions.
func NewDocument(statements ...Statement) *Document {
	doc := &Document{Version: PolicyVersion}
	for _, st := range statements {
		if len(st.Actions) == 0 {
			continue
		}
		doc.Statement = append(doc.Statement, st.clone())
	}
	return doc
}

// Add appends statements to the document.
func (d *Document) Add(statements ...Statement) {
	for _, st := range statements {
		if len(st.Actions) == 0 {
			continue
		}
		d.Statement = append(d.Statement, st.clone())
	}
}

// Minimize merges statements that share effect, resources and conditions, and
// deduplicates and sorts their actions. The result grants exactly the same
// (action, resource) pairs as the input.
func (d *Document) Minimize() *Document {
	if d == nil {
		return nil
	}

	type bucket struct {
		st      Statement
		actions map[string]struct{}
	}

	order := []string{}
	buckets := map[string]*bucket{}
	for _, st := range d.Statement {
		resources := dedupeSorted(st.Resources)
		key := st.effect() + "|" + strings.Join(resources, ",") + "|" + conditionKey(st.Conditions)
		b, ok := buckets[key]
		if !ok {
			merged := st.clone()
			merged.Sid = ""
			merged.Effect = st.effect()
			merged.Resources = resources
			b = &bucket{st: merged, actions: map[string]struct{}{}}
			buckets[key] = b
			order = append(order, key)
		}
		for _, a := range st.Actions {
			b.actions[a] = struct{}{}
		}
	}

	out := &Document{Version: PolicyVersion}
	for _, key := range order {
		b := buckets[key]
		actions := make([]string, 0, len(b.actions))
		for a := range b.actions {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		b.st.Actions = actions
		out.Statement = append(out.Statement, b.st)
	}
	return out
}

// Grants reports whether the document allows action on resource by an exact
// match (no wildcard expansion).
func (d *Document) Grants(action, resource string) bool {
	if d == nil {
		return false
	}
	for _, st := range d.Statement {
		if st.effect() != EffectAllow {
			continue
		}
		if slices.Contains(st.Actions, action) && slices.Contains(st.Resources, resource) {
			return true
		}
	}
	return false
}

// JSON renders the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func conditionKey(conditions map[string]map[string]any) string {
	if len(conditions) == 0 {
		return ""
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return "?"
	}
	return string(raw)
}

// UnmarshalJSON accepts both the string and list forms of Action and Resource.
func (s *Statement) UnmarshalJSON(data []byte) error {
	var raw struct {
		Sid        string                    `json:"Sid"`
		Effect     string                    `json:"Effect"`
		Action     json.RawMessage           `json:"Action"`
		Resource   json.RawMessage           `json:"Resource"`
		Conditions map[string]map[string]any `json:"Condition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	actions, err := stringOrList(raw.Action)
	if err != nil {
		return err
	}
	resources, err := stringOrList(raw.Resource)
	if err != nil {
		return err
	}
	*s = Statement{
		Sid:        raw.Sid,
		Effect:     raw.Effect,
		Actions:    actions,
		Resources:  resources,
		Conditions: raw.Conditions,
	}
	return nil
}

func stringOrList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}
