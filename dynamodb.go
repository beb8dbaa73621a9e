package sfntasks

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

type DynamoConsumedCapacity string

const (
	DynamoConsumedCapacityIndexes DynamoConsumedCapacity = "INDEXES"
	DynamoConsumedCapacityTotal   DynamoConsumedCapacity = "TOTAL"
	DynamoConsumedCapacityNone    DynamoConsumedCapacity = "NONE"
)

func (c DynamoConsumedCapacity) Valid() bool {
	switch c {
	case DynamoConsumedCapacityIndexes, DynamoConsumedCapacityTotal, DynamoConsumedCapacityNone:
		return true
	default:
		return false
	}
}

type DynamoItemCollectionMetrics string

const (
	DynamoItemCollectionMetricsSize DynamoItemCollectionMetrics = "SIZE"
	DynamoItemCollectionMetricsNone DynamoItemCollectionMetrics = "NONE"
)

func (m DynamoItemCollectionMetrics) Valid() bool {
	return m == DynamoItemCollectionMetricsSize || m == DynamoItemCollectionMetricsNone
}

type DynamoReturnValues string

const (
	DynamoReturnValuesNone       DynamoReturnValues = "NONE"
	DynamoReturnValuesAllOld     DynamoReturnValues = "ALL_OLD"
	DynamoReturnValuesUpdatedOld DynamoReturnValues = "UPDATED_OLD"
	DynamoReturnValuesAllNew     DynamoReturnValues = "ALL_NEW"
	DynamoReturnValuesUpdatedNew DynamoReturnValues = "UPDATED_NEW"
)

func (v DynamoReturnValues) Valid() bool {
	switch v {
	case DynamoReturnValuesNone, DynamoReturnValuesAllOld, DynamoReturnValuesUpdatedOld, DynamoReturnValuesAllNew, DynamoReturnValuesUpdatedNew:
		return true
	default:
		return false
	}
}

// DynamoAttributeValue is a typed DynamoDB attribute such as {"S": "x"}.
type DynamoAttributeValue struct {
	value map[string]any
	err   error
}

func attr(kind string, v any) DynamoAttributeValue {
	return DynamoAttributeValue{value: map[string]any{kind: v}}
}

// DynamoAttributeValueFromString accepts a literal or a path reference.
func DynamoAttributeValueFromString(s string) DynamoAttributeValue { return attr("S", s) }

// DynamoAttributeValueFromNumber accepts a literal or a JsonPathNumberAt reference.
func DynamoAttributeValueFromNumber(n float64) DynamoAttributeValue {
	if path, ok := numberTokenPath(n); ok {
		return attr("N", JsonPathStringAt(path))
	}
	return attr("N", strconv.FormatFloat(n, 'f', -1, 64))
}

// DynamoAttributeValueNumberFromString is for numbers that are already strings,
// including path references to strings.
func DynamoAttributeValueNumberFromString(s string) DynamoAttributeValue { return attr("N", s) }

func DynamoAttributeValueFromStringSet(values []string) DynamoAttributeValue {
	return attr("SS", append([]string(nil), values...))
}

// DynamoAttributeValueFromNumberSet takes literal numbers only. A set element cannot be
// a path reference; use DynamoAttributeValueNumberSetFromStrings for those.
func DynamoAttributeValueFromNumberSet(values []float64) DynamoAttributeValue {
	out := make([]string, 0, len(values))
	var errs []error
	for i, v := range values {
		if path, ok := numberTokenPath(v); ok {
			errs = append(errs, fmt.Errorf("number set element %d references %s; use DynamoAttributeValueNumberSetFromStrings", i, path))
			continue
		}
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	}
	a := attr("NS", out)
	a.err = errors.Join(errs...)
	return a
}

func DynamoAttributeValueNumberSetFromStrings(values []string) DynamoAttributeValue {
	return attr("NS", append([]string(nil), values...))
}

// DynamoAttributeValueFromBinary takes base64 encoded data.
func DynamoAttributeValueFromBinary(base64 string) DynamoAttributeValue { return attr("B", base64) }

func DynamoAttributeValueFromBinarySet(values []string) DynamoAttributeValue {
	return attr("BS", append([]string(nil), values...))
}

func DynamoAttributeValueFromMap(values map[string]DynamoAttributeValue) DynamoAttributeValue {
	a := attr("M", renderAttributeMap(values))
	a.err = attributeErrors(values)
	return a
}

// DynamoAttributeValueMapFromJsonPath references a map at path.
func DynamoAttributeValueMapFromJsonPath(path string) DynamoAttributeValue {
	return attr("M", JsonPathStringAt(path))
}

func DynamoAttributeValueFromList(values []DynamoAttributeValue) DynamoAttributeValue {
	out := make([]any, 0, len(values))
	var errs []error
	for i, v := range values {
		out = append(out, v.ToObject())
		if v.err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, v.err))
		}
	}
	a := attr("L", out)
	a.err = errors.Join(errs...)
	return a
}

// DynamoAttributeValueListFromJsonPath references a list at path.
func DynamoAttributeValueListFromJsonPath(path string) DynamoAttributeValue {
	return attr("L", JsonPathStringAt(path))
}

func DynamoAttributeValueFromNull(isNull bool) DynamoAttributeValue { return attr("NULL", isNull) }

func DynamoAttributeValueFromBoolean(b bool) DynamoAttributeValue { return attr("BOOL", b) }

// DynamoAttributeValueBooleanFromJsonPath references a boolean at path.
func DynamoAttributeValueBooleanFromJsonPath(path string) DynamoAttributeValue {
	return attr("BOOL", JsonPathStringAt(path))
}

// ToObject returns the attribute in DynamoDB JSON form.
func (v DynamoAttributeValue) ToObject() map[string]any {
	out := make(map[string]any, len(v.value))
	for k, inner := range v.value {
		out[k] = inner
	}
	return out
}

// Err reports a value that cannot be rendered, such as a path reference inside a set.
func (v DynamoAttributeValue) Err() error { return v.err }

var dynamoAttributeKinds = map[string]bool{"S": true, "N": true, "B": true, "SS": true, "NS": true, "BS": true, "M": true, "L": true, "NULL": true, "BOOL": true}

// UnmarshalYAML reads DynamoDB JSON written in YAML, e.g. {S: hello}.
func (v *DynamoAttributeValue) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute value must have exactly one type key, got %d", len(raw))
	}
	for k := range raw {
		if !dynamoAttributeKinds[strings.TrimSuffix(k, ".$")] {
			return fmt.Errorf("unknown attribute type %q", k)
		}
	}
	v.value = raw
	return nil
}

func renderAttributeMap(values map[string]DynamoAttributeValue) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v.ToObject()
	}
	return out
}

func attributeErrors(values map[string]DynamoAttributeValue) error {
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if err := values[k].err; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// DynamoProjectionExpression builds a document path such as a.b[2].c.
type DynamoProjectionExpression struct {
	expression []string
	err        error
}

func NewDynamoProjectionExpression() *DynamoProjectionExpression {
	return &DynamoProjectionExpression{}
}

func (e *DynamoProjectionExpression) WithAttribute(attribute string) *DynamoProjectionExpression {
	if len(e.expression) > 0 {
		e.expression = append(e.expression, "."+attribute)
	} else {
		e.expression = append(e.expression, attribute)
	}
	return e
}

func (e *DynamoProjectionExpression) AtIndex(index int) *DynamoProjectionExpression {
	if len(e.expression) == 0 {
		e.err = errors.New("Expression must start with an attribute")
		return e
	}
	e.expression = append(e.expression, fmt.Sprintf("[%d]", index))
	return e
}

func (e *DynamoProjectionExpression) Err() error { return e.err }

func (e *DynamoProjectionExpression) String() string {
	return strings.Join(e.expression, "")
}

// UnmarshalYAML reads an already formatted expression.
func (e *DynamoProjectionExpression) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	e.expression = []string{s}
	return nil
}

// DynamoTableProps are shared by every DynamoDB task.
type DynamoTableProps struct {
	// Table name or ARN.
	Table                  string                 `field:"required" json:"table" yaml:"table"`
	ReturnConsumedCapacity DynamoConsumedCapacity `field:"optional" json:"returnConsumedCapacity,omitempty" yaml:"returnConsumedCapacity,omitempty"`
}

type dynamoTask struct {
	*TaskState
	api       string
	tableArn  string
	tableName string
	params    map[string]any
}

func (d *dynamoTask) resourceArn() string {
	return integrationResourceArn(d.scope, "dynamodb", d.api, IntegrationPatternRequestResponse)
}

func (d *dynamoTask) parameters() map[string]any { return d.params }

func (d *dynamoTask) policyStatements() []iam.Statement {
	action := "dynamodb:" + strings.ToUpper(d.api[:1]) + d.api[1:]
	return []iam.Statement{iam.Allow([]string{action}, d.tableArn)}
}

func (d *dynamoTask) TableName() string { return d.tableName }

func newDynamoTask(scope *Stack, id, typeName, api string, props TaskProps, table DynamoTableProps, p *problems, build func(params map[string]any)) (*dynamoTask, error) {
	p.requireString("table", table.Table)
	if table.ReturnConsumedCapacity != "" {
		p.enum("returnConsumedCapacity", table.ReturnConsumedCapacity, "INDEXES, TOTAL, NONE")
	}

	d := &dynamoTask{api: api}
	if table.Table != "" {
		d.tableArn = scope.arnOrName(table.Table, "dynamodb", "table", iam.ArnSlash)
		d.tableName = iam.ResourceNameOf(table.Table)
	}
	params := map[string]any{"TableName": d.tableName}
	if table.ReturnConsumedCapacity != "" {
		params["ReturnConsumedCapacity"] = string(table.ReturnConsumedCapacity)
	}
	build(params)
	d.params = params

	task, err := newTaskState(scope, id, typeName, props, patternsRequestResponse, d, p)
	if err != nil {
		return nil, err
	}
	d.TaskState = task
	return d, nil
}

func putAttributes(p *problems, params map[string]any, key string, values map[string]DynamoAttributeValue) {
	if err := attributeErrors(values); err != nil {
		p.invalid(strings.ToLower(key[:1])+key[1:], "%v", err)
	}
	if len(values) > 0 {
		params[key] = renderAttributeMap(values)
	}
}

func putNames(params map[string]any, names map[string]string) {
	if len(names) == 0 {
		return
	}
	out := make(map[string]any, len(names))
	for k, v := range names {
		out[k] = v
	}
	params["ExpressionAttributeNames"] = out
}

// DynamoGetItemProps configures DynamoGetItem.
type DynamoGetItemProps struct {
	TaskProps        `yaml:",inline"`
	DynamoTableProps `yaml:",inline"`

	Key                      map[string]DynamoAttributeValue `field:"required" json:"key" yaml:"key"`
	ConsistentRead           *bool                           `field:"optional" json:"consistentRead,omitempty" yaml:"consistentRead,omitempty"`
	ExpressionAttributeNames map[string]string               `field:"optional" json:"expressionAttributeNames,omitempty" yaml:"expressionAttributeNames,omitempty"`
	ProjectionExpression     []*DynamoProjectionExpression   `field:"optional" json:"-" yaml:"projectionExpression,omitempty"`
}

// DynamoGetItem reads a single item.
type DynamoGetItem struct{ *dynamoTask }

func NewDynamoGetItem(scope *Stack, id string, props *DynamoGetItemProps) (*DynamoGetItem, error) {
	p := newProblems("DynamoGetItem")
	if props == nil {
		p.required("key")
		p.required("table")
		return nil, p.err()
	}
	if len(props.Key) == 0 {
		p.required("key")
	}
	projections := make([]string, 0, len(props.ProjectionExpression))
	for _, e := range props.ProjectionExpression {
		if e == nil {
			continue
		}
		if e.Err() != nil {
			p.invalid("projectionExpression", "%v", e.Err())
		}
		projections = append(projections, e.String())
	}

	d, err := newDynamoTask(scope, id, "DynamoGetItem", "getItem", props.TaskProps, props.DynamoTableProps, p, func(params map[string]any) {
		putAttributes(p, params, "Key", props.Key)
		params["ConsistentRead"] = boolOr(props.ConsistentRead, false)
		putNames(params, props.ExpressionAttributeNames)
		if len(projections) > 0 {
			params["ProjectionExpression"] = strings.Join(projections, ",")
		}
	})
	if err != nil {
		return nil, err
	}
	return &DynamoGetItem{d}, nil
}

// DynamoWriteProps are shared by put, update and delete.
type DynamoWriteProps struct {
	ConditionExpression         string                          `field:"optional" json:"conditionExpression,omitempty" yaml:"conditionExpression,omitempty"`
	ExpressionAttributeNames    map[string]string               `field:"optional" json:"expressionAttributeNames,omitempty" yaml:"expressionAttributeNames,omitempty"`
	ExpressionAttributeValues   map[string]DynamoAttributeValue `field:"optional" json:"expressionAttributeValues,omitempty" yaml:"expressionAttributeValues,omitempty"`
	ReturnItemCollectionMetrics DynamoItemCollectionMetrics     `field:"optional" json:"returnItemCollectionMetrics,omitempty" yaml:"returnItemCollectionMetrics,omitempty"`
	ReturnValues                DynamoReturnValues              `field:"optional" json:"returnValues,omitempty" yaml:"returnValues,omitempty"`
}

func (w DynamoWriteProps) validate(p *problems) {
	if w.ReturnItemCollectionMetrics != "" {
		p.enum("returnItemCollectionMetrics", w.ReturnItemCollectionMetrics, "SIZE, NONE")
	}
	if w.ReturnValues != "" {
		p.enum("returnValues", w.ReturnValues, "NONE, ALL_OLD, UPDATED_OLD, ALL_NEW, UPDATED_NEW")
	}
}

func (w DynamoWriteProps) apply(p *problems, params map[string]any) {
	putIf(params, "ConditionExpression", w.ConditionExpression)
	putNames(params, w.ExpressionAttributeNames)
	putAttributes(p, params, "ExpressionAttributeValues", w.ExpressionAttributeValues)
	if w.ReturnItemCollectionMetrics != "" {
		params["ReturnItemCollectionMetrics"] = string(w.ReturnItemCollectionMetrics)
	}
	if w.ReturnValues != "" {
		params["ReturnValues"] = string(w.ReturnValues)
	}
}

// DynamoPutItemProps configures DynamoPutItem.
type DynamoPutItemProps struct {
	TaskProps        `yaml:",inline"`
	DynamoTableProps `yaml:",inline"`
	DynamoWriteProps `yaml:",inline"`

	Item map[string]DynamoAttributeValue `field:"required" json:"item" yaml:"item"`
}

// DynamoPutItem creates or replaces an item.
type DynamoPutItem struct{ *dynamoTask }

func NewDynamoPutItem(scope *Stack, id string, props *DynamoPutItemProps) (*DynamoPutItem, error) {
	p := newProblems("DynamoPutItem")
	if props == nil {
		p.required("item")
		p.required("table")
		return nil, p.err()
	}
	if len(props.Item) == 0 {
		p.required("item")
	}
	props.DynamoWriteProps.validate(p)
	if props.ReturnValues != "" && props.ReturnValues != DynamoReturnValuesNone && props.ReturnValues != DynamoReturnValuesAllOld {
		p.invalid("returnValues", "PutItem only supports NONE and ALL_OLD return values, got %q", props.ReturnValues)
	}

	d, err := newDynamoTask(scope, id, "DynamoPutItem", "putItem", props.TaskProps, props.DynamoTableProps, p, func(params map[string]any) {
		putAttributes(p, params, "Item", props.Item)
		props.DynamoWriteProps.apply(p, params)
	})
	if err != nil {
		return nil, err
	}
	return &DynamoPutItem{d}, nil
}

// DynamoDeleteItemProps configures DynamoDeleteItem.
type DynamoDeleteItemProps struct {
	TaskProps        `yaml:",inline"`
	DynamoTableProps `yaml:",inline"`
	DynamoWriteProps `yaml:",inline"`

	Key map[string]DynamoAttributeValue `field:"required" json:"key" yaml:"key"`
}

// DynamoDeleteItem deletes a single item.
type DynamoDeleteItem struct{ *dynamoTask }

func NewDynamoDeleteItem(scope *Stack, id string, props *DynamoDeleteItemProps) (*DynamoDeleteItem, error) {
	p := newProblems("DynamoDeleteItem")
	if props == nil {
		p.required("key")
		p.required("table")
		return nil, p.err()
	}
	if len(props.Key) == 0 {
		p.required("key")
	}
	props.DynamoWriteProps.validate(p)

	d, err := newDynamoTask(scope, id, "DynamoDeleteItem", "deleteItem", props.TaskProps, props.DynamoTableProps, p, func(params map[string]any) {
		putAttributes(p, params, "Key", props.Key)
		props.DynamoWriteProps.apply(p, params)
	})
	if err != nil {
		return nil, err
	}
	return &DynamoDeleteItem{d}, nil
}

// DynamoUpdateItemProps configures DynamoUpdateItem.
type DynamoUpdateItemProps struct {
	TaskProps        `yaml:",inline"`
	DynamoTableProps `yaml:",inline"`
	DynamoWriteProps `yaml:",inline"`

	Key              map[string]DynamoAttributeValue `field:"required" json:"key" yaml:"key"`
	UpdateExpression string                          `field:"optional" json:"updateExpression,omitempty" yaml:"updateExpression,omitempty"`
}

// DynamoUpdateItem edits an item's attributes or creates it.
type DynamoUpdateItem struct{ *dynamoTask }

func NewDynamoUpdateItem(scope *Stack, id string, props *DynamoUpdateItemProps) (*DynamoUpdateItem, error) {
	p := newProblems("DynamoUpdateItem")
	if props == nil {
		p.required("key")
		p.required("table")
		return nil, p.err()
	}
	if len(props.Key) == 0 {
		p.required("key")
	}
	props.DynamoWriteProps.validate(p)

	d, err := newDynamoTask(scope, id, "DynamoUpdateItem", "updateItem", props.TaskProps, props.DynamoTableProps, p, func(params map[string]any) {
		putAttributes(p, params, "Key", props.Key)
		props.DynamoWriteProps.apply(p, params)
		putIf(params, "UpdateExpression", props.UpdateExpression)
	})
	if err != nil {
		return nil, err
	}
	return &DynamoUpdateItem{d}, nil
}
