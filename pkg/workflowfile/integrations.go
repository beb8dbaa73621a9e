package workflowfile

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sfntasks"
)

// builder constructs a task from its props node.
type builder func(scope *sfntasks.Stack, id string, props *yaml.Node) (sfntasks.Task, error)

var integrations = map[string]builder{
	"AthenaStartQueryExecution":          integration(sfntasks.NewAthenaStartQueryExecution),
	"AthenaGetQueryExecution":            integration(sfntasks.NewAthenaGetQueryExecution),
	"AthenaStopQueryExecution":           integration(sfntasks.NewAthenaStopQueryExecution),
	"AthenaGetQueryResults":              integration(sfntasks.NewAthenaGetQueryResults),
	"BatchSubmitJob":                     integration(sfntasks.NewBatchSubmitJob),
	"CodeBuildStartBuild":                integration(sfntasks.NewCodeBuildStartBuild),
	"DynamoGetItem":                      integration(sfntasks.NewDynamoGetItem),
	"DynamoPutItem":                      integration(sfntasks.NewDynamoPutItem),
	"DynamoDeleteItem":                   integration(sfntasks.NewDynamoDeleteItem),
	"DynamoUpdateItem":                   integration(sfntasks.NewDynamoUpdateItem),
	"EcsRunTask":                         integration(sfntasks.NewEcsRunTask),
	"EmrCreateCluster":                   integration(sfntasks.NewEmrCreateCluster),
	"EmrTerminateCluster":                integration(sfntasks.NewEmrTerminateCluster),
	"EmrAddStep":                         integration(sfntasks.NewEmrAddStep),
	"EmrCancelStep":                      integration(sfntasks.NewEmrCancelStep),
	"EmrSetClusterTerminationProtection": integration(sfntasks.NewEmrSetClusterTerminationProtection),
	"EmrModifyInstanceFleetByName":       integration(sfntasks.NewEmrModifyInstanceFleetByName),
	"EmrModifyInstanceGroupByName":       integration(sfntasks.NewEmrModifyInstanceGroupByName),
	"EvaluateExpression":                 integration(sfntasks.NewEvaluateExpression),
	"GlueStartJobRun":                    integration(sfntasks.NewGlueStartJobRun),
	"LambdaInvoke":                       integration(sfntasks.NewLambdaInvoke),
	"SageMakerCreateTrainingJob":         integration(sfntasks.NewSageMakerCreateTrainingJob),
	"SageMakerCreateTransformJob":        integration(sfntasks.NewSageMakerCreateTransformJob),
	"SageMakerCreateModel":               integration(sfntasks.NewSageMakerCreateModel),
	"SageMakerCreateEndpointConfig":      integration(sfntasks.NewSageMakerCreateEndpointConfig),
	"SageMakerCreateEndpoint":            integration(sfntasks.NewSageMakerCreateEndpoint),
	"SageMakerUpdateEndpoint":            integration(sfntasks.NewSageMakerUpdateEndpoint),
	"SnsPublish":                         integration(sfntasks.NewSnsPublish),
	"SqsSendMessage":                     integration(sfntasks.NewSqsSendMessage),
	"StepFunctionsStartExecution":        integration(sfntasks.NewStepFunctionsStartExecution),
	"StepFunctionsInvokeActivity":        integration(sfntasks.NewStepFunctionsInvokeActivity),
}

// IntegrationTypes lists the task types a workflow file may use.
func IntegrationTypes() []string {
	return slices.Sorted(maps.Keys(integrations))
}

func integration[P any, T sfntasks.Task](ctor func(*sfntasks.Stack, string, *P) (T, error)) builder {
	return func(scope *sfntasks.Stack, id string, node *yaml.Node) (sfntasks.Task, error) {
		props := new(P)
		if err := decodeProps(node, props); err != nil {
			return nil, err
		}
		task, err := ctor(scope, id, props)
		if err != nil {
			return nil, err
		}
		return task, nil
	}
}

// decodeProps decodes node into out, rejecting unknown fields. Keys ending in ".$"
// become path references first.
func decodeProps(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	resolved := resolvePaths(node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(resolved); err != nil {
		return fmt.Errorf("props: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("props: %w", err)
	}

	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("props: %w", err)
	}
	return nil
}

// resolvePaths returns a copy of node where every mapping entry "key.$: <path>" with a
// scalar value is replaced by "key: <path reference>".
func resolvePaths(node *yaml.Node) *yaml.Node {
	out := *node
	out.Content = make([]*yaml.Node, len(node.Content))
	for i, child := range node.Content {
		out.Content[i] = resolvePaths(child)
	}
	if node.Kind != yaml.MappingNode {
		return &out
	}
	for i := 0; i+1 < len(out.Content); i += 2 {
		key, value := out.Content[i], out.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode || len(key.Value) < 3 || key.Value[len(key.Value)-2:] != ".$" {
			continue
		}
		newKey := *key
		newKey.Value = key.Value[:len(key.Value)-2]
		newValue := *value
		newValue.Value = sfntasks.JsonPathStringAt(value.Value)
		newValue.Tag = "!!str"
		newValue.Style = yaml.DoubleQuotedStyle
		out.Content[i], out.Content[i+1] = &newKey, &newValue
	}
	return &out
}
