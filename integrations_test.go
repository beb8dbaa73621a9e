package sfntasks

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type integrationCase struct {
	name     string
	resource string
	build    func(s *Stack) (Task, error)
	empty    func(s *Stack) error
	required []string
}

func task[T Task](t T, err error) (Task, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

func discard[T any](_ T, err error) error { return err }

func integrationCases() []integrationCase {
	key := map[string]DynamoAttributeValue{"pk": DynamoAttributeValueFromString("order#1")}
	return []integrationCase{
		{
			name:     "AthenaStartQueryExecution",
			resource: "arn:aws:states:::athena:startQueryExecution",
			build: func(s *Stack) (Task, error) {
				return task(NewAthenaStartQueryExecution(s, "Q", &AthenaStartQueryExecutionProps{QueryString: "SELECT 1"}))
			},
			empty: func(s *Stack) error {
				return discard(NewAthenaStartQueryExecution(s, "Q", &AthenaStartQueryExecutionProps{}))
			},
			required: []string{"queryString"},
		},
		{
			name:     "AthenaGetQueryExecution",
			resource: "arn:aws:states:::athena:getQueryExecution",
			build: func(s *Stack) (Task, error) {
				return task(NewAthenaGetQueryExecution(s, "Q", &AthenaQueryExecutionProps{QueryExecutionId: "q-1"}))
			},
			empty: func(s *Stack) error {
				return discard(NewAthenaGetQueryExecution(s, "Q", &AthenaQueryExecutionProps{}))
			},
			required: []string{"queryExecutionId"},
		},
		{
			name:     "AthenaGetQueryResults",
			resource: "arn:aws:states:::athena:getQueryResults",
			build: func(s *Stack) (Task, error) {
				return task(NewAthenaGetQueryResults(s, "Q", &AthenaGetQueryResultsProps{AthenaQueryExecutionProps: AthenaQueryExecutionProps{QueryExecutionId: "q-1"}}))
			},
			empty: func(s *Stack) error {
				return discard(NewAthenaGetQueryResults(s, "Q", &AthenaGetQueryResultsProps{}))
			},
			required: []string{"queryExecutionId"},
		},
		{
			name:     "AthenaStopQueryExecution",
			resource: "arn:aws:states:::athena:stopQueryExecution",
			build: func(s *Stack) (Task, error) {
				return task(NewAthenaStopQueryExecution(s, "Q", &AthenaQueryExecutionProps{QueryExecutionId: "q-1"}))
			},
			empty: func(s *Stack) error {
				return discard(NewAthenaStopQueryExecution(s, "Q", &AthenaQueryExecutionProps{}))
			},
			required: []string{"queryExecutionId"},
		},
		{
			name:     "BatchSubmitJob",
			resource: "arn:aws:states:::batch:submitJob",
			build: func(s *Stack) (Task, error) {
				return task(NewBatchSubmitJob(s, "Batch", &BatchSubmitJobProps{JobDefinitionArn: "arn:aws:batch:us-east-1:123456789012:job-definition/def", JobName: "job", JobQueueArn: "arn:aws:batch:us-east-1:123456789012:job-queue/q"}))
			},
			empty: func(s *Stack) error {
				return discard(NewBatchSubmitJob(s, "Batch", &BatchSubmitJobProps{}))
			},
			required: []string{"jobDefinitionArn", "jobName", "jobQueueArn"},
		},
		{
			name:     "CodeBuildStartBuild",
			resource: "arn:aws:states:::codebuild:startBuild",
			build: func(s *Stack) (Task, error) {
				return task(NewCodeBuildStartBuild(s, "Build", &CodeBuildStartBuildProps{Project: "site"}))
			},
			empty: func(s *Stack) error {
				return discard(NewCodeBuildStartBuild(s, "Build", &CodeBuildStartBuildProps{}))
			},
			required: []string{"project"},
		},
		{
			name:     "DynamoGetItem",
			resource: "arn:aws:states:::dynamodb:getItem",
			build: func(s *Stack) (Task, error) {
				return task(NewDynamoGetItem(s, "Get", &DynamoGetItemProps{DynamoTableProps: DynamoTableProps{Table: "orders"}, Key: key}))
			},
			empty: func(s *Stack) error {
				return discard(NewDynamoGetItem(s, "Get", &DynamoGetItemProps{}))
			},
			required: []string{"key", "table"},
		},
		{
			name:     "DynamoPutItem",
			resource: "arn:aws:states:::dynamodb:putItem",
			build: func(s *Stack) (Task, error) {
				return task(NewDynamoPutItem(s, "Put", &DynamoPutItemProps{DynamoTableProps: DynamoTableProps{Table: "orders"}, Item: key}))
			},
			empty: func(s *Stack) error {
				return discard(NewDynamoPutItem(s, "Put", &DynamoPutItemProps{}))
			},
			required: []string{"item", "table"},
		},
		{
			name:     "DynamoDeleteItem",
			resource: "arn:aws:states:::dynamodb:deleteItem",
			build: func(s *Stack) (Task, error) {
				return task(NewDynamoDeleteItem(s, "Delete", &DynamoDeleteItemProps{DynamoTableProps: DynamoTableProps{Table: "orders"}, Key: key}))
			},
			empty: func(s *Stack) error {
				return discard(NewDynamoDeleteItem(s, "Delete", &DynamoDeleteItemProps{}))
			},
			required: []string{"key", "table"},
		},
		{
			name:     "DynamoUpdateItem",
			resource: "arn:aws:states:::dynamodb:updateItem",
			build: func(s *Stack) (Task, error) {
				return task(NewDynamoUpdateItem(s, "Update", &DynamoUpdateItemProps{DynamoTableProps: DynamoTableProps{Table: "orders"}, Key: key}))
			},
			empty: func(s *Stack) error {
				return discard(NewDynamoUpdateItem(s, "Update", &DynamoUpdateItemProps{}))
			},
			required: []string{"key", "table"},
		},
		{
			name:     "EcsRunTask",
			resource: "arn:aws:states:::ecs:runTask",
			build: func(s *Stack) (Task, error) {
				return task(NewEcsRunTask(s, "Run", &EcsRunTaskProps{
					TaskDefinition: &EcsTaskDefinition{Family: "worker", Compatibility: CompatibilityEc2},
					LaunchTarget:   EcsEc2LaunchTarget(nil),
				}))
			},
			empty: func(s *Stack) error {
				return discard(NewEcsRunTask(s, "Run", &EcsRunTaskProps{}))
			},
			required: []string{"taskDefinition", "launchTarget"},
		},
		{
			name:     "EmrCreateCluster",
			resource: "arn:aws:states:::elasticmapreduce:createCluster",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrCreateCluster(s, "Cluster", &EmrCreateClusterProps{Name: "etl"}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrCreateCluster(s, "Cluster", &EmrCreateClusterProps{}))
			},
			required: []string{"name"},
		},
		{
			name:     "EmrTerminateCluster",
			resource: "arn:aws:states:::elasticmapreduce:terminateCluster",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrTerminateCluster(s, "Terminate", &EmrTerminateClusterProps{ClusterId: "j-1"}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrTerminateCluster(s, "Terminate", &EmrTerminateClusterProps{}))
			},
			required: []string{"clusterId"},
		},
		{
			name:     "EmrAddStep",
			resource: "arn:aws:states:::elasticmapreduce:addStep",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrAddStep(s, "Step", &EmrAddStepProps{ClusterId: "j-1", Jar: "s3://bucket/job.jar", Name: "step"}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrAddStep(s, "Step", &EmrAddStepProps{}))
			},
			required: []string{"clusterId", "jar", "name"},
		},
		{
			name:     "EmrCancelStep",
			resource: "arn:aws:states:::elasticmapreduce:cancelStep",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrCancelStep(s, "Cancel", &EmrCancelStepProps{ClusterId: "j-1", StepId: "s-1"}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrCancelStep(s, "Cancel", &EmrCancelStepProps{}))
			},
			required: []string{"clusterId", "stepId"},
		},
		{
			name:     "EmrSetClusterTerminationProtection",
			resource: "arn:aws:states:::elasticmapreduce:setClusterTerminationProtection",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrSetClusterTerminationProtection(s, "Protect", &EmrSetClusterTerminationProtectionProps{ClusterId: "j-1", TerminationProtected: Bool(true)}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrSetClusterTerminationProtection(s, "Protect", &EmrSetClusterTerminationProtectionProps{}))
			},
			required: []string{"clusterId", "terminationProtected"},
		},
		{
			name:     "EmrModifyInstanceFleetByName",
			resource: "arn:aws:states:::elasticmapreduce:modifyInstanceFleetByName",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrModifyInstanceFleetByName(s, "Fleet", &EmrModifyInstanceFleetByNameProps{ClusterId: "j-1", InstanceFleetName: "core", TargetOnDemandCapacity: Int(2), TargetSpotCapacity: Int(0)}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrModifyInstanceFleetByName(s, "Fleet", &EmrModifyInstanceFleetByNameProps{}))
			},
			required: []string{"clusterId", "instanceFleetName", "targetOnDemandCapacity", "targetSpotCapacity"},
		},
		{
			name:     "EmrModifyInstanceGroupByName",
			resource: "arn:aws:states:::elasticmapreduce:modifyInstanceGroupByName",
			build: func(s *Stack) (Task, error) {
				return task(NewEmrModifyInstanceGroupByName(s, "Group", &EmrModifyInstanceGroupByNameProps{ClusterId: "j-1", InstanceGroupName: "task", InstanceGroup: EmrInstanceGroupModifyConfig{InstanceCount: Int(3)}}))
			},
			empty: func(s *Stack) error {
				return discard(NewEmrModifyInstanceGroupByName(s, "Group", &EmrModifyInstanceGroupByNameProps{}))
			},
			required: []string{"clusterId", "instanceGroupName"},
		},
		{
			name:     "GlueStartJobRun",
			resource: "arn:aws:states:::glue:startJobRun",
			build: func(s *Stack) (Task, error) {
				return task(NewGlueStartJobRun(s, "Glue", &GlueStartJobRunProps{GlueJobName: "nightly"}))
			},
			empty: func(s *Stack) error {
				return discard(NewGlueStartJobRun(s, "Glue", &GlueStartJobRunProps{}))
			},
			required: []string{"glueJobName"},
		},
		{
			name:     "LambdaInvoke",
			resource: "arn:aws:states:::lambda:invoke",
			build: func(s *Stack) (Task, error) {
				return task(NewLambdaInvoke(s, "Invoke", &LambdaInvokeProps{LambdaFunction: "fn"}))
			},
			empty: func(s *Stack) error {
				return discard(NewLambdaInvoke(s, "Invoke", &LambdaInvokeProps{}))
			},
			required: []string{"lambdaFunction"},
		},
		{
			name:     "SageMakerCreateTrainingJob",
			resource: "arn:aws:states:::sagemaker:createTrainingJob",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerCreateTrainingJob(s, "Train", minimalTrainingJob()))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerCreateTrainingJob(s, "Train", &SageMakerCreateTrainingJobProps{}))
			},
			required: []string{"roleArn", "trainingJobName", "outputDataConfig.s3OutputLocation", "inputDataConfig"},
		},
		{
			name:     "SageMakerCreateTransformJob",
			resource: "arn:aws:states:::sagemaker:createTransformJob",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerCreateTransformJob(s, "Transform", minimalTransformJob()))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerCreateTransformJob(s, "Transform", &SageMakerCreateTransformJobProps{}))
			},
			required: []string{"modelName", "transformJobName", "transformOutput.s3OutputPath"},
		},
		{
			name:     "SageMakerCreateModel",
			resource: "arn:aws:states:::sagemaker:createModel",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerCreateModel(s, "Model", &SageMakerCreateModelProps{
					ModelName:        "churn",
					RoleArn:          "arn:aws:iam::123456789012:role/sm",
					PrimaryContainer: ContainerDefinition{Image: "123456789012.dkr.ecr.us-east-1.amazonaws.com/churn:1"},
				}))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerCreateModel(s, "Model", &SageMakerCreateModelProps{}))
			},
			required: []string{"modelName", "roleArn"},
		},
		{
			name:     "SageMakerCreateEndpointConfig",
			resource: "arn:aws:states:::sagemaker:createEndpointConfig",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerCreateEndpointConfig(s, "Config", &SageMakerCreateEndpointConfigProps{
					EndpointConfigName: "churn-config",
					ProductionVariants: []ProductionVariant{{InstanceType: "ml.m5.large", ModelName: "churn", VariantName: "primary"}},
				}))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerCreateEndpointConfig(s, "Config", &SageMakerCreateEndpointConfigProps{}))
			},
			required: []string{"endpointConfigName", "productionVariants"},
		},
		{
			name:     "SageMakerCreateEndpoint",
			resource: "arn:aws:states:::sagemaker:createEndpoint",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerCreateEndpoint(s, "Endpoint", &SageMakerCreateEndpointProps{EndpointConfigName: "churn-config", EndpointName: "churn"}))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerCreateEndpoint(s, "Endpoint", &SageMakerCreateEndpointProps{}))
			},
			required: []string{"endpointConfigName", "endpointName"},
		},
		{
			name:     "SageMakerUpdateEndpoint",
			resource: "arn:aws:states:::sagemaker:updateEndpoint",
			build: func(s *Stack) (Task, error) {
				return task(NewSageMakerUpdateEndpoint(s, "Update", &SageMakerUpdateEndpointProps{EndpointConfigName: "churn-config-2", EndpointName: "churn"}))
			},
			empty: func(s *Stack) error {
				return discard(NewSageMakerUpdateEndpoint(s, "Update", &SageMakerUpdateEndpointProps{}))
			},
			required: []string{"endpointConfigName", "endpointName"},
		},
		{
			name:     "SnsPublish",
			resource: "arn:aws:states:::sns:publish",
			build: func(s *Stack) (Task, error) {
				return task(NewSnsPublish(s, "Notify", &SnsPublishProps{Topic: "alerts", Message: TaskInputFromText("hi")}))
			},
			empty: func(s *Stack) error {
				return discard(NewSnsPublish(s, "Notify", &SnsPublishProps{}))
			},
			required: []string{"topic", "message"},
		},
		{
			name:     "SqsSendMessage",
			resource: "arn:aws:states:::sqs:sendMessage",
			build: func(s *Stack) (Task, error) {
				return task(NewSqsSendMessage(s, "Send", &SqsSendMessageProps{Queue: "jobs", MessageBody: TaskInputFromText("hi")}))
			},
			empty: func(s *Stack) error {
				return discard(NewSqsSendMessage(s, "Send", &SqsSendMessageProps{}))
			},
			required: []string{"queue", "messageBody"},
		},
		{
			name:     "StepFunctionsStartExecution",
			resource: "arn:aws:states:::states:startExecution",
			build: func(s *Stack) (Task, error) {
				return task(NewStepFunctionsStartExecution(s, "Child", &StepFunctionsStartExecutionProps{StateMachine: "child"}))
			},
			empty: func(s *Stack) error {
				return discard(NewStepFunctionsStartExecution(s, "Child", &StepFunctionsStartExecutionProps{}))
			},
			required: []string{"stateMachine"},
		},
		{
			name:     "StepFunctionsInvokeActivity",
			resource: "arn:aws:states:us-east-1:123456789012:activity:approve",
			build: func(s *Stack) (Task, error) {
				return task(NewStepFunctionsInvokeActivity(s, "Approve", &StepFunctionsInvokeActivityProps{Activity: "approve"}))
			},
			empty: func(s *Stack) error {
				return discard(NewStepFunctionsInvokeActivity(s, "Approve", &StepFunctionsInvokeActivityProps{}))
			},
			required: []string{"activity"},
		},
		{
			name:     "EvaluateExpression",
			resource: "arn:aws:lambda:us-east-1:123456789012:function:evaluator",
			build: func(s *Stack) (Task, error) {
				return task(NewEvaluateExpression(s, "Eval", &EvaluateExpressionProps{Expression: "$.a + $.b", EvaluatorFunction: "evaluator"}))
			},
			empty: func(s *Stack) error {
				return discard(NewEvaluateExpression(s, "Eval", &EvaluateExpressionProps{}))
			},
			required: []string{"expression", "evaluatorFunction"},
		},
	}
}

func minimalTrainingJob() *SageMakerCreateTrainingJobProps {
	return &SageMakerCreateTrainingJobProps{
		TrainingJobName:        "churn-training",
		RoleArn:                "arn:aws:iam::123456789012:role/sm",
		AlgorithmSpecification: AlgorithmSpecification{AlgorithmName: "xgboost"},
		InputDataConfig: []Channel{{
			ChannelName: "train",
			DataSource:  DataSource{S3DataSource: S3DataSource{S3Uri: "s3://data/train/"}},
		}},
		OutputDataConfig: OutputDataConfig{S3OutputLocation: "s3://data/models/"},
	}
}

func minimalTransformJob() *SageMakerCreateTransformJobProps {
	return &SageMakerCreateTransformJobProps{
		ModelName:        "churn",
		TransformJobName: "churn-batch",
		TransformInput: TransformInput{
			TransformDataSource: TransformDataSource{S3DataSource: TransformS3DataSource{S3Uri: "s3://data/in/"}},
		},
		TransformOutput: TransformOutput{S3OutputPath: "s3://data/out/"},
	}
}

func TestIntegrations_RequiredFieldsOnly(t *testing.T) {
	t.Parallel()

	for _, tc := range integrationCases() {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			built, err := tc.build(testStack())
			require.NoError(t, err)
			require.Equal(t, "@aws-cdk/aws-stepfunctions-tasks."+tc.name, built.TypeName())

			out := renderJSON(t, built)
			require.Equal(t, tc.resource, out.Get("Resource").String())
			require.Equal(t, "Task", out.Get("Type").String())
		})
	}
}

func TestIntegrations_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	for _, tc := range integrationCases() {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.empty(testStack())
			require.Error(t, err)
			require.True(t, IsValidation(err))
			for _, field := range tc.required {
				require.ErrorContains(t, err, fmt.Sprintf("Required property '%s' is missing", field))
			}
		})
	}
}

func TestIntegrations_PolicyStatementsHaveActions(t *testing.T) {
	t.Parallel()

	for _, tc := range integrationCases() {
		if tc.name == "StepFunctionsInvokeActivity" {
			continue
		}
		built, err := tc.build(testStack())
		require.NoError(t, err, tc.name)
		statements := built.PolicyStatements()
		require.NotEmpty(t, statements, tc.name)
		for _, s := range statements {
			require.NotEmpty(t, s.Actions, tc.name)
			require.NotEmpty(t, s.Resources, tc.name)
		}
	}
}

func TestProps_IdenticalValuesCompareEqual(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		build := func(name string, size int, env map[string]string) BatchSubmitJobProps {
			return BatchSubmitJobProps{
				JobDefinitionArn:   "arn:aws:batch:us-east-1:1:job-definition/" + name,
				JobName:            name,
				JobQueueArn:        "arn:aws:batch:us-east-1:1:job-queue/" + name,
				ArraySize:          Int(size),
				ContainerOverrides: &BatchContainerOverrides{Environment: env},
			}
		}
		name := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "name")
		size := rapid.IntRange(2, 10_000).Draw(t, "size")
		env := rapid.MapOf(rapid.StringMatching(`[A-Z]{1,6}`), rapid.String()).Draw(t, "env")

		a := build(name, size, env)
		b := build(name, size, env)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("expected identical props to be equal")
		}
		if fmt.Sprintf("%+v", a.TaskProps) != fmt.Sprintf("%+v", b.TaskProps) || fmt.Sprintf("%+v", *a.ContainerOverrides) != fmt.Sprintf("%+v", *b.ContainerOverrides) {
			t.Fatalf("expected identical props to print identically")
		}
	})
}

func TestEnums_RejectUnknownValues(t *testing.T) {
	t.Parallel()

	enums := []interface{ Valid() bool }{
		IntegrationPattern("NOPE"),
		LambdaInvocationType("NOPE"),
		DynamoReturnValues("NOPE"),
		DynamoConsumedCapacity("NOPE"),
		DynamoItemCollectionMetrics("NOPE"),
		EncryptionOption("NOPE"),
		BuildEnvironmentVariableType("NOPE"),
		NetworkMode("NOPE"),
		Compatibility("NOPE"),
		FargatePlatformVersion("NOPE"),
		EmrActionOnFailure("NOPE"),
		EmrInstanceRoleType("NOPE"),
		EmrInstanceMarket("NOPE"),
		EmrScaleDownBehavior("NOPE"),
		S3DataType("NOPE"),
		InputMode("NOPE"),
		SplitType("NOPE"),
		BatchStrategy("NOPE"),
		MessageAttributeDataType("NOPE"),
	}
	for _, e := range enums {
		require.False(t, e.Valid(), "%T", e)
	}
	require.True(t, EmrActionOnFailureContinue.Valid())
	require.True(t, S3DataTypeS3Prefix.Valid())
}
