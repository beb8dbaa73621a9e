package sfntasks

import (
	"strings"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

type S3DataType string

const (
	S3DataTypeManifestFile          S3DataType = "ManifestFile"
	S3DataTypeS3Prefix              S3DataType = "S3Prefix"
	S3DataTypeAugmentedManifestFile S3DataType = "AugmentedManifestFile"
)

func (t S3DataType) Valid() bool {
	return t == S3DataTypeManifestFile || t == S3DataTypeS3Prefix || t == S3DataTypeAugmentedManifestFile
}

type S3DataDistributionType string

const (
	S3DataDistributionFullyReplicated S3DataDistributionType = "FullyReplicated"
	S3DataDistributionShardedByS3Key  S3DataDistributionType = "ShardedByS3Key"
)

func (t S3DataDistributionType) Valid() bool {
	return t == S3DataDistributionFullyReplicated || t == S3DataDistributionShardedByS3Key
}

type CompressionType string

const (
	CompressionTypeNone CompressionType = "None"
	CompressionTypeGzip CompressionType = "Gzip"
)

func (t CompressionType) Valid() bool { return t == CompressionTypeNone || t == CompressionTypeGzip }

type RecordWrapperType string

const (
	RecordWrapperTypeNone     RecordWrapperType = "None"
	RecordWrapperTypeRecordIO RecordWrapperType = "RecordIO"
)

func (t RecordWrapperType) Valid() bool {
	return t == RecordWrapperTypeNone || t == RecordWrapperTypeRecordIO
}

type InputMode string

const (
	InputModePipe     InputMode = "Pipe"
	InputModeFile     InputMode = "File"
	InputModeFastFile InputMode = "FastFile"
)

func (m InputMode) Valid() bool {
	return m == InputModePipe || m == InputModeFile || m == InputModeFastFile
}

type BatchStrategy string

const (
	BatchStrategyMultiRecord  BatchStrategy = "MultiRecord"
	BatchStrategySingleRecord BatchStrategy = "SingleRecord"
)

func (s BatchStrategy) Valid() bool {
	return s == BatchStrategyMultiRecord || s == BatchStrategySingleRecord
}

type SplitType string

const (
	SplitTypeNone     SplitType = "None"
	SplitTypeLine     SplitType = "Line"
	SplitTypeRecordIO SplitType = "RecordIO"
	SplitTypeTFRecord SplitType = "TFRecord"
)

func (t SplitType) Valid() bool {
	switch t {
	case SplitTypeNone, SplitTypeLine, SplitTypeRecordIO, SplitTypeTFRecord:
		return true
	default:
		return false
	}
}

type AssembleWith string

const (
	AssembleWithNone AssembleWith = "None"
	AssembleWithLine AssembleWith = "Line"
)

func (a AssembleWith) Valid() bool { return a == AssembleWithNone || a == AssembleWithLine }

// ContainerMode selects whether a model container hosts one model or many.
type ContainerMode string

const (
	ContainerModeSingleModel ContainerMode = "SingleModel"
	ContainerModeMultiModel  ContainerMode = "MultiModel"
)

func (m ContainerMode) Valid() bool {
	return m == ContainerModeSingleModel || m == ContainerModeMultiModel
}

const (
	defaultSageMakerInstanceType = "ml.m4.xlarge"
	defaultSageMakerVolumeSize   = 10
	defaultSageMakerMaxRuntime   = time.Hour
)

type MetricDefinition struct {
	Name  string `field:"required" json:"name" yaml:"name"`
	Regex string `field:"required" json:"regex" yaml:"regex"`
}

type AlgorithmSpecification struct {
	// Exactly one of AlgorithmName and TrainingImage.
	AlgorithmName     string             `field:"optional" json:"algorithmName,omitempty" yaml:"algorithmName,omitempty"`
	TrainingImage     string             `field:"optional" json:"trainingImage,omitempty" yaml:"trainingImage,omitempty"`
	MetricDefinitions []MetricDefinition `field:"optional" json:"metricDefinitions,omitempty" yaml:"metricDefinitions,omitempty"`
	// Defaults to File.
	TrainingInputMode InputMode `field:"optional" json:"trainingInputMode,omitempty" yaml:"trainingInputMode,omitempty"`
}

type S3DataSource struct {
	// s3:// URI or a path reference.
	S3Uri string `field:"required" json:"s3Uri" yaml:"s3Uri"`
	// Defaults to S3Prefix.
	S3DataType             S3DataType             `field:"optional" json:"s3DataType,omitempty" yaml:"s3DataType,omitempty"`
	S3DataDistributionType S3DataDistributionType `field:"optional" json:"s3DataDistributionType,omitempty" yaml:"s3DataDistributionType,omitempty"`
	AttributeNames         []string               `field:"optional" json:"attributeNames,omitempty" yaml:"attributeNames,omitempty"`
}

type DataSource struct {
	S3DataSource S3DataSource `field:"required" json:"s3DataSource" yaml:"s3DataSource"`
}

type ShuffleConfig struct {
	Seed int `field:"required" json:"seed" yaml:"seed"`
}

type Channel struct {
	ChannelName       string            `field:"required" json:"channelName" yaml:"channelName"`
	DataSource        DataSource        `field:"required" json:"dataSource" yaml:"dataSource"`
	CompressionType   CompressionType   `field:"optional" json:"compressionType,omitempty" yaml:"compressionType,omitempty"`
	ContentType       string            `field:"optional" json:"contentType,omitempty" yaml:"contentType,omitempty"`
	InputMode         InputMode         `field:"optional" json:"inputMode,omitempty" yaml:"inputMode,omitempty"`
	RecordWrapperType RecordWrapperType `field:"optional" json:"recordWrapperType,omitempty" yaml:"recordWrapperType,omitempty"`
	ShuffleConfig     *ShuffleConfig    `field:"optional" json:"shuffleConfig,omitempty" yaml:"shuffleConfig,omitempty"`
}

type OutputDataConfig struct {
	S3OutputLocation string `field:"required" json:"s3OutputLocation" yaml:"s3OutputLocation" api:"S3OutputPath"`
	EncryptionKey    string `field:"optional" json:"encryptionKey,omitempty" yaml:"encryptionKey,omitempty" api:"KmsKeyId"`
}

type ResourceConfig struct {
	InstanceCount int    `field:"required" json:"instanceCount" yaml:"instanceCount"`
	InstanceType  string `field:"required" json:"instanceType" yaml:"instanceType"`
	// GB.
	VolumeSize          int    `field:"required" json:"volumeSize" yaml:"volumeSize" api:"VolumeSizeInGB"`
	VolumeEncryptionKey string `field:"optional" json:"volumeEncryptionKey,omitempty" yaml:"volumeEncryptionKey,omitempty" api:"VolumeKmsKeyId"`
}

type StoppingCondition struct {
	// Whole seconds.
	MaxRuntime time.Duration `field:"optional" json:"maxRuntime,omitempty" yaml:"maxRuntime,omitempty" api:"MaxRuntimeInSeconds"`
}

type VpcConfig struct {
	Subnets        []string `field:"required" json:"subnets" yaml:"subnets"`
	SecurityGroups []string `field:"optional" json:"securityGroups,omitempty" yaml:"securityGroups,omitempty" api:"SecurityGroupIds"`
}

// SageMakerCreateTrainingJobProps configures SageMakerCreateTrainingJob.
type SageMakerCreateTrainingJobProps struct {
	TaskProps `yaml:",inline"`

	AlgorithmSpecification AlgorithmSpecification `field:"required" json:"algorithmSpecification" yaml:"algorithmSpecification"`
	InputDataConfig        []Channel              `field:"required" json:"inputDataConfig" yaml:"inputDataConfig"`
	OutputDataConfig       OutputDataConfig       `field:"required" json:"outputDataConfig" yaml:"outputDataConfig"`
	// Execution role the training job assumes.
	RoleArn         string `field:"required" json:"roleArn" yaml:"roleArn"`
	TrainingJobName string `field:"required" json:"trainingJobName" yaml:"trainingJobName"`

	Environment     map[string]string `field:"optional" json:"environment,omitempty" yaml:"environment,omitempty"`
	Hyperparameters map[string]any    `field:"optional" json:"hyperparameters,omitempty" yaml:"hyperparameters,omitempty"`
	// Defaults to 1 x ml.m4.xlarge with a 10 GB volume.
	ResourceConfig *ResourceConfig `field:"optional" json:"resourceConfig,omitempty" yaml:"resourceConfig,omitempty"`
	// Defaults to a one hour maximum runtime.
	StoppingCondition *StoppingCondition `field:"optional" json:"stoppingCondition,omitempty" yaml:"stoppingCondition,omitempty"`
	Tags              map[string]string  `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
	VpcConfig         *VpcConfig         `field:"optional" json:"vpcConfig,omitempty" yaml:"vpcConfig,omitempty"`
}

// SageMakerCreateTrainingJob starts a model training job.
type SageMakerCreateTrainingJob struct{ *serviceTask }

func NewSageMakerCreateTrainingJob(scope *Stack, id string, props *SageMakerCreateTrainingJobProps) (*SageMakerCreateTrainingJob, error) {
	p := newProblems("SageMakerCreateTrainingJob")
	if props == nil {
		for _, f := range []string{"algorithmSpecification", "inputDataConfig", "outputDataConfig", "roleArn", "trainingJobName"} {
			p.required(f)
		}
		return nil, p.err()
	}
	p.requireString("roleArn", props.RoleArn)
	p.requireString("trainingJobName", props.TrainingJobName)
	validateStruct(p, "algorithmSpecification", props.AlgorithmSpecification)
	validateStruct(p, "outputDataConfig", props.OutputDataConfig)
	validateStruct(p, "resourceConfig", props.ResourceConfig)
	validateStruct(p, "vpcConfig", props.VpcConfig)

	spec := props.AlgorithmSpecification
	switch {
	case spec.AlgorithmName == "" && spec.TrainingImage == "":
		p.invalid("algorithmSpecification", "Must define either an algorithm name or training image URI in the algorithm specification")
	case spec.AlgorithmName != "" && spec.TrainingImage != "":
		p.invalid("algorithmSpecification", "Cannot define both an algorithm name and training image URI in the algorithm specification")
	}
	if n := len(spec.AlgorithmName); n > 170 {
		p.invalid("algorithmSpecification.algorithmName", "Algorithm name length must be between 1 and 170, but got %d", n)
	}
	if n := len(spec.MetricDefinitions); n > 40 {
		p.invalid("algorithmSpecification.metricDefinitions", "Metric definitions must be at most 40, got %d", n)
	}
	if !IsJsonPathString(props.TrainingJobName) && len(props.TrainingJobName) > 63 {
		p.invalid("trainingJobName", "Training job name must be at most 63 characters, got %d", len(props.TrainingJobName))
	}
	switch n := len(props.InputDataConfig); {
	case n == 0:
		p.required("inputDataConfig")
	case n > 20:
		p.invalid("inputDataConfig", "Input data config must contain at most 20 channels, got %d", n)
	}
	for _, ch := range props.InputDataConfig {
		validateStruct(p, "inputDataConfig", ch)
		validateS3Uri(p, "inputDataConfig.dataSource.s3DataSource.s3Uri", ch.DataSource.S3DataSource.S3Uri)
	}
	validateS3Uri(p, "outputDataConfig.s3OutputLocation", props.OutputDataConfig.S3OutputLocation)
	validateEnvironment(p, props.Environment)
	if props.StoppingCondition != nil {
		p.add(wholeSeconds("stoppingCondition.maxRuntime", props.StoppingCondition.MaxRuntime))
		if props.StoppingCondition.MaxRuntime > 5*24*time.Hour {
			p.invalid("stoppingCondition.maxRuntime", "Maximum runtime must be between 1 and 432000 seconds")
		}
	}

	algorithm := apiObject(spec)
	if spec.TrainingInputMode == "" {
		algorithm["TrainingInputMode"] = string(InputModeFile)
	}
	channels := make([]any, 0, len(props.InputDataConfig))
	for _, ch := range props.InputDataConfig {
		c := apiObject(ch)
		if ch.DataSource.S3DataSource.S3DataType == "" {
			nestedMap(c, "DataSource", "S3DataSource")["S3DataType"] = string(S3DataTypeS3Prefix)
		}
		channels = append(channels, c)
	}
	resources := props.ResourceConfig
	if resources == nil {
		resources = &ResourceConfig{InstanceCount: 1, InstanceType: defaultSageMakerInstanceType, VolumeSize: defaultSageMakerVolumeSize}
	}
	stopping := StoppingCondition{MaxRuntime: defaultSageMakerMaxRuntime}
	if props.StoppingCondition != nil && props.StoppingCondition.MaxRuntime > 0 {
		stopping = *props.StoppingCondition
	}

	params := map[string]any{
		"TrainingJobName":        props.TrainingJobName,
		"RoleArn":                props.RoleArn,
		"AlgorithmSpecification": algorithm,
		"InputDataConfig":        channels,
		"OutputDataConfig":       apiObject(props.OutputDataConfig),
		"ResourceConfig":         apiObject(resources),
		"StoppingCondition":      apiObject(stopping),
	}
	if len(props.Hyperparameters) > 0 {
		params["HyperParameters"] = props.Hyperparameters
	}
	if len(props.Environment) > 0 {
		params["Environment"] = props.Environment
	}
	if props.VpcConfig != nil {
		params["VpcConfig"] = apiObject(props.VpcConfig)
	}
	putTags(params, props.Tags)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerCreateTrainingJob",
		service:   "sagemaker",
		api:       "createTrainingJob",
		supported: patternsRunJob,
		params:    params,
		statements: func(pattern IntegrationPattern) []iam.Statement {
			statements := []iam.Statement{
				iam.Allow([]string{"sagemaker:CreateTrainingJob", "sagemaker:DescribeTrainingJob", "sagemaker:StopTrainingJob"},
					scope.serviceArn("sagemaker", "training-job", sageMakerResourceName(props.TrainingJobName, true), iam.ArnSlash)),
				iam.Allow([]string{"sagemaker:ListTags"}, "*"),
				passRoleToSageMaker(props.RoleArn),
			}
			if pattern == IntegrationPatternRunJob {
				statements = append(statements, iam.Allow(runJobEventActions, scope.eventsRuleArn("StepFunctionsGetEventsForSageMakerTrainingJobsRule")))
			}
			return statements
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerCreateTrainingJob{t}, nil
}

type TransformS3DataSource struct {
	S3Uri string `field:"required" json:"s3Uri" yaml:"s3Uri"`
	// Defaults to S3Prefix.
	S3DataType S3DataType `field:"optional" json:"s3DataType,omitempty" yaml:"s3DataType,omitempty"`
}

type TransformDataSource struct {
	S3DataSource TransformS3DataSource `field:"required" json:"s3DataSource" yaml:"s3DataSource"`
}

type TransformInput struct {
	TransformDataSource TransformDataSource `field:"required" json:"transformDataSource" yaml:"transformDataSource" api:"DataSource"`
	CompressionType     CompressionType     `field:"optional" json:"compressionType,omitempty" yaml:"compressionType,omitempty"`
	ContentType         string              `field:"optional" json:"contentType,omitempty" yaml:"contentType,omitempty"`
	SplitType           SplitType           `field:"optional" json:"splitType,omitempty" yaml:"splitType,omitempty"`
}

type TransformOutput struct {
	S3OutputPath  string       `field:"required" json:"s3OutputPath" yaml:"s3OutputPath"`
	Accept        string       `field:"optional" json:"accept,omitempty" yaml:"accept,omitempty"`
	AssembleWith  AssembleWith `field:"optional" json:"assembleWith,omitempty" yaml:"assembleWith,omitempty"`
	EncryptionKey string       `field:"optional" json:"encryptionKey,omitempty" yaml:"encryptionKey,omitempty" api:"KmsKeyId"`
}

type TransformResources struct {
	InstanceCount       int    `field:"required" json:"instanceCount" yaml:"instanceCount"`
	InstanceType        string `field:"required" json:"instanceType" yaml:"instanceType"`
	VolumeEncryptionKey string `field:"optional" json:"volumeEncryptionKey,omitempty" yaml:"volumeEncryptionKey,omitempty" api:"VolumeKmsKeyId"`
}

type ModelClientOptions struct {
	// 0..3.
	InvocationsMaxRetries *int `field:"optional" json:"invocationsMaxRetries,omitempty" yaml:"invocationsMaxRetries,omitempty"`
	// Between 1 second and 1 hour.
	InvocationsTimeout time.Duration `field:"optional" json:"invocationsTimeout,omitempty" yaml:"invocationsTimeout,omitempty" api:"InvocationsTimeoutInSeconds"`
}

// SageMakerCreateTransformJobProps configures SageMakerCreateTransformJob.
type SageMakerCreateTransformJobProps struct {
	TaskProps `yaml:",inline"`

	ModelName        string          `field:"required" json:"modelName" yaml:"modelName"`
	TransformInput   TransformInput  `field:"required" json:"transformInput" yaml:"transformInput"`
	TransformJobName string          `field:"required" json:"transformJobName" yaml:"transformJobName"`
	TransformOutput  TransformOutput `field:"required" json:"transformOutput" yaml:"transformOutput"`

	BatchStrategy           BatchStrategy     `field:"optional" json:"batchStrategy,omitempty" yaml:"batchStrategy,omitempty"`
	Environment             map[string]string `field:"optional" json:"environment,omitempty" yaml:"environment,omitempty"`
	MaxConcurrentTransforms *int              `field:"optional" json:"maxConcurrentTransforms,omitempty" yaml:"maxConcurrentTransforms,omitempty"`
	// MB.
	MaxPayload         *int                `field:"optional" json:"maxPayload,omitempty" yaml:"maxPayload,omitempty"`
	ModelClientOptions *ModelClientOptions `field:"optional" json:"modelClientOptions,omitempty" yaml:"modelClientOptions,omitempty"`
	Tags               map[string]string   `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
	// Defaults to 1 x ml.m4.xlarge.
	TransformResources *TransformResources `field:"optional" json:"transformResources,omitempty" yaml:"transformResources,omitempty"`
}

// SageMakerCreateTransformJob starts a batch transform job.
type SageMakerCreateTransformJob struct{ *serviceTask }

func NewSageMakerCreateTransformJob(scope *Stack, id string, props *SageMakerCreateTransformJobProps) (*SageMakerCreateTransformJob, error) {
	p := newProblems("SageMakerCreateTransformJob")
	if props == nil {
		for _, f := range []string{"modelName", "transformInput", "transformJobName", "transformOutput"} {
			p.required(f)
		}
		return nil, p.err()
	}
	p.requireString("modelName", props.ModelName)
	p.requireString("transformJobName", props.TransformJobName)
	validateStruct(p, "transformInput", props.TransformInput)
	validateStruct(p, "transformOutput", props.TransformOutput)
	validateStruct(p, "transformResources", props.TransformResources)
	if props.BatchStrategy != "" {
		p.enum("batchStrategy", props.BatchStrategy, "MultiRecord, SingleRecord")
	}
	validateS3Uri(p, "transformInput.transformDataSource.s3DataSource.s3Uri", props.TransformInput.TransformDataSource.S3DataSource.S3Uri)
	validateS3Uri(p, "transformOutput.s3OutputPath", props.TransformOutput.S3OutputPath)
	validateEnvironment(p, props.Environment)
	if props.MaxPayload != nil && (*props.MaxPayload < 0 || *props.MaxPayload > 100) {
		p.invalid("maxPayload", "MaxPayload must be between 0 and 100 MB, got %d", *props.MaxPayload)
	}
	if o := props.ModelClientOptions; o != nil {
		p.intRange("modelClientOptions.invocationsMaxRetries", o.InvocationsMaxRetries, 0, 3)
		p.add(wholeSeconds("modelClientOptions.invocationsTimeout", o.InvocationsTimeout))
		if o.InvocationsTimeout != 0 && (o.InvocationsTimeout < time.Second || o.InvocationsTimeout > time.Hour) {
			p.invalid("modelClientOptions.invocationsTimeout", "invocationsTimeout should be between 1 and 3600 seconds. Got: %d", int(o.InvocationsTimeout/time.Second))
		}
	}

	input := apiObject(props.TransformInput)
	if props.TransformInput.TransformDataSource.S3DataSource.S3DataType == "" {
		nestedMap(input, "DataSource", "S3DataSource")["S3DataType"] = string(S3DataTypeS3Prefix)
	}
	resources := props.TransformResources
	if resources == nil {
		resources = &TransformResources{InstanceCount: 1, InstanceType: defaultSageMakerInstanceType}
	}
	params := map[string]any{
		"TransformJobName":   props.TransformJobName,
		"ModelName":          props.ModelName,
		"TransformInput":     input,
		"TransformOutput":    apiObject(props.TransformOutput),
		"TransformResources": apiObject(resources),
	}
	putIf(params, "BatchStrategy", string(props.BatchStrategy))
	putInt(params, "MaxConcurrentTransforms", props.MaxConcurrentTransforms)
	putInt(params, "MaxPayloadInMB", props.MaxPayload)
	if len(props.Environment) > 0 {
		params["Environment"] = props.Environment
	}
	if props.ModelClientOptions != nil {
		if opts := apiObject(props.ModelClientOptions); len(opts) > 0 {
			params["ModelClientConfig"] = opts
		}
	}
	putTags(params, props.Tags)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerCreateTransformJob",
		service:   "sagemaker",
		api:       "createTransformJob",
		supported: patternsRunJob,
		params:    params,
		statements: func(pattern IntegrationPattern) []iam.Statement {
			statements := []iam.Statement{
				iam.Allow([]string{"sagemaker:CreateTransformJob", "sagemaker:DescribeTransformJob", "sagemaker:StopTransformJob"},
					scope.serviceArn("sagemaker", "transform-job", sageMakerResourceName(props.TransformJobName, true), iam.ArnSlash)),
				iam.Allow([]string{"sagemaker:ListTags"}, "*"),
			}
			if pattern == IntegrationPatternRunJob {
				statements = append(statements, iam.Allow(runJobEventActions, scope.eventsRuleArn("StepFunctionsGetEventsForSageMakerTransformJobsRule")))
			}
			return statements
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerCreateTransformJob{t}, nil
}

type ContainerDefinition struct {
	// ECR image URI.
	Image                string            `field:"optional" json:"image,omitempty" yaml:"image,omitempty"`
	ContainerHostName    string            `field:"optional" json:"containerHostName,omitempty" yaml:"containerHostName,omitempty" api:"ContainerHostname"`
	EnvironmentVariables map[string]string `field:"optional" json:"environmentVariables,omitempty" yaml:"environmentVariables,omitempty" api:"Environment"`
	Mode                 ContainerMode     `field:"optional" json:"mode,omitempty" yaml:"mode,omitempty"`
	// s3:// URI of the model artifacts.
	ModelS3Location  string `field:"optional" json:"modelS3Location,omitempty" yaml:"modelS3Location,omitempty" api:"ModelDataUrl"`
	ModelPackageName string `field:"optional" json:"modelPackageName,omitempty" yaml:"modelPackageName,omitempty"`
}

// SageMakerCreateModelProps configures SageMakerCreateModel.
type SageMakerCreateModelProps struct {
	TaskProps `yaml:",inline"`

	ModelName        string              `field:"required" json:"modelName" yaml:"modelName"`
	PrimaryContainer ContainerDefinition `field:"required" json:"primaryContainer" yaml:"primaryContainer"`
	RoleArn          string              `field:"required" json:"roleArn" yaml:"roleArn"`

	Containers             []ContainerDefinition `field:"optional" json:"containers,omitempty" yaml:"containers,omitempty"`
	EnableNetworkIsolation *bool                 `field:"optional" json:"enableNetworkIsolation,omitempty" yaml:"enableNetworkIsolation,omitempty"`
	Tags                   map[string]string     `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
	VpcConfig              *VpcConfig            `field:"optional" json:"vpcConfig,omitempty" yaml:"vpcConfig,omitempty"`
}

// SageMakerCreateModel registers a model for hosting or batch transform.
type SageMakerCreateModel struct{ *serviceTask }

func NewSageMakerCreateModel(scope *Stack, id string, props *SageMakerCreateModelProps) (*SageMakerCreateModel, error) {
	p := newProblems("SageMakerCreateModel")
	if props == nil {
		for _, f := range []string{"modelName", "primaryContainer", "roleArn"} {
			p.required(f)
		}
		return nil, p.err()
	}
	p.requireString("modelName", props.ModelName)
	p.requireString("roleArn", props.RoleArn)
	validateStruct(p, "primaryContainer", props.PrimaryContainer)
	validateStruct(p, "containers", props.Containers)
	validateStruct(p, "vpcConfig", props.VpcConfig)
	if props.PrimaryContainer.Image == "" && props.PrimaryContainer.ModelPackageName == "" {
		p.invalid("primaryContainer", "primaryContainer must set image or modelPackageName")
	}
	if props.PrimaryContainer.ModelS3Location != "" {
		validateS3Uri(p, "primaryContainer.modelS3Location", props.PrimaryContainer.ModelS3Location)
	}

	params := map[string]any{
		"ModelName":        props.ModelName,
		"ExecutionRoleArn": props.RoleArn,
		"PrimaryContainer": apiObject(props.PrimaryContainer),
	}
	if len(props.Containers) > 0 {
		containers := make([]any, 0, len(props.Containers))
		for _, c := range props.Containers {
			containers = append(containers, apiObject(c))
		}
		params["Containers"] = containers
	}
	putBool(params, "EnableNetworkIsolation", props.EnableNetworkIsolation)
	if props.VpcConfig != nil {
		params["VpcConfig"] = apiObject(props.VpcConfig)
	}
	putTags(params, props.Tags)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerCreateModel",
		service:   "sagemaker",
		api:       "createModel",
		supported: patternsRequestResponse,
		params:    params,
		statements: func(IntegrationPattern) []iam.Statement {
			return []iam.Statement{
				iam.Allow([]string{"sagemaker:CreateModel"},
					scope.serviceArn("sagemaker", "model", sageMakerResourceName(props.ModelName, false), iam.ArnSlash)),
				iam.Allow([]string{"sagemaker:ListTags"}, "*"),
				passRoleToSageMaker(props.RoleArn),
			}
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerCreateModel{t}, nil
}

type ProductionVariant struct {
	InstanceType string `field:"required" json:"instanceType" yaml:"instanceType"`
	ModelName    string `field:"required" json:"modelName" yaml:"modelName"`
	VariantName  string `field:"required" json:"variantName" yaml:"variantName"`

	AcceleratorType string `field:"optional" json:"acceleratorType,omitempty" yaml:"acceleratorType,omitempty"`
	// Defaults to 1.
	InitialInstanceCount *int `field:"optional" json:"initialInstanceCount,omitempty" yaml:"initialInstanceCount,omitempty"`
	// Defaults to 1.0.
	InitialVariantWeight *float64 `field:"optional" json:"initialVariantWeight,omitempty" yaml:"initialVariantWeight,omitempty"`
}

// SageMakerCreateEndpointConfigProps configures SageMakerCreateEndpointConfig.
type SageMakerCreateEndpointConfigProps struct {
	TaskProps `yaml:",inline"`

	EndpointConfigName string              `field:"required" json:"endpointConfigName" yaml:"endpointConfigName"`
	ProductionVariants []ProductionVariant `field:"required" json:"productionVariants" yaml:"productionVariants"`
	KmsKeyArn          string              `field:"optional" json:"kmsKeyArn,omitempty" yaml:"kmsKeyArn,omitempty"`
	Tags               map[string]string   `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
}

// SageMakerCreateEndpointConfig declares how models are deployed behind an endpoint.
type SageMakerCreateEndpointConfig struct{ *serviceTask }

func NewSageMakerCreateEndpointConfig(scope *Stack, id string, props *SageMakerCreateEndpointConfigProps) (*SageMakerCreateEndpointConfig, error) {
	p := newProblems("SageMakerCreateEndpointConfig")
	if props == nil {
		p.required("endpointConfigName")
		p.required("productionVariants")
		return nil, p.err()
	}
	p.requireString("endpointConfigName", props.EndpointConfigName)
	switch n := len(props.ProductionVariants); {
	case n == 0:
		p.required("productionVariants")
	case n > 10:
		p.invalid("productionVariants", "Found %d production variants. The maximum number of production variants allowed is 10.", n)
	}
	variants := make([]any, 0, len(props.ProductionVariants))
	for _, v := range props.ProductionVariants {
		validateStruct(p, "productionVariants", v)
		if v.InitialInstanceCount != nil && *v.InitialInstanceCount < 1 {
			p.invalid("productionVariants.initialInstanceCount", "InitialInstanceCount must be at least 1, got %d", *v.InitialInstanceCount)
		}
		rendered := apiObject(v)
		rendered["InitialInstanceCount"] = intOr(v.InitialInstanceCount, 1)
		weight := 1.0
		if v.InitialVariantWeight != nil {
			weight = *v.InitialVariantWeight
		}
		rendered["InitialVariantWeight"] = weight
		variants = append(variants, rendered)
	}
	params := map[string]any{
		"EndpointConfigName": props.EndpointConfigName,
		"ProductionVariants": variants,
	}
	putIf(params, "KmsKeyId", props.KmsKeyArn)
	putTags(params, props.Tags)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerCreateEndpointConfig",
		service:   "sagemaker",
		api:       "createEndpointConfig",
		supported: patternsRequestResponse,
		params:    params,
		statements: func(IntegrationPattern) []iam.Statement {
			return []iam.Statement{
				iam.Allow([]string{"sagemaker:CreateEndpointConfig"},
					scope.serviceArn("sagemaker", "endpoint-config", sageMakerResourceName(props.EndpointConfigName, false), iam.ArnSlash)),
				iam.Allow([]string{"sagemaker:ListTags"}, "*"),
			}
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerCreateEndpointConfig{t}, nil
}

// SageMakerCreateEndpointProps configures SageMakerCreateEndpoint.
type SageMakerCreateEndpointProps struct {
	TaskProps `yaml:",inline"`

	EndpointConfigName string            `field:"required" json:"endpointConfigName" yaml:"endpointConfigName"`
	EndpointName       string            `field:"required" json:"endpointName" yaml:"endpointName"`
	Tags               map[string]string `field:"optional" json:"tags,omitempty" yaml:"tags,omitempty"`
}

// SageMakerCreateEndpoint deploys an endpoint from an endpoint config.
type SageMakerCreateEndpoint struct{ *serviceTask }

func NewSageMakerCreateEndpoint(scope *Stack, id string, props *SageMakerCreateEndpointProps) (*SageMakerCreateEndpoint, error) {
	p := newProblems("SageMakerCreateEndpoint")
	if props == nil {
		p.required("endpointConfigName")
		p.required("endpointName")
		return nil, p.err()
	}
	p.requireString("endpointConfigName", props.EndpointConfigName)
	p.requireString("endpointName", props.EndpointName)

	params := map[string]any{
		"EndpointConfigName": props.EndpointConfigName,
		"EndpointName":       props.EndpointName,
	}
	putTags(params, props.Tags)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerCreateEndpoint",
		service:   "sagemaker",
		api:       "createEndpoint",
		supported: patternsRequestResponse,
		params:    params,
		statements: func(IntegrationPattern) []iam.Statement {
			return []iam.Statement{
				iam.Allow([]string{"sagemaker:CreateEndpoint"},
					scope.serviceArn("sagemaker", "endpoint", sageMakerResourceName(props.EndpointName, false), iam.ArnSlash),
					scope.serviceArn("sagemaker", "endpoint-config", sageMakerResourceName(props.EndpointConfigName, false), iam.ArnSlash)),
				iam.Allow([]string{"sagemaker:ListTags"}, "*"),
			}
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerCreateEndpoint{t}, nil
}

// SageMakerUpdateEndpointProps configures SageMakerUpdateEndpoint.
type SageMakerUpdateEndpointProps struct {
	TaskProps `yaml:",inline"`

	EndpointConfigName string `field:"required" json:"endpointConfigName" yaml:"endpointConfigName"`
	EndpointName       string `field:"required" json:"endpointName" yaml:"endpointName"`
}

// SageMakerUpdateEndpoint points an endpoint at a new endpoint config.
type SageMakerUpdateEndpoint struct{ *serviceTask }

func NewSageMakerUpdateEndpoint(scope *Stack, id string, props *SageMakerUpdateEndpointProps) (*SageMakerUpdateEndpoint, error) {
	p := newProblems("SageMakerUpdateEndpoint")
	if props == nil {
		p.required("endpointConfigName")
		p.required("endpointName")
		return nil, p.err()
	}
	p.requireString("endpointConfigName", props.EndpointConfigName)
	p.requireString("endpointName", props.EndpointName)

	t, err := newServiceTask(scope, id, props.TaskProps, serviceTaskSpec{
		typeName:  "SageMakerUpdateEndpoint",
		service:   "sagemaker",
		api:       "updateEndpoint",
		supported: patternsRequestResponse,
		params: map[string]any{
			"EndpointConfigName": props.EndpointConfigName,
			"EndpointName":       props.EndpointName,
		},
		statements: func(IntegrationPattern) []iam.Statement {
			return []iam.Statement{
				iam.Allow([]string{"sagemaker:UpdateEndpoint"},
					scope.serviceArn("sagemaker", "endpoint", sageMakerResourceName(props.EndpointName, false), iam.ArnSlash),
					scope.serviceArn("sagemaker", "endpoint-config", sageMakerResourceName(props.EndpointConfigName, false), iam.ArnSlash)),
			}
		},
	}, p)
	if err != nil {
		return nil, err
	}
	return &SageMakerUpdateEndpoint{t}, nil
}

// sageMakerResourceName is the ARN resource name for a SageMaker entity. Path references
// widen to "*"; job ARNs match any suffix.
func sageMakerResourceName(name string, prefix bool) string {
	if IsJsonPathString(name) {
		return "*"
	}
	name = strings.ToLower(name)
	if prefix {
		return name + "*"
	}
	return name
}

func passRoleToSageMaker(roleArn string) iam.Statement {
	return iam.Allow([]string{"iam:PassRole"}, roleArn).
		WithCondition("StringEquals", "iam:PassedToService", "sagemaker.amazonaws.com")
}

func validateS3Uri(p *problems, field, uri string) {
	if uri == "" || IsJsonPathString(uri) {
		return
	}
	if !strings.HasPrefix(uri, "s3://") {
		p.invalid(field, "%s must be an s3:// URI or a path reference, got %q", field, uri)
	}
}

func validateEnvironment(p *problems, env map[string]string) {
	if len(env) > 48 {
		p.invalid("environment", "Environment variables cannot have more than 48 entries, got %d", len(env))
	}
	for k, v := range env {
		if len(k) > 512 || len(v) > 512 {
			p.invalid("environment", "Environment variable key and value must be at most 512 characters, got %q", k)
		}
	}
}

// nestedMap walks m through keys, creating missing levels.
func nestedMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	return m
}

func putTags(params map[string]any, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	out := make([]any, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		out = append(out, map[string]any{"Key": k, "Value": tags[k]})
	}
	params["Tags"] = out
}
