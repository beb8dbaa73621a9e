package sfntasks

import (
	"fmt"
	"strings"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

type EncryptionOption string

const (
	EncryptionOptionS3Managed     EncryptionOption = "SSE_S3"
	EncryptionOptionKMS           EncryptionOption = "SSE_KMS"
	EncryptionOptionClientSideKMS EncryptionOption = "CSE_KMS"
)

const (
	defaultAthenaWorkGroup = "primary"
	defaultAthenaCatalog   = "AwsDataCatalog"
)

func (o EncryptionOption) Valid() bool {
	switch o {
	case EncryptionOptionS3Managed, EncryptionOptionKMS, EncryptionOptionClientSideKMS:
		return true
	default:
		return false
	}
}

// S3Location is a bucket and key prefix.
type S3Location struct {
	BucketName string `field:"required" json:"bucketName" yaml:"bucketName"`
	ObjectKey  string `field:"optional" json:"objectKey,omitempty" yaml:"objectKey,omitempty"`
}

func (l S3Location) uri() string {
	if l.ObjectKey == "" {
		return fmt.Sprintf("s3://%s/", l.BucketName)
	}
	return fmt.Sprintf("s3://%s/%s", l.BucketName, strings.TrimPrefix(l.ObjectKey, "/"))
}

type EncryptionConfiguration struct {
	EncryptionOption EncryptionOption `field:"required" json:"encryptionOption" yaml:"encryptionOption"`
	// KMS key ARN, required for SSE_KMS and CSE_KMS.
	EncryptionKey string `field:"optional" json:"encryptionKey,omitempty" yaml:"encryptionKey,omitempty"`
}

type QueryExecutionContext struct {
	CatalogName  string `field:"optional" json:"catalogName,omitempty" yaml:"catalogName,omitempty"`
	DatabaseName string `field:"optional" json:"databaseName,omitempty" yaml:"databaseName,omitempty"`
}

type ResultConfiguration struct {
	EncryptionConfiguration *EncryptionConfiguration `field:"optional" json:"encryptionConfiguration,omitempty" yaml:"encryptionConfiguration,omitempty"`
	OutputLocation          *S3Location              `field:"optional" json:"outputLocation,omitempty" yaml:"outputLocation,omitempty"`
}

// AthenaStartQueryExecutionProps configures AthenaStartQueryExecution.
type AthenaStartQueryExecutionProps struct {
	TaskProps `yaml:",inline"`

	QueryString           string                 `field:"required" json:"queryString" yaml:"queryString"`
	ClientRequestToken    string                 `field:"optional" json:"clientRequestToken,omitempty" yaml:"clientRequestToken,omitempty"`
	QueryExecutionContext *QueryExecutionContext `field:"optional" json:"queryExecutionContext,omitempty" yaml:"queryExecutionContext,omitempty"`
	ResultConfiguration   *ResultConfiguration   `field:"optional" json:"resultConfiguration,omitempty" yaml:"resultConfiguration,omitempty"`
	WorkGroup             string                 `field:"optional" json:"workGroup,omitempty" yaml:"workGroup,omitempty"`
}

// AthenaStartQueryExecution runs an Athena query.
type AthenaStartQueryExecution struct {
	*TaskState
	props AthenaStartQueryExecutionProps
}

func NewAthenaStartQueryExecution(scope *Stack, id string, props *AthenaStartQueryExecutionProps) (*AthenaStartQueryExecution, error) {
	p := newProblems("AthenaStartQueryExecution")
	if props == nil {
		p.required("queryString")
		return nil, p.err()
	}
	p.requireString("queryString", props.QueryString)
	if n := len(props.ClientRequestToken); n > 0 && (n < 32 || n > 128) {
		p.invalid("clientRequestToken", "clientRequestToken must be between 32 and 128 characters, got %d", n)
	}
	if rc := props.ResultConfiguration; rc != nil {
		if enc := rc.EncryptionConfiguration; enc != nil {
			p.enum("resultConfiguration.encryptionConfiguration.encryptionOption", enc.EncryptionOption, "SSE_S3, SSE_KMS, CSE_KMS")
			if enc.EncryptionOption != EncryptionOptionS3Managed && enc.EncryptionKey == "" {
				p.required("resultConfiguration.encryptionConfiguration.encryptionKey")
			}
		}
		if rc.OutputLocation != nil {
			p.requireString("resultConfiguration.outputLocation.bucketName", rc.OutputLocation.BucketName)
		}
	}

	a := &AthenaStartQueryExecution{props: *props}
	task, err := newTaskState(scope, id, "AthenaStartQueryExecution", props.TaskProps, patternsRunJob, a, p)
	if err != nil {
		return nil, err
	}
	a.TaskState = task
	return a, nil
}

func (a *AthenaStartQueryExecution) resourceArn() string {
	return integrationResourceArn(a.scope, "athena", "startQueryExecution", a.props.pattern())
}

func (a *AthenaStartQueryExecution) parameters() map[string]any {
	params := map[string]any{"QueryString": a.props.QueryString}
	putIf(params, "ClientRequestToken", a.props.ClientRequestToken)
	if qc := a.props.QueryExecutionContext; qc != nil {
		ctx := map[string]any{}
		putIf(ctx, "Catalog", qc.CatalogName)
		putIf(ctx, "Database", qc.DatabaseName)
		params["QueryExecutionContext"] = ctx
	}
	if rc := a.props.ResultConfiguration; rc != nil {
		out := map[string]any{}
		if enc := rc.EncryptionConfiguration; enc != nil {
			e := map[string]any{"EncryptionOption": string(enc.EncryptionOption)}
			putIf(e, "KmsKey", enc.EncryptionKey)
			out["EncryptionConfiguration"] = e
		}
		if rc.OutputLocation != nil {
			out["OutputLocation"] = rc.OutputLocation.uri()
		}
		params["ResultConfiguration"] = out
	}
	putIf(params, "WorkGroup", a.props.WorkGroup)
	return params
}

func (a *AthenaStartQueryExecution) policyStatements() []iam.Statement {
	workGroup := a.props.WorkGroup
	if workGroup == "" {
		workGroup = defaultAthenaWorkGroup
	}
	catalog := defaultAthenaCatalog
	database := "*"
	if qc := a.props.QueryExecutionContext; qc != nil {
		if qc.CatalogName != "" {
			catalog = qc.CatalogName
		}
		if qc.DatabaseName != "" {
			database = qc.DatabaseName
		}
	}

	athenaActions := []string{"athena:getDataCatalog", "athena:startQueryExecution", "athena:getQueryExecution"}
	if a.props.pattern() == IntegrationPatternRunJob {
		athenaActions = append(athenaActions, "athena:stopQueryExecution")
	}
	statements := []iam.Statement{
		iam.Allow(athenaActions,
			a.scope.serviceArn("athena", "workgroup", workGroup, iam.ArnSlash),
			a.scope.serviceArn("athena", "datacatalog", catalog, iam.ArnSlash),
		),
	}

	s3Actions := []string{
		"s3:AbortMultipartUpload", "s3:ListBucketMultipartUploads", "s3:ListMultipartUploadParts",
		"s3:PutObject", "s3:GetObject", "s3:ListBucket", "s3:GetBucketLocation", "s3:CreateBucket",
	}
	if rc := a.props.ResultConfiguration; rc != nil && rc.OutputLocation != nil {
		bucket := fmt.Sprintf("arn:%s:s3:::%s", a.scope.Partition(), rc.OutputLocation.BucketName)
		objects := bucket + "/" + strings.TrimPrefix(rc.OutputLocation.ObjectKey, "/") + "*"
		statements = append(statements, iam.Allow(s3Actions, bucket, objects))
	} else {
		statements = append(statements, iam.Allow(s3Actions, "*"))
	}
	if enc := a.props.resultEncryption(); enc != nil && enc.EncryptionKey != "" {
		statements = append(statements, iam.Allow([]string{"kms:Decrypt", "kms:GenerateDataKey*"}, enc.EncryptionKey))
	}

	statements = append(statements,
		iam.Allow([]string{"lakeformation:GetDataAccess"}, "*"),
		iam.Allow([]string{
			"glue:BatchCreatePartition", "glue:BatchDeletePartition", "glue:BatchDeleteTable",
			"glue:BatchGetPartition", "glue:CreateDatabase", "glue:CreatePartition", "glue:CreateTable",
			"glue:DeleteDatabase", "glue:DeletePartition", "glue:DeleteTable", "glue:GetDatabase",
			"glue:GetDatabases", "glue:GetPartition", "glue:GetPartitions", "glue:GetTable",
			"glue:GetTables", "glue:UpdateDatabase", "glue:UpdatePartition", "glue:UpdateTable",
		},
			a.scope.serviceArn("glue", "catalog", "", iam.ArnNoName),
			a.scope.serviceArn("glue", "database", database, iam.ArnSlash),
			a.scope.serviceArn("glue", "table", database+"/*", iam.ArnSlash),
			a.scope.serviceArn("glue", "userDefinedFunction", database+"/*", iam.ArnSlash),
		),
	)
	return statements
}

func (p AthenaStartQueryExecutionProps) resultEncryption() *EncryptionConfiguration {
	if p.ResultConfiguration == nil {
		return nil
	}
	return p.ResultConfiguration.EncryptionConfiguration
}

// AthenaQueryExecutionProps configures the tasks that act on an existing query execution.
type AthenaQueryExecutionProps struct {
	TaskProps `yaml:",inline"`

	QueryExecutionId string `field:"required" json:"queryExecutionId" yaml:"queryExecutionId"`
}

type athenaQueryTask struct {
	*TaskState
	api     string
	actions []string
	params  map[string]any
}

func (a *athenaQueryTask) resourceArn() string {
	return integrationResourceArn(a.scope, "athena", a.api, IntegrationPatternRequestResponse)
}

func (a *athenaQueryTask) parameters() map[string]any { return a.params }

func (a *athenaQueryTask) policyStatements() []iam.Statement {
	return []iam.Statement{iam.Allow(a.actions, "*")}
}

func newAthenaQueryTask(scope *Stack, id, typeName, api string, actions []string, props AthenaQueryExecutionProps, p *problems, extra func(map[string]any)) (*athenaQueryTask, error) {
	p.requireString("queryExecutionId", props.QueryExecutionId)
	a := &athenaQueryTask{
		api:     api,
		actions: actions,
		params:  map[string]any{"QueryExecutionId": props.QueryExecutionId},
	}
	if extra != nil {
		extra(a.params)
	}
	task, err := newTaskState(scope, id, typeName, props.TaskProps, patternsRequestResponse, a, p)
	if err != nil {
		return nil, err
	}
	a.TaskState = task
	return a, nil
}

// AthenaGetQueryExecution reads the status of a query execution.
type AthenaGetQueryExecution struct{ *athenaQueryTask }

func NewAthenaGetQueryExecution(scope *Stack, id string, props *AthenaQueryExecutionProps) (*AthenaGetQueryExecution, error) {
	p := newProblems("AthenaGetQueryExecution")
	if props == nil {
		p.required("queryExecutionId")
		return nil, p.err()
	}
	t, err := newAthenaQueryTask(scope, id, "AthenaGetQueryExecution", "getQueryExecution", []string{"athena:getQueryExecution"}, *props, p, nil)
	if err != nil {
		return nil, err
	}
	return &AthenaGetQueryExecution{t}, nil
}

// AthenaStopQueryExecution cancels a running query.
type AthenaStopQueryExecution struct{ *athenaQueryTask }

func NewAthenaStopQueryExecution(scope *Stack, id string, props *AthenaQueryExecutionProps) (*AthenaStopQueryExecution, error) {
	p := newProblems("AthenaStopQueryExecution")
	if props == nil {
		p.required("queryExecutionId")
		return nil, p.err()
	}
	t, err := newAthenaQueryTask(scope, id, "AthenaStopQueryExecution", "stopQueryExecution", []string{"athena:stopQueryExecution"}, *props, p, nil)
	if err != nil {
		return nil, err
	}
	return &AthenaStopQueryExecution{t}, nil
}

// AthenaGetQueryResultsProps configures AthenaGetQueryResults.
type AthenaGetQueryResultsProps struct {
	AthenaQueryExecutionProps `yaml:",inline"`

	// Between 1 and 1000.
	MaxResults *int   `field:"optional" json:"maxResults,omitempty" yaml:"maxResults,omitempty"`
	NextToken  string `field:"optional" json:"nextToken,omitempty" yaml:"nextToken,omitempty"`
}

// AthenaGetQueryResults pages through the results of a finished query.
type AthenaGetQueryResults struct{ *athenaQueryTask }

func NewAthenaGetQueryResults(scope *Stack, id string, props *AthenaGetQueryResultsProps) (*AthenaGetQueryResults, error) {
	p := newProblems("AthenaGetQueryResults")
	if props == nil {
		p.required("queryExecutionId")
		return nil, p.err()
	}
	p.intRange("maxResults", props.MaxResults, 1, 1000)
	t, err := newAthenaQueryTask(scope, id, "AthenaGetQueryResults", "getQueryResults",
		[]string{"athena:getQueryResults", "s3:GetObject"}, props.AthenaQueryExecutionProps, p,
		func(params map[string]any) {
			putInt(params, "MaxResults", props.MaxResults)
			putIf(params, "NextToken", props.NextToken)
		})
	if err != nil {
		return nil, err
	}
	return &AthenaGetQueryResults{t}, nil
}
