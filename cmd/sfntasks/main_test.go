package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/theory-cloud/sfntasks/pkg/callback"
	"github.com/theory-cloud/sfntasks/pkg/deploy"
	"github.com/theory-cloud/sfntasks/pkg/registry"
	"github.com/theory-cloud/sfntasks/testkit"
)

const (
	helloFile = "testdata/hello.yaml"
	helloArn  = "arn:aws:states:us-east-1:123456789012:stateMachine:hello"
)

// fakeDeployAPI keeps state machines in memory.
type fakeDeployAPI struct {
	definitions map[string]string
	created     []*sfn.CreateStateMachineInput
	started     []*sfn.StartExecutionInput
}

func newFakeDeployAPI() *fakeDeployAPI {
	return &fakeDeployAPI{definitions: map[string]string{}}
}

func (f *fakeDeployAPI) ValidateStateMachineDefinition(_ context.Context, in *sfn.ValidateStateMachineDefinitionInput, _ ...func(*sfn.Options)) (*sfn.ValidateStateMachineDefinitionOutput, error) {
	if strings.Contains(aws.ToString(in.Definition), "Greet") {
		return &sfn.ValidateStateMachineDefinitionOutput{Result: types.ValidateStateMachineDefinitionResultCodeOk}, nil
	}
	return &sfn.ValidateStateMachineDefinitionOutput{
		Result: types.ValidateStateMachineDefinitionResultCodeFail,
		Diagnostics: []types.ValidateStateMachineDefinitionDiagnostic{{
			Severity: types.ValidateStateMachineDefinitionSeverityError,
			Code:     aws.String("SCHEMA_VALIDATION_FAILED"),
			Message:  aws.String("bad"),
			Location: aws.String("/States"),
		}},
	}, nil
}

func (f *fakeDeployAPI) ListStateMachines(context.Context, *sfn.ListStateMachinesInput, ...func(*sfn.Options)) (*sfn.ListStateMachinesOutput, error) {
	out := &sfn.ListStateMachinesOutput{}
	for arn := range f.definitions {
		name := arn[strings.LastIndex(arn, ":")+1:]
		out.StateMachines = append(out.StateMachines, types.StateMachineListItem{Name: aws.String(name), StateMachineArn: aws.String(arn)})
	}
	return out, nil
}

func (f *fakeDeployAPI) CreateStateMachine(_ context.Context, in *sfn.CreateStateMachineInput, _ ...func(*sfn.Options)) (*sfn.CreateStateMachineOutput, error) {
	f.created = append(f.created, in)
	arn := "arn:aws:states:us-east-1:123456789012:stateMachine:" + aws.ToString(in.Name)
	f.definitions[arn] = aws.ToString(in.Definition)
	return &sfn.CreateStateMachineOutput{StateMachineArn: aws.String(arn)}, nil
}

func (f *fakeDeployAPI) UpdateStateMachine(_ context.Context, in *sfn.UpdateStateMachineInput, _ ...func(*sfn.Options)) (*sfn.UpdateStateMachineOutput, error) {
	f.definitions[aws.ToString(in.StateMachineArn)] = aws.ToString(in.Definition)
	return &sfn.UpdateStateMachineOutput{}, nil
}

func (f *fakeDeployAPI) DescribeStateMachine(_ context.Context, in *sfn.DescribeStateMachineInput, _ ...func(*sfn.Options)) (*sfn.DescribeStateMachineOutput, error) {
	arn := aws.ToString(in.StateMachineArn)
	return &sfn.DescribeStateMachineOutput{StateMachineArn: in.StateMachineArn, Definition: aws.String(f.definitions[arn])}, nil
}

func (f *fakeDeployAPI) StartExecution(_ context.Context, in *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	f.started = append(f.started, in)
	return &sfn.StartExecutionOutput{ExecutionArn: aws.String("arn:aws:states:us-east-1:123456789012:execution:hello:" + aws.ToString(in.Name))}, nil
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args []string, decorators ...any) result {
	t.Helper()
	t.Setenv(configEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"sfntasks"}, args...), &stdout, &stderr, decorators...)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRender(t *testing.T) {
	res := runCLI(t, []string{"render", helloFile})
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "Greet", gjson.Get(res.stdout, "StartAt").String())
	require.Equal(t, "arn:aws:states:::lambda:invoke", gjson.Get(res.stdout, "States.Greet.Resource").String())
	require.Equal(t, "$.name", gjson.Get(res.stdout, `States.Greet.Parameters.Payload.name\.$`).String())
	require.Equal(t, "Succeed", gjson.Get(res.stdout, "States.Done.Type").String())
}

func TestRender_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.asl.json")
	res := runCLI(t, []string{"render", "-o", path, helloFile})
	require.Equal(t, 0, res.code, res.stderr)
	require.Empty(t, res.stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(data))
}

func TestRender_Errors(t *testing.T) {
	res := runCLI(t, []string{"render"})
	require.Equal(t, 2, res.code)
	require.Contains(t, res.stderr, "a workflow file is required")

	res = runCLI(t, []string{"render", "testdata/nope.yaml"})
	require.Equal(t, 2, res.code)
	require.Contains(t, res.stderr, "sfntasks: FAIL:")
}

func TestPolicy(t *testing.T) {
	res := runCLI(t, []string{"policy", helloFile})
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "2012-10-17", gjson.Get(res.stdout, "Version").String())
	require.Contains(t, res.stdout, "lambda:InvokeFunction")
	require.Contains(t, res.stdout, "arn:aws:lambda:us-east-1:123456789012:function:greet")
}

func TestCheck(t *testing.T) {
	res := runCLI(t, []string{"check", helloFile})
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "ok: 2 states, 1 tasks\n", res.stdout)
}

func TestCheck_Violations(t *testing.T) {
	module := filepath.Join(t.TempDir(), "strict.rego")
	require.NoError(t, os.WriteFile(module, []byte(`package sfntasks.iam

import rego.v1

default allow := false

allow if count(violations) == 0

violations contains "lambda is not allowed" if {
	some stmt in input.statements
	"lambda:InvokeFunction" in stmt.actions
}

warnings := set()
`), 0o600))

	res := runCLI(t, []string{"check", "--rego", module, helloFile})
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stdout, "violation: lambda is not allowed")
	require.Contains(t, res.stderr, "1 policy violation(s)")
}

func TestValidate(t *testing.T) {
	api := newFakeDeployAPI()
	res := runCLI(t, []string{"validate", helloFile}, func() deploy.API { return api })
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "ok\n", res.stdout)
}

func TestDeploy_CreatesAndRecords(t *testing.T) {
	api := newFakeDeployAPI()
	store := registry.NewMemoryStore()

	res := runCLI(t, []string{"deploy", helloFile},
		func() deploy.API { return api },
		func() registry.Store { return store },
	)
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "created "+helloArn)
	require.Contains(t, res.stdout, "recorded hello@")

	require.Len(t, api.created, 1)
	require.Equal(t, "arn:aws:iam::123456789012:role/hello-sfn", aws.ToString(api.created[0].RoleArn))
	require.Equal(t, types.StateMachineTypeStandard, api.created[0].Type)

	rec, err := store.Latest(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, helloArn, rec.StateMachineArn)
	require.Equal(t, "Say hello", rec.Comment)
	require.Equal(t, []string{"@aws-cdk/aws-stepfunctions-tasks.LambdaInvoke"}, rec.Tasks)
	require.Contains(t, string(rec.Policy), "lambda:InvokeFunction")

	// Second deploy updates in place.
	res = runCLI(t, []string{"deploy", "--name", "hello", helloFile},
		func() deploy.API { return api },
		func() registry.Store { return store },
	)
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "updated "+helloArn)
	require.Len(t, api.created, 1)
}

func TestDiff(t *testing.T) {
	api := newFakeDeployAPI()
	decorate := func() deploy.API { return api }

	res := runCLI(t, []string{"render", helloFile})
	require.Equal(t, 0, res.code, res.stderr)
	api.definitions[helloArn] = res.stdout

	res = runCLI(t, []string{"diff", helloFile}, decorate)
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "no changes\n", res.stdout)

	api.definitions[helloArn] = `{"StartAt":"Done","States":{"Done":{"Type":"Succeed"}}}`
	res = runCLI(t, []string{"diff", "--arn", helloArn, helloFile}, decorate)
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stdout, "Greet")
}

func TestStart(t *testing.T) {
	api := newFakeDeployAPI()
	api.definitions[helloArn] = "{}"

	res := runCLI(t, []string{"start", "--name", "hello", "--input", `{"name":"world"}`, "--execution-name", "run-1"},
		func() deploy.API { return api })
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "arn:aws:states:us-east-1:123456789012:execution:hello:run-1\n", res.stdout)
	require.Len(t, api.started, 1)
	require.Equal(t, helloArn, aws.ToString(api.started[0].StateMachineArn))
	require.JSONEq(t, `{"name":"world"}`, aws.ToString(api.started[0].Input))

	res = runCLI(t, []string{"start"}, func() deploy.API { return api })
	require.Equal(t, 2, res.code)
	require.Contains(t, res.stderr, errNoTarget.Error())
}

func TestComplete(t *testing.T) {
	fake := testkit.NewFakeSFNClient()
	decorate := func() callback.API { return fake }

	res := runCLI(t, []string{"complete", "--token", "tok-1", "--output", `{"ok":true}`}, decorate)
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, []string{"complete", "--token", "tok-2", "--error", "Order.Rejected", "--cause", "out of stock"}, decorate)
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, []string{"complete", "--token", "tok-3", "--heartbeat"}, decorate)
	require.Equal(t, 0, res.code, res.stderr)

	success := fake.Completions("success")
	require.Len(t, success, 1)
	require.JSONEq(t, `{"ok":true}`, success[0].Output)

	failure := fake.Completions("failure")
	require.Len(t, failure, 1)
	require.Equal(t, "Order.Rejected", failure[0].Error)
	require.Equal(t, "out of stock", failure[0].Cause)

	require.Len(t, fake.Completions("heartbeat"), 1)

	res = runCLI(t, []string{"complete"}, decorate)
	require.Equal(t, 2, res.code)
}

func TestSettings_EnvAndConfigFile(t *testing.T) {
	config := filepath.Join(t.TempDir(), "sfntasks.yaml")
	require.NoError(t, os.WriteFile(config, []byte("region: eu-west-1\nlog-level: debug\n"), 0o600))
	t.Setenv(configEnv, config)
	t.Setenv("SFNTASKS_PROFILE", "ops")

	var got Settings
	cmd := &cli.Command{
		Name:  "sfntasks",
		Flags: globalFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			got = settingsFrom(cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), []string{"sfntasks", "--endpoint", "http://localhost:8083"}))

	require.Equal(t, Settings{
		Region:    "eu-west-1",
		Profile:   "ops",
		Endpoint:  "http://localhost:8083",
		LogLevel:  "debug",
		LogFormat: "console",
	}, got)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	require.Empty(t, firstNonEmpty())
}
