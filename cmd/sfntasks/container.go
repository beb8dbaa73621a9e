package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/theory-cloud/tabletheory"
	"github.com/theory-cloud/tabletheory/pkg/session"
	"go.uber.org/dig"
	"go.uber.org/zap/zapcore"

	"github.com/theory-cloud/sfntasks/pkg/callback"
	"github.com/theory-cloud/sfntasks/pkg/deploy"
	"github.com/theory-cloud/sfntasks/pkg/logger"
	"github.com/theory-cloud/sfntasks/pkg/observability"
	obszap "github.com/theory-cloud/sfntasks/pkg/observability/zap"
	"github.com/theory-cloud/sfntasks/pkg/policyguard"
	"github.com/theory-cloud/sfntasks/pkg/registry"
)

// LogOutput is where the command logger writes.
type LogOutput struct{ io.Writer }

// GuardSettings configures the policy guard of the check command.
type GuardSettings struct {
	ModulePath string
	Exempt     []string
}

var core = []any{
	ProvideLogger,
	ProvideAWSConfig,
	ProvideSFNClient,
	ProvideDeployAPI,
	ProvideCallbackAPI,
	ProvideDeployer,
	ProvideCompleter,
	ProvideRegistry,
	ProvideGuard,
}

// newContainer registers the core providers. Decorators replace provided values, which is
// how tests swap AWS clients for fakes.
func newContainer(ctx context.Context, s Settings, gs GuardSettings, out LogOutput, decorators ...any) (*dig.Container, error) {
	container := dig.New()
	values := []any{
		func() context.Context { return ctx },
		func() Settings { return s },
		func() GuardSettings { return gs },
		func() LogOutput { return out },
	}
	for _, provider := range append(values, core...) {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}
	for _, decorator := range decorators {
		if err := container.Decorate(decorator); err != nil {
			return nil, err
		}
	}
	return container, nil
}

// get returns a value constructed by the container.
func get[T any](container *dig.Container) (want T, err error) {
	err = container.Invoke(func(got T) {
		want = got
	})
	return want, err
}

func ProvideLogger(ctx context.Context, s Settings, out LogOutput) (observability.StructuredLogger, error) {
	opts := []obszap.Option{
		obszap.WithEnvironmentErrorNotifications(ctx, obszap.DefaultEnvironmentErrorNotifications()),
	}
	if out.Writer != nil {
		opts = append(opts, obszap.WithOutput(zapcore.AddSync(out.Writer)))
	}
	l, err := obszap.NewZapLogger(observability.LoggerConfig{
		Level:  s.LogLevel,
		Format: s.LogFormat,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger.SetLogger(l)
	return l, nil
}

func awsOptions(s Settings) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, config.WithRegion(s.Region))
	}
	if s.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(s.Profile))
	}
	if s.Endpoint != "" {
		// Step Functions Local requires credentials even though they are not checked.
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	return opts
}

func ProvideAWSConfig(ctx context.Context, s Settings) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, awsOptions(s)...)
}

func ProvideSFNClient(cfg aws.Config, s Settings) *sfn.Client {
	return sfn.NewFromConfig(cfg, func(o *sfn.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	})
}

func ProvideDeployAPI(client *sfn.Client) deploy.API { return client }

func ProvideCallbackAPI(client *sfn.Client) callback.API { return client }

func ProvideDeployer(api deploy.API, l observability.StructuredLogger) *deploy.Deployer {
	return deploy.New(api, deploy.WithLogger(l))
}

func ProvideCompleter(api callback.API, l observability.StructuredLogger) *callback.Completer {
	return callback.NewCompleter(api, callback.WithCompleterLogger(l))
}

// ProvideRegistry returns nil when no registry table is configured.
func ProvideRegistry(cfg aws.Config, s Settings, l observability.StructuredLogger) (registry.Store, error) {
	if s.RegistryTable == "" {
		return nil, nil
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	db, err := tabletheory.NewBasic(session.Config{
		Region: region,
		AWSConfigOptions: append(awsOptions(s),
			config.WithRegion(region),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	store, err := registry.NewDynamoStore(db, registry.DynamoConfig{TableName: s.RegistryTable, Logger: l})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideGuard(ctx context.Context, gs GuardSettings) (*policyguard.Guard, error) {
	var opts []policyguard.Option
	if path := strings.TrimSpace(gs.ModulePath); path != "" {
		//nolint:gosec // Module path is supplied by the operator.
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy module: %w", err)
		}
		opts = append(opts, policyguard.WithModule(path, string(source)))
	}
	if len(gs.Exempt) > 0 {
		opts = append(opts, policyguard.WithExemptActions(gs.Exempt...))
	}
	return policyguard.New(ctx, opts...)
}
