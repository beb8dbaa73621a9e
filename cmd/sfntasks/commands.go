package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/dig"

	"github.com/theory-cloud/sfntasks/pkg/callback"
	"github.com/theory-cloud/sfntasks/pkg/deploy"
	"github.com/theory-cloud/sfntasks/pkg/observability"
	"github.com/theory-cloud/sfntasks/pkg/policyguard"
	"github.com/theory-cloud/sfntasks/pkg/registry"
)

func (a *app) renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "print the Amazon States Language definition of a workflow file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			body, err := wf.def.Render()
			if err != nil {
				return err
			}
			body = append(body, '\n')
			if path := cmd.String("output"); path != "" {
				return os.WriteFile(path, body, 0o644)
			}
			_, err = a.stdout.Write(body)
			return err
		},
	}
}

func (a *app) policyCommand() *cli.Command {
	return &cli.Command{
		Name:      "policy",
		Usage:     "print the IAM policy the state machine role needs",
		ArgsUsage: "FILE",
		Action: func(_ context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			raw, err := wf.def.Policy().JSON()
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = a.stdout.Write(out.Bytes())
			return err
		},
	}
}

func (a *app) checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "validate a workflow file locally and run the IAM policy guard",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rego", Usage: "Rego module replacing the built-in policy rules"},
			&cli.StringSliceFlag{Name: "exempt", Usage: "service wildcard actions to allow, for example logs:*"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			return a.with(ctx, cmd, func(c *dig.Container, l observability.StructuredLogger) error {
				guard, err := get[*policyguard.Guard](c)
				if err != nil {
					return err
				}
				result, err := guard.Evaluate(ctx, wf.def.Policy())
				if err != nil {
					return err
				}
				for _, w := range result.Warnings {
					a.printf("warning: %s\n", w)
				}
				for _, v := range result.Violations {
					a.printf("violation: %s\n", v)
				}
				if !result.Allowed {
					l.Warn("policy.denied", map[string]any{"violations": len(result.Violations)})
					return cli.Exit(fmt.Sprintf("%d policy violation(s)", len(result.Violations)), 1)
				}
				a.printf("ok: %d states, %d tasks\n", len(wf.def.StateNames()), len(wf.def.Tasks()))
				return nil
			})
		},
	}
}

func (a *app) validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate a workflow file with the Step Functions API",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			body, err := wf.def.Render()
			if err != nil {
				return err
			}
			return a.with(ctx, cmd, func(c *dig.Container, _ observability.StructuredLogger) error {
				d, err := get[*deploy.Deployer](c)
				if err != nil {
					return err
				}
				result, err := d.Validate(ctx, body)
				if err != nil {
					return err
				}
				for _, diag := range result.Diagnostics {
					a.printf("%s %s %s: %s\n", diag.Severity, diag.Code, diag.Location, diag.Message)
				}
				if result.Truncated {
					a.printf("(diagnostics truncated)\n")
				}
				if !result.OK {
					return cli.Exit("definition is not valid", 1)
				}
				a.printf("ok\n")
				return nil
			})
		},
	}
}

func (a *app) deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "create or update the state machine of a workflow file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "state machine name (overrides stateMachine.name)"},
			&cli.StringFlag{Name: "role-arn", Usage: "execution role (overrides stateMachine.roleArn)"},
			&cli.StringFlag{Name: "type", Usage: "STANDARD or EXPRESS (overrides stateMachine.type)"},
			&cli.BoolFlag{Name: "publish", Usage: "publish a version"},
			&cli.StringFlag{Name: "version-description", Usage: "description of the published version"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			body, err := wf.def.Render()
			if err != nil {
				return err
			}
			settings := wf.doc.Deploy
			in := deploy.StateMachineInput{
				Name:               firstNonEmpty(cmd.String("name"), settings.Name),
				Definition:         body,
				RoleArn:            firstNonEmpty(cmd.String("role-arn"), settings.RoleArn),
				Type:               firstNonEmpty(cmd.String("type"), settings.Type),
				Tags:               settings.Tags,
				Tracing:            settings.Tracing,
				Publish:            cmd.Bool("publish"),
				VersionDescription: cmd.String("version-description"),
			}
			return a.with(ctx, cmd, func(c *dig.Container, l observability.StructuredLogger) error {
				d, err := get[*deploy.Deployer](c)
				if err != nil {
					return err
				}
				store, err := get[registry.Store](c)
				if err != nil {
					return err
				}
				result, err := d.Upsert(ctx, in)
				if err != nil {
					return err
				}
				verb := "updated"
				if result.Created {
					verb = "created"
				}
				a.printf("%s %s\n", verb, result.StateMachineArn)
				if result.VersionArn != "" {
					a.printf("version %s\n", result.VersionArn)
				}
				if store == nil {
					return nil
				}
				version, err := record(ctx, store, wf, in, result)
				if err != nil {
					return err
				}
				l.WithStateMachine(in.Name).Info("registry.recorded", map[string]any{"version": version})
				a.printf("recorded %s@%s\n", in.Name, version)
				return nil
			})
		},
	}
}

func record(ctx context.Context, store registry.Store, wf *workflow, in deploy.StateMachineInput, result *deploy.UpsertResult) (string, error) {
	policy, err := wf.def.Policy().JSON()
	if err != nil {
		return "", err
	}
	var tasks []string
	for _, task := range wf.def.Tasks() {
		tasks = append(tasks, task.TypeName())
	}
	return store.Put(ctx, &registry.Record{
		Name:            in.Name,
		Definition:      in.Definition,
		Policy:          policy,
		StateMachineArn: result.StateMachineArn,
		Comment:         wf.doc.Comment,
		Tasks:           tasks,
		Tags:            in.Tags,
	})
}

func (a *app) diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "compare a workflow file with the deployed definition",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "arn", Usage: "state machine ARN (default: look up stateMachine.name)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wf, err := loadWorkflow(cmd)
			if err != nil {
				return err
			}
			body, err := wf.def.Render()
			if err != nil {
				return err
			}
			return a.with(ctx, cmd, func(c *dig.Container, _ observability.StructuredLogger) error {
				d, err := get[*deploy.Deployer](c)
				if err != nil {
					return err
				}
				arn, err := resolveArn(ctx, d, cmd.String("arn"), wf.doc.Deploy.Name)
				if err != nil {
					return err
				}
				diff, err := d.Diff(ctx, arn, body)
				if err != nil {
					return err
				}
				if diff == "" {
					a.printf("no changes\n")
					return nil
				}
				a.printf("%s", diff)
				return cli.Exit("", 1)
			})
		},
	}
}

func (a *app) startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "start an execution",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "arn", Usage: "state machine ARN"},
			&cli.StringFlag{Name: "name", Usage: "state machine name, looked up when --arn is not set"},
			&cli.StringFlag{Name: "input", Usage: "execution input as JSON, or @file"},
			&cli.StringFlag{Name: "execution-name", Usage: "execution name (default: generated)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input, err := readJSON(cmd, "input")
			if err != nil {
				return err
			}
			return a.with(ctx, cmd, func(c *dig.Container, _ observability.StructuredLogger) error {
				d, err := get[*deploy.Deployer](c)
				if err != nil {
					return err
				}
				arn, err := resolveArn(ctx, d, cmd.String("arn"), cmd.String("name"))
				if err != nil {
					return err
				}
				exec, err := d.StartExecution(ctx, arn, input, cmd.String("execution-name"))
				if err != nil {
					return err
				}
				a.printf("%s\n", exec.Arn)
				return nil
			})
		},
	}
}

func (a *app) completeCommand() *cli.Command {
	return &cli.Command{
		Name:  "complete",
		Usage: "report the result of a callback task",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Usage: "task token", Required: true, Sources: cli.EnvVars(envPrefix + "TASK_TOKEN")},
			&cli.StringFlag{Name: "output", Usage: "task output as JSON, or @file"},
			&cli.StringFlag{Name: "error", Usage: "fail the task with this error code"},
			&cli.StringFlag{Name: "cause", Usage: "failure cause"},
			&cli.BoolFlag{Name: "heartbeat", Usage: "only send a heartbeat"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			output, err := readJSON(cmd, "output")
			if err != nil {
				return err
			}
			token := cmd.String("token")
			return a.with(ctx, cmd, func(c *dig.Container, _ observability.StructuredLogger) error {
				completer, err := get[*callback.Completer](c)
				if err != nil {
					return err
				}
				switch {
				case cmd.Bool("heartbeat"):
					err = completer.Heartbeat(ctx, token)
				case cmd.String("error") != "" || cmd.String("cause") != "":
					err = completer.Fail(ctx, token, cmd.String("error"), cmd.String("cause"))
				default:
					var out any
					if output != nil {
						out = json.RawMessage(output)
					}
					err = completer.Succeed(ctx, token, out)
				}
				return err
			})
		},
	}
}

func resolveArn(ctx context.Context, d *deploy.Deployer, arn, name string) (string, error) {
	if arn = strings.TrimSpace(arn); arn != "" {
		return arn, nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return "", errNoTarget
	}
	return d.FindByName(ctx, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
