package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/dig"

	"github.com/theory-cloud/sfntasks"
	"github.com/theory-cloud/sfntasks/pkg/observability"
	"github.com/theory-cloud/sfntasks/pkg/statemachine"
	"github.com/theory-cloud/sfntasks/pkg/workflowfile"
)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	decorators []any
}

func newApp(stdout, stderr io.Writer, decorators ...any) *cli.Command {
	a := &app{stdout: stdout, stderr: stderr, decorators: decorators}
	return &cli.Command{
		Name:      "sfntasks",
		Usage:     "build and operate Step Functions workflows",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		// Exit codes are handled by run.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			a.renderCommand(),
			a.policyCommand(),
			a.checkCommand(),
			a.validateCommand(),
			a.deployCommand(),
			a.diffCommand(),
			a.startCommand(),
			a.completeCommand(),
		},
	}
}

// with builds a container for cmd, runs fn and flushes the logger.
func (a *app) with(ctx context.Context, cmd *cli.Command, fn func(*dig.Container, observability.StructuredLogger) error) error {
	gs := GuardSettings{
		ModulePath: cmd.String("rego"),
		Exempt:     cmd.StringSlice("exempt"),
	}
	container, err := newContainer(ctx, settingsFrom(cmd), gs, LogOutput{Writer: a.stderr}, a.decorators...)
	if err != nil {
		return err
	}
	l, err := get[observability.StructuredLogger](container)
	if err != nil {
		return err
	}
	defer func() {
		_ = l.Flush(ctx)
		_ = l.Close()
	}()
	return fn(container, l)
}

// workflow is a parsed workflow file and its built definition.
type workflow struct {
	doc *workflowfile.Document
	def *statemachine.Definition
}

func loadWorkflow(cmd *cli.Command) (*workflow, error) {
	path := strings.TrimSpace(cmd.Args().First())
	if path == "" {
		return nil, cli.Exit("a workflow file is required", 2)
	}
	doc, err := workflowfile.Load(path)
	if err != nil {
		return nil, err
	}
	env := doc.Environment
	if env.Region == "" {
		env.Region = cmd.String("region")
	}
	def, err := workflowfile.Build(doc, sfntasks.NewStack(env))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &workflow{doc: doc, def: def}, nil
}

// readJSON returns the value of a JSON flag. A leading @ names a file.
func readJSON(cmd *cli.Command, name string) ([]byte, error) {
	value := strings.TrimSpace(cmd.String(name))
	if value == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(value, "@"); ok {
		//nolint:gosec // Path is supplied by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		return data, nil
	}
	return []byte(value), nil
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

var errNoTarget = errors.New("--arn or a workflow file with stateMachine.name is required")
