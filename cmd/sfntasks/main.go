// Command sfntasks renders, checks and deploys Step Functions workflows described in YAML,
// and completes callback tasks from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, decorators ...any) int {
	app := newApp(stdout, stderr, decorators...)
	if err := app.Run(ctx, args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			if msg := exit.Error(); msg != "" {
				fmt.Fprintf(stderr, "sfntasks: %s\n", msg)
			}
			return exit.ExitCode()
		}
		fmt.Fprintf(stderr, "sfntasks: FAIL: %v\n", err)
		return 2
	}
	return 0
}
