package main

import (
	"os"
	"path/filepath"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

const (
	envPrefix  = "SFNTASKS_"
	configEnv  = envPrefix + "CONFIG"
	configFile = ".sfntasks.yaml"
)

// configPath is the YAML file flag values fall back to.
func configPath() string {
	if path := strings.TrimSpace(os.Getenv(configEnv)); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configFile
	}
	return filepath.Join(home, configFile)
}

// sources resolves a flag from SFNTASKS_<NAME>, then from key in the config file.
func sources(name string) cli.ValueSourceChain {
	env := envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return cli.NewValueSourceChain(
		cli.EnvVar(env),
		yaml.YAML(name, altsrc.StringSourcer(configPath())),
	)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region",
			Sources: sources("region"),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "shared config profile",
			Sources: sources("profile"),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Step Functions endpoint, for example Step Functions Local (uses static credentials)",
			Sources: sources("endpoint"),
		},
		&cli.StringFlag{
			Name:    "registry-table",
			Usage:   "DynamoDB table that records deployed definitions (disabled when empty)",
			Sources: sources("registry-table"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			Sources: sources("log-level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "console or json",
			Value:   "console",
			Sources: sources("log-format"),
		},
	}
}

// Settings are the resolved global flags.
type Settings struct {
	Region        string
	Profile       string
	Endpoint      string
	RegistryTable string
	LogLevel      string
	LogFormat     string
}

func settingsFrom(cmd *cli.Command) Settings {
	return Settings{
		Region:        cmd.String("region"),
		Profile:       cmd.String("profile"),
		Endpoint:      cmd.String("endpoint"),
		RegistryTable: cmd.String("registry-table"),
		LogLevel:      cmd.String("log-level"),
		LogFormat:     cmd.String("log-format"),
	}
}
