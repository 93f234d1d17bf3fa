// Package cli provides the command-line interface for testbridge-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to testbridge.yaml (default: look in the working directory)",
		EnvVars: []string{"TESTBRIDGE_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output directory for reports and artifacts",
		EnvVars: []string{"TESTBRIDGE_OUTPUT"},
	},
	&cli.StringFlag{
		Name:    "session-url",
		Usage:   "Device automation server URL for the session backend",
		EnvVars: []string{"TESTBRIDGE_SESSION_URL"},
	},
	&cli.StringFlag{
		Name:    "runner-binary",
		Usage:   "Declarative flow runner executable",
		EnvVars: []string{"TESTBRIDGE_RUNNER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
		EnvVars: []string{"TESTBRIDGE_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Mirror logs into a file",
		EnvVars: []string{"TESTBRIDGE_LOG_FILE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "testbridge-runner",
		Usage:   "Cross-backend UI test flow runner",
		Version: Version,
		Description: `testbridge-runner executes strategy files across three automation
backends: a stateful device session, an external declarative flow
runner, and an in-process browser.

Examples:
  testbridge-runner run strategy.yaml
  testbridge-runner run strategy.yaml --dry-run
  testbridge-runner health`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			healthCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
