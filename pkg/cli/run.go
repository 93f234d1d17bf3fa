package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/adapter/browser"
	"github.com/testbridge-dev/testbridge-runner/pkg/adapter/declarative"
	"github.com/testbridge-dev/testbridge-runner/pkg/adapter/mock"
	"github.com/testbridge-dev/testbridge-runner/pkg/adapter/session"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/executor"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
	"github.com/testbridge-dev/testbridge-runner/pkg/logger"
	"github.com/testbridge-dev/testbridge-runner/pkg/report"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Execute a strategy file across the configured backends",
	ArgsUsage: "<strategy.yaml>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Execute with in-memory mock backends (no devices needed)",
		},
		&cli.BoolFlag{
			Name:  "video",
			Usage: "Record browser flows as screencast frames",
		},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one strategy file, got %d arguments", c.NArg())
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("video") {
		cfg.VideoRecording = true
	}

	strat, err := flow.LoadStrategy(c.Args().First())
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	registry := buildRegistry(cfg, c.Bool("dry-run"))
	coordinator := executor.New(registry, cfg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite, err := coordinator.ExecuteStrategy(ctx, *strat)
	if err != nil {
		return err
	}

	reportPath, err := report.WriteJSON(suite, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printSummary(suite, reportPath)
	if !suite.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// setupLogging configures the global logger from the shared flags.
// The log file handle, when used, lives for the rest of the process.
func setupLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		_, err := logger.SetupWithFile(c.Bool("verbose"), path)
		return err
	}
	logger.Setup(c.Bool("verbose"))
	return nil
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if out := c.String("output"); out != "" {
		cfg.OutputDir = out
	}
	if url := c.String("session-url"); url != "" {
		cfg.SessionServerURL = url
	}
	if bin := c.String("runner-binary"); bin != "" {
		cfg.RunnerBinary = bin
	}
	return cfg, nil
}

// buildRegistry wires one adapter per engine. Dry runs substitute mocks
// for every backend.
func buildRegistry(cfg *config.Config, dryRun bool) *adapter.Registry {
	registry := adapter.NewRegistry()
	if dryRun {
		registry.Register(mock.New(mock.Config{Engine: flow.EngineSession}))
		registry.Register(mock.New(mock.Config{Engine: flow.EngineDeclarative}))
		registry.Register(mock.New(mock.Config{Engine: flow.EngineBrowser}))
		return registry
	}

	registry.Register(session.New(cfg.SessionServerURL))
	registry.Register(declarative.New(cfg.RunnerBinary))
	registry.Register(browser.New())
	return registry
}

// printSummary writes the human-readable run summary to stdout.
func printSummary(suite *core.TestSuiteResult, reportPath string) {
	s := suite.Summary
	fmt.Printf("\nRun %s\n", suite.RunID)
	fmt.Printf("  %d flows: %d passed, %d failed, %d errored, %d skipped (%.1fs)\n",
		s.Total, s.Passed, s.Failed, s.Errored, s.Skipped, s.Duration.Seconds())

	for _, r := range suite.Results {
		marker := "PASS"
		switch r.Status {
		case core.StatusFailed:
			marker = "FAIL"
		case core.StatusError:
			marker = "ERROR"
		case core.StatusSkipped:
			marker = "SKIP"
		}
		fmt.Printf("  [%s] %-30s %s (%.1fs)\n", marker, r.TestName, r.Engine, r.Duration.Seconds())
		if r.Error != "" {
			fmt.Printf("         %s\n", r.Error)
		}
	}

	cov := suite.Coverage
	fmt.Printf("  coverage: functional %.0f%%, visual %.0f%%, performance %.0f%%, accessibility %.0f%%\n",
		cov.Functional, cov.Visual, cov.Performance, cov.Accessibility)
	fmt.Printf("  report: %s\n", reportPath)
}
