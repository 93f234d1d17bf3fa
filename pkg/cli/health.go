package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/executor"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

var healthCommand = &cli.Command{
	Name:   "health",
	Usage:  "Report the readiness of every backend",
	Action: healthAction,
}

func healthAction(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, false)
	coordinator := executor.New(registry, cfg)

	unhealthy := false
	health := coordinator.HealthReport(c.Context)
	for _, engine := range []flow.Engine{flow.EngineSession, flow.EngineDeclarative, flow.EngineBrowser} {
		h, ok := health[engine]
		if !ok {
			continue
		}
		if h.Status != adapter.HealthHealthy {
			unhealthy = true
		}
		if h.Details != "" {
			fmt.Printf("%-12s %-10s %s\n", engine, h.Status, h.Details)
		} else {
			fmt.Printf("%-12s %s\n", engine, h.Status)
		}
	}

	if unhealthy {
		return cli.Exit("", 1)
	}
	return nil
}
