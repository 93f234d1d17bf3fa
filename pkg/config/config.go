// Package config handles configuration for testbridge-runner.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning values. The selector window and settle delay mirror
// the behavior of the original orchestration layer and are exposed here
// so deployments can tune them.
const (
	DefaultTimeoutSeconds        = 300
	DefaultSelectorAttemptMillis = 2000
	DefaultFlowSettleMillis      = 2000
	DefaultVisualDiffTolerance   = 5.0
	DefaultRunnerBinary          = "maestro"
)

// Config carries the execution settings shared by all backends.
type Config struct {
	// Target selection
	Browsers  []string `yaml:"browsers"`  // Browser names for the browser backend
	Devices   []string `yaml:"devices"`   // Device IDs for the session backend
	TestTypes []string `yaml:"testTypes"` // Informational test categories

	// Execution settings
	Timeout             int  `yaml:"timeout"` // Whole-run timeout in seconds
	ScreenshotOnFailure bool `yaml:"screenshotOnFailure"`
	VideoRecording      bool `yaml:"videoRecording"`

	// Backend endpoints and binaries
	SessionServerURL string `yaml:"sessionServerUrl"` // Device automation server
	SessionPlatform  string `yaml:"sessionPlatform"`  // android or ios
	RunnerBinary     string `yaml:"runnerBinary"`     // Declarative flow runner executable
	RunnerOutputDir  string `yaml:"runnerOutputDir"`  // Where the runner drops its artifacts

	// Artifact directories
	OutputDir     string `yaml:"outputDir"`
	ScreenshotDir string `yaml:"screenshotDir"`
	VideoDir      string `yaml:"videoDir"`

	// Tuning knobs (fixed constants in the original, configurable here)
	SelectorAttemptMillis int     `yaml:"selectorAttemptMillis"` // Per-strategy lookup window
	FlowSettleMillis      int     `yaml:"flowSettleMillis"`      // Inter-flow UI settle delay
	VisualDiffTolerance   float64 `yaml:"visualDiffTolerance"`   // Mismatch percent threshold
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Timeout:               DefaultTimeoutSeconds,
		ScreenshotOnFailure:   true,
		SessionServerURL:      "http://127.0.0.1:4723",
		SessionPlatform:       "android",
		RunnerBinary:          DefaultRunnerBinary,
		OutputDir:             "testbridge-output",
		SelectorAttemptMillis: DefaultSelectorAttemptMillis,
		FlowSettleMillis:      DefaultFlowSettleMillis,
		VisualDiffTolerance:   DefaultVisualDiffTolerance,
	}
}

// Load loads configuration from a file, filling unset fields with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir looks for testbridge.yaml or testbridge.yml in the
// directory, returning defaults when neither exists.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"testbridge.yaml", "testbridge.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// SelectorAttemptWindow returns the per-strategy lookup window.
func (c *Config) SelectorAttemptWindow() time.Duration {
	if c.SelectorAttemptMillis <= 0 {
		return DefaultSelectorAttemptMillis * time.Millisecond
	}
	return time.Duration(c.SelectorAttemptMillis) * time.Millisecond
}

// FlowSettleDelay returns the fixed delay inserted between flows.
func (c *Config) FlowSettleDelay() time.Duration {
	if c.FlowSettleMillis < 0 {
		return 0
	}
	return time.Duration(c.FlowSettleMillis) * time.Millisecond
}

// ScreenshotPath returns the directory screenshots are written to,
// derived from OutputDir when not set explicitly.
func (c *Config) ScreenshotPath() string {
	if c.ScreenshotDir != "" {
		return c.ScreenshotDir
	}
	return filepath.Join(c.OutputDir, "screenshots")
}

// VideoPath returns the directory video artifacts are written to.
func (c *Config) VideoPath() string {
	if c.VideoDir != "" {
		return c.VideoDir
	}
	return filepath.Join(c.OutputDir, "videos")
}
