package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/testbridge-dev/testbridge-runner/pkg/core"
)

// WriteJSON writes the suite result as an indented JSON report into
// dir and records the file in the suite's artifacts. Returns the
// report path.
func WriteJSON(suite *core.TestSuiteResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}

	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	suite.Artifacts.Reports = append(suite.Artifacts.Reports, path)
	return path, nil
}
