package core

import (
	"fmt"
	"strings"
	"time"
)

// ScreenshotTag labels why a screenshot was taken.
type ScreenshotTag string

// Screenshot tags.
const (
	TagStep    ScreenshotTag = "step"
	TagFailure ScreenshotTag = "failure"
	TagVisual  ScreenshotTag = "visual"
)

// SanitizeName converts a free-form test name into a filesystem-safe
// token. Every run of non-alphanumeric characters collapses to one
// underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// ScreenshotFilename builds the canonical screenshot name:
// <sanitized-test-name>_<tag>_<step-index>_<epoch-ms>.png
func ScreenshotFilename(testName string, tag ScreenshotTag, stepIndex int, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%d.png", SanitizeName(testName), tag, stepIndex, now.UnixMilli())
}

// FlowFilename builds the canonical temp flow document name:
// <sanitized-flow-name>_<epoch-ms><ext>
func FlowFilename(flowName, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%d%s", SanitizeName(flowName), now.UnixMilli(), ext)
}
