// Package declarative implements the flow-file backend. Each flow is
// compiled into a declarative YAML document, handed to an external
// runner binary as a fresh process, and judged by the process exit
// code. No automation state survives between flows.
package declarative

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// CompileFlow translates a flow's parsed actions into the runner's
// document format: a config header, a document separator, and a step
// list. Input actions compile to a tapOn/inputText pair because the
// runner types into the focused element.
func CompileFlow(f flow.Flow) ([]byte, error) {
	actions := flow.ParseSteps(f.Steps)

	steps := make([]interface{}, 0, len(actions)+1)
	for _, action := range actions {
		steps = append(steps, compileAction(action)...)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("flow %q compiles to no steps", f.Name)
	}

	header := map[string]interface{}{
		"name": f.Name,
	}
	if appID := launchAppID(actions); appID != "" {
		header["appId"] = appID
	}

	headerDoc, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal flow header: %w", err)
	}
	stepsDoc, err := yaml.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal flow steps: %w", err)
	}

	var b strings.Builder
	b.Write(headerDoc)
	b.WriteString("---\n")
	b.Write(stepsDoc)
	return []byte(b.String()), nil
}

// compileAction maps one action to its runner verbs.
func compileAction(action flow.Action) []interface{} {
	switch action.Kind {
	case flow.ActionLaunch:
		if isURL(action.Target) {
			return []interface{}{map[string]interface{}{"openLink": action.Target}}
		}
		return []interface{}{"launchApp"}

	case flow.ActionTap:
		return []interface{}{map[string]interface{}{"tapOn": action.Target}}

	case flow.ActionInput:
		steps := make([]interface{}, 0, 2)
		if action.Target != "" && action.Target != action.Value {
			steps = append(steps, map[string]interface{}{"tapOn": action.Target})
		}
		return append(steps, map[string]interface{}{"inputText": action.Value})

	case flow.ActionVerify:
		return []interface{}{map[string]interface{}{"assertVisible": action.Target}}

	case flow.ActionWait:
		return []interface{}{map[string]interface{}{
			"waitForAnimationToEnd": map[string]interface{}{
				"timeout": int(action.WaitDuration().Milliseconds()),
			},
		}}

	case flow.ActionScroll:
		return []interface{}{"scroll"}

	case flow.ActionSwipe:
		return []interface{}{map[string]interface{}{
			"swipe": map[string]interface{}{
				"direction": swipeDirection(action.Target),
			},
		}}

	default:
		// The document format has no free-form verb; record the raw
		// step in script output so it survives into the runner logs.
		return []interface{}{map[string]interface{}{
			"evalScript": fmt.Sprintf("${output.skipped = %q}", action.Target),
		}}
	}
}

// launchAppID returns the app identifier from the first non-URL launch
// action, if any.
func launchAppID(actions []flow.Action) string {
	for _, action := range actions {
		if action.Kind == flow.ActionLaunch && !isURL(action.Target) {
			return action.Target
		}
	}
	return ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// swipeDirection extracts an upper-case direction for the swipe verb.
func swipeDirection(target string) string {
	lower := strings.ToLower(target)
	for _, d := range []string{"up", "down", "left", "right"} {
		if strings.Contains(lower, d) {
			return strings.ToUpper(d)
		}
	}
	return "LEFT"
}
