package flow

import (
	"regexp"
	"strconv"
	"strings"
)

// Step classification is a best-effort lexical heuristic, not a grammar.
// Rules are tried in declaration order and the first trigger word found
// anywhere in the step wins. The order below is load-bearing: a step
// containing several trigger words (e.g. "tap" and "wait") always
// resolves to the earliest rule, and reorderings change behavior for
// such inputs.
var classifyRules = []struct {
	kind     ActionKind
	triggers []string
}{
	{ActionLaunch, []string{"launch", "open"}},
	{ActionTap, []string{"tap", "click"}},
	{ActionInput, []string{"type", "enter"}},
	{ActionVerify, []string{"verify", "assert"}},
	{ActionWait, []string{"wait"}},
	{ActionScroll, []string{"scroll"}},
	{ActionSwipe, []string{"swipe"}},
}

var (
	quotedRe    = regexp.MustCompile(`"([^"]+)"`)
	labelledRe  = regexp.MustCompile(`(?i)(?:button|field|link|element|on)\s*:\s*(.+)$`)
	typeIntoRe  = regexp.MustCompile(`(?i)(?:type|enter)\s+"([^"]+)"\s+(?:into|in|to)\s+"([^"]+)"`)
	separatorRe = regexp.MustCompile(`(?i)\s+(?:into|in|to)\s+`)
	inputVerbRe = regexp.MustCompile(`(?i)^\s*(?:type|enter)\s+`)
	integerRe   = regexp.MustCompile(`\d+`)
	urlRe       = regexp.MustCompile(`https?://\S+`)
)

// ParseSteps converts human-authored step descriptions into actions.
// Pure and deterministic: same input, same output, no I/O, and exactly
// one action per step with order preserved.
func ParseSteps(steps []string) []Action {
	actions := make([]Action, 0, len(steps))
	for _, step := range steps {
		actions = append(actions, ParseStep(step))
	}
	return actions
}

// ParseStep classifies a single step description into an action.
func ParseStep(step string) Action {
	lower := strings.ToLower(step)

	for _, rule := range classifyRules {
		for _, trigger := range rule.triggers {
			if !strings.Contains(lower, trigger) {
				continue
			}
			switch rule.kind {
			case ActionInput:
				target, value := extractInput(step)
				return Action{Kind: ActionInput, Target: target, Value: value}
			case ActionWait:
				ms := extractWaitMillis(step)
				return Action{Kind: ActionWait, Value: strconv.Itoa(ms)}
			case ActionLaunch:
				return Action{Kind: ActionLaunch, Target: extractLaunchTarget(step)}
			default:
				return Action{Kind: rule.kind, Target: extractTarget(step)}
			}
		}
	}

	// Nothing matched: keep the raw step so the backend can decide.
	return Action{Kind: ActionCustom, Target: step}
}

// extractTarget pulls the element reference out of a step description.
// Precedence: first double-quoted substring, then a labelled pattern
// ("button: X", "field: X", ...), then the whole step as a last resort.
func extractTarget(step string) string {
	if m := quotedRe.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	if m := labelledRe.FindStringSubmatch(step); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"'`)
	}
	return step
}

// extractLaunchTarget resolves a launch target. A bare URL token beats
// the whole-step fallback so "launch https://example.com" yields just
// the URL; an explicit quoted app name still wins.
func extractLaunchTarget(step string) string {
	if m := quotedRe.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	if u := urlRe.FindString(step); u != "" {
		return u
	}
	return extractTarget(step)
}

// extractInput derives (target, value) for input actions. The canonical
// form `type "V" into "T"` is preferred; otherwise the step is split on
// the first into/in/to separator with the verb and quotes stripped. A
// step without a separator yields the whole step as target and an empty
// value.
func extractInput(step string) (target, value string) {
	if m := typeIntoRe.FindStringSubmatch(step); m != nil {
		return m[2], m[1]
	}

	loc := separatorRe.FindStringIndex(step)
	if loc == nil {
		return step, ""
	}

	value = strings.TrimSpace(inputVerbRe.ReplaceAllString(step[:loc[0]], ""))
	value = strings.Trim(value, `"'`)
	target = strings.Trim(strings.TrimSpace(step[loc[1]:]), `"'`)
	return target, value
}

// extractWaitMillis finds the wait duration in a step. The first integer
// is taken as milliseconds when the step mentions ms/millisecond and as
// seconds otherwise; a step without any integer waits the default.
func extractWaitMillis(step string) int {
	m := integerRe.FindString(step)
	if m == "" {
		return DefaultWaitMillis
	}

	n, err := strconv.Atoi(m)
	if err != nil {
		return DefaultWaitMillis
	}

	lower := strings.ToLower(step)
	if strings.Contains(lower, "ms") || strings.Contains(lower, "millisecond") {
		return n
	}
	return n * 1000
}
