package flow

import (
	"strconv"
	"time"
)

// ActionKind classifies the structured instruction derived from a step.
type ActionKind string

// Action kinds.
const (
	ActionLaunch ActionKind = "launch"
	ActionTap    ActionKind = "tap"
	ActionInput  ActionKind = "input"
	ActionVerify ActionKind = "verify"
	ActionWait   ActionKind = "wait"
	ActionScroll ActionKind = "scroll"
	ActionSwipe  ActionKind = "swipe"
	ActionCustom ActionKind = "custom"
)

// DefaultWaitMillis is used when a wait step names no duration.
const DefaultWaitMillis = 3000

// Action is a structured instruction parsed from one step description.
// Exactly one Action is produced per step, in step order.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target,omitempty"`
	Value  string     `json:"value,omitempty"`
}

// WaitDuration interprets the action value as a wait duration in
// milliseconds. Non-wait actions and unparseable values fall back to
// the default.
func (a Action) WaitDuration() time.Duration {
	ms, err := strconv.Atoi(a.Value)
	if err != nil || ms <= 0 {
		ms = DefaultWaitMillis
	}
	return time.Duration(ms) * time.Millisecond
}
