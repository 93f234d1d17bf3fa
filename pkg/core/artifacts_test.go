package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Login Flow", "Login_Flow"},
		{"checkout: guest / card", "checkout_guest_card"},
		{"already_ok123", "already_ok123"},
		{"  spaces  ", "spaces"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestScreenshotFilename(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	name := ScreenshotFilename("Login Flow", TagFailure, 2, at)
	assert.Equal(t, "Login_Flow_failure_2_1700000000000.png", name)

	name = ScreenshotFilename("a/b", TagStep, 0, at)
	assert.Equal(t, "a_b_step_0_1700000000000.png", name)
}

func TestFlowFilename(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	assert.Equal(t, "Smoke_Test_1700000000000.yaml", FlowFilename("Smoke Test", ".yaml", at))
}
