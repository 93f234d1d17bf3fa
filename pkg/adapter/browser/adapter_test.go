package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

func TestCandidates_ChainOrder(t *testing.T) {
	chain := candidates("Login")
	require.Len(t, chain, 6)

	// Attribute hooks come before text matching; the raw target is the
	// strategy of last resort.
	assert.Equal(t, `[data-testid="Login"]`, chain[0].sel)
	assert.Contains(t, chain[1].sel, `normalize-space(text())="Login"`)
	assert.Equal(t, `[aria-label="Login"]`, chain[2].sel)
	assert.Equal(t, `[title="Login"]`, chain[3].sel)
	assert.Contains(t, chain[4].sel, "//button")
	assert.Equal(t, "Login", chain[5].sel)
}

func TestCandidates_QuotesEscaped(t *testing.T) {
	chain := candidates(`say "hi"`)
	assert.Equal(t, `[data-testid="say \"hi\""]`, chain[0].sel)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://example.com", "https://example.com", false},
		{"http://localhost:8080/x", "http://localhost:8080/x", false},
		{"example.com/shop", "https://example.com/shop", false},
		{"the app", "", true},
		{"justaword", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsVisualCheck(t *testing.T) {
	assert.True(t, isVisualCheck("visual appearance of the cart"))
	assert.True(t, isVisualCheck("page matches baseline"))
	assert.True(t, isVisualCheck("Layout is intact"))
	assert.False(t, isVisualCheck("Welcome"))
	assert.False(t, isVisualCheck("Submit button"))
}

func TestScrollAndSwipeScripts(t *testing.T) {
	// Scrolling moves the viewport in the named direction.
	assert.Contains(t, scrollScript("scroll down"), "window.innerHeight*0.6)")
	assert.Contains(t, scrollScript("scroll up"), "-Math.round(window.innerHeight")
	assert.Contains(t, scrollScript("scroll right"), "window.innerWidth")

	// A swipe moves content, so it scrolls the opposite way.
	assert.Contains(t, swipeScript("swipe up"), "window.scrollBy(0, Math.round")
	assert.Contains(t, swipeScript("swipe down"), "window.scrollBy(0, -Math.round")
	assert.Contains(t, swipeScript("swipe left"), "window.scrollBy(Math.round")
}

func TestAdapter_ExecuteTestFlowRequiresInitialize(t *testing.T) {
	a := New()
	_, err := a.ExecuteTestFlow(t.Context(), flow.Flow{Name: "x"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestAdapter_HealthBeforeInitialize(t *testing.T) {
	a := New()
	// Before Initialize health only reflects executable discovery, so
	// it is healthy (path found) or error (nothing found), never a
	// live-probe failure.
	h := a.GetHealthStatus(t.Context())
	assert.NotEqual(t, "unhealthy", h.Status)
	assert.False(t, a.IsAvailable())
}

func TestEventLog_FormatRemoteObject(t *testing.T) {
	l := newEventLog()
	l.add("console.log: checkout ready")
	l.add("request failed: net::ERR_FAILED (Fetch)")

	lines := strings.Join(l.lines(), "\n")
	assert.Contains(t, lines, "checkout ready")
	assert.Contains(t, lines, "ERR_FAILED")
}
