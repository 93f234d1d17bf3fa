// Package session implements the stateful device-session backend. It
// holds one persistent automation-server session for the adapter's
// lifetime and executes every action directly against that handle.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// w3cElementKey is the element identifier key in W3C WebDriver responses.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client talks to a W3C-style device automation server.
type Client struct {
	http      *http.Client
	baseURL   string
	sessionID string
	width     int
	height    int
}

// NewClient creates a client for the given server URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// ScreenSize returns the cached viewport dimensions.
func (c *Client) ScreenSize() (int, int) {
	return c.width, c.height
}

// request makes an HTTP request to the automation server.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug().Str("method", method).Str("path", path).Dur("elapsed", elapsed).
			Err(err).Msg("session request failed")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	log.Debug().Str("method", method).Str("path", path).Dur("elapsed", elapsed).
		Int("status", resp.StatusCode).Msg("session request")

	if resp.StatusCode >= 400 {
		var errResp struct {
			Value struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			} `json:"value"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Value.Error != "" {
			return nil, fmt.Errorf("%s: %s", errResp.Value.Error, errResp.Value.Message)
		}
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// sessionPath returns a path with the session ID prefix.
func (c *Client) sessionPath(path string) string {
	return fmt.Sprintf("/session/%s%s", c.sessionID, path)
}

// Status queries the server's readiness endpoint. It returns the ready
// flag and the raw response for health reporting.
func (c *Client) Status(ctx context.Context) (bool, string, error) {
	data, err := c.request(ctx, "GET", "/status", nil)
	if err != nil {
		return false, "", err
	}

	var resp struct {
		Value struct {
			Ready   bool   `json:"ready"`
			Message string `json:"message"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, string(data), err
	}

	return resp.Value.Ready, string(data), nil
}

// Connect starts a new automation session and caches the viewport size.
func (c *Client) Connect(ctx context.Context, caps map[string]interface{}) error {
	req := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": caps,
		},
	}
	data, err := c.request(ctx, "POST", "/session", req)
	if err != nil {
		return err
	}

	var resp struct {
		SessionID string `json:"sessionId"`
		Value     struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse session response: %w", err)
	}

	sessionID := resp.Value.SessionID
	if sessionID == "" {
		sessionID = resp.SessionID
	}
	if sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}
	c.sessionID = sessionID

	if w, h, err := c.WindowSize(ctx); err == nil {
		c.width, c.height = w, h
	}

	return nil
}

// Disconnect ends the current session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}

	_, err := c.request(ctx, "DELETE", c.sessionPath(""), nil)
	c.sessionID = ""
	return err
}

// FindElement finds a single element using the given locator strategy.
func (c *Client) FindElement(ctx context.Context, using, value string) (string, error) {
	req := map[string]string{"using": using, "value": value}
	data, err := c.request(ctx, "POST", c.sessionPath("/element"), req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Value map[string]string `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse element response: %w", err)
	}

	if id := resp.Value[w3cElementKey]; id != "" {
		return id, nil
	}
	if id := resp.Value["ELEMENT"]; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("element not found: %s=%s", using, value)
}

// IsDisplayed reports whether the element is visible on screen.
func (c *Client) IsDisplayed(ctx context.Context, elementID string) (bool, error) {
	data, err := c.request(ctx, "GET", c.sessionPath("/element/"+elementID+"/displayed"), nil)
	if err != nil {
		return false, err
	}

	var resp struct {
		Value bool `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, err
	}
	return resp.Value, nil
}

// Click taps the element.
func (c *Client) Click(ctx context.Context, elementID string) error {
	_, err := c.request(ctx, "POST", c.sessionPath("/element/"+elementID+"/click"), map[string]string{})
	return err
}

// Clear clears the element's text.
func (c *Client) Clear(ctx context.Context, elementID string) error {
	_, err := c.request(ctx, "POST", c.sessionPath("/element/"+elementID+"/clear"), map[string]string{})
	return err
}

// SendKeys types text into the element.
func (c *Client) SendKeys(ctx context.Context, elementID, text string) error {
	req := map[string]string{"text": text}
	_, err := c.request(ctx, "POST", c.sessionPath("/element/"+elementID+"/value"), req)
	return err
}

// Screenshot captures the current screen as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := c.request(ctx, "GET", c.sessionPath("/screenshot"), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	return base64.StdEncoding.DecodeString(resp.Value)
}

// WindowSize returns the viewport dimensions.
func (c *Client) WindowSize(ctx context.Context) (int, int, error) {
	data, err := c.request(ctx, "GET", c.sessionPath("/window/rect"), nil)
	if err != nil {
		return 0, 0, err
	}

	var resp struct {
		Value struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, 0, err
	}
	return int(resp.Value.Width), int(resp.Value.Height), nil
}

// PerformActions runs a W3C pointer action sequence.
func (c *Client) PerformActions(ctx context.Context, actions []map[string]interface{}) error {
	req := map[string]interface{}{"actions": actions}
	_, err := c.request(ctx, "POST", c.sessionPath("/actions"), req)
	return err
}

// ActivateApp brings an app to the foreground.
func (c *Client) ActivateApp(ctx context.Context, appID string) error {
	req := map[string]string{"appId": appID, "bundleId": appID}
	_, err := c.request(ctx, "POST", c.sessionPath("/appium/device/activate_app"), req)
	return err
}

// NavigateTo opens a URL in the session's active web context.
func (c *Client) NavigateTo(ctx context.Context, url string) error {
	req := map[string]string{"url": url}
	_, err := c.request(ctx, "POST", c.sessionPath("/url"), req)
	return err
}
