package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin helper around http.Client for device registry calls.
// Every request carries a bearer token from the token cache and the
// configured timeout.
type Client struct {
	baseURL    string
	tokens     *TokenCache
	httpClient *http.Client
}

// NewClient creates a registry client
func NewClient(baseURL string, tokens *TokenCache, timeout time.Duration) *Client {
	return &Client{
		baseURL:    trimRightSlash(baseURL),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// ListDevices fetches the full fleet with current property values
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var things []thingJSON
	if err := c.doJSON(ctx, http.MethodGet, "/v2/things?show_properties=true", nil, &things); err != nil {
		return nil, fmt.Errorf("failed to list devices: %v", err)
	}

	devices := make([]Device, 0, len(things))
	for _, t := range things {
		devices = append(devices, t.toDevice())
	}
	return devices, nil
}

// GetDevice fetches a single device snapshot
func (c *Client) GetDevice(ctx context.Context, id string) (Device, error) {
	var thing thingJSON
	path := fmt.Sprintf("/v2/things/%s?show_properties=true", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &thing); err != nil {
		return Device{}, fmt.Errorf("failed to fetch device %s: %v", id, err)
	}
	return thing.toDevice(), nil
}

// PublishProperty writes a property value back to the registry so
// downstream consumers see the derived status flags.
func (c *Client) PublishProperty(ctx context.Context, thingID, propertyID string, value interface{}) error {
	path := fmt.Sprintf("/v2/things/%s/properties/%s/publish", thingID, propertyID)
	payload := map[string]interface{}{"value": value}
	if err := c.doJSON(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("failed to publish property %s on %s: %v", propertyID, thingID, err)
	}
	return nil
}

// doJSON performs an authenticated request and decodes the JSON response into out
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("auth failed: %v", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return nil
}
