// Package client is nfigctl's thin HTTP client over httpapi's admin
// surface: small, explicit methods rather than a generic request builder.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getnfig/nfig/values"
)

// Client talks to one nfigd instance as one authenticated admin user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client against baseURL, authenticating immediately with
// user/password against POST /auth/token.
func New(ctx context.Context, baseURL, user, password string) (*Client, error) {
	c := &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}

	body, _ := json.Marshal(map[string]string{"user": user, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("nfigctl: authenticating: %w", err)
	}
	c.token = out.Token
	return c, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("nfigd returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// ListApps returns every app name nfigd currently knows about.
func (c *Client) ListApps(ctx context.Context) ([]string, error) {
	var out struct {
		Apps []string `json:"apps"`
	}
	if err := c.get(ctx, "/api/apps", &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// GetSnapshot returns appName's current override snapshot.
func (c *Client) GetSnapshot(ctx context.Context, appName string) (values.OverridesSnapshot, error) {
	var out values.OverridesSnapshot
	err := c.get(ctx, "/api/apps/"+appName+"/snapshot", &out)
	return out, err
}

// GetSubApps returns appName's published sub-app metadata.
func (c *Client) GetSubApps(ctx context.Context, appName string) ([]values.SubAppMetadata, error) {
	var out struct {
		SubApps []values.SubAppMetadata `json:"subApps"`
	}
	err := c.get(ctx, "/api/apps/"+appName+"/subapps", &out)
	return out.SubApps, err
}

// GetMetadata returns appName's published per-setting metadata.
func (c *Client) GetMetadata(ctx context.Context, appName string) (*values.BySetting[values.SettingMetadata], error) {
	var out values.BySetting[values.SettingMetadata]
	err := c.get(ctx, "/api/apps/"+appName+"/metadata", &out)
	return &out, err
}

// SetOverrideRequest is the wire shape for SetOverride.
type SetOverrideRequest struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	SubAppID       *int   `json:"subAppId,omitempty"`
	DataCenter     int32  `json:"dataCenter"`
	ExpectedCommit string `json:"expectedCommit,omitempty"`
}

// SetOverride writes one override for appName.
func (c *Client) SetOverride(ctx context.Context, appName string, req SetOverrideRequest) (values.OverridesSnapshot, error) {
	var out values.OverridesSnapshot
	err := c.send(ctx, http.MethodPost, "/api/apps/"+appName+"/overrides", req, &out)
	return out, err
}

// ClearOverrideRequest is the wire shape for ClearOverride.
type ClearOverrideRequest struct {
	Name           string `json:"name"`
	SubAppID       *int   `json:"subAppId,omitempty"`
	DataCenter     int32  `json:"dataCenter"`
	ExpectedCommit string `json:"expectedCommit,omitempty"`
}

// ClearOverride removes one override for appName.
func (c *Client) ClearOverride(ctx context.Context, appName string, req ClearOverrideRequest) (values.OverridesSnapshot, error) {
	var out values.OverridesSnapshot
	err := c.send(ctx, http.MethodDelete, "/api/apps/"+appName+"/overrides", req, &out)
	return out, err
}

// RestoreSnapshot replaces appName's entire override set with snapshot.
func (c *Client) RestoreSnapshot(ctx context.Context, appName string, snapshot values.OverridesSnapshot) (values.OverridesSnapshot, error) {
	var out values.OverridesSnapshot
	err := c.send(ctx, http.MethodPost, "/api/apps/"+appName+"/restore", map[string]any{"snapshot": snapshot}, &out)
	return out, err
}
