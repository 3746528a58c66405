package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAccessToken is returned when an authenticated call is attempted
// while signed out.
var ErrNoAccessToken = errors.New("no access token available")

// ErrSessionExpired is returned when the one-shot token refresh fails;
// credentials are cleared before it is returned.
var ErrSessionExpired = errors.New("session expired, sign in again")

// APIError is a non-success REST response. Message is taken from the
// response body's error/detail/message field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// Client is the authenticated HTTP transport to the group-hub backend. It
// attaches the bearer token and, on a 401, performs exactly one
// refresh-and-retry before giving up.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *Credentials
}

func NewClient(baseURL string, creds *Credentials, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
}

// BaseURL returns the configured backend base address.
func (c *Client) BaseURL() string { return c.baseURL }

// Credentials returns the shared credential store.
func (c *Client) Credentials() *Credentials { return c.creds }

// doJSON performs an authenticated request and decodes a JSON response into
// out (out may be nil). The payload is buffered so the single 401
// refresh-retry can replay it.
func (c *Client) doJSON(ctx context.Context, method, path string, payload []byte, contentType string, out any) error {
	body, err := c.roundTrip(ctx, method, path, payload, contentType, true)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, contentType string, retry bool) ([]byte, error) {
	token := c.creds.AccessToken()
	if token == "" {
		return nil, ErrNoAccessToken
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && retry {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		return c.roundTrip(ctx, method, path, payload, contentType, false)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorField(body)}
	}
	return body, nil
}

// Refresh exchanges the refresh token for a new token pair. On failure the
// credentials are cleared so later calls fail fast with ErrNoAccessToken.
func (c *Client) Refresh(ctx context.Context) error {
	refresh := c.creds.RefreshToken()
	if refresh == "" {
		c.creds.Clear()
		return ErrSessionExpired
	}

	payload, _ := json.Marshal(map[string]string{"refresh_token": refresh})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.creds.Clear()
		return ErrSessionExpired
	}

	var data struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &data); err != nil || data.Token == "" {
		c.creds.Clear()
		return ErrSessionExpired
	}
	c.creds.Set(data.Token, data.RefreshToken)
	return nil
}

// errorField extracts a human-readable message from an error response body.
func errorField(body []byte) string {
	var data struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}
	for _, v := range []string{data.Error, data.Detail, data.Message} {
		if v != "" {
			return v
		}
	}
	return ""
}
