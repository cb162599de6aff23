// Package cli implements the interactive admin console for the arena API.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a thin wrapper over the arena HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken stores the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// apiResponse mirrors the service's JSON envelope.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Call performs one API request and returns the data payload. A non-success
// envelope code becomes an error carrying the server message.
func (c *Client) Call(method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if envelope.Code != 10000 {
		return nil, fmt.Errorf("%s (code %d)", envelope.Message, envelope.Code)
	}
	return envelope.Data, nil
}

// Login authenticates and stores the returned token.
func (c *Client) Login(email, password string) error {
	data, err := c.Call(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	var payload struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.token = payload.Token
	return nil
}
