package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGenerator calls an external task generation endpoint. The endpoint
// receives the subject triple as JSON and answers with a GeneratedTask.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPGenerator creates a generator client.
func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration) (*HTTPGenerator, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Subject    string `json:"subject"`
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
}

// Generate requests one task from the endpoint.
func (g *HTTPGenerator) Generate(ctx context.Context, subject, theme, difficulty string) (*GeneratedTask, error) {
	body, err := json.Marshal(generateRequest{Subject: subject, Theme: theme, Difficulty: difficulty})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generator returned %d: %s", resp.StatusCode, snippet)
	}

	task := &GeneratedTask{}
	if err := json.NewDecoder(resp.Body).Decode(task); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	return task, nil
}
