// Package client implements the user-facing CLI commands that talk to a
// running recall server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIKey = "RECALL_API_KEY"
	envAPIURL = "RECALL_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// APIClient is a thin JSON client over the recall HTTP API.
type APIClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewAPIClient builds a client with the config cascade: flag, env, default.
// The API key may be empty when the server runs without authentication.
func NewAPIClient(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	apiKey := flagOrEnv(cmd, "api-key", envAPIKey)
	baseURL := flagOrEnv(cmd, "api-url", envAPIURL)
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	if cmd != nil {
		if v, err := cmd.Flags().GetString(flag); err == nil && v != "" {
			return v
		}
	}
	return os.Getenv(env)
}

// APIResponse represents the standard API response envelope.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(path string) (*APIResponse, error) {
	return c.do(http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *APIClient) Post(path string, body interface{}) (*APIResponse, error) {
	return c.do(http.MethodPost, path, body)
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(path string) (*APIResponse, error) {
	return c.do(http.MethodDelete, path, nil)
}

func (c *APIClient) do(method, path string, body interface{}) (*APIResponse, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out APIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return &out, nil
}
