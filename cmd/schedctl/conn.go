// cmd/schedctl/conn.go — shared admin API client helper.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func serverAddr() string {
	if v := os.Getenv("SCHEDULER_ADDR"); v != "" {
		return v
	}
	return "http://localhost:8087"
}

type apiClient struct {
	base string
	hc   *http.Client
}

func newClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// do issues one request and decodes a JSON response into out (which may be
// nil for 204 responses). Non-2xx statuses become errors carrying the body.
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s",
			method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func fatal(cmd string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
	os.Exit(1)
}

type jobView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Schedule   string          `json:"schedule"`
	Params     json.RawMessage `json:"params"`
	Enabled    bool            `json:"enabled"`
	MaxRetries int             `json:"max_retries"`
	TimeoutSec int             `json:"timeout_seconds"`
	Priority   int             `json:"priority"`
	Tags       []string        `json:"tags"`
	NextDueAt  *time.Time      `json:"next_due_at"`
	LastRunAt  *time.Time      `json:"last_run_at"`
}

type executionView struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	DurationMS  int64           `json:"duration_ms"`
	Result      json.RawMessage `json:"result"`
	Error       *string         `json:"error"`
	RetryCount  int             `json:"retry_count"`
	InstanceID  string          `json:"instance_id"`
}
