// Package client provides a Go SDK for talking to a mini-dynamo node.
//
// The client talks to exactly one node. That node is responsible for
// computing the preference list and coordinating the quorum fan-out; the
// client itself implements no distributed logic.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a connection to one node's public HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. A zero timeout defaults to 10s — never call the
// network without a bound.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Quorum mirrors the quorum block embedded in put/delete responses.
type Quorum struct {
	Acks    int             `json:"acks"`
	Needed  int             `json:"needed"`
	Results map[string]bool `json:"results"`
}

// PutResponse is returned after a successful write.
type PutResponse struct {
	Key      string   `json:"key"`
	Ts       float64  `json:"ts"`
	Replicas []string `json:"replicas"`
	Quorum   Quorum   `json:"quorum"`
}

// Record mirrors the store record embedded in a get response.
type Record struct {
	Value     *string `json:"value"`
	Ts        float64 `json:"ts"`
	Tombstone bool    `json:"tombstone"`
}

// GetResponse is returned after a read.
type GetResponse struct {
	Key      string   `json:"key"`
	Replicas []string `json:"replicas"`
	Found    bool     `json:"found"`
	Record   *Record  `json:"record"`
}

// DeleteResponse is returned after a successful delete.
type DeleteResponse struct {
	Key      string   `json:"key"`
	Ts       float64  `json:"ts"`
	Replicas []string `json:"replicas"`
	Quorum   Quorum   `json:"quorum"`
}

// Put stores key=value against the coordinating node.
func (c *Client) Put(ctx context.Context, key, value string) (*PutResponse, error) {
	body, _ := json.Marshal(map[string]string{"key": key, "value": value})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/kv/put", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result PutResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// Get retrieves the current value for key, or ErrNotFound if the quorum
// read resolved to a tombstone (deleted) or absent key.
func (c *Client) Get(ctx context.Context, key string) (*GetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/kv/get?key=%s", c.baseURL, key), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result GetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, ErrNotFound
	}
	return &result, nil
}

// Delete removes key from the cluster, writing a tombstone.
func (c *Client) Delete(ctx context.Context, key string) (*DeleteResponse, error) {
	body, _ := json.Marshal(map[string]string{"key": key})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/kv/delete", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result DeleteResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a key resolves to absent or tombstoned.
var ErrNotFound = fmt.Errorf("key not found")

// APIError carries the HTTP status and error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// checkStatus converts non-2xx HTTP responses into Go errors. A 503 with a
// {"detail": {...}} body (quorum not met) is surfaced with its error
// string, not the raw JSON blob.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)

	var withDetail struct {
		Detail struct {
			Error string `json:"error"`
		} `json:"detail"`
	}
	if json.Unmarshal(body, &withDetail) == nil && withDetail.Detail.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: withDetail.Detail.Error}
	}

	var plain struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &plain)
	msg := plain.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
