// Package jsonhttp is a small JSON-over-HTTP client shared by the agent
// adapter, the console and the push reporter.
package jsonhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const maxResponseBodyBytes = 1 << 20

// DefaultTimeout bounds a single request when the caller's context has no
// deadline of its own.
const DefaultTimeout = 10 * time.Second

// HeaderFunc decorates every outgoing request, e.g. to inject trace context.
type HeaderFunc func(ctx context.Context, h http.Header)

type Config struct {
	Timeout time.Duration
	Headers map[string]string
	// Decorate runs after static headers are set.
	Decorate HeaderFunc
}

// Client issues exactly one HTTP request per call; it never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

func NewClient(baseURL string, httpClient *http.Client, config Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		config:     config,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a fully read response body with its status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, body)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Do performs one request. Transport failures are returned as-is; a non-2xx
// status yields a *StatusError alongside the read response.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	if c.config.Decorate != nil {
		c.config.Decorate(ctx, req.Header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	respBody, err := ReadResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return out, nil
}

// ReadResponseBody reads and closes resp.Body, truncating oversized bodies.
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBodyBytes {
		log.Printf("[jsonhttp] Response body truncated to %d bytes", maxResponseBodyBytes)
		body = body[:maxResponseBodyBytes]
	}
	return body, nil
}
