// Package agentclient calls the scheduling agent's HTTP API and turns its
// failures into relay errors.
package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bc-dunia/threadviz/internal/jsonhttp"
	"github.com/bc-dunia/threadviz/internal/otel"
	"github.com/bc-dunia/threadviz/internal/types"
)

// Agent paths.
const (
	PathHealth       = "/health"
	PathStats        = "/stats"
	PathSetAlgorithm = "/set_algorithm"
	PathRunTask      = "/run_task"
	PathClearHistory = "/clear_history"
)

// ErrorKind classifies an agent failure.
type ErrorKind string

const (
	// Unreachable covers connect failures, timeouts and unreadable replies.
	Unreachable ErrorKind = "unreachable"
	// Rejected means the agent answered with a non-2xx status.
	Rejected ErrorKind = "rejected"
)

// UpstreamError is returned by every Client method on failure.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Kind, e.Message())
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Message is the detail relayed to callers in the "message" field.
func (e *UpstreamError) Message() string {
	if e.Kind == Rejected {
		body := strings.TrimSpace(string(e.Body))
		if body == "" {
			return fmt.Sprintf("agent returned status %d", e.StatusCode)
		}
		return fmt.Sprintf("agent returned status %d: %s", e.StatusCode, body)
	}
	if e.Err == nil {
		return "agent unreachable"
	}
	return e.Err.Error()
}

// IsUnreachable reports whether err is an Unreachable UpstreamError.
func IsUnreachable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == Unreachable
}

// Client is safe for concurrent use. Each method issues exactly one request.
type Client struct {
	http    *jsonhttp.Client
	tracer  *otel.Tracer
	metrics *otel.Metrics
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	tracer     *otel.Tracer
	metrics    *otel.Metrics
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each call. Zero keeps jsonhttp.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithTracer(t *otel.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithMetrics(m *otel.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns a client for the agent at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.NoopTracer()
	}

	c := &Client{tracer: o.tracer, metrics: o.metrics}
	c.http = jsonhttp.NewClient(baseURL, o.httpClient, jsonhttp.Config{
		Timeout: o.timeout,
		Decorate: func(ctx context.Context, h http.Header) {
			otel.InjectHeaders(ctx, h, c.tracer)
		},
	})
	return c
}

func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, PathHealth, nil)
}

func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, PathStats, nil)
}

func (c *Client) SetAlgorithm(ctx context.Context, req types.SetAlgorithmRequest) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, PathSetAlgorithm, req)
}

func (c *Client) RunTask(ctx context.Context, req types.RunTaskRequest) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, PathRunTask, req)
}

// ClearHistory posts with no body.
func (c *Client) ClearHistory(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, PathClearHistory, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	ctx, span := c.tracer.StartAgentSpan(ctx, method, path)
	defer span.End()

	route := strings.TrimPrefix(path, "/")
	start := time.Now()

	resp, err := c.http.Do(ctx, method, path, body)
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		uerr := classify(err)
		otel.RecordError(span, uerr, string(uerr.Kind))
		c.metrics.RecordUpstreamError(ctx, string(uerr.Kind))
		c.metrics.RecordRelay(ctx, route, string(uerr.Kind), latency)
		return nil, uerr
	}

	c.metrics.RecordRelay(ctx, route, otel.OutcomeOK, latency)
	return json.RawMessage(resp.Body), nil
}

func classify(err error) *UpstreamError {
	var se *jsonhttp.StatusError
	if errors.As(err, &se) {
		return &UpstreamError{Kind: Rejected, StatusCode: se.StatusCode, Body: se.Body, Err: err}
	}
	return &UpstreamError{Kind: Unreachable, Err: err}
}
