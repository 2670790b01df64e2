package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bc-dunia/threadviz/internal/jsonhttp"
	"github.com/bc-dunia/threadviz/internal/types"
)

// Gateway is everything the console asks of the gateway.
type Gateway interface {
	Health(ctx context.Context) (*types.HealthStatus, error)
	Stats(ctx context.Context) (*types.StatsSnapshot, error)
	SetAlgorithm(ctx context.Context, id types.AlgorithmID) (*types.SetAlgorithmAck, error)
	RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error)
	ClearHistory(ctx context.Context) error
}

// RequestError is a non-2xx reply from the gateway. Its text is the
// gateway's message when one was sent.
type RequestError struct {
	StatusCode int
	Label      string
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Label != "":
		return e.Label
	default:
		return e.Err.Error()
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// HTTPGateway talks to the gateway's /agent routes over HTTP.
type HTTPGateway struct {
	http *jsonhttp.Client
}

// NewHTTPGateway returns a client for the gateway API rooted at baseURL,
// e.g. http://localhost:8080/api.
func NewHTTPGateway(baseURL string, httpClient *http.Client) *HTTPGateway {
	return &HTTPGateway{http: jsonhttp.NewClient(baseURL, httpClient, jsonhttp.Config{})}
}

func (g *HTTPGateway) BaseURL() string {
	return g.http.BaseURL()
}

func (g *HTTPGateway) Health(ctx context.Context) (*types.HealthStatus, error) {
	var out types.HealthStatus
	if err := g.do(ctx, http.MethodGet, "/agent/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Stats(ctx context.Context) (*types.StatsSnapshot, error) {
	var out types.StatsSnapshot
	if err := g.do(ctx, http.MethodGet, "/agent/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) SetAlgorithm(ctx context.Context, id types.AlgorithmID) (*types.SetAlgorithmAck, error) {
	var out types.SetAlgorithmAck
	if err := g.do(ctx, http.MethodPost, "/agent/set_algorithm", types.SetAlgorithmRequest{Algorithm: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error) {
	d := float64(seconds)
	var out types.RunTaskAck
	if err := g.do(ctx, http.MethodPost, "/agent/run_task", types.RunTaskRequest{Type: taskType, Duration: &d}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) ClearHistory(ctx context.Context) error {
	return g.do(ctx, http.MethodPost, "/agent/clear_history", nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := g.http.Do(ctx, method, path, body)
	if err != nil {
		var se *jsonhttp.StatusError
		if errors.As(err, &se) {
			rerr := &RequestError{StatusCode: se.StatusCode, Err: err}
			var eb types.ErrorBody
			if json.Unmarshal(se.Body, &eb) == nil {
				rerr.Label = eb.Error
				rerr.Message = eb.Message
			}
			return rerr
		}
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}
