package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/bc-dunia/threadviz/internal/agentclient"
	"github.com/bc-dunia/threadviz/internal/auth"
	"github.com/bc-dunia/threadviz/internal/types"
)

// Public paths.
const (
	PathHealth       = "/api/health"
	PathAgentHealth  = "/api/agent/health"
	PathStats        = "/api/agent/stats"
	PathSetAlgorithm = "/api/agent/set_algorithm"
	PathRunTask      = "/api/agent/run_task"
	PathClearHistory = "/api/agent/clear_history"
	PathPushData     = "/api/agent/push_data"
)

// Failure labels returned in the "error" field.
const (
	LabelStats        = "Cannot fetch agent stats"
	LabelSetAlgorithm = "Failed to set algorithm"
	LabelRunTask      = "Failed to run task"
	LabelClearHistory = "Failed to clear history"
	LabelAgentHealth  = "Cannot connect to agent"
	LabelBadRequest   = "Invalid request body"
)

type upstreamCall func(ctx context.Context, r *http.Request) (json.RawMessage, error)

// route describes one relayed agent endpoint.
type route struct {
	method        string
	path          string
	label         string
	failureStatus int
	call          upstreamCall
	// failureBody replaces the default {error, message} body.
	failureBody func(label string, err *agentclient.UpstreamError) interface{}
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string {
	return e.err.Error()
}

func (s *Server) routes() []route {
	return []route{
		{
			method:        http.MethodGet,
			path:          PathAgentHealth,
			label:         LabelAgentHealth,
			failureStatus: http.StatusServiceUnavailable,
			call: func(ctx context.Context, _ *http.Request) (json.RawMessage, error) {
				return s.agent.Health(ctx)
			},
			failureBody: func(label string, _ *agentclient.UpstreamError) interface{} {
				return map[string]string{"status": "disconnected", "error": label}
			},
		},
		{
			method:        http.MethodGet,
			path:          PathStats,
			label:         LabelStats,
			failureStatus: http.StatusServiceUnavailable,
			call: func(ctx context.Context, _ *http.Request) (json.RawMessage, error) {
				return s.agent.Stats(ctx)
			},
		},
		{
			method:        http.MethodPost,
			path:          PathSetAlgorithm,
			label:         LabelSetAlgorithm,
			failureStatus: http.StatusInternalServerError,
			call: func(ctx context.Context, r *http.Request) (json.RawMessage, error) {
				var req types.SetAlgorithmRequest
				if err := decodeBody(r, &req); err != nil {
					return nil, err
				}
				return s.agent.SetAlgorithm(ctx, req)
			},
		},
		{
			method:        http.MethodPost,
			path:          PathRunTask,
			label:         LabelRunTask,
			failureStatus: http.StatusInternalServerError,
			call: func(ctx context.Context, r *http.Request) (json.RawMessage, error) {
				var req types.RunTaskRequest
				if err := decodeBody(r, &req); err != nil {
					return nil, err
				}
				return s.agent.RunTask(ctx, req)
			},
		},
		{
			method:        http.MethodPost,
			path:          PathClearHistory,
			label:         LabelClearHistory,
			failureStatus: http.StatusInternalServerError,
			call: func(ctx context.Context, _ *http.Request) (json.RawMessage, error) {
				return s.agent.ClearHistory(ctx)
			},
		},
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathHealth, s.handleHealth)
	for _, rt := range s.routes() {
		mux.Handle(rt.path, s.forward(rt))
	}

	authMiddleware := auth.NewMiddleware(s.authn, func(r *http.Request, err *auth.AuthError) {
		s.metrics.RecordAuthRejection(r.Context(), "push_data")
		s.events.LogAuthRejected(r.URL.Path, err.Code)
	})
	mux.Handle(PathPushData, authMiddleware.Handler(http.HandlerFunc(s.handlePushData)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "no route for "+r.URL.Path)
	})
}

// forward relays one request to the agent: exactly one upstream call, the
// upstream body verbatim on success, the route's failure shape otherwise.
func (s *Server) forward(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != rt.method {
			writeMethodNotAllowed(w, r, rt.method)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}

		body, err := rt.call(r.Context(), r)
		if err == nil {
			writeRaw(w, http.StatusOK, body)
			return
		}

		var bad *badRequestError
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, LabelBadRequest, bad.Error())
			return
		}

		var uerr *agentclient.UpstreamError
		if !errors.As(err, &uerr) {
			uerr = &agentclient.UpstreamError{Kind: agentclient.Unreachable, Err: err}
		}
		s.events.LogAgentCallFailed(rt.path, string(uerr.Kind), uerr.StatusCode, uerr.Message())

		if rt.failureBody != nil {
			writeJSON(w, rt.failureStatus, rt.failureBody(rt.label, uerr))
			return
		}
		writeError(w, rt.failureStatus, rt.label, uerr.Message())
	})
}

// decodeBody reads a single JSON value, ignoring fields the agent does not
// document. An empty body decodes as {} and leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &badRequestError{err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "online",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePushData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	data, err := io.ReadAll(limitedBody(w, r))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, LabelBadRequest, err.Error())
		return
	}

	// Any payload is accepted; keys are logged only for JSON objects.
	var keys []string
	var obj map[string]json.RawMessage
	if len(data) > 0 && json.Unmarshal(data, &obj) == nil && obj != nil {
		keys = make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	callerID := ""
	if caller := auth.GetCallerFromContext(r.Context()); caller != nil {
		callerID = caller.ID
	}
	s.events.LogPushReceived(callerID, len(data), keys)
	s.metrics.RecordPush(r.Context())

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
