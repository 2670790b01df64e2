// Package gateway is the public HTTP relay in front of the scheduling agent.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bc-dunia/threadviz/internal/auth"
	"github.com/bc-dunia/threadviz/internal/config"
	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/otel"
	"github.com/bc-dunia/threadviz/internal/types"
)

// AgentClient is the upstream the gateway relays to.
// *agentclient.Client satisfies it.
type AgentClient interface {
	Health(ctx context.Context) (json.RawMessage, error)
	Stats(ctx context.Context) (json.RawMessage, error)
	SetAlgorithm(ctx context.Context, req types.SetAlgorithmRequest) (json.RawMessage, error)
	RunTask(ctx context.Context, req types.RunTaskRequest) (json.RawMessage, error)
	ClearHistory(ctx context.Context) (json.RawMessage, error)
}

type Server struct {
	cfg      *config.GatewayConfig
	agent    AgentClient
	authn    *auth.SharedSecretAuthenticator
	events   *events.EventLogger
	tracer   *otel.Tracer
	metrics  *otel.Metrics
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
	addr     string
	now      func() time.Time
}

type Option func(*Server)

func WithEventLogger(l *events.EventLogger) Option {
	return func(s *Server) { s.events = l }
}

func WithTracer(t *otel.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

func WithMetrics(m *otel.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAddr overrides the listen address derived from cfg, e.g.
// "127.0.0.1:0" in tests.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithClock sets the clock used for /api/health timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer builds a gateway relaying to agent. A nil cfg uses
// config.DefaultGatewayConfig.
func NewServer(cfg *config.GatewayConfig, agent AgentClient, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultGatewayConfig()
	}
	s := &Server{
		cfg:   cfg,
		agent: agent,
		authn: auth.NewSharedSecretAuthenticator(&cfg.Auth),
		addr:  cfg.ListenAddr(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.NoopEventLogger()
	}
	if s.tracer == nil {
		s.tracer = otel.NoopTracer()
	}
	if s.metrics == nil {
		s.metrics = otel.NoopMetrics()
	}
	s.handler = s.buildHandler()
	return s
}

// Handler returns the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = mux
	h = corsMiddleware(s.authn.Header())(h)
	h = otel.Middleware(s.tracer)(h)
	h = requestLogMiddleware(s.events)(h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("gateway server error: %v\n", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
