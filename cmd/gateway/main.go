// Package main provides the threadviz-gateway binary, the public relay in
// front of the local scheduling agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/threadviz/internal/agentclient"
	"github.com/bc-dunia/threadviz/internal/config"
	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/gateway"
	"github.com/bc-dunia/threadviz/internal/otel"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config and PORT)")
	agentURL := flag.String("agent-url", "", "Agent base URL (overrides config and AGENT_URL)")
	flag.Parse()

	cfg, err := config.LoadGatewayConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *agentURL != "" {
		cfg.AgentURL = *agentURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Auth.Secret == "" {
		log.Printf("[gateway] API_KEY is empty; push_data will reject every request")
	}

	ctx := context.Background()

	tracerCfg := cfg.TracerConfig()
	tracerCfg.ServiceVersion = version
	tracer, err := otel.NewTracer(ctx, tracerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating tracer: %v\n", err)
		os.Exit(1)
	}

	metricsCfg := cfg.MetricsConfig()
	metricsCfg.ServiceVersion = version
	metrics, err := otel.NewMetrics(ctx, metricsCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating metrics: %v\n", err)
		os.Exit(1)
	}

	eventLogger := events.NewEventLoggerWithWriter("gateway", cfg.Log.Format, os.Stdout)
	events.SetGlobalEventLogger(eventLogger)

	agent := agentclient.New(cfg.AgentURL,
		agentclient.WithTimeout(cfg.CallTimeout()),
		agentclient.WithTracer(tracer),
		agentclient.WithMetrics(metrics),
	)

	server := gateway.NewServer(cfg, agent,
		gateway.WithEventLogger(eventLogger),
		gateway.WithTracer(tracer),
		gateway.WithMetrics(metrics),
	)

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting gateway: %v\n", err)
		os.Exit(1)
	}

	log.Printf("[gateway] listening on %s, relaying to %s", server.URL(), cfg.AgentURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("[gateway] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gateway] metrics shutdown: %v", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gateway] tracer shutdown: %v", err)
	}
	log.Printf("[gateway] stopped")
}
