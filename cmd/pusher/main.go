// Package main provides the threadviz-pusher binary. It samples the host
// with gopsutil and pushes readings to the gateway's authenticated
// push_data route.
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

	"github.com/bc-dunia/threadviz/internal/auth"
	"github.com/bc-dunia/threadviz/internal/config"
	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/pusher"
)

func main() {
	gatewayURL := flag.String("gateway-url", config.DefaultGatewayURL, "Gateway API root")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "Shared secret for push_data (defaults to API_KEY)")
	header := flag.String("api-key-header", auth.DefaultHeader, "Header carrying the shared secret")
	interval := flag.Duration("interval", pusher.DefaultInterval, "Push interval")
	window := flag.Duration("sample-window", 500*time.Millisecond, "CPU measurement window per sample")
	flag.Parse()

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --api-key or API_KEY is required")
		os.Exit(1)
	}

	p := pusher.New(pusher.Config{
		GatewayURL: *gatewayURL,
		Secret:     *apiKey,
		Header:     *header,
		Interval:   *interval,
	}, hoststats.NewGopsutilSampler(*window), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info := hoststats.Info(ctx)
	fmt.Printf("Pusher %s on %s (%d cpus, pid %d, %d threads)\n", p.AgentID(), info.Hostname, info.CPUCount, info.PID, info.NumThreads)
	fmt.Printf("Gateway: %s\n", *gatewayURL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	<-done

	stats := p.Stats()
	log.Printf("[pusher] stopped: %d sent, %d failed", stats.Sent, stats.Failed)
}
