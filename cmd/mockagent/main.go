// Package main provides the threadviz-mockagent binary. It serves the agent
// contract on top of live gopsutil readings so the gateway and console can
// run without the real agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/mockagent"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5111", "HTTP server address")
	window := flag.Duration("sample-window", 500*time.Millisecond, "CPU measurement window per /stats call")
	burn := flag.Bool("burn", true, "Spin a goroutine for cpu_intensive tasks")
	flag.Parse()

	sampler := hoststats.NewGopsutilSampler(*window)

	cfg := mockagent.DefaultConfig()
	cfg.Addr = *addr
	cfg.BurnCPU = *burn
	if info := hoststats.Info(context.Background()); info.Hostname != "" {
		cfg.Hostname = info.Hostname
	}

	agent := mockagent.New(cfg, sampler)
	if err := agent.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock agent: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock agent %s listening on %s\n", agent.AgentID(), agent.URL())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	agent.Stop(ctx)
	fmt.Println("Mock agent stopped")
}
