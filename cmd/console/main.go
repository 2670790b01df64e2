// Package main provides the threadviz-console binary, the operator's view of
// the agent through the gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/threadviz/internal/config"
	"github.com/bc-dunia/threadviz/internal/console"
	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/types"
)

const usage = `Usage: threadviz-console <command> [flags]

Commands:
  watch           Monitor the agent and redraw the dashboard on every change
  status          Print agent health and one stats snapshot
  set-algorithm   Change the agent's scheduling algorithm
  run-task        Start a synthetic task on the agent
  clear-history   Clear the agent's completed-task history

Environment:
  THREADVIZ_GATEWAY_URL   Gateway API root (default ` + config.DefaultGatewayURL + `)
  LOG_FORMAT              json or text for event logs on stderr
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadConsoleConfig(nil)

	var err error
	switch os.Args[1] {
	case "watch":
		err = runWatch(cfg, os.Args[2:])
	case "status":
		err = runStatus(cfg, os.Args[2:])
	case "set-algorithm":
		err = runSetAlgorithm(cfg, os.Args[2:])
	case "run-task":
		err = runRunTask(cfg, os.Args[2:])
	case "clear-history":
		err = runClearHistory(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string, cfg *config.ConsoleConfig) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	gatewayURL := fs.String("gateway-url", cfg.GatewayURL, "Gateway API root")
	return fs, gatewayURL
}

func newDashboard(cfg *config.ConsoleConfig, gatewayURL string, opts console.Options) (*console.Dashboard, error) {
	cfg.GatewayURL = gatewayURL
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.Events = events.NewEventLoggerWithWriter("console", cfg.LogFormat, os.Stderr)
	return console.NewDashboard(console.NewHTTPGateway(cfg.GatewayURL, nil), opts), nil
}

func runWatch(cfg *config.ConsoleConfig, args []string) error {
	fs, gatewayURL := newFlagSet("watch", cfg)
	healthInterval := fs.Duration("health-interval", console.DefaultHealthInterval, "Health probe interval")
	pollInterval := fs.Duration("poll-interval", console.DefaultPollInterval, "Stats poll interval while connected")
	noClear := fs.Bool("no-clear", false, "Append frames instead of clearing the terminal")
	fs.Parse(args)

	dash, err := newDashboard(cfg, *gatewayURL, console.Options{
		HealthInterval: *healthInterval,
		PollInterval:   *pollInterval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		dash.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			fmt.Println()
			return nil
		case <-dash.Updates():
			if !*noClear {
				fmt.Print("\033[H\033[2J")
			}
			Render(os.Stdout, dash.View())
		}
	}
}

func runStatus(cfg *config.ConsoleConfig, args []string) error {
	fs, gatewayURL := newFlagSet("status", cfg)
	timeout := fs.Duration("timeout", console.DefaultProbeTimeout, "Request timeout")
	fs.Parse(args)

	cfg.GatewayURL = *gatewayURL
	if err := cfg.Validate(); err != nil {
		return err
	}
	gw := console.NewHTTPGateway(cfg.GatewayURL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	health, err := gw.Health(ctx)
	if err != nil {
		return fmt.Errorf("%s (%v)", console.ConnectErrorMessage, err)
	}
	if !health.Healthy() {
		return fmt.Errorf("agent reports status %q", health.Status)
	}
	fmt.Printf("Agent %s on %s: %s (%d cpus)\n", health.AgentID, health.Hostname, health.Status, health.CPUCount)

	snap, err := gw.Stats(ctx)
	if err != nil {
		return err
	}
	view := console.View{
		Connectivity: types.ConnectivityConnected,
		Snapshot:     snap,
		Algorithm:    snap.Algorithm,
		ActiveTasks:  len(snap.ActiveTasks),
	}
	Render(os.Stdout, view)
	return nil
}

func runSetAlgorithm(cfg *config.ConsoleConfig, args []string) error {
	fs, gatewayURL := newFlagSet("set-algorithm", cfg)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: threadviz-console set-algorithm [flags] <%s|%s|%s>\n",
			types.AlgorithmRoundRobin, types.AlgorithmRandom, types.AlgorithmLeastConnections)
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("algorithm is required")
	}

	dash, err := newDashboard(cfg, *gatewayURL, console.Options{})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dash.SetAlgorithm(ctx, types.AlgorithmID(fs.Arg(0))); err != nil {
		return commandError(dash, err)
	}
	fmt.Printf("Algorithm set to %s\n", dash.View().Algorithm)
	return nil
}

func runRunTask(cfg *config.ConsoleConfig, args []string) error {
	fs, gatewayURL := newFlagSet("run-task", cfg)
	taskType := fs.String("type", string(types.TaskCPUIntensive), "Task type: cpu_intensive or io_bound")
	duration := fs.Int("duration", types.DefaultTaskDuration, "Task duration in seconds (1-30)")
	fs.Parse(args)

	dash, err := newDashboard(cfg, *gatewayURL, console.Options{})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ack, err := dash.RunTask(ctx, types.TaskType(*taskType), *duration)
	if err != nil {
		return commandError(dash, err)
	}
	fmt.Printf("Task %s %s (%s, algorithm %s)\n", ack.TaskID, ack.Status, ack.Type, ack.Algorithm)
	return nil
}

func runClearHistory(cfg *config.ConsoleConfig, args []string) error {
	fs, gatewayURL := newFlagSet("clear-history", cfg)
	fs.Parse(args)

	dash, err := newDashboard(cfg, *gatewayURL, console.Options{})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dash.ClearHistory(ctx); err != nil {
		return commandError(dash, err)
	}
	fmt.Println("History cleared")
	return nil
}

// commandError prefers the operator message the dispatcher recorded.
func commandError(dash *console.Dashboard, err error) error {
	if msg := dash.View().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}
