package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bc-dunia/threadviz/internal/types"
)

const (
	// DefaultHealthInterval is the gap between health probes.
	DefaultHealthInterval = 10 * time.Second
	// DefaultProbeTimeout bounds a single health probe.
	DefaultProbeTimeout = 5 * time.Second
)

// ErrAgentUnhealthy is returned by a probe whose reply was not "healthy".
var ErrAgentUnhealthy = errors.New("agent reported a non-healthy status")

// HealthProber answers one health probe.
type HealthProber interface {
	Health(ctx context.Context) (*types.HealthStatus, error)
}

// ChangeCallback receives each actual connectivity transition.
type ChangeCallback func(from, to types.ConnectivityState)

// ProbeFailedCallback receives the error of every failed probe.
type ProbeFailedCallback func(err error)

// Monitor probes agent health on an interval and tracks connectivity.
// Probe outcomes are applied as-is with no debouncing.
type Monitor struct {
	prober        HealthProber
	interval      time.Duration
	timeout       time.Duration
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	cancel        context.CancelFunc
	mu            sync.Mutex
	running       bool
	state         types.ConnectivityState
	onChange      ChangeCallback
	onProbeFailed ProbeFailedCallback
}

// NewMonitor creates a Monitor. Zero durations take the defaults.
func NewMonitor(prober HealthProber, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Monitor{
		prober:    prober,
		interval:  interval,
		timeout:   timeout,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// SetOnChange sets the transition callback. Must be called before Start().
func (m *Monitor) SetOnChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = cb
}

// SetOnProbeFailed sets the failure callback. Must be called before Start().
func (m *Monitor) SetOnProbeFailed(cb ProbeFailedCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProbeFailed = cb
}

// Start probes immediately and then every interval in a background
// goroutine. Subsequent calls are no-ops while running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	stopCh, stoppedCh := m.stopCh, m.stoppedCh
	m.mu.Unlock()

	go m.run(ctx, stopCh, stoppedCh)
}

// Stop ends the loop, aborting any in-flight probe, and blocks until the
// goroutine has exited. The result of an aborted probe is not applied.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.cancel()
	stoppedCh := m.stoppedCh
	m.mu.Unlock()

	<-stoppedCh
}

func (m *Monitor) run(ctx context.Context, stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		healthy, err := m.probe(ctx)
		select {
		case <-stopCh:
			return
		default:
		}
		m.apply(healthy, err)

		select {
		case <-ticker.C:
		case <-stopCh:
			return
		}
	}
}

// ProbeOnce runs a single probe outside the loop and applies its outcome.
// It returns the resulting state and the probe error, if any.
func (m *Monitor) ProbeOnce(ctx context.Context) (types.ConnectivityState, error) {
	healthy, err := m.probe(ctx)
	return m.apply(healthy, err), err
}

func (m *Monitor) probe(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status, err := m.prober.Health(ctx)
	if err != nil {
		return false, err
	}
	if !status.Healthy() {
		return false, ErrAgentUnhealthy
	}
	return true, nil
}

func (m *Monitor) apply(healthy bool, err error) types.ConnectivityState {
	next := types.ConnectivityDisconnected
	if healthy {
		next = types.ConnectivityConnected
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	onChange, onProbeFailed := m.onChange, m.onProbeFailed
	m.mu.Unlock()

	if !healthy && onProbeFailed != nil {
		onProbeFailed(err)
	}
	if prev != next && onChange != nil {
		onChange(prev, next)
	}
	return next
}

// State returns the current connectivity.
func (m *Monitor) State() types.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning returns true if the probe loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Interval returns the probe period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}
