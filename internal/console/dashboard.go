// Package console is the operator-side pipeline: it watches agent health,
// polls stats while connected, keeps a rolling per-core CPU history, and
// sends control commands through the gateway.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/types"
)

// ConnectErrorMessage is shown to the operator when a health probe fails.
const ConnectErrorMessage = "Cannot connect to the agent. Make sure it's running."

// View is a copy of the dashboard state for presentation.
type View struct {
	Connectivity types.ConnectivityState
	Snapshot     *types.StatsSnapshot
	History      []types.HistoryPoint
	Algorithm    types.AlgorithmID
	ActiveTasks  int
	Busy         bool
	Error        string
}

// Options tune a Dashboard. Zero values take the package defaults.
type Options struct {
	HealthInterval  time.Duration
	ProbeTimeout    time.Duration
	PollInterval    time.Duration
	HistoryCapacity int
	Clock           func() time.Time
	Events          *events.EventLogger
}

// Dashboard owns the console state and wires the monitor, poller and
// dispatcher together. Monitor transitions to connected start the poller;
// any other transition stops it.
type Dashboard struct {
	monitor    *Monitor
	poller     *Poller
	dispatcher *Dispatcher
	events     *events.EventLogger

	mu           sync.Mutex
	connectivity types.ConnectivityState
	snapshot     *types.StatsSnapshot
	history      *HistoryBuffer
	algorithm    AlgorithmView
	errMsg       string
	busy         int
	updates      chan struct{}
}

func NewDashboard(gateway Gateway, opts Options) *Dashboard {
	if opts.Events == nil {
		opts.Events = events.NoopEventLogger()
	}

	d := &Dashboard{
		events:    opts.Events,
		history:   NewHistoryBuffer(opts.HistoryCapacity),
		algorithm: AlgorithmView{Confirmed: types.DefaultAlgorithm},
		updates:   make(chan struct{}, 1),
	}

	d.monitor = NewMonitor(gateway, opts.HealthInterval, opts.ProbeTimeout)
	d.monitor.SetOnChange(d.onConnectivityChange)
	d.monitor.SetOnProbeFailed(d.onProbeFailed)

	d.poller = NewPoller(gateway, d, opts.PollInterval)
	d.poller.SetEventLogger(opts.Events)
	if opts.Clock != nil {
		d.poller.SetClock(opts.Clock)
	}

	d.dispatcher = NewDispatcher(gateway, d, opts.Events)
	return d
}

func (d *Dashboard) Monitor() *Monitor       { return d.monitor }
func (d *Dashboard) Poller() *Poller         { return d.poller }
func (d *Dashboard) Dispatcher() *Dispatcher { return d.dispatcher }

// Run starts the monitor and blocks until ctx is done, then stops the
// monitor and the poller.
func (d *Dashboard) Run(ctx context.Context) error {
	d.monitor.Start()
	<-ctx.Done()
	d.monitor.Stop()
	d.poller.Stop()
	return nil
}

// Updates signals after every state change. Signals coalesce; read View()
// for the current state.
func (d *Dashboard) Updates() <-chan struct{} {
	return d.updates
}

func (d *Dashboard) onConnectivityChange(from, to types.ConnectivityState) {
	d.mu.Lock()
	d.connectivity = to
	d.mu.Unlock()

	d.events.LogConnectivityChanged(from.String(), to.String())

	// Called without d.mu held: the poller takes its own lock before ours.
	if to == types.ConnectivityConnected {
		d.poller.Start()
	} else {
		d.poller.Stop()
	}
	d.notify()
}

func (d *Dashboard) onProbeFailed(error) {
	d.SetError(ConnectErrorMessage)
}

// ApplySnapshot replaces the latest snapshot, appends its history point and
// adopts the agent's algorithm.
func (d *Dashboard) ApplySnapshot(snap *types.StatsSnapshot, label string) {
	if snap == nil {
		return
	}
	d.mu.Lock()
	d.snapshot = snap.Clone()
	d.history.Append(types.NewHistoryPoint(label, snap))
	d.algorithm = Reconcile(d.algorithm, snap)
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) BeginCommand() {
	d.mu.Lock()
	d.busy++
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) EndCommand() {
	d.mu.Lock()
	if d.busy > 0 {
		d.busy--
	}
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) SetOptimisticAlgorithm(id types.AlgorithmID) {
	d.mu.Lock()
	d.algorithm = d.algorithm.WithOptimistic(id)
	d.mu.Unlock()
	d.notify()
}

// SetError sets the operator-visible message, replacing any previous one.
func (d *Dashboard) SetError(msg string) {
	d.mu.Lock()
	d.errMsg = msg
	d.mu.Unlock()
	d.notify()
}

// ClearError dismisses the operator-visible message.
func (d *Dashboard) ClearError() {
	d.SetError("")
}

// View returns a deep copy of the current state.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Connectivity: d.connectivity,
		Snapshot:     d.snapshot.Clone(),
		History:      d.history.Points(),
		Algorithm:    d.algorithm.Display(),
		Busy:         d.busy > 0,
		Error:        d.errMsg,
	}
	if d.snapshot != nil {
		v.ActiveTasks = len(d.snapshot.ActiveTasks)
	}
	return v
}

func (d *Dashboard) SetAlgorithm(ctx context.Context, id types.AlgorithmID) error {
	return d.dispatcher.SetAlgorithm(ctx, id)
}

func (d *Dashboard) RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error) {
	return d.dispatcher.RunTask(ctx, taskType, seconds)
}

func (d *Dashboard) ClearHistory(ctx context.Context) error {
	return d.dispatcher.ClearHistory(ctx)
}

func (d *Dashboard) notify() {
	select {
	case d.updates <- struct{}{}:
	default:
	}
}
