package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/types"
)

var (
	ErrInvalidAlgorithm = errors.New("invalid algorithm")
	ErrInvalidTaskType  = errors.New("invalid task type")
)

// Commander sends control commands through the gateway.
type Commander interface {
	SetAlgorithm(ctx context.Context, id types.AlgorithmID) (*types.SetAlgorithmAck, error)
	RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error)
	ClearHistory(ctx context.Context) error
}

// CommandState is the shared state commands report into.
type CommandState interface {
	BeginCommand()
	EndCommand()
	SetOptimisticAlgorithm(id types.AlgorithmID)
	SetError(msg string)
}

// Dispatcher sends one-shot commands. Commands never touch the history
// buffer or the latest snapshot, and they run independently of polling.
type Dispatcher struct {
	gateway Commander
	state   CommandState
	events  *events.EventLogger
}

func NewDispatcher(gateway Commander, state CommandState, el *events.EventLogger) *Dispatcher {
	if el == nil {
		el = events.NoopEventLogger()
	}
	return &Dispatcher{gateway: gateway, state: state, events: el}
}

// SetAlgorithm asks the agent to switch algorithms. On success the choice is
// shown optimistically until the next snapshot reports the agent's value.
func (d *Dispatcher) SetAlgorithm(ctx context.Context, id types.AlgorithmID) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAlgorithm, id)
	}

	d.state.BeginCommand()
	defer d.state.EndCommand()

	if _, err := d.gateway.SetAlgorithm(ctx, id); err != nil {
		d.fail("set_algorithm", "Failed to change algorithm: ", err)
		return fmt.Errorf("set algorithm: %w", err)
	}
	d.state.SetOptimisticAlgorithm(id)
	return nil
}

// RunTask submits a workload of seconds clamped to the agent's accepted
// range. It returns once the agent acknowledges, not when the task ends.
func (d *Dispatcher) RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error) {
	if !taskType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, taskType)
	}

	d.state.BeginCommand()
	defer d.state.EndCommand()

	ack, err := d.gateway.RunTask(ctx, taskType, types.ClampDuration(seconds))
	if err != nil {
		d.fail("run_task", "Failed to start task: ", err)
		return nil, fmt.Errorf("run task: %w", err)
	}
	return ack, nil
}

// ClearHistory clears the agent's task history. The local CPU history is
// left as is.
func (d *Dispatcher) ClearHistory(ctx context.Context) error {
	d.state.BeginCommand()
	defer d.state.EndCommand()

	if err := d.gateway.ClearHistory(ctx); err != nil {
		d.fail("clear_history", "Failed to clear history: ", err)
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (d *Dispatcher) fail(command, prefix string, err error) {
	d.events.LogCommandFailed(command, err)
	d.state.SetError(prefix + err.Error())
}
