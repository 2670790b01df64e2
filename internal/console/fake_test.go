package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bc-dunia/threadviz/internal/types"
)

// fakeGateway is an in-memory Gateway with per-method counters.
type fakeGateway struct {
	mu          sync.Mutex
	health      *types.HealthStatus
	healthErr   error
	snap        *types.StatsSnapshot
	statsErr    error
	commandErr  error
	statsCalls  int
	healthCalls int
	sentAlgo    []types.AlgorithmID
	sentTasks   []sentTask
	clears      int
	// statsGate, when set, blocks Stats until a value is received.
	statsGate chan struct{}
}

type sentTask struct {
	Type    types.TaskType
	Seconds int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		health: &types.HealthStatus{Status: types.HealthyStatus},
		snap: &types.StatsSnapshot{
			CPUPercentPerCore: []float64{10, 20},
			CPUCount:          2,
			Algorithm:         types.AlgorithmRoundRobin,
		},
	}
}

func (f *fakeGateway) Health(ctx context.Context) (*types.HealthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCalls++
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	h := *f.health
	return &h, nil
}

func (f *fakeGateway) Stats(ctx context.Context) (*types.StatsSnapshot, error) {
	f.mu.Lock()
	f.statsCalls++
	gate := f.statsGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.snap.Clone(), nil
}

func (f *fakeGateway) SetAlgorithm(ctx context.Context, id types.AlgorithmID) (*types.SetAlgorithmAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentAlgo = append(f.sentAlgo, id)
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	return &types.SetAlgorithmAck{Algorithm: id, Status: "updated"}, nil
}

func (f *fakeGateway) RunTask(ctx context.Context, taskType types.TaskType, seconds int) (*types.RunTaskAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentTasks = append(f.sentTasks, sentTask{Type: taskType, Seconds: seconds})
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	return &types.RunTaskAck{TaskID: "task-1", Status: "started", Type: taskType}, nil
}

func (f *fakeGateway) ClearHistory(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.commandErr
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) statsCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsCalls
}

var errRefused = errors.New("connection refused")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
