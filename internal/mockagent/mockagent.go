// Package mockagent is an in-process stand-in for the local CPU agent. It
// serves the agent's HTTP contract backed by a hoststats.Sampler and runs
// synthetic tasks on timers.
package mockagent

import (
	"context"
	"encoding/json"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/types"
)

// HistoryLimit is how many completed tasks /stats returns.
const HistoryLimit = 20

type Config struct {
	Addr string
	// TaskSecond is the wall-clock length of one task second. Tests shrink it.
	TaskSecond time.Duration
	// BurnCPU makes cpu_intensive tasks spin a goroutine for their duration.
	BurnCPU  bool
	Hostname string
}

func DefaultConfig() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		Addr:       "127.0.0.1:5111",
		TaskSecond: time.Second,
		Hostname:   hostname,
	}
}

type Agent struct {
	cfg     *Config
	sampler hoststats.Sampler
	agentID string
	pid     int

	httpServer *http.Server
	listener   net.Listener
	addr       string

	mu           sync.Mutex
	algorithm    types.AlgorithmID
	active       map[string]*types.TaskRecord
	history      []types.TaskRecord
	cpuCount     int
	nextCore     int
	healthStatus string
	failStats    bool
	calls        map[string]int

	threadSeq atomic.Int64
	tasks     sync.WaitGroup
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// New creates an agent. The core count used for task placement is read
// from the sampler on first use.
func New(cfg *Config, sampler hoststats.Sampler) *Agent {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TaskSecond <= 0 {
		cfg.TaskSecond = time.Second
	}
	return &Agent{
		cfg:          cfg,
		sampler:      sampler,
		agentID:      uuid.NewString(),
		pid:          os.Getpid(),
		algorithm:    types.DefaultAlgorithm,
		active:       make(map[string]*types.TaskRecord),
		healthStatus: types.HealthyStatus,
		calls:        make(map[string]int),
		stopCh:       make(chan struct{}),
	}
}

func (a *Agent) AgentID() string {
	return a.agentID
}

// Handler returns the agent's routes.
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.route(http.MethodGet, a.handleHealth))
	mux.HandleFunc("/stats", a.route(http.MethodGet, a.handleStats))
	mux.HandleFunc("/run_task", a.route(http.MethodPost, a.handleRunTask))
	mux.HandleFunc("/set_algorithm", a.route(http.MethodPost, a.handleSetAlgorithm))
	mux.HandleFunc("/clear_history", a.route(http.MethodPost, a.handleClearHistory))
	return mux
}

func (a *Agent) Start() error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	a.listener = ln
	a.addr = ln.Addr().String()
	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = a.httpServer.Serve(ln)
	}()
	return nil
}

// Stop shuts the listener down and abandons running tasks.
func (a *Agent) Stop(ctx context.Context) {
	a.stopOnce.Do(func() { close(a.stopCh) })
	if a.httpServer != nil {
		_ = a.httpServer.Shutdown(ctx)
	}
	a.tasks.Wait()
}

func (a *Agent) Addr() string {
	return a.addr
}

func (a *Agent) URL() string {
	if a.addr == "" {
		return ""
	}
	return "http://" + a.addr
}

// SetHealthStatus overrides the status reported by /health.
func (a *Agent) SetHealthStatus(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthStatus = status
}

// SetStatsFailure makes /stats answer 500 while fail is true.
func (a *Agent) SetStatsFailure(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failStats = fail
}

// Calls returns how many requests reached path.
func (a *Agent) Calls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

// Algorithm returns the current scheduling algorithm.
func (a *Agent) Algorithm() types.AlgorithmID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.algorithm
}

// ActiveCount returns the number of running tasks.
func (a *Agent) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *Agent) route(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.calls[r.URL.Path]++
		a.mu.Unlock()

		if r.Method != method {
			w.Header().Set("Allow", method)
			writeJSON(w, http.StatusMethodNotAllowed, types.ErrorBody{Error: "Method not allowed"})
			return
		}
		h(w, r)
	}
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	status := a.healthStatus
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, types.HealthStatus{
		Status:   status,
		AgentID:  a.agentID,
		CPUCount: a.coreCount(r.Context()),
		Hostname: a.cfg.Hostname,
	})
}

func (a *Agent) handleStats(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	fail := a.failStats
	a.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, types.ErrorBody{Error: "stats unavailable"})
		return
	}

	sample, err := a.sampler.Sample(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorBody{Error: "stats unavailable", Message: err.Error()})
		return
	}

	a.mu.Lock()
	if a.cpuCount == 0 {
		a.cpuCount = sample.CPUCount
	}
	snap := types.StatsSnapshot{
		CPUPercentPerCore: sample.CPUPerCore,
		CPUAverage:        sample.CPUAverage,
		MemoryPercent:     sample.MemoryPercent,
		CPUCount:          sample.CPUCount,
		Algorithm:         a.algorithm,
		ActiveTasks:       a.activeLocked(),
		TaskHistory:       a.recentHistoryLocked(),
	}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, snap)
}

func (a *Agent) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     *types.TaskType `json:"type"`
		Duration *float64        `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Error: "Invalid request body", Message: err.Error()})
		return
	}
	// Absent means cpu_intensive; any other value, "" included, runs as io_bound.
	taskType := types.TaskCPUIntensive
	if req.Type != nil {
		taskType = *req.Type
	}
	seconds := types.DefaultTaskDuration
	if req.Duration != nil {
		seconds = int(*req.Duration)
	}
	if seconds > types.MaxTaskDuration {
		seconds = types.MaxTaskDuration
	}
	if seconds < 0 {
		seconds = 0
	}

	runAs := types.TaskIOBound
	if taskType == types.TaskCPUIntensive {
		runAs = types.TaskCPUIntensive
	}

	cores := a.coreCount(r.Context())
	taskID := uuid.NewString()

	a.mu.Lock()
	algorithm := a.algorithm
	task := &types.TaskRecord{
		TaskID:    taskID,
		ThreadID:  int(a.threadSeq.Add(1)),
		ProcessID: a.pid,
		CPUCore:   a.pickCoreLocked(cores),
		StartTime: unixSeconds(time.Now()),
		Type:      runAs,
		Status:    types.TaskStatusRunning,
	}
	a.active[taskID] = task
	a.mu.Unlock()

	a.tasks.Add(1)
	go a.runTask(task, time.Duration(seconds)*a.cfg.TaskSecond)

	writeJSON(w, http.StatusOK, types.RunTaskAck{
		TaskID:    taskID,
		Status:    "started",
		Type:      taskType,
		Algorithm: algorithm,
	})
}

func (a *Agent) handleSetAlgorithm(w http.ResponseWriter, r *http.Request) {
	// A pointer tells an absent algorithm (default) from an empty one (invalid).
	var req struct {
		Algorithm *types.AlgorithmID `json:"algorithm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Error: "Invalid request body", Message: err.Error()})
		return
	}
	algorithm := types.DefaultAlgorithm
	if req.Algorithm != nil {
		algorithm = *req.Algorithm
	}
	if !algorithm.Valid() {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Error: "Invalid algorithm"})
		return
	}

	a.mu.Lock()
	a.algorithm = algorithm
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, types.SetAlgorithmAck{Algorithm: algorithm, Status: "updated"})
}

func (a *Agent) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, types.StatusAck{Status: "history cleared"})
}

func (a *Agent) runTask(task *types.TaskRecord, d time.Duration) {
	defer a.tasks.Done()

	start := time.Now()
	done := make(chan struct{})
	if a.cfg.BurnCPU && task.Type == types.TaskCPUIntensive {
		go burn(done)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-a.stopCh:
		close(done)
		return
	}
	close(done)

	end := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	completed := *task
	completed.EndTime = unixSeconds(end)
	elapsed := end.Sub(start).Seconds()
	completed.Duration = &elapsed
	completed.Status = types.TaskStatusCompleted
	delete(a.active, task.TaskID)
	a.history = append(a.history, completed)
}

// burn keeps one goroutine busy until done closes.
func burn(done <-chan struct{}) {
	x := 1.0
	for i := 0; ; i++ {
		x = x*1.0000001 + float64(i)
		if i%1000000 == 0 {
			select {
			case <-done:
				return
			default:
			}
		}
	}
}

// pickCoreLocked assigns a core according to the current algorithm.
func (a *Agent) pickCoreLocked(cores int) int {
	if cores < 1 {
		return 0
	}
	switch a.algorithm {
	case types.AlgorithmRandom:
		return rand.Intn(cores)
	case types.AlgorithmLeastConnections:
		load := make([]int, cores)
		for _, t := range a.active {
			if t.CPUCore >= 0 && t.CPUCore < cores {
				load[t.CPUCore]++
			}
		}
		best := 0
		for i := 1; i < cores; i++ {
			if load[i] < load[best] {
				best = i
			}
		}
		return best
	default:
		core := a.nextCore % cores
		a.nextCore = core + 1
		return core
	}
}

func (a *Agent) coreCount(ctx context.Context) int {
	a.mu.Lock()
	n := a.cpuCount
	a.mu.Unlock()
	if n > 0 {
		return n
	}
	sample, err := a.sampler.Sample(ctx)
	if err != nil || sample.CPUCount == 0 {
		return 0
	}
	a.mu.Lock()
	a.cpuCount = sample.CPUCount
	a.mu.Unlock()
	return sample.CPUCount
}

func (a *Agent) activeLocked() []types.TaskRef {
	out := make([]types.TaskRef, 0, len(a.active))
	for _, t := range a.active {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return strings.Compare(out[i].TaskID, out[j].TaskID) < 0
	})
	return out
}

func (a *Agent) recentHistoryLocked() []types.TaskRecord {
	start := 0
	if len(a.history) > HistoryLimit {
		start = len(a.history) - HistoryLimit
	}
	out := make([]types.TaskRecord, len(a.history)-start)
	copy(out, a.history[start:])
	return out
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
