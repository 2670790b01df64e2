package types

// AlgorithmID names a scheduling algorithm the agent can run.
type AlgorithmID string

const (
	AlgorithmRoundRobin       AlgorithmID = "round_robin"
	AlgorithmRandom           AlgorithmID = "random"
	AlgorithmLeastConnections AlgorithmID = "least_connections"
)

// DefaultAlgorithm is the agent's algorithm before anyone changes it.
const DefaultAlgorithm = AlgorithmRoundRobin

// Algorithms lists every algorithm the agent accepts.
func Algorithms() []AlgorithmID {
	return []AlgorithmID{AlgorithmRoundRobin, AlgorithmRandom, AlgorithmLeastConnections}
}

// Valid reports whether a is one of the known algorithms.
func (a AlgorithmID) Valid() bool {
	switch a {
	case AlgorithmRoundRobin, AlgorithmRandom, AlgorithmLeastConnections:
		return true
	}
	return false
}

// TaskType is the kind of synthetic workload the agent runs.
type TaskType string

const (
	TaskCPUIntensive TaskType = "cpu_intensive"
	TaskIOBound      TaskType = "io_bound"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return t == TaskCPUIntensive || t == TaskIOBound
}

// Task status values reported by the agent.
const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
)

// TaskRecord is one task as reported by the agent. Active tasks carry no
// duration; completed tasks in history usually do.
type TaskRecord struct {
	TaskID    string   `json:"task_id"`
	ThreadID  int      `json:"thread_id"`
	Type      TaskType `json:"type"`
	Duration  *float64 `json:"duration,omitempty"`
	ProcessID int      `json:"process_id,omitempty"`
	CPUCore   int      `json:"cpu_core,omitempty"`
	StartTime float64  `json:"start_time,omitempty"`
	EndTime   float64  `json:"end_time,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// TaskRef is an entry of the agent's active task list.
type TaskRef = TaskRecord

// StatsSnapshot is one agent-reported state of CPU, memory and tasks.
// It is received whole and never merged with a previous snapshot.
type StatsSnapshot struct {
	CPUPercentPerCore []float64    `json:"cpu_percent_per_core"`
	CPUAverage        float64      `json:"cpu_average"`
	MemoryPercent     float64      `json:"memory_percent"`
	CPUCount          int          `json:"cpu_count"`
	Algorithm         AlgorithmID  `json:"algorithm"`
	ActiveTasks       []TaskRef    `json:"active_tasks"`
	TaskHistory       []TaskRecord `json:"task_history"`
}

// Clone returns a deep copy of s.
func (s *StatsSnapshot) Clone() *StatsSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.CPUPercentPerCore = append([]float64(nil), s.CPUPercentPerCore...)
	c.ActiveTasks = cloneTasks(s.ActiveTasks)
	c.TaskHistory = cloneTasks(s.TaskHistory)
	return &c
}

func cloneTasks(in []TaskRecord) []TaskRecord {
	if in == nil {
		return nil
	}
	out := make([]TaskRecord, len(in))
	for i, t := range in {
		out[i] = t
		if t.Duration != nil {
			d := *t.Duration
			out[i].Duration = &d
		}
	}
	return out
}

// HealthyStatus is the only agent health status treated as connected.
const HealthyStatus = "healthy"

// HealthStatus is the agent's /health body.
type HealthStatus struct {
	Status   string `json:"status"`
	AgentID  string `json:"agent_id,omitempty"`
	CPUCount int    `json:"cpu_count,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// Healthy reports whether the agent declared itself healthy. Any other
// status, including "degraded", is treated as unavailable.
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == HealthyStatus
}
