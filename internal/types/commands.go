package types

// Task durations accepted by the agent, in whole seconds.
const (
	MinTaskDuration     = 1
	MaxTaskDuration     = 30
	DefaultTaskDuration = 5
)

// ClampDuration bounds seconds to [MinTaskDuration, MaxTaskDuration].
func ClampDuration(seconds int) int {
	if seconds < MinTaskDuration {
		return MinTaskDuration
	}
	if seconds > MaxTaskDuration {
		return MaxTaskDuration
	}
	return seconds
}

// SetAlgorithmRequest is the body of set_algorithm. An absent algorithm is
// left out so the agent applies its own default.
type SetAlgorithmRequest struct {
	Algorithm AlgorithmID `json:"algorithm,omitempty"`
}

// RunTaskRequest is the body of run_task. Duration is in seconds. Absent
// fields stay absent on the wire.
type RunTaskRequest struct {
	Type     TaskType `json:"type,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// SetAlgorithmAck is the agent's reply to set_algorithm.
type SetAlgorithmAck struct {
	Algorithm AlgorithmID `json:"algorithm"`
	Status    string      `json:"status"`
}

// RunTaskAck is the agent's reply to run_task. The task runs on after the
// acknowledgement.
type RunTaskAck struct {
	TaskID    string      `json:"task_id"`
	Status    string      `json:"status"`
	Type      TaskType    `json:"type"`
	Algorithm AlgorithmID `json:"algorithm"`
}

// StatusAck is a reply carrying only a status string.
type StatusAck struct {
	Status string `json:"status"`
}

// ErrorBody is the JSON error shape returned by the gateway and agent.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}
