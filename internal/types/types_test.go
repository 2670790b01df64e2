package types

import (
	"encoding/json"
	"testing"
)

func TestAlgorithmValid(t *testing.T) {
	for _, a := range Algorithms() {
		if !a.Valid() {
			t.Errorf("%q should be valid", a)
		}
	}
	for _, a := range []AlgorithmID{"", "fifo", "Round_Robin"} {
		if a.Valid() {
			t.Errorf("%q should be invalid", a)
		}
	}
}

func TestTaskTypeValid(t *testing.T) {
	if !TaskCPUIntensive.Valid() || !TaskIOBound.Valid() {
		t.Error("known task types should be valid")
	}
	if TaskType("gpu").Valid() {
		t.Error("unknown task type should be invalid")
	}
}

func TestClampDuration(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {15, 15}, {30, 30}, {45, 30},
	}
	for _, tt := range tests {
		if got := ClampDuration(tt.in); got != tt.want {
			t.Errorf("ClampDuration(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStatsSnapshotDecode(t *testing.T) {
	raw := `{
		"cpu_percent_per_core": [10.5, 20],
		"cpu_average": 15.25,
		"memory_percent": 40,
		"cpu_count": 2,
		"algorithm": "least_connections",
		"active_tasks": [{"task_id":"a","thread_id":1,"type":"io_bound","status":"running","cpu_core":1}],
		"task_history": [{"task_id":"b","thread_id":2,"type":"cpu_intensive","duration":3.5,"status":"completed"}]
	}`
	var s StatsSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s.CPUCount != 2 || s.Algorithm != AlgorithmLeastConnections {
		t.Errorf("unexpected snapshot: %+v", s)
	}
	if len(s.ActiveTasks) != 1 || s.ActiveTasks[0].Duration != nil {
		t.Errorf("active task should have no duration: %+v", s.ActiveTasks)
	}
	if len(s.TaskHistory) != 1 || s.TaskHistory[0].Duration == nil || *s.TaskHistory[0].Duration != 3.5 {
		t.Errorf("history task should carry duration: %+v", s.TaskHistory)
	}
}

func TestStatsSnapshotCloneIsDeep(t *testing.T) {
	d := 2.0
	s := &StatsSnapshot{
		CPUPercentPerCore: []float64{1, 2},
		TaskHistory:       []TaskRecord{{TaskID: "x", Duration: &d}},
	}
	c := s.Clone()
	c.CPUPercentPerCore[0] = 99
	*c.TaskHistory[0].Duration = 7

	if s.CPUPercentPerCore[0] != 1 {
		t.Error("clone shares per-core slice")
	}
	if *s.TaskHistory[0].Duration != 2 {
		t.Error("clone shares duration pointer")
	}

	var nilSnap *StatsSnapshot
	if nilSnap.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

func TestHealthStatusHealthy(t *testing.T) {
	tests := []struct {
		h    *HealthStatus
		want bool
	}{
		{nil, false},
		{&HealthStatus{Status: "healthy"}, true},
		{&HealthStatus{Status: "degraded"}, false},
		{&HealthStatus{Status: ""}, false},
	}
	for _, tt := range tests {
		if got := tt.h.Healthy(); got != tt.want {
			t.Errorf("Healthy(%+v) = %v, want %v", tt.h, got, tt.want)
		}
	}
}

func TestHistoryPointJSON(t *testing.T) {
	p := NewHistoryPoint("10:04:05", &StatsSnapshot{CPUPercentPerCore: []float64{12.5, 3}})

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"time":"10:04:05","Core 0":12.5,"Core 1":3}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}

	var back HistoryPoint
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Time != "10:04:05" || len(back.Cores) != 2 || back.Cores[1] != 3 {
		t.Errorf("unexpected point: %+v", back)
	}
	if v, ok := back.Value("Core 0"); !ok || v != 12.5 {
		t.Errorf("Value(Core 0) = %v, %v", v, ok)
	}
	if _, ok := back.Value("Core 5"); ok {
		t.Error("Value for missing core should report false")
	}
}

func TestConnectivityString(t *testing.T) {
	if ConnectivityUnknown.String() != "unknown" || ConnectivityConnected.String() != "connected" || ConnectivityDisconnected.String() != "disconnected" {
		t.Error("unexpected connectivity names")
	}
}

func TestCommandBodiesOmitAbsentFields(t *testing.T) {
	for _, v := range []interface{}{SetAlgorithmRequest{}, RunTaskRequest{}} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %T: %v", v, err)
		}
		if string(b) != "{}" {
			t.Errorf("%T encoded as %s, want {}", v, b)
		}
	}
}
