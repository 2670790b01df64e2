package hoststats

import (
	"context"
	"errors"
	"testing"
)

func TestAverage(t *testing.T) {
	if Average(nil) != 0 {
		t.Error("average of none should be 0")
	}
	if got := Average([]float64{10, 20, 30}); got != 20 {
		t.Errorf("Average = %v, want 20", got)
	}
}

func TestStaticSampler(t *testing.T) {
	s := NewStaticSampler([]float64{10, 30}, 55)

	got, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if got.CPUCount != 2 || got.CPUAverage != 20 || got.MemoryPercent != 55 {
		t.Errorf("unexpected sample %+v", got)
	}

	got.CPUPerCore[0] = 99
	again, _ := s.Sample(context.Background())
	if again.CPUPerCore[0] != 10 {
		t.Error("sample shares the sampler's slice")
	}

	s.Set([]float64{1, 2, 3, 4}, 10)
	again, _ = s.Sample(context.Background())
	if again.CPUCount != 4 {
		t.Errorf("Set not applied: %+v", again)
	}

	boom := errors.New("boom")
	s.SetError(boom)
	if _, err := s.Sample(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestGopsutilSampler(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the live host")
	}
	s := NewGopsutilSampler(0)
	got, err := s.Sample(context.Background())
	if err != nil {
		t.Skipf("host sampling unavailable: %v", err)
	}
	if got.CPUCount != len(got.CPUPerCore) {
		t.Errorf("cpu count %d does not match per-core length %d", got.CPUCount, len(got.CPUPerCore))
	}
	for i, v := range got.CPUPerCore {
		if v < 0 || v > 100 {
			t.Errorf("core %d out of range: %v", i, v)
		}
	}
}

func TestInfo(t *testing.T) {
	info := Info(context.Background())
	if info.PID <= 0 {
		t.Errorf("expected pid, got %d", info.PID)
	}
}
