// Package hoststats samples host CPU and memory utilization.
package hoststats

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one reading of host utilization.
type Sample struct {
	Timestamp     time.Time
	CPUPerCore    []float64
	CPUAverage    float64
	MemoryPercent float64
	CPUCount      int
	LoadAvg1      float64
	LoadAvg5      float64
	LoadAvg15     float64
	// Cumulative bytes across all interfaces.
	NetBytesSent uint64
	NetBytesRecv uint64
}

// Sampler produces host samples.
type Sampler interface {
	Sample(ctx context.Context) (*Sample, error)
}

// HostInfo describes the machine and the current process.
type HostInfo struct {
	Hostname   string
	CPUCount   int
	PID        int
	NumThreads int
}

// GopsutilSampler reads the live host through gopsutil.
type GopsutilSampler struct {
	// Window is how long per-core CPU usage is measured. Zero compares
	// against the previous call.
	Window time.Duration
}

func NewGopsutilSampler(window time.Duration) *GopsutilSampler {
	return &GopsutilSampler{Window: window}
}

func (s *GopsutilSampler) Sample(ctx context.Context) (*Sample, error) {
	perCore, err := cpu.PercentWithContext(ctx, s.Window, true)
	if err != nil {
		return nil, fmt.Errorf("reading cpu percent: %w", err)
	}

	sample := &Sample{
		Timestamp:  time.Now(),
		CPUPerCore: perCore,
		CPUAverage: Average(perCore),
		CPUCount:   len(perCore),
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil && memInfo != nil {
		sample.MemoryPercent = memInfo.UsedPercent
	}

	// Load average is unavailable on some platforms.
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		sample.LoadAvg1 = avg.Load1
		sample.LoadAvg5 = avg.Load5
		sample.LoadAvg15 = avg.Load15
	}

	if counters, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		sample.NetBytesSent = counters[0].BytesSent
		sample.NetBytesRecv = counters[0].BytesRecv
	}

	return sample, nil
}

// Info reports the hostname, logical CPU count and this process's PID and
// thread count. Fields that cannot be read are left zero.
func Info(ctx context.Context) HostInfo {
	info := HostInfo{PID: os.Getpid()}

	if hi, err := host.InfoWithContext(ctx); err == nil && hi != nil {
		info.Hostname = hi.Hostname
	} else if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCount = n
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(info.PID)); err == nil {
		if n, err := proc.NumThreadsWithContext(ctx); err == nil {
			info.NumThreads = int(n)
		}
	}
	return info
}

// Average returns the mean of values, or 0 for none.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StaticSampler returns fixed values. It is safe for concurrent use.
type StaticSampler struct {
	mu            sync.Mutex
	perCore       []float64
	memoryPercent float64
	err           error
}

func NewStaticSampler(perCore []float64, memoryPercent float64) *StaticSampler {
	return &StaticSampler{perCore: append([]float64(nil), perCore...), memoryPercent: memoryPercent}
}

// Set replaces the values returned by later samples.
func (s *StaticSampler) Set(perCore []float64, memoryPercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perCore = append([]float64(nil), perCore...)
	s.memoryPercent = memoryPercent
}

// SetError makes later samples fail with err; nil clears it.
func (s *StaticSampler) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StaticSampler) Sample(ctx context.Context) (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	perCore := append([]float64(nil), s.perCore...)
	return &Sample{
		Timestamp:     time.Now(),
		CPUPerCore:    perCore,
		CPUAverage:    Average(perCore),
		MemoryPercent: s.memoryPercent,
		CPUCount:      len(perCore),
	}, nil
}
