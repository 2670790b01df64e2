package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// HistoryPoint is per-core CPU utilization derived from one snapshot.
// It encodes flat, e.g. {"time":"10:04:05","Core 0":12.5,"Core 1":3}.
type HistoryPoint struct {
	Time  string
	Cores []float64
}

// CoreLabel returns the series name for core i.
func CoreLabel(i int) string {
	return "Core " + strconv.Itoa(i)
}

// NewHistoryPoint projects a snapshot's per-core utilization onto a point.
func NewHistoryPoint(label string, s *StatsSnapshot) HistoryPoint {
	p := HistoryPoint{Time: label}
	if s != nil {
		p.Cores = append([]float64(nil), s.CPUPercentPerCore...)
	}
	return p
}

// Value returns the utilization recorded for the labelled core.
func (p HistoryPoint) Value(label string) (float64, bool) {
	for i, v := range p.Cores {
		if CoreLabel(i) == label {
			return v, true
		}
	}
	return 0, false
}

func (p HistoryPoint) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	t, err := json.Marshal(p.Time)
	if err != nil {
		return nil, err
	}
	buf.Write(t)
	for i, v := range p.Cores {
		fmt.Fprintf(&buf, `,%q:`, CoreLabel(i))
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("core %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *HistoryPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Time = ""
	p.Cores = nil
	if t, ok := raw["time"]; ok {
		if err := json.Unmarshal(t, &p.Time); err != nil {
			return fmt.Errorf("time: %w", err)
		}
	}
	for i := 0; ; i++ {
		v, ok := raw[CoreLabel(i)]
		if !ok {
			break
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("%s: %w", CoreLabel(i), err)
		}
		p.Cores = append(p.Cores, f)
	}
	return nil
}
