package console

import "github.com/bc-dunia/threadviz/internal/types"

// HistoryCapacity is the number of points kept for the per-core chart.
const HistoryCapacity = 20

// HistoryBuffer is a FIFO of history points bounded at its capacity. It is
// not safe for concurrent use; Dashboard guards it.
type HistoryBuffer struct {
	points   []types.HistoryPoint
	capacity int
}

// NewHistoryBuffer returns an empty buffer. A non-positive capacity means
// HistoryCapacity.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &HistoryBuffer{
		points:   make([]types.HistoryPoint, 0, capacity),
		capacity: capacity,
	}
}

// Append adds p as the newest point and evicts the oldest one if the buffer
// was full. It reports whether an eviction happened.
func (b *HistoryBuffer) Append(p types.HistoryPoint) bool {
	evicted := false
	if len(b.points) == b.capacity {
		copy(b.points, b.points[1:])
		b.points = b.points[:len(b.points)-1]
		evicted = true
	}
	b.points = append(b.points, p)
	return evicted
}

// Points returns a deep copy, oldest first.
func (b *HistoryBuffer) Points() []types.HistoryPoint {
	out := make([]types.HistoryPoint, len(b.points))
	for i, p := range b.points {
		out[i] = types.HistoryPoint{
			Time:  p.Time,
			Cores: append([]float64(nil), p.Cores...),
		}
	}
	return out
}

// Len returns the number of points held, at most Cap.
func (b *HistoryBuffer) Len() int {
	return len(b.points)
}

// Cap returns the capacity fixed at construction.
func (b *HistoryBuffer) Cap() int {
	return b.capacity
}
