package console

import (
	"context"
	"sync"
	"time"

	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/types"
)

const (
	// DefaultPollInterval is the gap between the end of one stats fetch and
	// the start of the next.
	DefaultPollInterval = 2 * time.Second
	// HistoryTimeLayout labels history points with wall-clock time.
	HistoryTimeLayout = "15:04:05"
)

// StatsFetcher fetches one snapshot.
type StatsFetcher interface {
	Stats(ctx context.Context) (*types.StatsSnapshot, error)
}

// SnapshotSink receives each snapshot the poller accepts, together with
// its history label.
type SnapshotSink interface {
	ApplySnapshot(snap *types.StatsSnapshot, label string)
}

// PollerStats counts fetch outcomes since the poller was created.
type PollerStats struct {
	Applied   uint64
	Failed    uint64
	Discarded uint64
}

// Poller fetches stats on an interval while started. At most one fetch is
// outstanding per generation; each Start opens a new generation and any
// result belonging to an older one is discarded.
type Poller struct {
	fetcher    StatsFetcher
	sink       SnapshotSink
	interval   time.Duration
	now        func() time.Time
	events     *events.EventLogger
	mu         sync.Mutex
	running    bool
	generation uint64
	cancel     context.CancelFunc
	stats      PollerStats
}

// NewPoller creates a Poller. A zero interval means DefaultPollInterval.
func NewPoller(fetcher StatsFetcher, sink SnapshotSink, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		sink:     sink,
		interval: interval,
		now:      time.Now,
		events:   events.NoopEventLogger(),
	}
}

// SetClock replaces the clock used for history labels. Must be called
// before Start().
func (p *Poller) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// SetEventLogger must be called before Start().
func (p *Poller) SetEventLogger(l *events.EventLogger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = l
}

// Start fetches immediately and then keeps polling. Subsequent calls are
// no-ops while running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.generation++
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go p.run(ctx, p.generation)
}

// Stop cancels polling without waiting for an in-flight fetch. Once Stop
// returns, no result from the stopped generation reaches the sink.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.generation++
	p.cancel()
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.tick(ctx, gen)
		timer.Reset(p.interval)
	}
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	snap, err := p.fetcher.Stats(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.stats.Discarded++
		return
	}
	if err != nil {
		p.stats.Failed++
		p.events.LogStatsFetchFailed(gen, err)
		return
	}
	p.sink.ApplySnapshot(snap, p.now().Format(HistoryTimeLayout))
	p.stats.Applied++
}

// Stats returns the outcome counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// IsRunning returns true between Start and Stop.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Interval returns the gap between one fetch settling and the next starting.
func (p *Poller) Interval() time.Duration {
	return p.interval
}
