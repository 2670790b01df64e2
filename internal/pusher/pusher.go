// Package pusher reports host samples to the gateway's push_data route.
package pusher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/bc-dunia/threadviz/internal/auth"
	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/jsonhttp"
)

const (
	DefaultInterval   = 2 * time.Second
	DefaultMaxElapsed = 10 * time.Second
	pushPath          = "/agent/push_data"
)

type Config struct {
	// GatewayURL is the gateway API root, e.g. http://localhost:8080/api.
	GatewayURL string
	Secret     string
	Header     string
	Interval   time.Duration
	// MaxElapsed bounds the retries of a single push.
	MaxElapsed time.Duration
}

// Payload is the body posted on every push.
type Payload struct {
	AgentID       string    `json:"agent_id"`
	Timestamp     float64   `json:"timestamp"`
	CPUPercent    []float64 `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	CPUCount      int       `json:"cpu_count"`
	LoadAvg1      float64   `json:"load_avg_1,omitempty"`
	NetBytesSent  uint64    `json:"net_bytes_sent,omitempty"`
	NetBytesRecv  uint64    `json:"net_bytes_recv,omitempty"`
}

// Stats counts push outcomes.
type Stats struct {
	Sent   uint64
	Failed uint64
}

type Pusher struct {
	cfg     Config
	sampler hoststats.Sampler
	client  *jsonhttp.Client
	agentID string
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// New returns a Pusher with a fresh agent ID. A nil httpClient uses
// http.DefaultClient.
func New(cfg Config, sampler hoststats.Sampler, httpClient *http.Client) *Pusher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultMaxElapsed
	}
	if cfg.Header == "" {
		cfg.Header = auth.DefaultHeader
	}
	return &Pusher{
		cfg:     cfg,
		sampler: sampler,
		client: jsonhttp.NewClient(cfg.GatewayURL, httpClient, jsonhttp.Config{
			Headers: map[string]string{cfg.Header: cfg.Secret},
		}),
		agentID: uuid.NewString(),
	}
}

func (p *Pusher) AgentID() string {
	return p.agentID
}

func (p *Pusher) Stats() Stats {
	return Stats{Sent: p.sent.Load(), Failed: p.failed.Load()}
}

// Run pushes immediately and then every interval until ctx is done.
// Failed pushes are logged and do not stop the loop.
func (p *Pusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.PushOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[pusher] push failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PushOnce samples the host and posts one payload, retrying transient
// failures with exponential backoff. Client errors such as a rejected
// secret are not retried.
func (p *Pusher) PushOnce(ctx context.Context) error {
	sample, err := p.sampler.Sample(ctx)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("sampling host: %w", err)
	}

	payload := Payload{
		AgentID:       p.agentID,
		Timestamp:     float64(sample.Timestamp.UnixMilli()) / 1000.0,
		CPUPercent:    sample.CPUPerCore,
		MemoryPercent: sample.MemoryPercent,
		CPUCount:      sample.CPUCount,
		LoadAvg1:      sample.LoadAvg1,
		NetBytesSent:  sample.NetBytesSent,
		NetBytesRecv:  sample.NetBytesRecv,
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = p.cfg.MaxElapsed

	op := func() error {
		_, err := p.client.Post(ctx, pushPath, payload)
		if err == nil {
			return nil
		}
		var se *jsonhttp.StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		p.failed.Add(1)
		return err
	}
	p.sent.Add(1)
	return nil
}
