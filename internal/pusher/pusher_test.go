package pusher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bc-dunia/threadviz/internal/hoststats"
	"github.com/bc-dunia/threadviz/internal/jsonhttp"
)

func TestPushOnceSendsPayload(t *testing.T) {
	var got Payload
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent/push_data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		header = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer server.Close()

	p := New(Config{GatewayURL: server.URL + "/api", Secret: "s3cret"}, hoststats.NewStaticSampler([]float64{10, 30}, 42), nil)
	if err := p.PushOnce(context.Background()); err != nil {
		t.Fatalf("PushOnce failed: %v", err)
	}

	if header != "s3cret" {
		t.Errorf("expected secret header, got %q", header)
	}
	if got.AgentID != p.AgentID() || len(got.AgentID) != 36 {
		t.Errorf("unexpected agent id %q", got.AgentID)
	}
	if got.CPUCount != 2 || got.MemoryPercent != 42 || len(got.CPUPercent) != 2 {
		t.Errorf("unexpected payload %+v", got)
	}
	if got.Timestamp <= 0 {
		t.Error("expected timestamp")
	}
	if s := p.Stats(); s.Sent != 1 || s.Failed != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestPushOnceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer server.Close()

	p := New(Config{GatewayURL: server.URL, Secret: "k", MaxElapsed: 5 * time.Second}, hoststats.NewStaticSampler([]float64{1}, 1), nil)
	if err := p.PushOnce(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestPushOnceDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer server.Close()

	p := New(Config{GatewayURL: server.URL, Secret: "wrong"}, hoststats.NewStaticSampler([]float64{1}, 1), nil)
	err := p.PushOnce(context.Background())

	var se *jsonhttp.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
	if p.Stats().Failed != 1 {
		t.Errorf("expected failure counted, got %+v", p.Stats())
	}
}

func TestPushOnceSamplerError(t *testing.T) {
	s := hoststats.NewStaticSampler(nil, 0)
	s.SetError(errors.New("no cpu"))
	p := New(Config{GatewayURL: "http://127.0.0.1:1"}, s, nil)

	if err := p.PushOnce(context.Background()); err == nil {
		t.Fatal("expected sampling error")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer server.Close()

	p := New(Config{GatewayURL: server.URL, Secret: "k", Interval: 5 * time.Millisecond}, hoststats.NewStaticSampler([]float64{1}, 1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if calls.Load() < 3 {
		t.Errorf("expected repeated pushes, got %d", calls.Load())
	}
}
