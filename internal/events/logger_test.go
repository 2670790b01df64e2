package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestGetGlobalEventLoggerReturnsSingletonNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	a := GetGlobalEventLogger()
	b := GetGlobalEventLogger()

	if a == nil || b == nil {
		t.Fatal("expected non-nil noop logger")
	}
	if a != b {
		t.Fatal("expected singleton noop logger instance")
	}
}

func TestEventNames(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("gateway", FormatJSON, &buf)

	el.LogRequest("req-1", "GET", "/api/agent/stats", 503, 12)
	el.LogPushReceived("abcd", 42, []string{"agent_id", "cpu_percent"})
	el.LogAuthRejected("/api/agent/push_data", "INVALID_CREDENTIALS")
	el.LogAgentCallFailed("stats", "unreachable", 0, "connection refused")
	el.LogConnectivityChanged("unknown", "connected")
	el.LogStatsFetchFailed(3, errors.New("timeout"))
	el.LogCommandFailed("set_algorithm", errors.New("boom"))

	lines := decodeLines(t, &buf)
	want := []string{
		"request", "push_received", "auth_rejected", "agent_call_failed",
		"connectivity_changed", "stats_fetch_failed", "command_failed",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(lines))
	}
	for i, name := range want {
		if lines[i]["msg"] != name {
			t.Errorf("event %d: expected %q, got %v", i, name, lines[i]["msg"])
		}
		if lines[i]["component"] != "gateway" {
			t.Errorf("event %d: missing component attribute", i)
		}
	}

	if lines[0]["status"] != float64(503) {
		t.Errorf("expected status 503, got %v", lines[0]["status"])
	}
	if lines[5]["error"] != "timeout" {
		t.Errorf("expected error attribute, got %v", lines[5]["error"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("console", FormatText, &buf)
	el.LogConnectivityChanged("connected", "disconnected")

	out := buf.String()
	if !strings.Contains(out, "msg=connectivity_changed") || !strings.Contains(out, "to=disconnected") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var el *EventLogger
	el.LogRequest("", "GET", "/", 200, 0)
	el.LogCommandFailed("clear_history", nil)
}
