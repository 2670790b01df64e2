// Package events writes structured diagnostic events for the gateway and
// console. Events are never shown to operators.
package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// EventLogger emits named events with key/value attributes.
type EventLogger struct {
	logger    *slog.Logger
	component string
}

// NewEventLogger writes JSON events to stdout tagged with component.
func NewEventLogger(component string) *EventLogger {
	return NewEventLoggerWithWriter(component, FormatJSON, os.Stdout)
}

// NewEventLoggerWithWriter writes events to w in the given format. An
// unknown format falls back to JSON.
func NewEventLoggerWithWriter(component string, format Format, w io.Writer) *EventLogger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &EventLogger{
		logger:    slog.New(handler).With("component", component),
		component: component,
	}
}

// LogRequest logs one handled gateway request.
// event: "request"
func (el *EventLogger) LogRequest(requestID, method, path string, status int, durationMs int64) {
	if el == nil {
		return
	}
	el.logger.Info("request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", durationMs,
	)
}

// LogPushReceived logs an accepted push_data payload.
// event: "push_received"
func (el *EventLogger) LogPushReceived(callerID string, sizeBytes int, keys []string) {
	if el == nil {
		return
	}
	el.logger.Info("push_received",
		"caller_id", callerID,
		"size_bytes", sizeBytes,
		"keys", keys,
	)
}

// LogAuthRejected logs a request refused for its shared secret.
// event: "auth_rejected"
func (el *EventLogger) LogAuthRejected(path, code string) {
	if el == nil {
		return
	}
	el.logger.Warn("auth_rejected",
		"path", path,
		"code", code,
	)
}

// LogAgentCallFailed logs a failed call to the scheduling agent.
// event: "agent_call_failed"
func (el *EventLogger) LogAgentCallFailed(route, kind string, statusCode int, message string) {
	if el == nil {
		return
	}
	el.logger.Warn("agent_call_failed",
		"route", route,
		"kind", kind,
		"status_code", statusCode,
		"message", message,
	)
}

// LogConnectivityChanged logs a console connectivity transition.
// event: "connectivity_changed"
func (el *EventLogger) LogConnectivityChanged(from, to string) {
	if el == nil {
		return
	}
	el.logger.Info("connectivity_changed",
		"from", from,
		"to", to,
	)
}

// LogStatsFetchFailed logs a failed stats poll.
// event: "stats_fetch_failed"
func (el *EventLogger) LogStatsFetchFailed(generation uint64, err error) {
	if el == nil {
		return
	}
	el.logger.Warn("stats_fetch_failed",
		"generation", generation,
		"error", errString(err),
	)
}

// LogCommandFailed logs a failed operator command.
// event: "command_failed"
func (el *EventLogger) LogCommandFailed(command string, err error) {
	if el == nil {
		return
	}
	el.logger.Warn("command_failed",
		"command", command,
		"error", errString(err),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex
	noopOnce     sync.Once
	noopLogger   *EventLogger
)

// SetGlobalEventLogger sets the process-wide event logger.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the process-wide logger, or the shared no-op
// logger when none is set.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns a logger that discards all events.
func NoopEventLogger() *EventLogger {
	noopOnce.Do(func() {
		noopLogger = NewEventLoggerWithWriter("", FormatJSON, io.Discard)
	})
	return noopLogger
}
