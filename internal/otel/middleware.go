package otel

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// RouteKey names the relay route on gateway spans. Its values match the
// route attribute of threadviz.relay.latency.
const RouteKey = attribute.Key("threadviz.route")

const agentRoutePrefix = "/api/agent/"

// RouteLabel maps a public gateway path to its relay route label, e.g.
// /api/agent/stats to "stats". Paths outside the agent relay are returned
// unchanged.
func RouteLabel(path string) string {
	if rest := strings.TrimPrefix(path, agentRoutePrefix); rest != path && rest != "" {
		return rest
	}
	return path
}

// Middleware starts a server span per request, continuing any W3C
// traceparent the caller sent. Spans are named by relay route and marked
// failed when the gateway answers 5xx, which is how agent failures surface.
func Middleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tracer == nil || !tracer.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			route := RouteLabel(r.URL.Path)
			ctx := tracer.Propagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.StartSpan(ctx, "gateway "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					RouteKey.String(route),
				),
			)
			defer span.End()

			rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPResponseStatusCode(rw.statusCode))
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
		})
	}
}

// InjectHeaders writes the trace context of ctx into headers.
func InjectHeaders(ctx context.Context, headers http.Header, tracer *Tracer) {
	if tracer == nil || !tracer.Enabled() {
		return
	}
	tracer.Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// statusWriter keeps the first status written.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}
