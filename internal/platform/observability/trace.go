package observability

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/framelane/api/internal/platform/requestctx"
)

// traceHeader carries "TRACE_ID/SPAN_ID;o=OPTIONS" per Cloud Trace.
const traceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/framelane/api/internal/platform/observability")

// TraceMiddleware links each request into Cloud Trace: incoming trace
// context becomes the remote parent of a new server span, and the span's
// identifiers are stored on the context for request logging.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if parent, ok := parseTraceHeader(r.Header.Get(traceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
			}

			name := r.Method + " " + requestPath(r)
			ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			span.SetAttributes(requestAttributes(r)...)

			spanCtx := span.SpanContext()
			info := requestctx.TraceInfo{
				ProjectID: projectID,
				TraceID:   spanCtx.TraceID().String(),
				SpanID:    spanCtx.SpanID().String(),
				Sampled:   spanCtx.IsSampled(),
			}
			ctx = requestctx.WithTrace(ctx, info)

			sampled := "0"
			if info.Sampled {
				sampled = "1"
			}
			w.Header().Set(traceHeader, fmt.Sprintf("%s/%s;o=%s", info.TraceID, info.SpanID, sampled))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTraceHeader turns a Cloud Trace header into a remote span context.
// Malformed headers are dropped rather than rejected; the request then
// starts a fresh trace.
func parseTraceHeader(header string) (trace.SpanContext, bool) {
	traceField, spanField, ok := strings.Cut(strings.TrimSpace(header), "/")
	if !ok {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(strings.TrimSpace(traceField))
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanField, options, _ := strings.Cut(spanField, ";")
	spanID, ok := parseSpanID(strings.TrimSpace(spanField))
	if !ok {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if traceOptionSampled(options) {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

// parseSpanID accepts both encodings seen in the wild: hex (optionally
// shorter than 16 digits) and the decimal form Cloud Trace itself emits.
func parseSpanID(value string) (trace.SpanID, bool) {
	if value == "" {
		return trace.SpanID{}, false
	}
	if len(value) <= 16 {
		padded := strings.Repeat("0", 16-len(value)) + value
		if spanID, err := trace.SpanIDFromHex(padded); err == nil {
			return spanID, true
		}
	}
	num, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return trace.SpanID{}, false
	}
	var spanID trace.SpanID
	binary.BigEndian.PutUint64(spanID[:], num)
	return spanID, spanID.IsValid()
}

func traceOptionSampled(options string) bool {
	for _, option := range strings.Split(options, ";") {
		if strings.TrimSpace(option) == "o=1" {
			return true
		}
	}
	return false
}

func requestPath(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.URLScheme(scheme),
		semconv.URLPath(requestPath(r)),
	}
	if r.URL != nil {
		if target := r.URL.RequestURI(); target != "" {
			attrs = append(attrs, semconv.URLFull(target))
		}
	}
	if r.Host != "" {
		attrs = append(attrs, semconv.ServerAddress(r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(ua))
	}
	return attrs
}
