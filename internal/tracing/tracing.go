package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	traceIDKey
	spanIDKey
	startTimeKey
)

// RequestInfo carries the identifiers logged with every request.
type RequestInfo struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id"`
	SpanID    string    `json:"span_id"`
	StartTime time.Time `json:"start_time"`
}

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// GenerateRequestID returns a fresh request identifier.
func GenerateRequestID() string {
	return "req_" + randomHex(8)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, startTime)
}

func withTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// GetRequestInfo extracts the request identifiers from the context.
// Missing values come back zero, never panic.
func GetRequestInfo(ctx context.Context) *RequestInfo {
	info := &RequestInfo{}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		info.RequestID = v
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		info.TraceID = v
	}
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		info.SpanID = v
	}
	if v, ok := ctx.Value(startTimeKey).(time.Time); ok {
		info.StartTime = v
	}
	return info
}

// WithFullTracing stamps the context with generated identifiers and the
// current time. Used by tests and by paths that bypass the middleware.
func WithFullTracing(ctx context.Context) context.Context {
	ctx = WithRequestID(ctx, GenerateRequestID())
	ctx = withTraceSpan(ctx, randomHex(16), randomHex(8))
	return WithStartTime(ctx, time.Now())
}

// Duration reports how long the request has been running, zero when the
// context carries no start time.
func Duration(ctx context.Context) time.Duration {
	info := GetRequestInfo(ctx)
	if info.StartTime.IsZero() {
		return 0
	}
	return time.Since(info.StartTime)
}
