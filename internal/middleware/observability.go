package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/diegolsarmond/qchat/internal/httputil"
	"github.com/diegolsarmond/qchat/internal/metrics"
	"github.com/diegolsarmond/qchat/internal/privacy"
	"github.com/diegolsarmond/qchat/internal/service"
	"github.com/diegolsarmond/qchat/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// statusRecorder captures the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(data []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(data)
	sr.size += int64(n)
	return n, err
}

func levelFor(status int) logrus.Level {
	switch {
	case status >= 500:
		return logrus.ErrorLevel
	case status >= 400:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// ObservabilityMiddleware wraps every console request with a span, request
// identifiers for log correlation, and request/response metrics.
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.WithOtelTracing(r.Context(), "http_request")
			defer span.End()

			ctx = tracing.WithRequestID(ctx, tracing.GenerateRequestID())
			ctx = tracing.WithStartTime(ctx, time.Now())
			r = r.WithContext(ctx)

			clientIP := httputil.GetClientIP(r)
			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.host", r.Host),
				attribute.String("user_agent.original", r.UserAgent()),
				attribute.String("client.address", clientIP),
			)

			info := tracing.GetRequestInfo(ctx)
			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: info.RequestID,
				service.LogFieldTraceID:   info.TraceID,
				service.LogFieldMethod:    r.Method,
				service.LogFieldURL:       r.URL.Path,
				service.LogFieldRemoteIP:  clientIP,
				service.LogFieldUserAgent: r.UserAgent(),
				"content_length":          r.ContentLength,
			}).Info("HTTP request started")

			endpoint := map[string]string{"method": r.Method, "endpoint": r.URL.Path}
			metrics.IncrementCounter("http_requests_total", endpoint, "Total HTTP requests")
			metrics.IncrementCounter("http_requests_active", nil, "Currently active HTTP requests")
			defer metrics.AddToCounter("http_requests_active", -1, nil, "Currently active HTTP requests")

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			duration := tracing.Duration(ctx)
			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", rec.status),
				attribute.Int64("http.response.size", rec.size),
				attribute.Int64("http.request.duration_ms", duration.Milliseconds()),
			)
			if rec.status >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("HTTP %d", rec.status))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "")
			}

			withStatus := map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(rec.status),
			}
			metrics.RecordTimer("http_request_duration", duration, withStatus, "HTTP request duration")
			metrics.IncrementCounter("http_responses_total", withStatus, "HTTP responses by status code")
			if rec.size > 0 {
				metrics.RecordTimer("http_response_size", time.Duration(rec.size)*time.Nanosecond, endpoint, "HTTP response size in bytes")
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  info.RequestID,
				service.LogFieldTraceID:    info.TraceID,
				service.LogFieldMethod:     r.Method,
				service.LogFieldURL:        r.URL.Path,
				service.LogFieldStatusCode: rec.status,
				service.LogFieldDuration:   duration.Milliseconds(),
				service.LogFieldRemoteIP:   clientIP,
				service.LogFieldSize:       rec.size,
			}).Log(levelFor(rec.status), "HTTP request completed")
		})
	}
}

// WebhookObservabilityMiddleware instruments the provider webhook path.
// Log fields run through the privacy masker: webhook payloads carry
// customer phone numbers and chat ids.
func WebhookObservabilityMiddleware(logger *logrus.Logger, webhookType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx, span := tracing.WithOtelTracing(r.Context(), "webhook_request")
			defer span.End()
			r = r.WithContext(ctx)

			clientIP := httputil.GetClientIP(r)
			tracing.AddSpanAttributes(ctx,
				attribute.String("webhook.type", webhookType),
				attribute.String("http.method", r.Method),
				attribute.String("client.address", clientIP),
				attribute.Int64("http.request.content_length", r.ContentLength),
			)
			metrics.IncrementCounter("webhook_requests_total", map[string]string{
				"type": webhookType,
			}, "Total webhook requests by type")

			info := tracing.GetRequestInfo(ctx)
			logger.WithFields(maskedFields(map[string]interface{}{
				service.LogFieldRequestID: info.RequestID,
				service.LogFieldTraceID:   info.TraceID,
				service.LogFieldService:   "webhook",
				service.LogFieldComponent: webhookType,
				service.LogFieldRemoteIP:  clientIP,
				"content_type":            r.Header.Get("Content-Type"),
				"content_length":          r.ContentLength,
			})).Info("Webhook request started")

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			elapsed := time.Since(started)
			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", rec.status),
				attribute.Int64("webhook.processing_duration_ms", elapsed.Milliseconds()),
			)

			status := strconv.Itoa(rec.status)
			metrics.RecordTimer("webhook_processing_duration", elapsed, map[string]string{
				"type":        webhookType,
				"status_code": status,
			}, "Webhook processing duration")

			if rec.status >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("Webhook failed with HTTP %d", rec.status))
				metrics.IncrementCounter("webhook_errors_total", map[string]string{
					"type":        webhookType,
					"status_code": status,
				}, "Webhook processing errors")
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "Webhook processed successfully")
				metrics.IncrementCounter("webhook_success_total", map[string]string{
					"type": webhookType,
				}, "Successful webhook processing")
			}

			logger.WithFields(maskedFields(map[string]interface{}{
				service.LogFieldRequestID:  info.RequestID,
				service.LogFieldTraceID:    info.TraceID,
				service.LogFieldService:    "webhook",
				service.LogFieldComponent:  webhookType,
				service.LogFieldStatusCode: rec.status,
				service.LogFieldDuration:   elapsed.Milliseconds(),
				service.LogFieldSize:       rec.size,
			})).Log(levelFor(rec.status), "Webhook request completed")
		})
	}
}

func maskedFields(fields map[string]interface{}) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range privacy.MaskSensitiveFields(fields) {
		out[k] = v
	}
	return out
}
