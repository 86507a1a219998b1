// Package telemetry provides Sentry-based distributed tracing utilities.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "recall"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init starts Sentry with tracing enabled and returns a shutdown function
// that flushes pending events. An empty DSN yields a no-op shutdown.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry: init failed, continuing without tracing: %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops health-check transactions and makes child spans inherit the
// parent's sampling decision.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" || ctx.Span.Op == "http.server GET /health" {
			return 0.0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1.0
			}
			return 0.0
		}
		return rate
	}
}

// SpanAttributes tags a span with the identifiers of the work it covers.
type SpanAttributes struct {
	OwnerID    string
	SessionID  string
	DocumentID string
}

// Span wraps sentry.Span; all methods tolerate a nil inner span so
// instrumented code works unchanged when tracing is off.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports the error.
func (s *Span) SetError(err error) {
	if s.inner == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// StartSpan creates a child span under any transaction already in context,
// or a fresh transaction otherwise.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.OwnerID != "" {
		span.SetTag("owner_id", attrs.OwnerID)
	}
	if attrs.SessionID != "" {
		span.SetTag("session_id", attrs.SessionID)
	}
	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}

	return span.Context(), &Span{inner: span}
}

// CaptureError reports an error, preferring the hub bound to ctx.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
