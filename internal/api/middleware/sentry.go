package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// Sentry opens a transaction per request, propagates incoming trace headers,
// and reports panics and 5xx responses. A no-op when Sentry is uninitialized.
func Sentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		opts := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}
		tx := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, opts...)
		defer tx.Finish()

		r = r.WithContext(sentry.SetHubOnContext(tx.Context(), hub))
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			tx.SetTag("request_id", requestID)
		}

		defer func() {
			if v := recover(); v != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), v)
				panic(v)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		tx.Status = spanStatus(status)
		tx.SetData("http.response.status_code", status)
		if status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", status, r.Method, r.URL.Path))
		}
	})
}

func spanStatus(status int) sentry.SpanStatus {
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status == http.StatusUnauthorized:
		return sentry.SpanStatusUnauthenticated
	case status == http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}
