package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const CorrelationHeader = "X-Correlation-ID"

// RequestLogger tags every request with a correlation ID (reusing the
// caller's X-Correlation-ID when present) and logs one line per request.
func RequestLogger(l *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			if id := r.Header.Get(CorrelationHeader); id != "" {
				ctx = ContextWithCorrelationID(ctx, id)
			} else {
				ctx = WithCorrelationID(ctx)
			}
			w.Header().Set(CorrelationHeader, GetCorrelationID(ctx))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			}
			if status >= http.StatusInternalServerError {
				l.Error(ctx, "http request", args...)
				return
			}
			l.Info(ctx, "http request", args...)
		})
	}
}
