package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestRecorder receives one observation per request.
// *prometheus.AppMetrics implements it.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, d time.Duration)
}

// InFlightTracker is optionally implemented by a RequestRecorder.
type InFlightTracker interface {
	TrackInFlight(started bool)
}

// Metrics records request count and latency labelled by route pattern, so
// /users/{userID}/analysis is one series regardless of the user.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t, ok := rec.(InFlightTracker); ok {
				t.TrackInFlight(true)
				defer t.TrackInFlight(false)
			}
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.RecordHTTPRequest(r.Method, routePattern(r), status, time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
