package middleware

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gorilla/mux"

	"pricecompare/logger"
	"pricecompare/metrics"
)

// RateLimitMiddleware limits each client IP to rps requests per second,
// with bursts of up to rps requests. Routes whose path template is listed
// in exempt are never limited. A non-positive rps disables limiting.
func RateLimitMiddleware(rps float64, exempt ...string) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(`{"error":"Too many requests, slow down","products":[]}`)
	lmt.SetOnLimitReached(func(w http.ResponseWriter, r *http.Request) {
		logger.Log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("Rate limit reached")
	})

	skip := make(map[string]struct{}, len(exempt))
	for _, route := range exempt {
		skip[route] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		limited := tollbooth.LimitHandler(lmt, next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[routeTemplate(r)]; ok {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request and records its metrics
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		metrics.RecordHTTPRequest(r.Method, route, wrapped.statusCode, duration)

		if r.URL.Path == "/api/health" || r.URL.Path == "/metrics" {
			return
		}

		event := logger.Log.Info()
		if wrapped.statusCode >= http.StatusInternalServerError {
			event = logger.Log.Error()
		} else if wrapped.statusCode >= http.StatusBadRequest {
			event = logger.Log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", duration).
			Msg("API request")
	})
}

// routeTemplate keeps metric labels bounded: /api/tasks/{taskId} rather than
// one series per task
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
