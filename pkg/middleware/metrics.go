package middleware

import (
	"net/http"
	"time"
)

// RequestObserver receives one observation per served request
type RequestObserver interface {
	HTTPRequest(method string, status int, d time.Duration)
}

// Metrics reports request counts and latency to obs
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			obs.HTTPRequest(r.Method, rw.statusCode, time.Since(start))
		})
	}
}
