package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration. AllowedOrigins is "*" or a comma
// separated list of origins.
type CORSConfig struct {
	AllowedOrigins   string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials bool
	MaxAge           int
}

// CORS answers preflight requests and decorates responses for browser
// clients of the dashboard API
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	origins := splitList(config.AllowedOrigins)
	wildcard := slices.Contains(origins, "*")
	headers := allowedHeaders(config.AllowedHeaders)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			switch {
			case wildcard && config.AllowCredentials && origin != "":
				// "*" is not valid together with credentials
				h.Set("Access-Control-Allow-Origin", origin)
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(origins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
			}

			h.Set("Access-Control-Allow-Methods", config.AllowedMethods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", CorrelationIDHeader)

			if config.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowedHeaders makes sure the identity and correlation headers survive a
// restrictive header list
func allowedHeaders(configured string) string {
	list := splitList(configured)
	if slices.Contains(list, "*") {
		return "*"
	}
	for _, required := range []string{"Content-Type", WorkerIdentityHeader, CorrelationIDHeader} {
		if !slices.ContainsFunc(list, func(h string) bool { return strings.EqualFold(h, required) }) {
			list = append(list, required)
		}
	}
	return strings.Join(list, ", ")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
