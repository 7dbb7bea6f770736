package middleware

import (
	"context"
	"net/http"
	"strings"
)

// WorkerIdentityHeader carries the identity verified by the upstream
// authenticator
const WorkerIdentityHeader = "X-Worker-Identity"

const WorkerIdentityKey contextKey = "worker_identity"

// WorkerIdentity lifts the authenticated worker identity into the request
// context. Requests without the header pass through unchanged.
func WorkerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.Header.Get(WorkerIdentityHeader))
		if identity == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), WorkerIdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWorkerIdentity extracts the worker identity from context
func GetWorkerIdentity(ctx context.Context) string {
	if identity, ok := ctx.Value(WorkerIdentityKey).(string); ok {
		return identity
	}
	return ""
}
