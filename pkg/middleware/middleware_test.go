package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type observation struct {
	method string
	status int
}

type fakeObserver struct {
	seen []observation
}

func (o *fakeObserver) HTTPRequest(method string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method, status})
}

func TestWorkerIdentity(t *testing.T) {
	var got string
	h := WorkerIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetWorkerIdentity(r.Context())
	}))

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(WorkerIdentityHeader, "  key-1 ")
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.Equal(t, "key-1", got)
	})

	t.Run("header absent", func(t *testing.T) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.Empty(t, got)
	})
}

func TestCorrelationID(t *testing.T) {
	var got string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", got)
	require.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, got)
	require.Equal(t, got, rec.Header().Get("X-Correlation-ID"))

	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("x", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotEqual(t, bad, got)
		require.Len(t, got, 36)
	}
}

func TestMetrics_RecordsStatus(t *testing.T) {
	obs := &fakeObserver{}
	h := Metrics(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []observation{
		{http.MethodPost, http.StatusCreated},
		{http.MethodGet, http.StatusOK},
	}, obs.seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error","message":"internal error"}`, rec.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET, POST", MaxAge: 60})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/checks", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Access-Control-Max-Age"))
	require.False(t, called)
}

func TestCORS_Origins(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name   string
		config CORSConfig
		origin string
		want   string
	}{
		{"wildcard", CORSConfig{AllowedOrigins: "*"}, "https://a.example", "*"},
		{"wildcard with credentials echoes", CORSConfig{AllowedOrigins: "*", AllowCredentials: true}, "https://a.example", "https://a.example"},
		{"listed origin", CORSConfig{AllowedOrigins: "https://a.example, https://b.example"}, "https://b.example", "https://b.example"},
		{"unlisted origin", CORSConfig{AllowedOrigins: "https://a.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.config)(next).ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAllowedHeaders(t *testing.T) {
	require.Equal(t, "*", allowedHeaders("*"))
	require.Equal(t,
		"Authorization, content-type, X-Worker-Identity, X-Correlation-ID",
		allowedHeaders("Authorization, content-type"),
	)
}
