package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"techbiz/internal/log"
)

func TestMiddlewarePropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentHTTP, Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.9" }, logger)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analytics?from=2024-01-01", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Errorf("response header %q != %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "status_code=418", "client_ip=203.0.113.9", "request_id=" + seen} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestMetricsAverageAndErrors(t *testing.T) {
	m := NewMiddleware(nil, nil)
	ok := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	fail := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	for i := 0; i < 3; i++ {
		ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	fail.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	got := m.GetMetrics()
	if got.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", got.TotalRequests)
	}
	if got.ServerErrors != 1 {
		t.Errorf("ServerErrors = %d, want 1", got.ServerErrors)
	}
	if got.AverageResponseTime < 0 {
		t.Errorf("AverageResponseTime = %d", got.AverageResponseTime)
	}
}

func TestStatusCapturedOnce(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusOK {
		t.Fatalf("status after implicit 200 = %d", rw.statusCode)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(r.Context()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for in, keep := range map[string]bool{
		"lb-7f3a9c":             true,
		"abc def":               false,
		"<script>":              false,
		strings.Repeat("x", 65): false,
		strings.Repeat("x", 64): true,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, in)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if keep && seen != in {
			t.Errorf("%q: id = %q, want it kept", in, seen)
		}
		if !keep && !strings.HasPrefix(seen, "req_") {
			t.Errorf("%q: id = %q, want a generated one", in, seen)
		}
		if rr.Header().Get(HeaderRequestID) != seen {
			t.Errorf("%q: response header = %q, want %q", in, rr.Header().Get(HeaderRequestID), seen)
		}
	}
}
