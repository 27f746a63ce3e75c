package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentRecords, Handler: slog.NewTextHandler(&buf, nil)})
	l.Info("hello", FieldRecordID, 3)
	out := buf.String()
	if !strings.Contains(out, "component=records") || !strings.Contains(out, "record_id=3") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(io.Discard, nil)})
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not propagated through context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}

func TestWithComponentLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentApp, Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(ComponentWorker)
	l.Warn("retrying")
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=worker") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestRequestCompletedLevel(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})
		r := httptest.NewRequest(http.MethodGet, "/analytics", nil)
		l.RequestCompleted(context.Background(), r, tt.status, 1500*time.Millisecond, "198.51.100.4")
		out := buf.String()
		if !strings.Contains(out, tt.want) || !strings.Contains(out, "duration_ms=1500") {
			t.Errorf("status %d: %s", tt.status, out)
		}
	}
}

func TestRecordChanged(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentRecords, Handler: slog.NewTextHandler(&buf, nil)})
	l.RecordChanged(context.Background(), OpUpdate, 9, "income", "alice", 4)
	out := buf.String()
	for _, want := range []string{"record_id=9", "record_field=income", "user=alice", "version=4", "operation=update"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	l.RecordChanged(context.Background(), OpCreate, 10, "", "bob", 5)
	if strings.Contains(buf.String(), "record_field") {
		t.Errorf("create should not log a field: %s", buf.String())
	}
}
