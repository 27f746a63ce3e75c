package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"techbiz/internal/log"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", errTemplatesNotLoaded)
	} else {
		checks["templates"] = "ok"
	}

	if version, err := s.records.Version(ctx); err != nil {
		fail("store", err)
	} else {
		checks["store"] = map[string]any{"status": "ok", "version": version}
	}

	if s.readiness != nil {
		if err := s.readiness(ctx); err != nil {
			fail("dependencies", err)
		} else {
			checks["dependencies"] = "ok"
		}
	}

	checks["cache"] = map[string]any{
		"analytics_entries": s.analyticsCache.Size(),
		"chart_entries":     s.chartCache.Size(),
		"status":            "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	if httpStatus != http.StatusOK {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "checks", checks)
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	analyticsStats := s.analyticsCache.Stats()
	chartStats := s.chartCache.Stats()
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	counter("records_created_total", "Rows added to the grid", s.appMetrics.recordsCreated.Load())
	counter("records_updated_total", "Cell and confirmation edits", s.appMetrics.recordsUpdated.Load())
	counter("records_deleted_total", "Rows deleted from the grid", s.appMetrics.recordsDeleted.Load())
	counter("exports_total", "CSV and XLSX downloads", s.appMetrics.exports.Load())
	counter("login_failures_total", "Rejected sign-in attempts", s.appMetrics.loginFailures.Load())

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{type=\"analytics\"} %d\n", analyticsStats.Hits)
	fmt.Fprintf(w, "cache_hits_total{type=\"chart\"} %d\n\n", chartStats.Hits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{type=\"analytics\"} %d\n", analyticsStats.Misses)
	fmt.Fprintf(w, "cache_misses_total{type=\"chart\"} %d\n\n", chartStats.Misses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"analytics\"} %d\n", analyticsStats.Size)
	fmt.Fprintf(w, "cache_entries{type=\"chart\"} %d\n\n", chartStats.Size)

	counter("rate_limit_allowed_total", "Requests admitted by the rate limiter", rateLimitMetrics.Allowed)
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP rate_limit_active_clients Current tracked clients\n")
	fmt.Fprintf(w, "# TYPE rate_limit_active_clients gauge\n")
	fmt.Fprintf(w, "rate_limit_active_clients %d\n\n", rateLimitMetrics.ClientCount)

	counter("security_suspicious_requests_total", "Requests matching a suspicious pattern", securityMetrics.SuspiciousRequests)
	counter("security_invalid_ips_total", "Unparseable forwarded client addresses", securityMetrics.InvalidIPAttempts)

	fmt.Fprintf(w, "# HELP response_time_avg_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}
