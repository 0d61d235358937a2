package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the database and, when configured, the broker.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]string)

	switch {
	case s.db == nil:
		checks["database"] = "not_configured"
		ready = false
	default:
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = fmt.Sprintf("failed: %v", err)
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}

	switch {
	case s.broker == nil:
		checks["broker"] = "disabled"
	case s.broker.Healthy():
		checks["broker"] = "ok"
	default:
		// publishing is best effort, so a broker outage does not fail readiness
		checks["broker"] = "degraded"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	data := map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if !ready {
		b := ErrorResponse(code, "service not ready")
		b.body.Data = data
		b.Write(w)
		return
	}
	NewJSONResponse().Data(data).Write(w)
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	traceMetrics := s.trace.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	var hits, misses int64
	if s.reports != nil {
		hits, misses = s.reports.CacheStats()
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("cache_hits_total", "counter", "Report cache hits", hits)
	metric("cache_misses_total", "counter", "Report cache misses", misses)
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rateMetrics.ClientCount)
	metric("security_suspicious_requests_total", "counter", "Requests matching attack patterns", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}
