package handler

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/adshield/fraudguard/internal/client"
)

var startTime = time.Now()

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// CheckResult represents individual health check results
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// HealthChecker interface for implementing health checks
type HealthChecker interface {
	Name() string
	Check(r *http.Request) CheckResult
}

// HealthHandler handles health, liveness and readiness probes.
type HealthHandler struct {
	env      string
	checkers []HealthChecker
}

func NewHealthHandler(env string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{env: env, checkers: checkers}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Environment: h.env,
		Uptime:      time.Since(startTime).String(),
		Checks:      make(map[string]CheckResult),
	}

	for _, c := range h.checkers {
		start := time.Now()
		result := c.Check(r)
		result.Latency = time.Since(start).String()
		resp.Checks[c.Name()] = result
		if result.Status == HealthStatusUnhealthy {
			resp.Status = HealthStatusUnhealthy
		} else if result.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy {
			resp.Status = HealthStatusDegraded
		}
	}

	status := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// LivenessHandler handles /live
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "live - uptime: %s\n", time.Since(startTime).String())
}

// ReadinessHandler handles /ready; unhealthy critical checks gate traffic.
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checkers {
		result := c.Check(r)
		if result.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready - %s: %s\n", c.Name(), result.Error)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

// DatabaseHealthChecker pings the Postgres pool.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Name() string { return "database" }

func (d *DatabaseHealthChecker) Check(r *http.Request) CheckResult {
	if d.DB == nil {
		return CheckResult{Status: HealthStatusDegraded, Error: "not configured"}
	}
	if err := d.DB.PingContext(r.Context()); err != nil {
		return CheckResult{Status: HealthStatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: HealthStatusHealthy}
}

// RedisHealthChecker pings Redis through the wrapped client.
type RedisHealthChecker struct {
	Client *client.RedisClient
}

func (c *RedisHealthChecker) Name() string { return "redis" }

func (c *RedisHealthChecker) Check(r *http.Request) CheckResult {
	if c.Client == nil {
		return CheckResult{Status: HealthStatusDegraded, Error: "not configured"}
	}
	if err := c.Client.HealthCheck(r.Context()); err != nil {
		return CheckResult{Status: HealthStatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: HealthStatusHealthy}
}
