package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/pkg/metrics"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]string      `json:"checks"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	storage   Pinger
	hub       *Hub
	clock     clockwork.Clock
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(storage Pinger, hub *Hub, clock clockwork.Clock, version string) *HealthChecker {
	return &HealthChecker{
		storage:   storage,
		hub:       hub,
		clock:     clock,
		startTime: clock.Now(),
		version:   version,
	}
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	for name, status := range map[string]string{
		"memory":     h.checkMemory(),
		"goroutines": h.checkGoroutines(),
	} {
		checks[name] = status
		if status != "healthy" && overallStatus == "healthy" {
			overallStatus = "warning"
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: h.clock.Now().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    h.clock.Since(h.startTime).String(),
		Checks:    checks,
		Metrics:   h.collectMetrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		// warning тоже 200
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	return h.storage.Ping(ctx)
}

// checkMemory проверяет использование памяти
func (h *HealthChecker) checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.MemoryUsage.Set(float64(m.Alloc))

	const warningLimit = 256 * 1024 * 1024
	const criticalLimit = 512 * 1024 * 1024

	if m.Alloc > criticalLimit {
		return "critical: memory usage > 512MB"
	} else if m.Alloc > warningLimit {
		return "warning: memory usage > 256MB"
	}
	return "healthy"
}

// checkGoroutines проверяет количество горутин. Каждый клиент ленты держит две.
func (h *HealthChecker) checkGoroutines() string {
	count := runtime.NumGoroutine()
	metrics.GoroutinesCount.Set(float64(count))

	warningLimit := 100
	if h.hub != nil {
		warningLimit += 2 * h.hub.config.MaxClients
	}

	if count > 10*warningLimit {
		return "critical: too many goroutines"
	} else if count > warningLimit {
		return "warning: high goroutine count"
	}
	return "healthy"
}

// collectMetrics собирает основные метрики для health check
func (h *HealthChecker) collectMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	out := map[string]interface{}{
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"runtime": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"gomaxprocs": runtime.GOMAXPROCS(0),
			"version":    runtime.Version(),
		},
		"uptime_seconds": h.clock.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		out["live_clients"] = h.hub.Len()
	}
	return out
}
