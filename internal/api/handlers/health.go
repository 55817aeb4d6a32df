// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/goknowbase/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в health-ответах.
const serviceName = "knowledge-module"

// StoreReadinessChecker — интерфейс проверки готовности хранилища.
type StoreReadinessChecker interface {
	CheckReady() (status string, message string)
}

// DependencyHealthProvider — интерфейс состояния внешних зависимостей.
type DependencyHealthProvider interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	store   StoreReadinessChecker
	deps    DependencyHealthProvider
}

// NewHealthHandler создаёт обработчик health endpoints.
// store и deps могут быть nil, тогда соответствующая проверка пропускается.
func NewHealthHandler(store StoreReadinessChecker, deps DependencyHealthProvider) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		store:   store,
		deps:    deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность PostgreSQL и состояние внешних зависимостей.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if h.store != nil {
		status, message := h.store.CheckReady()
		storeCheck := map[string]any{"status": status}
		if message != "" {
			storeCheck["message"] = message
		}
		checks["database"] = storeCheck
		if status != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	if h.deps != nil {
		depChecks := map[string]any{}
		for name, healthy := range h.deps.Health() {
			depStatus := "ok"
			if !healthy {
				depStatus = statusFail
				// Недоступная зависимость деградирует сервис, но не снимает
				// readiness: чтение базы знаний работает и без JWKS refresh
				if overallStatus != statusFail {
					overallStatus = "degraded"
				}
			}
			depChecks[name] = map[string]any{"status": depStatus}
		}
		checks["dependencies"] = depChecks
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks":    checks,
	})
}
