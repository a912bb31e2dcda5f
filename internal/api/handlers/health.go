// health.go — обработчики health endpoints Verification Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (индекс профилей построен, каталоги доступны на запись)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avinashDevlop/AgriLinkProject/internal/config"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/index"
)

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	idx         *index.Index
	tmpDir      string
	journalDir  string
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(idx *index.Index, tmpDir, journalDir string) *HealthHandler {
	return &HealthHandler{
		idx:         idx,
		tmpDir:      tmpDir,
		journalDir:  journalDir,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Index   healthCheckResult `json:"index"`
		TmpDir  healthCheckResult `json:"tmp_dir"`
		Journal healthCheckResult `json:"journal"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "verification-module",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe.
// Проверяет построенность индекса профилей и доступность каталогов
// на запись. Возвращает 200 (ok) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "verification-module",
	}

	resp.Checks.Index = checkIndex(h.idx)
	resp.Checks.TmpDir = checkWritable(h.tmpDir)
	resp.Checks.Journal = checkWritable(h.journalDir)

	resp.Status = overallStatus(
		resp.Checks.Index.Status,
		resp.Checks.TmpDir.Status,
		resp.Checks.Journal.Status,
	)

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == statusFail {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// Константы статусов health check.
const statusFail = "fail"

// checkIndex проверяет, построен ли индекс профилей.
func checkIndex(idx *index.Index) healthCheckResult {
	if idx == nil || !idx.IsReady() {
		return healthCheckResult{Status: statusFail, Message: "индекс профилей не построен"}
	}
	return healthCheckResult{Status: "ok"}
}

// checkWritable проверяет доступность каталога на запись probe-файлом.
func checkWritable(dir string) healthCheckResult {
	probe := filepath.Join(dir, ".ready-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return healthCheckResult{Status: statusFail, Message: "каталог недоступен на запись: " + err.Error()}
	}
	_ = os.Remove(probe)
	return healthCheckResult{Status: "ok"}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна проверка fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
