// metrics.go — Prometheus HTTP метрики для Verification Module.
// Регистрирует метрики: vm_http_requests_total, vm_http_request_duration_seconds.
// Бизнес-метрики (vm_uploads_total, vm_verifications_total и др.)
// обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Verification Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Verification Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// UploadsTotal — количество попыток загрузки по хранилищам и исходам.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_uploads_total",
			Help: "Количество попыток загрузки документов по хранилищам и исходам",
		},
		[]string{"store", "result"},
	)

	// VerificationsTotal — количество верификаций по исходам.
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_verifications_total",
			Help: "Количество верификаций документов по исходам",
		},
		[]string{"outcome"},
	)

	// AttestationsTotal — количество обращений к реестру по исходам.
	AttestationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_attestations_total",
			Help: "Количество аттестаций в реестре по исходам",
		},
		[]string{"result"},
	)

	// ProfilesTotal — текущее количество профилей в индексе (gauge).
	ProfilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vm_profiles_total",
			Help: "Текущее количество профилей пользователей в индексе",
		},
	)

	// ProfilesVerified — количество профилей с подтверждённым документом (gauge).
	ProfilesVerified = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vm_profiles_verified",
			Help: "Количество профилей с подтверждённым документом",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/documents/a1b2c3d4-.../verify → /api/v1/documents/{id}/verify
func normalizePath(path string) string {
	switch {
	case path == "/health/live":
		return "/health/live"
	case path == "/health/ready":
		return "/health/ready"
	case path == "/metrics":
		return "/metrics"
	case path == "/api/v1/documents":
		return "/api/v1/documents"
	case path == "/api/v1/profile":
		return "/api/v1/profile"
	case path == "/api/v1/profile/products":
		return "/api/v1/profile/products"
	case len(path) > len("/api/v1/documents/") && isUUIDSegment(path, "/api/v1/documents/"):
		suffix := path[len("/api/v1/documents/")+36:]
		switch suffix {
		case "":
			return "/api/v1/documents/{id}"
		case "/verify":
			return "/api/v1/documents/{id}/verify"
		case "/attest":
			return "/api/v1/documents/{id}/attest"
		case "/journal":
			return "/api/v1/documents/{id}/journal"
		}
	}
	return path
}

// isUUIDSegment проверяет, начинается ли сегмент пути после prefix с UUID.
func isUUIDSegment(path, prefix string) bool {
	if len(path) < len(prefix)+36 {
		return false
	}
	segment := path[len(prefix) : len(prefix)+36]
	if len(segment) != 36 {
		return false
	}
	for i, c := range segment {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
		} else {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}
