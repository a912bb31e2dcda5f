// Пакет handlers — HTTP-обработчики API Verification Module.
// handler.go — агрегирующий обработчик и регистрация маршрутов.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/service"
)

// APIHandler — основной обработчик API Verification Module.
// Объединяет health, документные и профильные обработчики.
type APIHandler struct {
	documents *DocumentsHandler
	profile   *ProfileHandler
	health    *HealthHandler
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	documents *DocumentsHandler,
	profile *ProfileHandler,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		documents: documents,
		profile:   profile,
		health:    health,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует маршруты API на chi-роутере.
// Health и metrics регистрируются отдельно (вне JWT-аутентификации).
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.documents.SubmitDocument)
			r.Route("/{artifactId}", func(r chi.Router) {
				r.Get("/", h.documents.GetDocument)
				r.Post("/retry", h.documents.RetryUpload)
				r.Post("/verify", h.documents.VerifyDocument)
				r.Post("/attest", h.documents.AttestDocument)
				r.Get("/journal", h.documents.GetJournal)
			})
		})
		r.Route("/profile", func(r chi.Router) {
			r.Get("/", h.profile.GetProfile)
			r.Patch("/", h.profile.PatchProfile)
			r.Get("/products", h.profile.ListProducts)
			r.Post("/products", h.profile.AddProduct)
		})
	})
}

// RegisterHealthRoutes регистрирует health и metrics endpoints.
func (h *APIHandler) RegisterHealthRoutes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeOpError записывает типизированную ошибку сервисного слоя.
func writeOpError(w http.ResponseWriter, e *service.OpError) {
	apierrors.WriteError(w, e.StatusCode, e.Code, e.Message)
}
