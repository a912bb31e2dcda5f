// profile.go — обработчики профиля пользователя и товаров маркетплейса.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/service"
)

// ProfileHandler — обработчики профиля пользователя.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler создаёт обработчик профиля.
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "profile_handler")),
	}
}

// GetProfile — GET /api/v1/profile.
// Возвращает профиль пользователя из токена.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность пользователя")
		return
	}

	profile, opErr := h.profiles.Get(r.Context(), identity)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PatchProfile — PATCH /api/v1/profile.
// Частичное обновление: изменяются только поля, названные в теле.
func (h *ProfileHandler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность пользователя")
		return
	}

	var patch model.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса: "+err.Error())
		return
	}

	profile, opErr := h.profiles.ApplyPatch(r.Context(), identity, &patch)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListProducts — GET /api/v1/profile/products.
func (h *ProfileHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность пользователя")
		return
	}

	products, opErr := h.profiles.ListProducts(r.Context(), identity)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    len(products),
	})
}

// AddProduct — POST /api/v1/profile/products.
// Публикует товар пользователя на маркетплейсе.
func (h *ProfileHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность пользователя")
		return
	}

	var product model.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса: "+err.Error())
		return
	}

	created, opErr := h.profiles.AddProduct(r.Context(), identity, product)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
