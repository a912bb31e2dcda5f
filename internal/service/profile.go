// profile.go — сервис профиля пользователя: локальная копия,
// in-memory индекс и синхронизация с метахранилищем.
//
// Все изменения профиля — частичное слияние полей. Локальная запись
// и индекс обновляются синхронно; узел метахранилища патчится
// best-effort: его недоступность не откатывает локальное изменение.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/metastore"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/index"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/profilestore"
)

// ProfileService — сервис работы с профилем пользователя.
type ProfileService struct {
	store  *profilestore.Store
	idx    *index.Index
	meta   *metastore.Client
	logger *slog.Logger
}

// NewProfileService создаёт сервис профиля.
func NewProfileService(
	store *profilestore.Store,
	idx *index.Index,
	meta *metastore.Client,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		store:  store,
		idx:    idx,
		meta:   meta,
		logger: logger.With(slog.String("component", "profile_service")),
	}
}

// Get возвращает профиль пользователя.
//
// Порядок поиска:
//  1. In-memory индекс
//  2. Локальное файловое хранилище (промах индекса)
//  3. Узел метахранилища (локальная копия утеряна); найденный узел
//     восстанавливает локальную копию и индекс
//
// Отсутствующий профиль — NOT_FOUND.
func (s *ProfileService) Get(ctx context.Context, id model.Identity) (*model.UserDocumentProfile, *OpError) {
	id = id.Sanitized()

	if profile, ok := s.idx.Get(id); ok {
		return profile, nil
	}

	profile, err := s.store.Read(id)
	if err == nil {
		s.idx.Put(profile)
		return profile, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("Ошибка чтения профиля",
			slog.String("identity", id.Path()),
			slog.String("error", err.Error()),
		)
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения локального профиля",
		}
	}

	if profile := s.getFromMetastore(ctx, id); profile != nil {
		return profile, nil
	}

	return nil, &OpError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Профиль %s не найден", id.Path()),
	}
}

// getFromMetastore читает узел пользователя из метахранилища и
// восстанавливает по нему локальную копию. Недоступность метахранилища
// логируется: read path остаётся локальным best-effort.
func (s *ProfileService) getFromMetastore(ctx context.Context, id model.Identity) *model.UserDocumentProfile {
	if s.meta == nil {
		return nil
	}

	node, err := s.meta.GetUserNode(ctx, id)
	if err != nil {
		s.logger.Warn("Узел метахранилища недоступен при чтении профиля",
			slog.String("identity", id.Path()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if node == nil {
		return nil
	}

	profile, err := profileFromNode(id, node, time.Now().UTC())
	if err != nil {
		s.logger.Warn("Узел метахранилища не декодируется в профиль",
			slog.String("identity", id.Path()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	// Восстанавливаем локальную копию и индекс
	if err := s.store.Write(profile); err != nil {
		s.logger.Warn("Локальная копия профиля не восстановлена",
			slog.String("identity", id.Path()),
			slog.String("error", err.Error()),
		)
	}
	s.idx.Put(profile)
	s.updateGauges()

	s.logger.Info("Профиль восстановлен из метахранилища",
		slog.String("identity", id.Path()),
	)
	return profile
}

// profileFromNode восстанавливает профиль из узла метахранилища.
// Скалярные поля узла совпадают с JSON-тегами профиля; товары в узле
// лежат картой по идентификатору, локально — срезом.
func profileFromNode(id model.Identity, node map[string]any, now time.Time) (*model.UserDocumentProfile, error) {
	scalar := make(map[string]any, len(node))
	for k, v := range node {
		if k == "products" {
			continue
		}
		scalar[k] = v
	}

	data, err := json.Marshal(scalar)
	if err != nil {
		return nil, fmt.Errorf("сериализация узла: %w", err)
	}
	var profile model.UserDocumentProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("декодирование узла: %w", err)
	}

	if raw, ok := node["products"].(map[string]any); ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("сериализация товаров: %w", err)
		}
		var byID map[string]model.Product
		if err := json.Unmarshal(data, &byID); err != nil {
			return nil, fmt.Errorf("декодирование товаров: %w", err)
		}
		for _, p := range byID {
			profile.Products = append(profile.Products, p)
		}
		sort.Slice(profile.Products, func(i, j int) bool {
			return profile.Products[i].CreatedAt.Before(profile.Products[j].CreatedAt)
		})
	}

	profile.Identity = id
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}
	return &profile, nil
}

// ApplyPatch накладывает частичный патч на профиль.
//
// Поток:
//  1. Читаем текущий профиль (либо создаём пустой)
//  2. Накладываем патч, поля вне патча не трогаются
//  3. Пишем локальную копию и индекс
//  4. Best-effort PATCH узла метахранилища
//
// Ошибка метахранилища логируется, локальное изменение сохраняется.
func (s *ProfileService) ApplyPatch(ctx context.Context, id model.Identity, patch *model.ProfilePatch) (*model.UserDocumentProfile, *OpError) {
	id = id.Sanitized()
	if err := id.Validate(); err != nil {
		return nil, &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    err.Error(),
		}
	}

	// 1. Текущий профиль либо новый
	now := time.Now().UTC()
	profile, err := s.store.Read(id)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &OpError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Ошибка чтения локального профиля",
			}
		}
		profile = &model.UserDocumentProfile{
			Identity:  id,
			CreatedAt: now,
		}
	}

	// 2. Частичное слияние
	patch.Apply(profile, now)

	// 3. Локальная копия и индекс
	if err := s.store.Write(profile); err != nil {
		s.logger.Error("Ошибка записи профиля",
			slog.String("identity", id.Path()),
			slog.String("error", err.Error()),
		)
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка записи локального профиля",
		}
	}
	s.idx.Put(profile)
	s.updateGauges()

	// 4. Best-effort синхронизация с метахранилищем
	if fields := patch.Fields(); len(fields) > 0 && s.meta != nil {
		if err := s.meta.PatchUserNode(ctx, id, fields); err != nil {
			s.logger.Warn("Узел метахранилища не обновлён, локальный профиль сохранён",
				slog.String("identity", id.Path()),
				slog.String("error", err.Error()),
			)
		}
	}

	return profile, nil
}

// AddProduct публикует товар пользователя: запись под ключом products
// узла метахранилища плюс локальный профиль.
func (s *ProfileService) AddProduct(ctx context.Context, id model.Identity, product model.Product) (*model.Product, *OpError) {
	id = id.Sanitized()
	if product.Name == "" {
		return nil, &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Название товара обязательно",
		}
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	profile, err := s.store.Read(id)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &OpError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Ошибка чтения локального профиля",
			}
		}
		profile = &model.UserDocumentProfile{
			Identity:  id,
			CreatedAt: now,
		}
	}
	profile.Products = append(profile.Products, product)
	profile.UpdatedAt = now

	if err := s.store.Write(profile); err != nil {
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка записи локального профиля",
		}
	}
	s.idx.Put(profile)
	s.updateGauges()

	if s.meta != nil {
		fields := map[string]any{product.ID: product}
		if err := s.meta.PatchSubNode(ctx, id, "products", fields); err != nil {
			s.logger.Warn("Товар не синхронизирован с метахранилищем",
				slog.String("identity", id.Path()),
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Товар опубликован",
		slog.String("identity", id.Path()),
		slog.String("product_id", product.ID),
		slog.String("name", product.Name),
	)

	return &product, nil
}

// ListProducts возвращает товары пользователя.
func (s *ProfileService) ListProducts(ctx context.Context, id model.Identity) ([]model.Product, *OpError) {
	profile, opErr := s.Get(ctx, id)
	if opErr != nil {
		return nil, opErr
	}
	return profile.Products, nil
}

// updateGauges обновляет gauge-метрики профилей по индексу.
func (s *ProfileService) updateGauges() {
	middleware.ProfilesTotal.Set(float64(s.idx.Count()))
	middleware.ProfilesVerified.Set(float64(s.idx.CountVerified()))
}
