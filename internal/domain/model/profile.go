package model

import "time"

// Product — позиция маркетплейса, хранящаяся под ключом products
// узла пользователя в метахранилище.
type Product struct {
	// ID — идентификатор позиции (UUID v4)
	ID string `json:"id"`
	// Name — название товара
	Name string `json:"name"`
	// Category — категория (vegetables, grains и т.п.)
	Category string `json:"category"`
	// PricePerUnit — цена за единицу
	PricePerUnit float64 `json:"price_per_unit"`
	// Unit — единица измерения (kg, quintal)
	Unit string `json:"unit"`
	// Quantity — доступное количество
	Quantity float64 `json:"quantity"`
	// CreatedAt — момент публикации (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// UserDocumentProfile — агрегат профиля пользователя: идентичность,
// метаданные последнего документа, результаты загрузок и верификаций,
// товары. Локальная копия и узел метахранилища обновляются только
// частичным слиянием полей, целиком запись никогда не перезаписывается.
type UserDocumentProfile struct {
	// Identity — адресация пользователя
	Identity Identity `json:"identity"`

	// Name — отображаемое имя
	Name string `json:"name,omitempty"`

	// DocumentKind — вид последнего загруженного документа
	DocumentKind string `json:"document_kind,omitempty"`

	// DocumentHash — SHA-256 последнего документа
	DocumentHash string `json:"document_hash,omitempty"`

	// LocalDocumentPath — локальный путь последнего документа
	LocalDocumentPath string `json:"local_document_path,omitempty"`

	// ObjectStoreURL — download URL из объектного стора
	ObjectStoreURL string `json:"object_store_url,omitempty"`

	// ContentStoreCID — идентификатор содержимого из контент-стора
	ContentStoreCID string `json:"content_store_cid,omitempty"`

	// ContentStorePlaceholder — признак плейсхолдера вместо CID
	ContentStorePlaceholder bool `json:"content_store_placeholder,omitempty"`

	// ContentVerified — последняя верификация через контент-стор успешна
	ContentVerified bool `json:"content_verified,omitempty"`

	// LedgerVerified — хэш зафиксирован во внешнем реестре
	LedgerVerified bool `json:"ledger_verified,omitempty"`

	// LedgerTxID — транзакция реестра
	LedgerTxID string `json:"ledger_tx_id,omitempty"`

	// LastVerifiedAt — момент последней успешной верификации
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`

	// Products — товары пользователя
	Products []Product `json:"products,omitempty"`

	// CreatedAt — момент создания профиля (UTC)
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — момент последнего изменения (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfilePatch — частичное обновление профиля. Поля-указатели: nil —
// поле не трогать, не-nil — записать новое значение. Слияние никогда
// не затирает поля, не названные в патче.
type ProfilePatch struct {
	Name                    *string    `json:"name,omitempty"`
	DocumentKind            *string    `json:"document_kind,omitempty"`
	DocumentHash            *string    `json:"document_hash,omitempty"`
	LocalDocumentPath       *string    `json:"local_document_path,omitempty"`
	ObjectStoreURL          *string    `json:"object_store_url,omitempty"`
	ContentStoreCID         *string    `json:"content_store_cid,omitempty"`
	ContentStorePlaceholder *bool      `json:"content_store_placeholder,omitempty"`
	ContentVerified         *bool      `json:"content_verified,omitempty"`
	LedgerVerified          *bool      `json:"ledger_verified,omitempty"`
	LedgerTxID              *string    `json:"ledger_tx_id,omitempty"`
	LastVerifiedAt          *time.Time `json:"last_verified_at,omitempty"`
}

// Apply накладывает патч на профиль и обновляет UpdatedAt.
func (p *ProfilePatch) Apply(profile *UserDocumentProfile, now time.Time) {
	if p.Name != nil {
		profile.Name = *p.Name
	}
	if p.DocumentKind != nil {
		profile.DocumentKind = *p.DocumentKind
	}
	if p.DocumentHash != nil {
		profile.DocumentHash = *p.DocumentHash
	}
	if p.LocalDocumentPath != nil {
		profile.LocalDocumentPath = *p.LocalDocumentPath
	}
	if p.ObjectStoreURL != nil {
		profile.ObjectStoreURL = *p.ObjectStoreURL
	}
	if p.ContentStoreCID != nil {
		profile.ContentStoreCID = *p.ContentStoreCID
	}
	if p.ContentStorePlaceholder != nil {
		profile.ContentStorePlaceholder = *p.ContentStorePlaceholder
	}
	if p.ContentVerified != nil {
		profile.ContentVerified = *p.ContentVerified
	}
	if p.LedgerVerified != nil {
		profile.LedgerVerified = *p.LedgerVerified
	}
	if p.LedgerTxID != nil {
		profile.LedgerTxID = *p.LedgerTxID
	}
	if p.LastVerifiedAt != nil {
		profile.LastVerifiedAt = p.LastVerifiedAt
	}
	profile.UpdatedAt = now
}

// Fields возвращает патч в виде карты полей для частичного PATCH
// в метахранилище. Включаются только заданные поля.
func (p *ProfilePatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.DocumentKind != nil {
		fields["document_kind"] = *p.DocumentKind
	}
	if p.DocumentHash != nil {
		fields["document_hash"] = *p.DocumentHash
	}
	if p.LocalDocumentPath != nil {
		fields["local_document_path"] = *p.LocalDocumentPath
	}
	if p.ObjectStoreURL != nil {
		fields["object_store_url"] = *p.ObjectStoreURL
	}
	if p.ContentStoreCID != nil {
		fields["content_store_cid"] = *p.ContentStoreCID
	}
	if p.ContentStorePlaceholder != nil {
		fields["content_store_placeholder"] = *p.ContentStorePlaceholder
	}
	if p.ContentVerified != nil {
		fields["content_verified"] = *p.ContentVerified
	}
	if p.LedgerVerified != nil {
		fields["ledger_verified"] = *p.LedgerVerified
	}
	if p.LedgerTxID != nil {
		fields["ledger_tx_id"] = *p.LedgerTxID
	}
	if p.LastVerifiedAt != nil {
		fields["last_verified_at"] = p.LastVerifiedAt.Format(time.RFC3339)
	}
	return fields
}

// Ptr — вспомогательная функция для построения патчей.
func Ptr[T any](v T) *T { return &v }
