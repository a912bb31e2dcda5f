package model

import "time"

// VerificationMethod — способ, которым выполнена проверка.
type VerificationMethod string

const (
	// MethodHashCompare — скачивание из контент-стора и сравнение хэшей
	MethodHashCompare VerificationMethod = "content_store_hash_compare"
	// MethodLedgerAttestation — фиксация хэша во внешнем реестре
	MethodLedgerAttestation VerificationMethod = "ledger_attestation"
)

// VerificationStatus — исход одной попытки верификации.
type VerificationStatus string

const (
	// VerificationOK — хэши совпали
	VerificationOK VerificationStatus = "verified"
	// VerificationMismatch — хэши не совпали (документ изменён)
	VerificationMismatch VerificationStatus = "hash_mismatch"
	// VerificationUnavailable — удалённую копию не удалось получить,
	// сравнение не состоялось
	VerificationUnavailable VerificationStatus = "retrieval_failed"
)

// VerificationRecord — результат одной попытки верификации документа.
// Записи не мутируются: повторная верификация создаёт новую запись,
// предыдущие сохраняются для аудита.
type VerificationRecord struct {
	// ID — идентификатор записи (UUID v4)
	ID string `json:"id"`

	// ArtifactID — верифицируемый артефакт
	ArtifactID string `json:"artifact_id"`

	// Method — способ проверки
	Method VerificationMethod `json:"method"`

	// Status — исход попытки
	Status VerificationStatus `json:"status"`

	// LocalHash — хэш, зафиксированный при загрузке артефакта
	LocalHash string `json:"local_hash"`

	// RemoteHash — хэш, вычисленный по скачанной удалённой копии.
	// Пустая строка при retrieval_failed.
	RemoteHash string `json:"remote_hash,omitempty"`

	// LedgerTxID — идентификатор транзакции реестра
	// (только для ledger_attestation)
	LedgerTxID string `json:"ledger_tx_id,omitempty"`

	// LedgerExplorerURL — ссылка на транзакцию в обозревателе реестра
	LedgerExplorerURL string `json:"ledger_explorer_url,omitempty"`

	// VerifiedAt — момент проверки (UTC)
	VerifiedAt time.Time `json:"verified_at"`
}

// HashesMatch — производный признак совпадения хэшей. Вычисляется из
// фактических значений, отдельным полем не хранится.
func (r *VerificationRecord) HashesMatch() bool {
	return r.LocalHash != "" && r.LocalHash == r.RemoteHash
}
