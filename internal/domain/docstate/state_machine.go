// Пакет docstate — конечный автомат состояния верификации документа.
//
// Жизненный цикл:
//
//	unverified → uploading → awaiting_verification → verified | verification_failed
//
// Из verified возможен единственный односторонний апгрейд verified → ledger_verified.
// Повторная верификация из verified / ledger_verified допустима и может
// обнаружить подмену (переход в verification_failed). Из verification_failed
// возможен только ретрай загрузки (→ uploading).
//
// Потокобезопасен через sync.RWMutex.
package docstate

import (
	"fmt"
	"sync"
	"time"
)

// DocState — состояние верификации документа.
type DocState string

const (
	// StateUnverified — документ принят, загрузка не начата
	StateUnverified DocState = "unverified"
	// StateUploading — идёт загрузка в хранилища
	StateUploading DocState = "uploading"
	// StateAwaiting — загрузка завершена, верификация не выполнялась
	StateAwaiting DocState = "awaiting_verification"
	// StateVerified — скачанная копия совпала с локальным хэшем
	StateVerified DocState = "verified"
	// StateFailed — верификация не пройдена либо загрузка сорвана
	StateFailed DocState = "verification_failed"
	// StateLedgerVerified — хэш дополнительно зафиксирован в реестре
	StateLedgerVerified DocState = "ledger_verified"
)

// Operation — операция пайплайна над документом.
type Operation string

const (
	OpUpload Operation = "upload"
	OpVerify Operation = "verify"
	OpAttest Operation = "attest"
)

// TransitionRecord — запись о переходе между состояниями.
type TransitionRecord struct {
	From      DocState  `json:"from"`
	To        DocState  `json:"to"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMachine — конечный автомат верификации одного документа.
// Потокобезопасен для одновременного чтения/записи.
type StateMachine struct {
	mu      sync.RWMutex
	current DocState
	history []TransitionRecord
}

// validTransitions — матрица допустимых переходов.
// Ключ — текущее состояние, значение — набор допустимых целевых.
// Самопереход verified → verified / ledger_verified → ledger_verified —
// повторная верификация с прежним исходом.
var validTransitions = map[DocState]map[DocState]bool{
	StateUnverified:     {StateUploading: true},
	StateUploading:      {StateAwaiting: true, StateFailed: true},
	StateAwaiting:       {StateVerified: true, StateFailed: true},
	StateVerified:       {StateVerified: true, StateLedgerVerified: true, StateFailed: true},
	StateFailed:         {StateUploading: true},
	StateLedgerVerified: {StateLedgerVerified: true, StateFailed: true},
}

// allowedOperations — матрица допустимых операций для каждого состояния.
// Аттестация доступна только из verified: реестр фиксирует лишь
// подтверждённый хэш.
var allowedOperations = map[DocState]map[Operation]bool{
	StateUnverified:     {OpUpload: true},
	StateUploading:      {},
	StateAwaiting:       {OpVerify: true},
	StateVerified:       {OpVerify: true, OpAttest: true},
	StateFailed:         {OpUpload: true},
	StateLedgerVerified: {OpVerify: true},
}

// NewStateMachine создаёт конечный автомат в состоянии unverified.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateUnverified,
		history: make([]TransitionRecord, 0),
	}
}

// Current возвращает текущее состояние.
func (sm *StateMachine) Current() DocState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// CanTransitionTo проверяет, допустим ли переход в указанное состояние.
func (sm *StateMachine) CanTransitionTo(target DocState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	transitions, ok := validTransitions[sm.current]
	if !ok {
		return false
	}
	return transitions[target]
}

// TransitionTo выполняет переход в указанное состояние.
//
// Параметры:
//   - target: целевое состояние
//   - subject: кто инициировал переход (sub из JWT либо имя сервиса)
//
// Ошибка INVALID_TRANSITION — переход недопустим.
func (sm *StateMachine) TransitionTo(target DocState, subject string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !isValidState(target) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("недопустимое целевое состояние: %q", target),
		}
	}

	transitions, ok := validTransitions[sm.current]
	if !ok || !transitions[target] {
		return &TransitionError{
			Code: "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим",
				sm.current, target),
		}
	}

	record := TransitionRecord{
		From:      sm.current,
		To:        target,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
	}

	sm.current = target
	sm.history = append(sm.history, record)

	return nil
}

// CanPerform проверяет, допустима ли операция в текущем состоянии.
func (sm *StateMachine) CanPerform(op Operation) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ops, ok := allowedOperations[sm.current]
	if !ok {
		return false
	}
	return ops[op]
}

// History возвращает историю переходов (копия).
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]TransitionRecord, len(sm.history))
	copy(result, sm.history)
	return result
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isValidState проверяет, является ли строка допустимым состоянием.
func isValidState(s DocState) bool {
	switch s {
	case StateUnverified, StateUploading, StateAwaiting,
		StateVerified, StateFailed, StateLedgerVerified:
		return true
	default:
		return false
	}
}

// ParseState преобразует строку в DocState.
// Возвращает ошибку для недопустимых значений.
func ParseState(s string) (DocState, error) {
	st := DocState(s)
	if !isValidState(st) {
		return "", fmt.Errorf("недопустимое состояние: %q", s)
	}
	return st, nil
}
