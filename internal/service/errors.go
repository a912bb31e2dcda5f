// errors.go — типизированная ошибка сервисного слоя с HTTP-кодом.
package service

import "fmt"

// OpError — ошибка операции с HTTP-кодом и машиночитаемым кодом.
type OpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
