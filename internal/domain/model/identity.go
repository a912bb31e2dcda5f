// Пакет model — доменные модели Verification Module.
// Identity — адресация пользователя в метахранилище,
// Artifact / UploadRecord / VerificationRecord — ядро пайплайна верификации,
// UserDocumentProfile — агрегат профиля пользователя.
package model

import (
	"fmt"
	"strings"
)

// UserType — тип пользователя платформы.
type UserType string

const (
	// UserFarmer — фермер (продавец)
	UserFarmer UserType = "farmer"
	// UserBuyer — покупатель
	UserBuyer UserType = "buyer"
)

// Identity — идентичность пользователя, полученная из проверенного токена.
// Четвёрка (userType, state, district, phone) однозначно адресует узел
// пользователя в метахранилище и префикс его документов в объектном сторе.
type Identity struct {
	// UserType — тип пользователя (farmer, buyer)
	UserType UserType `json:"user_type"`
	// State — штат (регион) пользователя
	State string `json:"state"`
	// District — район пользователя
	District string `json:"district"`
	// Phone — телефон, первичный ключ пользователя
	Phone string `json:"phone"`
}

// SanitizeKey приводит строку к виду, допустимому в ключах метахранилища.
// Запрещённые символы . # $ / [ ] заменяются на подчёркивание.
func SanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '#', '$', '/', '[', ']':
			return '_'
		default:
			return r
		}
	}, s)
}

// Validate проверяет заполненность всех компонентов идентичности.
func (id Identity) Validate() error {
	switch id.UserType {
	case UserFarmer, UserBuyer:
	default:
		return fmt.Errorf("недопустимый тип пользователя: %q", id.UserType)
	}
	if id.State == "" || id.District == "" || id.Phone == "" {
		return fmt.Errorf("неполная идентичность: state=%q district=%q phone=%q",
			id.State, id.District, id.Phone)
	}
	return nil
}

// Sanitized возвращает копию идентичности с очищенными ключевыми полями.
func (id Identity) Sanitized() Identity {
	return Identity{
		UserType: id.UserType,
		State:    SanitizeKey(id.State),
		District: SanitizeKey(id.District),
		Phone:    SanitizeKey(id.Phone),
	}
}

// Path возвращает путь узла пользователя в метахранилище:
// users/{userType}/{state}/{district}/{phone}
func (id Identity) Path() string {
	s := id.Sanitized()
	return fmt.Sprintf("users/%s/%s/%s/%s", s.UserType, s.State, s.District, s.Phone)
}

// ObjectStorePath строит путь документа в изменяемом объектном сторе.
// Формат: documents/{state}/{district}/{phone}/{kind}_{phone}_{timestamp}{ext}
// где timestamp — Unix-миллисекунды момента загрузки, ext — с точкой (".jpg").
func (id Identity) ObjectStorePath(kind string, ext string, unixMilli int64) string {
	s := id.Sanitized()
	return fmt.Sprintf("documents/%s/%s/%s/%s_%s_%d%s",
		s.State, s.District, s.Phone, SanitizeKey(kind), s.Phone, unixMilli, ext)
}
