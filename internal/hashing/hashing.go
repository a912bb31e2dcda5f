// Пакет hashing — вычисление SHA-256 дайджеста документа.
// Всегда хэшируется полный поток байтов, результат — hex-строка
// в нижнем регистре. Вычисление не имеет побочных эффектов и может
// выполняться над одним источником сколько угодно раз.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DigestReader вычисляет SHA-256 потока до EOF.
func DigestReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("чтение потока для хэширования: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DigestFile вычисляет SHA-256 содержимого файла.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("открытие файла для хэширования: %w", err)
	}
	defer f.Close()

	return DigestReader(f)
}

// DigestBytes вычисляет SHA-256 среза байтов.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
