package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashToken хеширует одноразовый токен с использованием HMAC-SHA256.
// В БД хранится только хеш, сам токен существует лишь в ответе mint.
func HashToken(key []byte, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	if len(key) == 0 {
		return "", fmt.Errorf("hash key cannot be empty")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(token))

	// Возвращаем hex-encoded строку
	return hex.EncodeToString(mac.Sum(nil)), nil
}
