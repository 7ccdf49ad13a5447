package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize длина каждого производного ключа в байтах
const KeySize = 32

// MinSecretSize минимальная длина исходного секрета directory
const MinSecretSize = 32

// Context strings для независимых ключей
const (
	contextSigning   = "tgbridge/directory/jwt-signing"
	contextTokenHash = "tgbridge/directory/token-hash"
)

// Keys содержит производные ключи локального directory
type Keys struct {
	SigningKey   []byte // ключ подписи access токенов (HS256)
	TokenHashKey []byte // ключ HMAC для хранения одноразовых токенов
}

// DeriveKeys генерирует два независимых ключа из секрета directory:
// - SigningKey для подписи JWT
// - TokenHashKey для хеширования одноразовых токенов
// Использует HKDF-SHA256 с разными context strings для независимости ключей
func DeriveKeys(secret []byte) (*Keys, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("secret must be at least %d bytes, got %d", MinSecretSize, len(secret))
	}

	signingKey, err := expand(secret, contextSigning)
	if err != nil {
		return nil, err
	}

	tokenHashKey, err := expand(secret, contextTokenHash)
	if err != nil {
		return nil, err
	}

	return &Keys{
		SigningKey:   signingKey,
		TokenHashKey: tokenHashKey,
	}, nil
}

func expand(secret []byte, info string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
	}
	return key, nil
}
