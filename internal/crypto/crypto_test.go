package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestDeriveKeys(t *testing.T) {
	tests := []struct {
		name    string
		secret  []byte
		wantErr bool
	}{
		{name: "successful key derivation", secret: testSecret},
		{name: "short secret", secret: []byte("short"), wantErr: true},
		{name: "nil secret", secret: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := DeriveKeys(tt.secret)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, keys)
				return
			}

			require.NoError(t, err)
			assert.Len(t, keys.SigningKey, KeySize)
			assert.Len(t, keys.TokenHashKey, KeySize)
			// ключи должны быть независимыми
			assert.False(t, bytes.Equal(keys.SigningKey, keys.TokenHashKey))
		})
	}
}

func TestDeriveKeys_Deterministic(t *testing.T) {
	first, err := DeriveKeys(testSecret)
	require.NoError(t, err)
	second, err := DeriveKeys(testSecret)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHashToken(t *testing.T) {
	keys, err := DeriveKeys(testSecret)
	require.NoError(t, err)

	hash, err := HashToken(keys.TokenHashKey, "token-1")
	require.NoError(t, err)
	assert.Regexp(t, "^[a-f0-9]{64}$", hash)

	again, err := HashToken(keys.TokenHashKey, "token-1")
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	other, err := HashToken(keys.TokenHashKey, "token-2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)

	_, err = HashToken(keys.TokenHashKey, "")
	assert.Error(t, err)

	_, err = HashToken(nil, "token-1")
	assert.Error(t, err)
}
