package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Issuer:          "tgbridge-test",
		Secret:          []byte("test-secret-key"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	cfg := testConfig()

	tokenString, expiresAt, err := GenerateAccessToken(cfg, "user-1", "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)
	assert.WithinDuration(t, time.Now().Add(cfg.AccessTokenTTL), expiresAt, 5*time.Second)

	claims, err := ValidateAccessToken(cfg, tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, RoleAuthenticated, claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
}

func TestValidateAccessToken_Errors(t *testing.T) {
	cfg := testConfig()
	valid, _, err := GenerateAccessToken(cfg, "user-1", "user@example.com")
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := GenerateAccessToken(expiredCfg, "user-1", "user@example.com")
	require.NoError(t, err)

	otherSecret := cfg
	otherSecret.Secret = []byte("another-secret")

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		cfg   Config
		token string
	}{
		{name: "malformed", cfg: cfg, token: "invalid.token.here"},
		{name: "empty", cfg: cfg, token: ""},
		{name: "expired", cfg: cfg, token: expired},
		{name: "wrong secret", cfg: otherSecret, token: valid},
		{name: "wrong issuer", cfg: otherIssuer, token: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessToken(tt.cfg, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	cfg := testConfig()

	first, expiresAt, err := GenerateRefreshToken(cfg)
	require.NoError(t, err)
	second, _, err := GenerateRefreshToken(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 43) // 32 bytes base64url без padding
	assert.WithinDuration(t, time.Now().Add(cfg.RefreshTokenTTL), expiresAt, 5*time.Second)
}
