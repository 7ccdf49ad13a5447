package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgbridge/internal/crypto"
	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/token"
)

// проверяем, что Storage реализует оба интерфейса directory
var (
	_ directory.Directory      = (*Storage)(nil)
	_ directory.Admin          = (*Storage)(nil)
	_ directory.SessionRevoker = (*Storage)(nil)
)

func countRefreshTokens(t *testing.T, s *Storage, userID string) int {
	t.Helper()

	var count int
	err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = ?`, userID).Scan(&count)
	require.NoError(t, err)
	return count
}

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	keys, err := crypto.DeriveKeys([]byte("test-directory-secret-0123456789abcdef"))
	require.NoError(t, err)

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:", Options{
		Keys:            keys,
		Issuer:          "tgbridge-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		OTPTTL:          time.Hour,
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createLinkedAccount(t *testing.T, ctx context.Context, s *Storage, email string, telegramID int64) *directory.Account {
	t.Helper()

	account, err := s.CreateAccount(ctx, email)
	require.NoError(t, err)

	err = s.LinkTelegram(ctx, &directory.Identity{TelegramID: telegramID, UserID: account.ID, Username: "tester"})
	require.NoError(t, err)

	return account
}

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New(context.Background(), ":memory:", Options{})
	assert.Error(t, err)
}

func TestStorage_CreateAccount(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account, err := s.CreateAccount(ctx, "  Alice@Example.com ")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice@example.com", account.Email)

	retrieved, err := s.GetAccountByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, retrieved.ID)
	assert.Nil(t, retrieved.LastSignInAt)

	_, err = s.CreateAccount(ctx, "alice@example.com")
	assert.ErrorIs(t, err, directory.ErrAccountAlreadyExists)

	// несколько аккаунтов без email допустимы (NULL не уникален)
	_, err = s.CreateAccount(ctx, "")
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, "")
	require.NoError(t, err)
}

func TestStorage_GetAccount_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetAccountByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)

	_, err = s.GetAccountByID(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)

	err = s.DeleteAccount(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)
}

func TestStorage_LookupTelegramIdentity(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "bob@example.com", 42)

	identity, err := s.LookupTelegramIdentity(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.TelegramID)
	assert.Equal(t, account.ID, identity.UserID)
	assert.Equal(t, "bob@example.com", identity.Email)
	assert.Equal(t, "tester", identity.Username)

	_, err = s.LookupTelegramIdentity(ctx, 43)
	assert.ErrorIs(t, err, directory.ErrIdentityNotFound)
}

func TestStorage_LookupTelegramIdentity_NoEmail(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createLinkedAccount(t, ctx, s, "", 7)

	_, err := s.LookupTelegramIdentity(ctx, 7)
	assert.ErrorIs(t, err, directory.ErrEmailNotFound)
}

func TestStorage_LinkTelegram_Relink(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first := createLinkedAccount(t, ctx, s, "first@example.com", 100)
	second, err := s.CreateAccount(ctx, "second@example.com")
	require.NoError(t, err)

	// переназначаем по email
	identity := &directory.Identity{TelegramID: 100, Email: "second@example.com"}
	require.NoError(t, s.LinkTelegram(ctx, identity))
	assert.Equal(t, second.ID, identity.UserID)

	found, err := s.LookupTelegramIdentity(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.UserID)
	assert.NotEqual(t, first.ID, found.UserID)
}

func TestStorage_LinkTelegram_Errors(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.LinkTelegram(ctx, &directory.Identity{TelegramID: 1, Email: "ghost@example.com"})
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)

	err = s.LinkTelegram(ctx, &directory.Identity{TelegramID: 1, UserID: "missing-id"})
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)
}

func TestStorage_UnlinkTelegram(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createLinkedAccount(t, ctx, s, "carol@example.com", 5)

	require.NoError(t, s.UnlinkTelegram(ctx, 5))

	_, err := s.LookupTelegramIdentity(ctx, 5)
	assert.ErrorIs(t, err, directory.ErrIdentityNotFound)

	err = s.UnlinkTelegram(ctx, 5)
	assert.ErrorIs(t, err, directory.ErrIdentityNotFound)
}

func TestStorage_DeleteAccount_CascadesLinks(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "dave@example.com", 9)
	require.NoError(t, s.DeleteAccount(ctx, account.ID))

	_, err := s.LookupTelegramIdentity(ctx, 9)
	assert.ErrorIs(t, err, directory.ErrIdentityNotFound)
}

func TestStorage_MagicLink_IssueSession(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "erin@example.com", 11)

	link, err := s.GenerateMagicLink(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, directory.VerificationMagicLink, link.VerificationType)

	session, err := s.VerifyMagicLink(ctx, link)
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "bearer", session.TokenType)
	assert.Equal(t, int64(15*60), session.ExpiresIn)
	require.NotNil(t, session.User)
	assert.Equal(t, account.ID, session.User.ID)

	claims, err := s.InspectAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.Subject)
	assert.Equal(t, "erin@example.com", claims.Email)
	assert.Equal(t, token.RoleAuthenticated, claims.Role)

	_, err = s.InspectAccessToken(session.RefreshToken)
	assert.Error(t, err)

	assert.Equal(t, 1, countRefreshTokens(t, s, account.ID))

	retrieved, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotNil(t, retrieved.LastSignInAt)
}

func TestStorage_MagicLink_SingleUse(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "frank@example.com", 12)

	link, err := s.GenerateMagicLink(ctx, "frank@example.com")
	require.NoError(t, err)

	_, err = s.VerifyMagicLink(ctx, link)
	require.NoError(t, err)

	// второе погашение не должно выпускать новую сессию
	_, err = s.VerifyMagicLink(ctx, link)
	assert.ErrorIs(t, err, directory.ErrTokenInvalid)

	assert.Equal(t, 1, countRefreshTokens(t, s, account.ID))
}

func TestStorage_MagicLink_Errors(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GenerateMagicLink(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)

	_, err = s.VerifyMagicLink(ctx, nil)
	assert.ErrorIs(t, err, directory.ErrTokenInvalid)

	_, err = s.VerifyMagicLink(ctx, &directory.MagicLink{Token: "forged"})
	assert.ErrorIs(t, err, directory.ErrTokenInvalid)
}

func TestStorage_MagicLink_Expired(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createLinkedAccount(t, ctx, s, "gina@example.com", 13)

	link, err := s.GenerateMagicLink(ctx, "gina@example.com")
	require.NoError(t, err)

	// сдвигаем часы за пределы TTL
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = s.VerifyMagicLink(ctx, link)
	assert.ErrorIs(t, err, directory.ErrTokenInvalid)
}

func TestStorage_DeleteExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "hank@example.com", 14)

	used, err := s.GenerateMagicLink(ctx, "hank@example.com")
	require.NoError(t, err)
	_, err = s.VerifyMagicLink(ctx, used)
	require.NoError(t, err)

	_, err = s.GenerateMagicLink(ctx, "hank@example.com")
	require.NoError(t, err)

	// сейчас удаляется только использованный токен
	deleted, err := s.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// через 60 дней истекают и неиспользованный токен, и refresh token
	s.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }
	deleted, err = s.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.Equal(t, 0, countRefreshTokens(t, s, account.ID))
}

func TestStorage_RevokeSessions(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	account := createLinkedAccount(t, ctx, s, "ivy@example.com", 15)

	for i := 0; i < 2; i++ {
		link, err := s.GenerateMagicLink(ctx, "ivy@example.com")
		require.NoError(t, err)
		_, err = s.VerifyMagicLink(ctx, link)
		require.NoError(t, err)
	}

	deleted, err := s.RevokeSessions(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, countRefreshTokens(t, s, account.ID))

	deleted, err = s.RevokeSessions(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
