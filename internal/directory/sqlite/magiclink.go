package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tgbridge/internal/crypto"
	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/token"
)

// GenerateMagicLink выпускает одноразовый токен входа для email.
// В БД сохраняется только HMAC-хеш токена.
func (s *Storage) GenerateMagicLink(ctx context.Context, email string) (*directory.MagicLink, error) {
	account, err := s.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	otp, err := token.RandomToken()
	if err != nil {
		return nil, err
	}

	tokenHash, err := crypto.HashToken(s.hashKey, otp)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	now := s.now().UTC()
	query := `
		INSERT INTO one_time_tokens (token_hash, user_id, token_type, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		tokenHash,
		account.ID,
		directory.VerificationMagicLink,
		now.Add(s.otpTTL).Unix(),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save one-time token: %w", err)
	}

	return &directory.MagicLink{
		Email:            account.Email,
		Token:            otp,
		VerificationType: directory.VerificationMagicLink,
	}, nil
}

// VerifyMagicLink погашает одноразовый токен и выпускает сессию.
// Погашение и выпуск выполняются в одной транзакции; второй вызов с тем же
// токеном возвращает ErrTokenInvalid.
func (s *Storage) VerifyMagicLink(ctx context.Context, link *directory.MagicLink) (*directory.Session, error) {
	if link == nil || link.Token == "" {
		return nil, directory.ErrTokenInvalid
	}

	tokenHash, err := crypto.HashToken(s.hashKey, link.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()

	// Атомарно помечаем токен использованным: условие used_at IS NULL
	// гарантирует, что его можно погасить только один раз
	var userID string
	err = tx.QueryRowContext(ctx, `
		UPDATE one_time_tokens
		SET used_at = ?
		WHERE token_hash = ? AND token_type = ? AND used_at IS NULL AND expires_at > ?
		RETURNING user_id
	`, now.Unix(), tokenHash, directory.VerificationMagicLink, now.Unix()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to redeem one-time token: %w", err)
	}

	account, err := getAccountByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, tx, account)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return session, nil
}

// issueSession выпускает access/refresh пару и обновляет last_sign_in_at
func (s *Storage) issueSession(ctx context.Context, q queryer, account *directory.Account) (*directory.Session, error) {
	accessToken, expiresAt, err := token.GenerateAccessToken(s.tokenCfg, account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, refreshExpiresAt, err := token.GenerateRefreshToken(s.tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.saveRefreshToken(ctx, q, account.ID, refreshToken, refreshExpiresAt.Unix()); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := q.ExecContext(ctx, `UPDATE accounts SET last_sign_in_at = ? WHERE id = ?`, now, account.ID); err != nil {
		return nil, fmt.Errorf("failed to update last sign in: %w", err)
	}
	account.LastSignInAt = &now

	return &directory.Session{
		User:         account,
		AccessToken:  accessToken,
		TokenType:    "bearer",
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenCfg.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}
