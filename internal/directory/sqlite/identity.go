package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tgbridge/internal/directory"
)

// LookupTelegramIdentity находит аккаунт и email по telegram id
func (s *Storage) LookupTelegramIdentity(ctx context.Context, telegramID int64) (*directory.Identity, error) {
	query := `
		SELECT t.telegram_id, t.user_id, t.username, a.email
		FROM telegram_users t
		LEFT JOIN accounts a ON a.id = t.user_id
		WHERE t.telegram_id = ?
	`

	identity := &directory.Identity{}
	var email sql.NullString

	err := s.db.QueryRowContext(ctx, query, telegramID).Scan(
		&identity.TelegramID,
		&identity.UserID,
		&identity.Username,
		&email,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get telegram identity: %w", err)
	}

	if !email.Valid || email.String == "" {
		return nil, directory.ErrEmailNotFound
	}
	identity.Email = email.String

	return identity, nil
}

// LinkTelegram создает связь или переназначает существующую на другой аккаунт.
// Если UserID пуст, аккаунт ищется по Email.
func (s *Storage) LinkTelegram(ctx context.Context, identity *directory.Identity) error {
	if identity.UserID == "" {
		account, err := s.GetAccountByEmail(ctx, identity.Email)
		if err != nil {
			return err
		}
		identity.UserID = account.ID
	}

	now := s.now().UTC()
	query := `
		INSERT INTO telegram_users (telegram_id, user_id, username, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		identity.TelegramID,
		identity.UserID,
		identity.Username,
		now,
		now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return directory.ErrAccountNotFound
		}
		return fmt.Errorf("failed to link telegram identity: %w", err)
	}

	return nil
}

// UnlinkTelegram удаляет связь telegram id с аккаунтом
func (s *Storage) UnlinkTelegram(ctx context.Context, telegramID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM telegram_users WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return fmt.Errorf("failed to unlink telegram identity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return directory.ErrIdentityNotFound
	}

	return nil
}
