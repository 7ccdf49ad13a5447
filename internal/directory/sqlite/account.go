package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/tgbridge/internal/directory"
)

// CreateAccount creates a new account.
// Пустой email сохраняется как NULL: такой аккаунт можно связать с Telegram,
// но выпустить для него сессию нельзя.
func (s *Storage) CreateAccount(ctx context.Context, email string) (*directory.Account, error) {
	account := &directory.Account{
		ID:        uuid.New().String(),
		Email:     normalizeEmail(email),
		CreatedAt: s.now().UTC(),
	}

	query := `
		INSERT INTO accounts (id, email, created_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		nullString(account.Email),
		account.CreatedAt,
	)

	if err != nil {
		// Проверяем на duplicate email
		if isUniqueViolation(err) {
			return nil, directory.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return account, nil
}

// GetAccountByEmail retrieves account by email
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*directory.Account, error) {
	query := `
		SELECT id, email, created_at, last_sign_in_at
		FROM accounts
		WHERE email = ?
	`

	return scanAccount(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

// GetAccountByID retrieves account by ID
func (s *Storage) GetAccountByID(ctx context.Context, id string) (*directory.Account, error) {
	return getAccountByID(ctx, s.db, id)
}

func getAccountByID(ctx context.Context, q queryer, id string) (*directory.Account, error) {
	query := `
		SELECT id, email, created_at, last_sign_in_at
		FROM accounts
		WHERE id = ?
	`

	return scanAccount(q.QueryRowContext(ctx, query, id))
}

// DeleteAccount deletes account by ID. Связи и токены удаляются каскадно.
func (s *Storage) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return directory.ErrAccountNotFound
	}

	return nil
}

func scanAccount(row *sql.Row) (*directory.Account, error) {
	account := &directory.Account{}
	var email sql.NullString
	var lastSignIn sql.NullTime

	err := row.Scan(
		&account.ID,
		&email,
		&account.CreatedAt,
		&lastSignIn,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Email = email.String
	if lastSignIn.Valid {
		account.LastSignInAt = &lastSignIn.Time
	}

	return account, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
