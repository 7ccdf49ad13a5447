package sqlite

import (
	"context"
	"fmt"

	"github.com/iudanet/tgbridge/internal/crypto"
)

// saveRefreshToken stores hash of a new refresh token
func (s *Storage) saveRefreshToken(ctx context.Context, q queryer, userID, refreshToken string, expiresAt int64) error {
	tokenHash, err := crypto.HashToken(s.hashKey, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to hash refresh token: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := q.ExecContext(ctx, query, tokenHash, userID, expiresAt, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// RevokeSessions deletes all refresh tokens for a user
// Returns number of deleted tokens
func (s *Storage) RevokeSessions(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteExpiredTokens removes expired refresh tokens and expired or used one-time tokens
// Returns number of deleted rows
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	now := s.now().Unix()
	total := 0

	queries := []string{
		`DELETE FROM one_time_tokens WHERE expires_at <= ? OR used_at IS NOT NULL`,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`,
	}

	for _, query := range queries {
		result, err := s.db.ExecContext(ctx, query, now)
		if err != nil {
			return total, fmt.Errorf("failed to delete expired tokens: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += int(rows)
	}

	return total, nil
}
