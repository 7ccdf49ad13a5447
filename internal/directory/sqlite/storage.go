// Package sqlite реализует локальный account directory поверх SQLite
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/tgbridge/internal/crypto"
	"github.com/iudanet/tgbridge/internal/token"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultIssuer issuer access токенов локального directory
const DefaultIssuer = "tgbridge"

// Options параметры выпуска токенов
type Options struct {
	Keys            *crypto.Keys
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OTPTTL          time.Duration
}

// Storage represents SQLite directory implementation
type Storage struct {
	db       *sql.DB
	now      func() time.Time
	tokenCfg token.Config
	hashKey  []byte
	otpTTL   time.Duration
}

// queryer общий интерфейс *sql.DB и *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite directory instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string, opts Options) (*Storage, error) {
	if opts.Keys == nil {
		return nil, fmt.Errorf("directory keys are required")
	}
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}

	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite с WAL mode может поддерживать несколько читателей, но только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{
		db:  db,
		now: time.Now,
		tokenCfg: token.Config{
			Issuer:          opts.Issuer,
			Secret:          opts.Keys.SigningKey,
			AccessTokenTTL:  opts.AccessTokenTTL,
			RefreshTokenTTL: opts.RefreshTokenTTL,
		},
		hashKey: opts.Keys.TokenHashKey,
		otpTTL:  opts.OTPTTL,
	}

	if err := storage.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// InspectAccessToken проверяет access токен, выпущенный этим directory
func (s *Storage) InspectAccessToken(accessToken string) (*token.Claims, error) {
	return token.ValidateAccessToken(s.tokenCfg, accessToken)
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
