// Package directory описывает account directory: внешнюю систему учета аккаунтов,
// связей с Telegram и сессий. Ядро моста использует только lookup/mint/redeem.
package directory

import (
	"context"
	"errors"
	"time"
)

// Common directory errors
var (
	// ErrIdentityNotFound для telegram id нет записи в telegram_users
	ErrIdentityNotFound = errors.New("telegram identity not found")

	// ErrEmailNotFound связанный аккаунт существует, но без email
	ErrEmailNotFound = errors.New("linked account has no email")

	// ErrAccountNotFound аккаунт не найден
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists аккаунт с таким email уже есть
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrTokenInvalid одноразовый токен не найден, истек или уже использован
	ErrTokenInvalid = errors.New("one-time token is invalid or already used")
)

// VerificationMagicLink тип одноразового токена для входа по ссылке
const VerificationMagicLink = "magiclink"

// Account представляет аккаунт в directory
type Account struct {
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	ID           string     `json:"id"`
	Email        string     `json:"email,omitempty"`
}

// Identity связь telegram id с аккаунтом
type Identity struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Username   string `json:"username,omitempty"`
	TelegramID int64  `json:"telegram_id"`
}

// MagicLink одноразовый credential, выпущенный для email
type MagicLink struct {
	Email            string
	Token            string // значение, которое принимает Verify
	VerificationType string
}

// Session пара токенов, выданная directory
type Session struct {
	User         *Account `json:"user,omitempty"`
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
}

// Directory операции, которые нужны для выпуска сессии
type Directory interface {
	// LookupTelegramIdentity находит аккаунт, связанный с telegram id.
	// Returns ErrIdentityNotFound if there is no link,
	// ErrEmailNotFound if the linked account has no email.
	LookupTelegramIdentity(ctx context.Context, telegramID int64) (*Identity, error)

	// GenerateMagicLink выпускает одноразовый credential для email
	GenerateMagicLink(ctx context.Context, email string) (*MagicLink, error)

	// VerifyMagicLink погашает credential и возвращает сессию.
	// Повторное погашение того же credential должно завершаться ошибкой.
	VerifyMagicLink(ctx context.Context, link *MagicLink) (*Session, error)
}

// Admin операции обслуживания directory (создание аккаунтов, привязка Telegram)
type Admin interface {
	// CreateAccount создает аккаунт с email.
	// Returns ErrAccountAlreadyExists if email is taken
	CreateAccount(ctx context.Context, email string) (*Account, error)

	// GetAccountByEmail returns ErrAccountNotFound if account doesn't exist
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// GetAccountByID returns ErrAccountNotFound if account doesn't exist
	GetAccountByID(ctx context.Context, id string) (*Account, error)

	// DeleteAccount удаляет аккаунт вместе со связями Telegram.
	// Returns ErrAccountNotFound if account doesn't exist
	DeleteAccount(ctx context.Context, id string) error

	// LinkTelegram создает или переназначает связь telegram id с аккаунтом
	LinkTelegram(ctx context.Context, identity *Identity) error

	// UnlinkTelegram удаляет связь.
	// Returns ErrIdentityNotFound if link doesn't exist
	UnlinkTelegram(ctx context.Context, telegramID int64) error
}

// SessionRevoker реализуют directory, которые сами хранят refresh токены
type SessionRevoker interface {
	// RevokeSessions удаляет все refresh токены аккаунта, возвращает их число
	RevokeSessions(ctx context.Context, userID string) (int, error)
}
