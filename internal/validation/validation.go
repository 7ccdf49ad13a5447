// Package validation проверяет ввод операторских команд tgadmin
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// TelegramUsernamePattern определяет допустимый формат Telegram username
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 5-32 символа
var TelegramUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{5,32}$`)

const (
	// MinUsernameLen минимальная длина Telegram username
	MinUsernameLen = 5
	// MaxUsernameLen максимальная длина Telegram username
	MaxUsernameLen = 32
	// MaxEmailLen максимальная длина email (RFC 5321)
	MaxEmailLen = 254
)

// NormalizeUsername убирает ведущий @
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// ValidateTelegramUsername проверяет username без ведущего @
func ValidateTelegramUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !TelegramUsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidateTelegramID проверяет, что id пользователя положительный
func ValidateTelegramID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("telegram id must be a positive number")
	}
	return nil
}

// ValidateEmail проверяет адрес без display name: "user@example.com"
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("email %q is not a valid address", email)
	}

	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("email %q must contain a domain", email)
	}

	return nil
}
