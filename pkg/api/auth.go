package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/tgbridge/internal/directory"
)

// VerifyInitDataRequest представляет запрос на проверку init data
type VerifyInitDataRequest struct {
	InitData string `json:"initData"` // строка Telegram.WebApp.initData как есть
}

// VerifyInitDataResponse представляет результат проверки
type VerifyInitDataResponse struct {
	OK bool `json:"ok"`
}

// CreateSessionRequest представляет запрос на выпуск сессии
type CreateSessionRequest struct {
	InitData   string     `json:"initData"`    // строка Telegram.WebApp.initData
	TelegramID TelegramID `json:"telegram_id"` // заявленный Telegram id пользователя
}

// CreateSessionResponse представляет ответ с аккаунтом и сессией
type CreateSessionResponse struct {
	User    *directory.Account `json:"user"`
	Session *directory.Session `json:"session"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // код или описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// TelegramID принимает как JSON число, так и строку с числом
type TelegramID int64

// UnmarshalJSON implements json.Unmarshaler
func (id *TelegramID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*id = 0
			return nil
		}
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram_id %q: %w", raw, err)
	}

	*id = TelegramID(value)
	return nil
}

// Int64 возвращает значение как int64
func (id TelegramID) Int64() int64 {
	return int64(id)
}
