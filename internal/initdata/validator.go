package initdata

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validator хранит токен бота и опциональное ограничение возраста auth_date
type Validator struct {
	now      func() time.Time
	botToken string
	maxAge   time.Duration
}

// NewValidator создает валидатор. maxAge == 0 отключает проверку auth_date,
// и тогда результат зависит только от payload и токена.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	return &Validator{
		botToken: botToken,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Configured сообщает, задан ли токен бота
func (v *Validator) Configured() bool {
	return v != nil && v.botToken != ""
}

// Validate проверяет подпись и, если задано, привязку и возраст payload
func (v *Validator) Validate(initData string, binding Binding) (*Payload, error) {
	payload, err := Validate(initData, v.botToken, binding)
	if err != nil {
		return nil, err
	}

	if v.maxAge > 0 {
		authDate, err := payload.AuthDate()
		if err != nil {
			return nil, err
		}
		if v.now().Sub(authDate) > v.maxAge {
			return nil, fmt.Errorf("%w: auth_date is older than %s", ErrInvalidInitData, v.maxAge)
		}
	}

	return payload, nil
}

// Sign добавляет к парам подпись hash и кодирует их так же, как Telegram клиент.
// Используется для тестов и локальной разработки.
func Sign(pairs []Pair, botToken string) string {
	hash := Signature(BuildDataCheckString(pairs), botToken)

	parts := make([]string, 0, len(pairs)+1)
	for _, pair := range pairs {
		parts = append(parts, url.QueryEscape(pair.Key)+"="+url.QueryEscape(pair.Value))
	}
	parts = append(parts, KeyHash+"="+hash)

	return strings.Join(parts, "&")
}
