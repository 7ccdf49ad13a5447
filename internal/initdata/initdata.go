// Package initdata проверяет подлинность init data, которую Telegram передает Mini App.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyHash поле с подписью payload
	KeyHash = "hash"
	// KeyUser поле с JSON-объектом пользователя
	KeyUser = "user"
	// KeyAuthDate время выдачи payload (unix seconds)
	KeyAuthDate = "auth_date"
)

var (
	// ErrInvalidInitData payload не декодируется или в нем нет hash/user
	ErrInvalidInitData = errors.New("invalid init data")

	// ErrTelegramIDMismatch user.id не совпадает с заявленным telegram id
	ErrTelegramIDMismatch = errors.New("telegram id mismatch")

	// ErrInvalidHash подпись не совпадает с вычисленной
	ErrInvalidHash = errors.New("invalid hash")
)

// Pair одна пара key=value из payload (уже URL-декодированная)
type Pair struct {
	Key   string
	Value string
}

// User представляет объект user из init data
type User struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	IsPremium       bool   `json:"is_premium,omitempty"`
	AllowsWriteToPM bool   `json:"allows_write_to_pm,omitempty"`
}

// Payload разобранная init data в исходном порядке пар
type Payload struct {
	Pairs []Pair
}

// Get возвращает первое значение для ключа
func (p *Payload) Get(key string) (string, bool) {
	for _, pair := range p.Pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// Hash возвращает подпись payload и признак ее наличия
func (p *Payload) Hash() (string, bool) {
	return p.Get(KeyHash)
}

// User декодирует поле user
func (p *Payload) User() (*User, error) {
	raw, ok := p.Get(KeyUser)
	if !ok {
		return nil, fmt.Errorf("%w: user is missing", ErrInvalidInitData)
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("%w: failed to decode user: %w", ErrInvalidInitData, err)
	}

	return &user, nil
}

// AuthDate возвращает время выдачи payload
func (p *Payload) AuthDate() (time.Time, error) {
	raw, ok := p.Get(KeyAuthDate)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: auth_date is missing", ErrInvalidInitData)
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid auth_date: %w", ErrInvalidInitData, err)
	}

	return time.Unix(sec, 0), nil
}

// DataCheckString строит строку для проверки подписи:
// все пары кроме hash, отсортированные по ключу (побайтово), в виде key=value через \n
func (p *Payload) DataCheckString() string {
	pairs := make([]Pair, 0, len(p.Pairs))
	for _, pair := range p.Pairs {
		if pair.Key == KeyHash {
			continue
		}
		pairs = append(pairs, pair)
	}

	return BuildDataCheckString(pairs)
}

// BuildDataCheckString сортирует пары по ключу и склеивает их через \n.
// Повторяющиеся ключи сохраняют относительный порядок.
func BuildDataCheckString(pairs []Pair) string {
	sorted := slices.Clone(pairs)
	slices.SortStableFunc(sorted, func(a, b Pair) int {
		return strings.Compare(a.Key, b.Key)
	})

	lines := make([]string, 0, len(sorted))
	for _, pair := range sorted {
		lines = append(lines, pair.Key+"="+pair.Value)
	}

	return strings.Join(lines, "\n")
}

// Parse разбирает URL-encoded init data. Порядок пар сохраняется.
func Parse(initData string) (*Payload, error) {
	payload := &Payload{}
	if initData == "" {
		return payload, nil
	}

	for _, part := range strings.Split(initData, "&") {
		if part == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(part, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode key: %w", ErrInvalidInitData, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode value of %q: %w", ErrInvalidInitData, key, err)
		}

		payload.Pairs = append(payload.Pairs, Pair{Key: key, Value: value})
	}

	return payload, nil
}

// SecretKey производный ключ из токена бота: SHA256(botToken), сырые байты.
// Это не HMAC("WebAppData", token) из документации Telegram, а исторически
// используемая здесь схема; менять ее можно только вместе со всеми подписантами.
func SecretKey(botToken string) []byte {
	sum := sha256.Sum256([]byte(botToken))
	return sum[:]
}

// Signature вычисляет hex(HMAC-SHA256(SecretKey(botToken), dataCheckString))
func Signature(dataCheckString, botToken string) string {
	mac := hmac.New(sha256.New, SecretKey(botToken))
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}

// Binding задает, нужно ли сверять user.id с заявленным идентификатором
type Binding struct {
	telegramID int64
	required   bool
}

// NoBinding проверка только подлинности, без привязки к идентификатору.
// Успешный результат не доказывает, что запрос принадлежит конкретному telegram id.
func NoBinding() Binding {
	return Binding{}
}

// BindTo требует, чтобы user.id в payload совпадал с telegramID
func BindTo(telegramID int64) Binding {
	return Binding{telegramID: telegramID, required: true}
}

// Required сообщает, включена ли привязка
func (b Binding) Required() bool {
	return b.required
}

// TelegramID возвращает идентификатор привязки
func (b Binding) TelegramID() int64 {
	return b.telegramID
}

// Validate проверяет init data токеном бота. Чистая функция.
func Validate(initData, botToken string, binding Binding) (*Payload, error) {
	payload, err := Parse(initData)
	if err != nil {
		return nil, err
	}

	// hash и user обязательны в любом режиме
	hash, ok := payload.Hash()
	if !ok {
		return nil, fmt.Errorf("%w: hash is missing", ErrInvalidInitData)
	}
	if _, ok := payload.Get(KeyUser); !ok {
		return nil, fmt.Errorf("%w: user is missing", ErrInvalidInitData)
	}

	if binding.Required() {
		user, err := payload.User()
		if err != nil {
			return nil, err
		}
		if user.ID != binding.TelegramID() {
			return nil, ErrTelegramIDMismatch
		}
	}

	expected := Signature(payload.DataCheckString(), botToken)
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, ErrInvalidHash
	}

	return payload, nil
}
