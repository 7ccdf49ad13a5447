// Package telegram обертка над Bot API: профиль бота, входящие updates, отправка сообщений.
// Используется tgadmin, чтобы узнать Telegram id пользователей перед привязкой.
package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrBotTokenRequired токен бота не задан
var ErrBotTokenRequired = errors.New("telegram bot token is required")

// BotInfo профиль бота
type BotInfo struct {
	ID        int64
	Username  string
	FirstName string
}

// Sender автор update
type Sender struct {
	ID        int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// Update входящее событие с известным автором
type Update struct {
	Date   time.Time
	Text   string
	Sender Sender
	ID     int
}

// Gateway клиент Bot API
type Gateway struct {
	api *tgbotapi.BotAPI
}

// New создает Gateway для api.telegram.org. Проверяет токен запросом getMe.
func New(token string) (*Gateway, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second})
}

// NewWithEndpoint создает Gateway с произвольным endpoint
// в формате tgbotapi.APIEndpoint ("https://host/bot%s/%s")
func NewWithEndpoint(token, endpoint string, client *http.Client) (*Gateway, error) {
	if token == "" {
		return nil, ErrBotTokenRequired
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Gateway{api: api}, nil
}

// Me возвращает профиль бота
func (g *Gateway) Me() BotInfo {
	return BotInfo{
		ID:        g.api.Self.ID,
		Username:  g.api.Self.UserName,
		FirstName: g.api.Self.FirstName,
	}
}

// Updates возвращает updates начиная с offset без long polling.
// Updates без автора (channel posts) пропускаются.
// Второй результат: offset для следующего вызова.
func (g *Gateway) Updates(offset, limit int) ([]Update, int, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Limit = limit
	cfg.Timeout = 0

	raw, err := g.api.GetUpdates(cfg)
	if err != nil {
		return nil, offset, fmt.Errorf("get updates: %w", err)
	}

	next := offset
	updates := make([]Update, 0, len(raw))
	for i := range raw {
		if raw[i].UpdateID >= next {
			next = raw[i].UpdateID + 1
		}
		if u, ok := convertUpdate(&raw[i]); ok {
			updates = append(updates, u)
		}
	}

	return updates, next, nil
}

// SendMessage отправляет текстовое сообщение и возвращает его id
func (g *Gateway) SendMessage(chatID int64, text string) (int, error) {
	msg, err := g.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.MessageID, nil
}

func convertUpdate(u *tgbotapi.Update) (Update, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return fromMessage(u.UpdateID, u.Message), true
	case u.EditedMessage != nil && u.EditedMessage.From != nil:
		return fromMessage(u.UpdateID, u.EditedMessage), true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		sender := toSender(u.CallbackQuery.From)
		update := Update{ID: u.UpdateID, Text: u.CallbackQuery.Data, Sender: sender}
		if u.CallbackQuery.Message != nil {
			update.Date = u.CallbackQuery.Message.Time()
			if u.CallbackQuery.Message.Chat != nil {
				update.Sender.ChatID = u.CallbackQuery.Message.Chat.ID
			}
		}
		return update, true
	case u.MyChatMember != nil:
		sender := toSender(&u.MyChatMember.From)
		sender.ChatID = u.MyChatMember.Chat.ID
		return Update{
			ID:     u.UpdateID,
			Date:   time.Unix(int64(u.MyChatMember.Date), 0),
			Sender: sender,
		}, true
	default:
		return Update{}, false
	}
}

func fromMessage(updateID int, m *tgbotapi.Message) Update {
	sender := toSender(m.From)
	if m.Chat != nil {
		sender.ChatID = m.Chat.ID
	}
	return Update{
		ID:     updateID,
		Date:   m.Time(),
		Text:   m.Text,
		Sender: sender,
	}
}

func toSender(u *tgbotapi.User) Sender {
	return Sender{
		ID:        u.ID,
		ChatID:    u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}
