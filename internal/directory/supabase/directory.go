package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/tgbridge/internal/directory"
)

// userResponse пользователь в формате GoTrue
type userResponse struct {
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	ID           string     `json:"id"`
	Email        string     `json:"email"`
}

func (u *userResponse) toAccount() *directory.Account {
	if u == nil {
		return nil
	}
	return &directory.Account{
		ID:           u.ID,
		Email:        u.Email,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

// telegramUserRow строка таблицы telegram_users
type telegramUserRow struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	TelegramID int64  `json:"telegram_id"`
}

type linkProperties struct {
	HashedToken      string `json:"hashed_token"`
	EmailOTP         string `json:"email_otp"`
	VerificationType string `json:"verification_type"`
}

// generateLinkResponse ответ admin/generate_link. Свойства ссылки приходят
// либо на верхнем уровне (GoTrue), либо в properties (клиентские SDK).
type generateLinkResponse struct {
	Properties *linkProperties `json:"properties,omitempty"`
	linkProperties
}

type generateLinkRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

type verifyRequest struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

type sessionResponse struct {
	User         *userResponse `json:"user"`
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
}

// LookupTelegramIdentity находит связь в telegram_users и email аккаунта
func (c *Client) LookupTelegramIdentity(ctx context.Context, telegramID int64) (*directory.Identity, error) {
	query := url.Values{}
	query.Set("select", "telegram_id,user_id,username")
	query.Set("telegram_id", "eq."+strconv.FormatInt(telegramID, 10))
	query.Set("limit", "1")

	var rows []telegramUserRow
	if err := c.doRequest(ctx, http.MethodGet, "/rest/v1/telegram_users?"+query.Encode(), nil, &rows, nil); err != nil {
		return nil, fmt.Errorf("telegram_users lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, directory.ErrIdentityNotFound
	}

	row := rows[0]
	var user userResponse
	if err := c.doRequest(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(row.UserID), nil, &user, nil); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, directory.ErrEmailNotFound
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if user.Email == "" {
		return nil, directory.ErrEmailNotFound
	}

	return &directory.Identity{
		TelegramID: row.TelegramID,
		UserID:     row.UserID,
		Email:      user.Email,
		Username:   row.Username,
	}, nil
}

// GenerateMagicLink выпускает magic link через admin API
func (c *Client) GenerateMagicLink(ctx context.Context, email string) (*directory.MagicLink, error) {
	req := generateLinkRequest{
		Type:  directory.VerificationMagicLink,
		Email: email,
	}

	var resp generateLinkResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/v1/admin/generate_link", req, &resp, nil); err != nil {
		return nil, fmt.Errorf("generate link request failed: %w", err)
	}

	props := resp.linkProperties
	if props.HashedToken == "" && resp.Properties != nil {
		props = *resp.Properties
	}
	if props.HashedToken == "" {
		return nil, fmt.Errorf("generate link response has no hashed token")
	}

	verificationType := props.VerificationType
	if verificationType == "" {
		verificationType = directory.VerificationMagicLink
	}

	return &directory.MagicLink{
		Email:            email,
		Token:            props.HashedToken,
		VerificationType: verificationType,
	}, nil
}

// VerifyMagicLink погашает hashed token и возвращает сессию
func (c *Client) VerifyMagicLink(ctx context.Context, link *directory.MagicLink) (*directory.Session, error) {
	if link == nil || link.Token == "" {
		return nil, directory.ErrTokenInvalid
	}

	verificationType := link.VerificationType
	if verificationType == "" {
		verificationType = directory.VerificationMagicLink
	}

	req := verifyRequest{
		Type:      verificationType,
		TokenHash: link.Token,
	}

	var resp sessionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/v1/verify", req, &resp, nil); err != nil {
		if IsClientError(err) {
			return nil, fmt.Errorf("%w: %w", directory.ErrTokenInvalid, err)
		}
		return nil, fmt.Errorf("verify request failed: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("verify response has no session")
	}

	return &directory.Session{
		User:         resp.User.toAccount(),
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
	}, nil
}
