package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iudanet/tgbridge/internal/directory"
)

// usersPerPage размер страницы при поиске пользователя по email
const usersPerPage = 1000

type createUserRequest struct {
	Email        string `json:"email"`
	EmailConfirm bool   `json:"email_confirm"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

// CreateAccount создает подтвержденного пользователя без пароля
func (c *Client) CreateAccount(ctx context.Context, email string) (*directory.Account, error) {
	req := createUserRequest{
		Email:        email,
		EmailConfirm: true,
	}

	var user userResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/v1/admin/users", req, &user, nil); err != nil {
		if IsStatus(err, http.StatusUnprocessableEntity) {
			return nil, directory.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("create user request failed: %w", err)
	}

	return user.toAccount(), nil
}

// GetAccountByEmail постранично просматривает пользователей, admin API не фильтрует по email
func (c *Client) GetAccountByEmail(ctx context.Context, email string) (*directory.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(usersPerPage))

		var resp listUsersResponse
		if err := c.doRequest(ctx, http.MethodGet, "/auth/v1/admin/users?"+query.Encode(), nil, &resp, nil); err != nil {
			return nil, fmt.Errorf("list users request failed: %w", err)
		}

		for i := range resp.Users {
			if strings.EqualFold(resp.Users[i].Email, email) {
				return resp.Users[i].toAccount(), nil
			}
		}

		if len(resp.Users) < usersPerPage {
			return nil, directory.ErrAccountNotFound
		}
	}
}

// GetAccountByID загружает пользователя admin API
func (c *Client) GetAccountByID(ctx context.Context, id string) (*directory.Account, error) {
	var user userResponse
	if err := c.doRequest(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(id), nil, &user, nil); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, directory.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get user request failed: %w", err)
	}

	return user.toAccount(), nil
}

// DeleteAccount удаляет пользователя. Строки telegram_users удаляет внешний ключ в БД.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil, nil); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return directory.ErrAccountNotFound
		}
		return fmt.Errorf("delete user request failed: %w", err)
	}

	return nil
}

// LinkTelegram делает upsert строки telegram_users по telegram_id
func (c *Client) LinkTelegram(ctx context.Context, identity *directory.Identity) error {
	if identity.UserID == "" {
		account, err := c.GetAccountByEmail(ctx, identity.Email)
		if err != nil {
			return err
		}
		identity.UserID = account.ID
	}

	rows := []telegramUserRow{{
		TelegramID: identity.TelegramID,
		UserID:     identity.UserID,
		Username:   identity.Username,
	}}
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	}

	if err := c.doRequest(ctx, http.MethodPost, "/rest/v1/telegram_users?on_conflict=telegram_id", rows, nil, headers); err != nil {
		return fmt.Errorf("link telegram request failed: %w", err)
	}

	return nil
}

// UnlinkTelegram удаляет строку telegram_users
func (c *Client) UnlinkTelegram(ctx context.Context, telegramID int64) error {
	query := url.Values{}
	query.Set("telegram_id", "eq."+strconv.FormatInt(telegramID, 10))
	headers := map[string]string{
		"Prefer": "return=representation",
	}

	var deleted []telegramUserRow
	if err := c.doRequest(ctx, http.MethodDelete, "/rest/v1/telegram_users?"+query.Encode(), nil, &deleted, headers); err != nil {
		return fmt.Errorf("unlink telegram request failed: %w", err)
	}

	if len(deleted) == 0 {
		return directory.ErrIdentityNotFound
	}

	return nil
}
